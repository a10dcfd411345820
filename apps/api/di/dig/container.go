package dig_container

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/kadi/apps/api/echo"
	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/assessment"
	"github.com/trezcool/kadi/core/fee"
	"github.com/trezcool/kadi/core/grading"
	"github.com/trezcool/kadi/core/promotion"
	"github.com/trezcool/kadi/core/report"
	"github.com/trezcool/kadi/core/roster"
	logsvc "github.com/trezcool/kadi/services/logger"
	metricsvc "github.com/trezcool/kadi/services/metrics"
	"github.com/trezcool/kadi/storage/database"
	inmemdb "github.com/trezcool/kadi/storage/database/inmem"
	sqlxrepos "github.com/trezcool/kadi/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Store holds the repositories of the configured storage backend.
	Store struct {
		dig.Out
		Tx          core.TxManager
		Roster      roster.Repository
		Assessments assessment.Repository
		Reports     report.Repository
		Fees        fee.Repository
		Promotions  promotion.Repository
		Closer      StoreCloser
	}

	StoreParam struct {
		dig.In
		Tx          core.TxManager
		Roster      roster.Repository
		Assessments assessment.Repository
		Reports     report.Repository
		Fees        fee.Repository
		Promotions  promotion.Repository
	}

	ServicesParam struct {
		dig.In
		Roster      *roster.Service
		Assessments *assessment.Service
		Reports     *report.Service
		Promotions  *promotion.Service
		Fees        *fee.Service
	}

	// StoreCloser releases the storage backend.
	StoreCloser func() error

	// ShutdownSignal receives OS signals and internal shutdown requests.
	ShutdownSignal chan os.Signal
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newStore(conf *core.Config, loggerParam DBLoggerParam) (Store, error) {
	switch conf.Storage {
	case "memory":
		loggerParam.Logger.Warn("using in-memory storage: data is lost on shutdown")
		db := inmemdb.Open()
		return Store{
			Tx:          db,
			Roster:      inmemdb.NewRosterRepository(db),
			Assessments: inmemdb.NewAssessmentRepository(db),
			Reports:     inmemdb.NewReportRepository(db),
			Fees:        inmemdb.NewFeeRepository(db),
			Promotions:  inmemdb.NewPromotionRepository(db),
			Closer:      func() error { return nil },
		}, nil

	case "postgres":
		if err := database.CreateIfNotExist(conf); err != nil {
			return Store{}, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return Store{}, err
		}
		if err = database.Migrate(db.DB); err != nil {
			_ = db.Close()
			return Store{}, err
		}
		loggerParam.Logger.Info(fmt.Sprintf("connected to %s/%s", conf.Database.Address(), conf.Database.Name))
		return Store{
			Tx:          sqlxrepos.NewTxManager(db),
			Roster:      sqlxrepos.NewRosterRepository(db),
			Assessments: sqlxrepos.NewAssessmentRepository(db),
			Reports:     sqlxrepos.NewReportRepository(db),
			Fees:        sqlxrepos.NewFeeRepository(db),
			Promotions:  sqlxrepos.NewPromotionRepository(db),
			Closer:      db.Close,
		}, nil

	default:
		return Store{}, errors.Errorf("unknown storage %q (want postgres or memory)", conf.Storage)
	}
}

func newMetrics(prom *metricsvc.PrometheusMetrics) core.Metrics {
	return prom
}

func newRosterService(s StoreParam, validate *validator.Validate, translator ut.Translator) *roster.Service {
	return roster.NewService(s.Roster, validate, translator)
}

func newAssessmentService(
	conf *core.Config,
	s StoreParam,
	validate *validator.Validate,
	translator ut.Translator,
	metrics core.Metrics,
) *assessment.Service {
	opts := assessment.Options{Kinds: conf.Grading.Kinds, StrictScores: conf.Grading.StrictScores}
	return assessment.NewService(s.Assessments, s.Roster, opts, validate, translator, metrics)
}

func newFeeService(s StoreParam, validate *validator.Validate, translator ut.Translator, metrics core.Metrics) *fee.Service {
	return fee.NewService(s.Tx, s.Fees, s.Roster, validate, translator, metrics)
}

func newGradingEngine(conf *core.Config) (*grading.Engine, error) {
	return grading.NewEngineFromConfig(conf.Grading)
}

func newReportService(
	conf *core.Config,
	s StoreParam,
	fees *fee.Service,
	engine *grading.Engine,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
	metrics core.Metrics,
) *report.Service {
	opts := report.Options{RequireComplete: conf.Reports.RequireComplete}
	return report.NewService(s.Tx, s.Reports, s.Roster, s.Assessments, fees, engine, opts, validate, translator, logger, metrics)
}

func newPromotionService(
	s StoreParam,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
	metrics core.Metrics,
) *promotion.Service {
	return promotion.NewService(s.Tx, s.Promotions, s.Roster, validate, translator, logger, metrics)
}

func newShutdownSignal() ShutdownSignal {
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	return shutdown
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	translator ut.Translator,
	prom *metricsvc.PrometheusMetrics,
	shutdown ShutdownSignal,
	svcs ServicesParam,
) echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Address:    conf.Server.Address,
		Debug:      conf.Debug,
		TestMode:   conf.TestMode,
		Logger:     logger,
		Translator: translator,
		SignalShutdown: func() {
			select {
			case shutdown <- syscall.SIGTERM:
			default: // already shutting down
			}
		},
		MetricsHandler: prom.Handler(),
		Roster:         svcs.Roster,
		Assessments:    svcs.Assessments,
		Reports:        svcs.Reports,
		Promotions:     svcs.Promotions,
		Fees:           svcs.Fees,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStore))
	must(c.Provide(core.NewValidator))
	must(c.Provide(metricsvc.NewPrometheusMetrics))
	must(c.Provide(newMetrics))
	must(c.Provide(newGradingEngine))
	must(c.Provide(newRosterService))
	must(c.Provide(newAssessmentService))
	must(c.Provide(newFeeService))
	must(c.Provide(newReportService))
	must(c.Provide(newPromotionService))
	must(c.Provide(newShutdownSignal))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
