package main

import (
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/fee"
	"github.com/trezcool/kadi/core/grading"
	"github.com/trezcool/kadi/core/promotion"
	"github.com/trezcool/kadi/core/report"
	logsvc "github.com/trezcool/kadi/services/logger"
	metricsvc "github.com/trezcool/kadi/services/metrics"
	"github.com/trezcool/kadi/storage/database"
	sqlxrepos "github.com/trezcool/kadi/storage/database/sqlx"
)

func main() {
	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	os.Exit(run(stdLogger))
}

func run(stdLogger *log.Logger) int {
	conf, err := core.NewConfig()
	if err != nil {
		stdLogger.Printf("error: %v", err)
		return 1
	}
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")

	if err = database.CreateIfNotExist(conf); err != nil {
		logger.Error(fmt.Sprintf("setting up database: %v", err), err)
		return 1
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Error(fmt.Sprintf("opening database: %v", err), err)
		return 1
	}
	defer func() { _ = db.Close() }()

	engine, err := grading.NewEngineFromConfig(conf.Grading)
	if err != nil {
		logger.Error(fmt.Sprintf("grading config: %v", err), err)
		return 1
	}
	validate, translator := core.NewValidator()
	metrics := metricsvc.NewPrometheusMetrics()

	tx := sqlxrepos.NewTxManager(db)
	rosterRepo := sqlxrepos.NewRosterRepository(db)
	fees := fee.NewService(tx, sqlxrepos.NewFeeRepository(db), rosterRepo, validate, translator, metrics)

	// start CLI
	cli := commandLine{
		migrator: migrator{db: db.DB},
		reports: report.NewService(
			tx,
			sqlxrepos.NewReportRepository(db),
			rosterRepo,
			sqlxrepos.NewAssessmentRepository(db),
			fees,
			engine,
			report.Options{RequireComplete: conf.Reports.RequireComplete},
			validate, translator, logger, metrics,
		),
		promotions: promotion.NewService(
			tx, sqlxrepos.NewPromotionRepository(db), rosterRepo, validate, translator, logger, metrics,
		),
		in:  os.Stdin,
		out: os.Stdout,
	}
	if err = cli.run(os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			logger.Error(fmt.Sprintf("\nerror: %s", err), err)
		}
		return 1
	}
	return 0
}
