package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/assessment"
	"github.com/trezcool/kadi/core/fee"
	"github.com/trezcool/kadi/core/promotion"
	"github.com/trezcool/kadi/core/report"
	"github.com/trezcool/kadi/core/roster"
)

type (
	Options struct {
		Address        string
		Debug          bool
		TestMode       bool
		DisableReqLogs bool
		Logger         core.Logger
		Translator     ut.Translator
		// SignalShutdown is called when a handler fails with a core shutdown error.
		SignalShutdown func()
		// MetricsHandler serves GET /metrics when set.
		MetricsHandler http.Handler

		Roster      *roster.Service
		Assessments *assessment.Service
		Reports     *report.Service
		Promotions  *promotion.Service
		Fees        *fee.Service
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.SignalShutdown == nil {
		opts.SignalShutdown = func() {}
	}
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.opts.Debug || s.opts.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.opts.SignalShutdown)
	s.app.Debug = s.opts.Debug

	s.app.GET("/", home)
	if s.opts.MetricsHandler != nil {
		s.app.GET("/metrics", echo.WrapHandler(s.opts.MetricsHandler))
	}

	v1 := s.app.Group("/v1")
	registerRosterAPI(v1, s.opts.Roster, s.opts.Promotions)
	registerAssessmentAPI(v1, s.opts.Assessments)
	registerReportAPI(v1, s.opts.Reports)
	registerPromotionAPI(v1, s.opts.Promotions)
	registerFeeAPI(v1, s.opts.Fees)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Kadi API!")
}
