package testutil

import (
	"context"
	"io"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/assessment"
	"github.com/trezcool/kadi/core/fee"
	"github.com/trezcool/kadi/core/grading"
	"github.com/trezcool/kadi/core/promotion"
	"github.com/trezcool/kadi/core/report"
	"github.com/trezcool/kadi/core/roster"
	"github.com/trezcool/kadi/services/logger"
	"github.com/trezcool/kadi/storage/database/inmem"
)

// NewConfig returns the TEST configuration.
func NewConfig() *core.Config {
	if err := os.Setenv("ENV", "TEST"); err != nil {
		panic(err)
	}
	conf, err := core.NewConfig()
	if err != nil {
		panic(err)
	}
	return conf
}

func NewLogger(conf *core.Config) *logsvc.RollbarLogger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

// LogEntry is one call to a RecordingLogger.
type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// RecordingLogger keeps every log call in memory.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ core.Logger = (*RecordingLogger)(nil)

func (l *RecordingLogger) record(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (l *RecordingLogger) Debug(msg string, args ...interface{}) { l.record("DEBUG", msg, args) }
func (l *RecordingLogger) Info(msg string, args ...interface{})  { l.record("INFO", msg, args) }
func (l *RecordingLogger) Warn(msg string, args ...interface{})  { l.record("WARN", msg, args) }
func (l *RecordingLogger) Error(msg string, args ...interface{}) { l.record("ERROR", msg, args) }
func (l *RecordingLogger) Fatal(msg string, args ...interface{}) { l.record("FATAL", msg, args) }

// Find returns the entries logged with msg.
func (l *RecordingLogger) Find(msg string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var found []LogEntry
	for _, e := range l.entries {
		if e.Msg == msg {
			found = append(found, e)
		}
	}
	return found
}

// CountingMetrics counts domain events.
type CountingMetrics struct {
	mu          sync.Mutex
	Assessments int
	Finalized   int
	Payments    map[string]int
	Promoted    int
}

var _ core.Metrics = (*CountingMetrics)(nil)

func (m *CountingMetrics) AssessmentRecorded(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Assessments++
}

func (m *CountingMetrics) ReportFinalized(string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Finalized++
}

func (m *CountingMetrics) StudentsPromoted(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Promoted += n
}

func (m *CountingMetrics) PaymentRecorded(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Payments == nil {
		m.Payments = make(map[string]int)
	}
	m.Payments[status]++
}

// Store is one persistence backend.
type Store struct {
	Tx          core.TxManager
	Roster      roster.Repository
	Assessments assessment.Repository
	Reports     report.Repository
	Fees        fee.Repository
	Promotions  promotion.Repository
}

// NewInmemStore returns a Store over a fresh in-memory database.
func NewInmemStore() Store {
	db := inmemdb.Open()
	return Store{
		Tx:          db,
		Roster:      inmemdb.NewRosterRepository(db),
		Assessments: inmemdb.NewAssessmentRepository(db),
		Reports:     inmemdb.NewReportRepository(db),
		Fees:        inmemdb.NewFeeRepository(db),
		Promotions:  inmemdb.NewPromotionRepository(db),
	}
}

// App wires every service on one store.
type App struct {
	Conf        *core.Config
	Store       Store
	Metrics     *CountingMetrics
	Logs        *RecordingLogger
	Roster      *roster.Service
	Assessments *assessment.Service
	Engine      *grading.Engine
	Reports     *report.Service
	Promotions  *promotion.Service
	Fees        *fee.Service
}

// NewApp builds an App on the in-memory store; configure may adjust the config before services are built.
func NewApp(configure ...func(conf *core.Config)) *App {
	return NewAppOn(NewInmemStore(), configure...)
}

// NewAppOn builds an App on store.
func NewAppOn(store Store, configure ...func(conf *core.Config)) *App {
	conf := NewConfig()
	for _, fn := range configure {
		fn(conf)
	}
	engine, err := grading.NewEngineFromConfig(conf.Grading)
	if err != nil {
		panic(err)
	}
	validate, translator := core.NewValidator()
	logger := &RecordingLogger{}
	metrics := &CountingMetrics{}

	app := &App{
		Conf:    conf,
		Store:   store,
		Metrics: metrics,
		Logs:    logger,
		Engine:  engine,
		Roster:  roster.NewService(store.Roster, validate, translator),
	}
	app.Assessments = assessment.NewService(
		store.Assessments,
		store.Roster,
		assessment.Options{Kinds: conf.Grading.Kinds, StrictScores: conf.Grading.StrictScores},
		validate, translator, metrics,
	)
	app.Fees = fee.NewService(store.Tx, store.Fees, store.Roster, validate, translator, metrics)
	app.Reports = report.NewService(
		store.Tx,
		store.Reports,
		store.Roster,
		store.Assessments,
		app.Fees,
		engine,
		report.Options{RequireComplete: conf.Reports.RequireComplete},
		validate, translator, logger, metrics,
	)
	app.Promotions = promotion.NewService(store.Tx, store.Promotions, store.Roster, validate, translator, logger, metrics)
	return app
}

func CreateStudent(t *testing.T, svc *roster.Service, code, form, section string) roster.Student {
	t.Helper()
	std, err := svc.RegisterStudent(context.Background(), roster.NewStudent{
		FirstName:    "Student",
		LastName:     code,
		StudentCode:  code,
		Form:         form,
		Section:      section,
		Level:        core.LevelOrdinary,
		AcademicYear: "2025",
	})
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return std
}

func CreateSubject(t *testing.T, svc *roster.Service, name string) roster.Subject {
	t.Helper()
	sub, err := svc.CreateSubject(context.Background(), roster.NewSubject{
		Name:  name,
		Code:  name[:3],
		Level: core.LevelOrdinary,
	})
	if err != nil {
		t.Fatalf("createSubject() failed: %v", err)
	}
	return sub
}

func Enroll(t *testing.T, svc *roster.Service, std roster.Student, sub roster.Subject) roster.Enrollment {
	t.Helper()
	enr, err := svc.Enroll(context.Background(), roster.NewEnrollment{StudentID: std.ID, SubjectID: sub.ID})
	if err != nil {
		t.Fatalf("enroll() failed: %v", err)
	}
	return enr
}

func RecordAssessment(
	t *testing.T,
	svc *assessment.Service,
	enr roster.Enrollment,
	kind string,
	score, maxScore float64,
	term, year string,
) assessment.Assessment {
	t.Helper()
	a, err := svc.Record(context.Background(), assessment.NewAssessment{
		EnrollmentID: enr.ID,
		Title:        kind,
		Date:         time.Now(),
		Score:        score,
		MaxScore:     maxScore,
		Kind:         kind,
		Term:         term,
		AcademicYear: year,
	})
	if err != nil {
		t.Fatalf("recordAssessment() failed: %v", err)
	}
	return a
}
