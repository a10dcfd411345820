package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/report"
	"github.com/trezcool/kadi/core/roster"
	"github.com/trezcool/kadi/tests"
)

func setup(t *testing.T, input string) (*commandLine, *testutil.App, *bytes.Buffer) {
	t.Helper()
	app := testutil.NewApp()
	var out bytes.Buffer
	cli := &commandLine{
		reports:    app.Reports,
		promotions: app.Promotions,
		in:         strings.NewReader(input),
		out:        &out,
	}
	return cli, app, &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantErrFn  func(error) bool
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		require.Error(t, err)
		assert.Equal(t, tt.wantErrStr, err.Error())
	case tt.wantErrFn != nil:
		assert.True(t, tt.wantErrFn(err), "cli.run() error = %v", err)
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _, out := setup(t, "")

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "finalize: no report", args: []string{"finalize"}, wantErr: errHelp},
		{name: "promote: no students", args: []string{"promote", "-subjects", "x"}, wantErr: errHelp},
		{name: "promote: no subjects", args: []string{"promote", "-students", "x"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
	assert.Contains(t, out.String(), "Usage:")
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t, "")

	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "0"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "fee_discounts", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
}

func Test_commandLine_finalize(t *testing.T) {
	cli, app, out := setup(t, "")
	ctx := context.Background()

	std := testutil.CreateStudent(t, app.Roster, "S-001", "Form 2", "A")
	math := testutil.CreateSubject(t, app.Roster, "Mathematics")
	eng := testutil.CreateSubject(t, app.Roster, "English")
	mathEnr := testutil.Enroll(t, app.Roster, std, math)
	testutil.Enroll(t, app.Roster, std, eng)
	testutil.RecordAssessment(t, app.Assessments, mathEnr, "exam", 40, 50, "Term 1", "2025")

	rep, err := app.Reports.BuildReport(ctx, report.Key{StudentID: std.ID, Term: "Term 1", AcademicYear: "2025"})
	require.NoError(t, err)

	tests := []cliTest{
		{name: "not found", args: []string{"finalize", "-report", "lol"}, wantErrFn: core.IsNotFound},
		{name: "incomplete", args: []string{"finalize", "-report", rep.ID}, wantErrFn: core.IsIncomplete},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	_, err = app.Reports.UpsertSubjectReport(ctx, rep.ID, eng.ID, report.SubjectReportInput{Marks: report.Marks{Exam: floatPtr(55)}})
	require.NoError(t, err)

	require.NoError(t, cli.run([]string{"admin", "finalize", "-report", rep.ID}))
	assert.Contains(t, out.String(), "is FINALIZED since")

	// finalizing again is a no-op
	require.NoError(t, cli.run([]string{"admin", "finalize", "-report", rep.ID}))
	assert.Equal(t, 1, app.Metrics.Finalized)
}

func Test_commandLine_promote(t *testing.T) {
	std := func(t *testing.T, app *testutil.App, code string) roster.Student {
		return testutil.CreateStudent(t, app.Roster, code, "Form 4", "A")
	}

	t.Run("non interactive without -yes", func(t *testing.T) {
		cli, app, _ := setup(t, "")
		isTerminalFunc = func(int) bool { return false }
		s := std(t, app, "S-001")
		sub := testutil.CreateSubject(t, app.Roster, "Physics")

		err := cli.run([]string{"admin", "promote", "-students", s.ID, "-subjects", sub.ID,
			"-form", "Form 5", "-section", "A", "-level", "A-Level", "-year", "2026"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pass -yes")
	})

	t.Run("declined", func(t *testing.T) {
		cli, app, _ := setup(t, "n\n")
		isTerminalFunc = func(int) bool { return true }
		s := std(t, app, "S-001")
		sub := testutil.CreateSubject(t, app.Roster, "Physics")

		err := cli.run([]string{"admin", "promote", "-students", s.ID, "-subjects", sub.ID,
			"-form", "Form 5", "-section", "A", "-level", "A-Level", "-year", "2026"})
		assert.Equal(t, errAborted, err)
		assert.Zero(t, app.Metrics.Promoted)
	})

	t.Run("unknown student rolls back the batch", func(t *testing.T) {
		cli, app, _ := setup(t, "")
		s := std(t, app, "S-001")
		sub := testutil.CreateSubject(t, app.Roster, "Physics")

		err := cli.run([]string{"admin", "promote", "-students", s.ID + ",lol", "-subjects", sub.ID,
			"-form", "Form 5", "-section", "A", "-level", "A-Level", "-year", "2026", "-yes"})
		assert.True(t, core.IsNotFound(err), "cli.run() error = %v", err)

		got, err := app.Roster.GetStudent(context.Background(), s.ID)
		require.NoError(t, err)
		assert.Equal(t, "Form 4", got.Form)
	})

	t.Run("confirmed", func(t *testing.T) {
		cli, app, out := setup(t, "y\n")
		isTerminalFunc = func(int) bool { return true }
		s1 := std(t, app, "S-001")
		s2 := std(t, app, "S-002")
		sub := testutil.CreateSubject(t, app.Roster, "Physics")

		err := cli.run([]string{"admin", "promote", "-students", s1.ID + ", " + s2.ID, "-subjects", sub.ID,
			"-form", "Form 5", "-section", "A", "-level", "A-Level", "-year", "2026"})
		require.NoError(t, err)
		assert.Contains(t, out.String(), "promoted 2 student(s): 2 enrollment(s) created, 0 skipped")
		assert.Equal(t, 2, app.Metrics.Promoted)

		got, err := app.Roster.GetStudent(context.Background(), s2.ID)
		require.NoError(t, err)
		assert.Equal(t, core.LevelAdvanced, got.Level)
	})
}

func floatPtr(f float64) *float64 { return &f }
