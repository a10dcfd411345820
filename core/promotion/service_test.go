package promotion_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/promotion"
	"github.com/trezcool/kadi/core/report"
	"github.com/trezcool/kadi/core/roster"
	"github.com/trezcool/kadi/tests"
)

func TestPromote(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()

	s1 := testutil.CreateStudent(t, app.Roster, "S-001", "Form 4", "A")
	s2 := testutil.CreateStudent(t, app.Roster, "S-002", "Form 4", "B")
	physics := testutil.CreateSubject(t, app.Roster, "Physics")
	chemistry := testutil.CreateSubject(t, app.Roster, "Chemistry")
	testutil.Enroll(t, app.Roster, s1, physics)

	res, err := app.Promotions.Promote(ctx, promotion.Request{
		StudentIDs:   []string{s1.ID, s2.ID, s1.ID},
		SubjectIDs:   []string{physics.ID, chemistry.ID},
		Form:         "Form 5",
		Section:      "Science",
		Level:        "a-level",
		AcademicYear: "2026",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Promoted)
	assert.Equal(t, 3, res.Enrolled)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 2, app.Metrics.Promoted)

	for _, id := range []string{s1.ID, s2.ID} {
		std, err := app.Roster.GetStudent(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Form 5", std.Form)
		assert.Equal(t, "Science", std.Section)
		assert.Equal(t, core.LevelAdvanced, std.Level)
		assert.Equal(t, "2026", std.AcademicYear)

		enrs, err := app.Roster.QueryEnrollments(ctx, roster.EnrollmentFilter{StudentID: id})
		require.NoError(t, err)
		assert.Len(t, enrs, 2)
	}

	hist, err := app.Promotions.History(ctx, s2.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "Form 4", hist[0].FromForm)
	assert.Equal(t, "B", hist[0].FromSection)
	assert.Equal(t, "2025", hist[0].FromYear)
	assert.Equal(t, "Form 5", hist[0].ToForm)
	assert.Equal(t, "2026", hist[0].ToYear)

	_, err = app.Promotions.History(ctx, "nope")
	assert.True(t, core.IsNotFound(err), "History() error = %v", err)
}

func TestPromote_AllOrNothing(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()

	s1 := testutil.CreateStudent(t, app.Roster, "S-001", "Form 4", "A")
	s3 := testutil.CreateStudent(t, app.Roster, "S-003", "Form 4", "A")
	physics := testutil.CreateSubject(t, app.Roster, "Physics")

	tests := []struct {
		name  string
		req   promotion.Request
		check func(err error) bool
	}{
		{
			name: "missing student",
			req: promotion.Request{
				StudentIDs: []string{s1.ID, "missing", s3.ID}, SubjectIDs: []string{physics.ID},
				Form: "Form 5", Section: "A", Level: core.LevelAdvanced, AcademicYear: "2026",
			},
			check: core.IsNotFound,
		},
		{
			name: "missing subject",
			req: promotion.Request{
				StudentIDs: []string{s1.ID, s3.ID}, SubjectIDs: []string{physics.ID, "missing"},
				Form: "Form 5", Section: "A", Level: core.LevelAdvanced, AcademicYear: "2026",
			},
			check: core.IsNotFound,
		},
		{
			name: "invalid level",
			req: promotion.Request{
				StudentIDs: []string{s1.ID}, SubjectIDs: []string{physics.ID},
				Form: "Form 5", Section: "A", Level: "Z-Level", AcademicYear: "2026",
			},
			check: core.IsValidation,
		},
		{
			name: "no students",
			req: promotion.Request{
				StudentIDs: []string{" "}, SubjectIDs: []string{physics.ID},
				Form: "Form 5", Section: "A", Level: core.LevelAdvanced, AcademicYear: "2026",
			},
			check: core.IsValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := app.Promotions.Promote(ctx, tt.req)
			assert.True(t, tt.check(err), "Promote() error = %v", err)

			// nobody moved, nothing enrolled, no history
			for _, id := range []string{s1.ID, s3.ID} {
				std, err := app.Roster.GetStudent(ctx, id)
				require.NoError(t, err)
				assert.Equal(t, "Form 4", std.Form)
				assert.Equal(t, "2025", std.AcademicYear)

				enrs, err := app.Roster.QueryEnrollments(ctx, roster.EnrollmentFilter{StudentID: id})
				require.NoError(t, err)
				assert.Empty(t, enrs)

				hist, err := app.Promotions.History(ctx, id)
				require.NoError(t, err)
				assert.Empty(t, hist)
			}
		})
	}
	assert.Equal(t, 0, app.Metrics.Promoted)
}

func TestPromote_NewYearReport(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()

	std := testutil.CreateStudent(t, app.Roster, "S-001", "Form 4", "A")
	math := testutil.CreateSubject(t, app.Roster, "Mathematics")
	chemistry := testutil.CreateSubject(t, app.Roster, "Chemistry")
	physics := testutil.CreateSubject(t, app.Roster, "Physics")
	testutil.Enroll(t, app.Roster, std, math)
	chemEnr := testutil.Enroll(t, app.Roster, std, chemistry)

	res, err := app.Promotions.Promote(ctx, promotion.Request{
		StudentIDs:   []string{std.ID},
		SubjectIDs:   []string{physics.ID, chemistry.ID},
		Form:         "Form 5",
		Section:      "Science",
		Level:        core.LevelAdvanced,
		AcademicYear: "2026",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Enrolled)
	assert.Equal(t, 1, res.Skipped)

	// the carried over enrollment moved into the new year
	enr, err := app.Roster.GetEnrollment(ctx, chemEnr.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026", enr.AcademicYear)

	for year, want := range map[string][]string{
		"2025": {math.ID},
		"2026": {chemistry.ID, physics.ID},
	} {
		enrs, err := app.Roster.QueryEnrollments(ctx, roster.EnrollmentFilter{StudentID: std.ID, AcademicYear: year})
		require.NoError(t, err)
		got := make([]string, 0, len(enrs))
		for _, e := range enrs {
			got = append(got, e.SubjectID)
		}
		assert.ElementsMatch(t, want, got, "enrollments of %s", year)
	}

	rep, err := app.Reports.EnsureReport(ctx, report.Key{StudentID: std.ID, Term: "Term 1", AcademicYear: "2026"})
	require.NoError(t, err)
	exam := 70.0
	_, err = app.Reports.UpsertSubjectReport(ctx, rep.ID, physics.ID, report.SubjectReportInput{Marks: report.Marks{Exam: &exam}})
	require.NoError(t, err)

	// last year's subjects are not required
	_, err = app.Reports.Finalize(ctx, rep.ID)
	var incomplete *core.IncompleteError
	require.True(t, errors.As(err, &incomplete), "Finalize() error = %v", err)
	assert.Equal(t, []string{chemistry.ID}, incomplete.Missing)

	_, err = app.Reports.UpsertSubjectReport(ctx, rep.ID, chemistry.ID, report.SubjectReportInput{Marks: report.Marks{Exam: &exam}})
	require.NoError(t, err)
	final, err := app.Reports.Finalize(ctx, rep.ID)
	require.NoError(t, err)
	assert.True(t, final.Finalized)
	assert.Len(t, final.Subjects, 2)
}
