package report_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/fee"
	"github.com/trezcool/kadi/core/report"
	"github.com/trezcool/kadi/core/roster"
	"github.com/trezcool/kadi/tests"
)

const (
	term = "Term 1"
	year = "2025"
)

type fixture struct {
	app     *testutil.App
	std     roster.Student
	math    roster.Subject
	english roster.Subject
	mathEnr roster.Enrollment
	engEnr  roster.Enrollment
}

func newFixture(t *testing.T, configure ...func(conf *core.Config)) fixture {
	app := testutil.NewApp(configure...)
	f := fixture{app: app}
	f.std = testutil.CreateStudent(t, app.Roster, "S-001", "Form 1", "A")
	f.math = testutil.CreateSubject(t, app.Roster, "Mathematics")
	f.english = testutil.CreateSubject(t, app.Roster, "English")
	f.mathEnr = testutil.Enroll(t, app.Roster, f.std, f.math)
	f.engEnr = testutil.Enroll(t, app.Roster, f.std, f.english)
	return f
}

func (f fixture) key() report.Key {
	return report.Key{StudentID: f.std.ID, Term: term, AcademicYear: year}
}

func marks(coursework, exam float64) report.SubjectReportInput {
	return report.SubjectReportInput{Marks: report.Marks{Coursework: &coursework, Exam: &exam}}
}

func subjectOf(t *testing.T, rep report.Report, subjectID string) report.SubjectReport {
	t.Helper()
	for _, sr := range rep.Subjects {
		if sr.SubjectID == subjectID {
			return sr
		}
	}
	t.Fatalf("report %s has no subject %s", rep.ID, subjectID)
	return report.SubjectReport{}
}

func TestBuildAndFinalizeReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	math := testutil.RecordAssessment(t, f.app.Assessments, f.mathEnr, "exam", 45, 50, term, year)
	eng := testutil.RecordAssessment(t, f.app.Assessments, f.engEnr, "exam", 30, 50, term, year)
	assert.Equal(t, 90.0, math.Percentage())
	assert.Equal(t, 60.0, eng.Percentage())

	rep, err := f.app.Reports.BuildReport(ctx, f.key())
	require.NoError(t, err)
	assert.Equal(t, report.StateDraft, rep.State())
	assert.Equal(t, "Form 1", rep.Form)
	assert.Equal(t, "A", rep.Section)
	require.Len(t, rep.Subjects, 2)

	mathSR := subjectOf(t, rep, f.math.ID)
	assert.Nil(t, mathSR.Coursework)
	require.NotNil(t, mathSR.Exam)
	assert.Equal(t, 72.0, *mathSR.Exam)
	assert.Equal(t, 72.0, mathSR.Total)
	assert.Equal(t, "B", mathSR.Grade)

	engSR := subjectOf(t, rep, f.english.ID)
	assert.Equal(t, 48.0, engSR.Total)
	assert.Equal(t, "E", engSR.Grade)

	fin, err := f.app.Reports.Finalize(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, report.StateFinalized, fin.State())
	require.NotNil(t, fin.FinalizedAt)
	assert.Equal(t, 1, f.app.Metrics.Finalized)

	// the finalize log line is attributed to the student
	logs := f.app.Logs.Find("report finalized")
	require.Len(t, logs, 1)
	var logged roster.Student
	for _, arg := range logs[0].Args {
		if std, ok := arg.(roster.Student); ok {
			logged = std
		}
	}
	assert.Equal(t, f.std.ID, logged.ID)

	// finalized reports are read-only
	_, err = f.app.Reports.UpsertSubjectReport(ctx, rep.ID, f.math.ID, marks(10, 10))
	assert.True(t, core.IsConflict(err), "UpsertSubjectReport() error = %v", err)
	_, err = f.app.Reports.BuildSubjectReport(ctx, rep.ID, f.math.ID)
	assert.True(t, core.IsConflict(err), "BuildSubjectReport() error = %v", err)
	_, err = f.app.Reports.BuildReport(ctx, f.key())
	assert.True(t, core.IsConflict(err), "BuildReport() error = %v", err)
	_, err = f.app.Reports.SetAttendance(ctx, rep.ID, report.Attendance{DaysPresent: 1, TotalDays: 2})
	assert.True(t, core.IsConflict(err), "SetAttendance() error = %v", err)
	_, err = f.app.Reports.SetComments(ctx, rep.ID, report.Comments{ClassTeacher: "late edit"})
	assert.True(t, core.IsConflict(err), "SetComments() error = %v", err)
	err = f.app.Reports.Delete(ctx, rep.ID)
	assert.True(t, core.IsConflict(err), "Delete() error = %v", err)

	got, err := f.app.Reports.Get(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, fin, got)

	// second finalize is a no-op
	again, err := f.app.Reports.Finalize(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, fin, again)
	assert.Equal(t, 1, f.app.Metrics.Finalized)
}

func TestFinalize_Completeness(t *testing.T) {
	tests := []struct {
		name            string
		requireComplete bool
		wantMissing     bool
	}{
		{name: "required", requireComplete: true, wantMissing: true},
		{name: "not required", requireComplete: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(conf *core.Config) { conf.Reports.RequireComplete = tt.requireComplete })
			ctx := context.Background()

			rep, err := f.app.Reports.EnsureReport(ctx, f.key())
			require.NoError(t, err)
			_, err = f.app.Reports.UpsertSubjectReport(ctx, rep.ID, f.math.ID, marks(15, 60))
			require.NoError(t, err)

			_, err = f.app.Reports.Finalize(ctx, rep.ID)
			if !tt.wantMissing {
				assert.NoError(t, err)
				return
			}
			var incErr *core.IncompleteError
			require.True(t, errors.As(err, &incErr), "Finalize() error = %v", err)
			assert.Equal(t, []string{f.english.ID}, incErr.Missing)

			got, err := f.app.Reports.Get(ctx, rep.ID)
			require.NoError(t, err)
			assert.False(t, got.Finalized)
			assert.Equal(t, 0, f.app.Metrics.Finalized)
		})
	}
}

func TestEnsureReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rep1, err := f.app.Reports.EnsureReport(ctx, f.key())
	require.NoError(t, err)
	rep2, err := f.app.Reports.EnsureReport(ctx, report.Key{StudentID: " " + f.std.ID, Term: term + " ", AcademicYear: year})
	require.NoError(t, err)
	assert.Equal(t, rep1.ID, rep2.ID)
	assert.Equal(t, fee.StatusUnpaid, rep1.PaymentStatus)
	assert.Empty(t, rep1.Subjects)

	_, err = f.app.Reports.EnsureReport(ctx, report.Key{StudentID: "nope", Term: term, AcademicYear: year})
	assert.True(t, core.IsNotFound(err), "EnsureReport() error = %v", err)

	_, err = f.app.Reports.EnsureReport(ctx, report.Key{StudentID: f.std.ID, Term: " ", AcademicYear: year})
	assert.True(t, core.IsValidation(err), "EnsureReport() error = %v", err)
}

func TestUpsertSubjectReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rep, err := f.app.Reports.EnsureReport(ctx, f.key())
	require.NoError(t, err)

	other := testutil.CreateSubject(t, f.app.Roster, "Chemistry")
	negative := -1.0

	tests := []struct {
		name      string
		subjectID string
		in        report.SubjectReportInput
		wantTotal float64
		wantGrade string
		check     func(err error) bool
	}{
		{name: "marks", subjectID: f.math.ID, in: marks(15, 60), wantTotal: 75, wantGrade: "B"},
		{name: "same marks again", subjectID: f.math.ID, in: marks(15, 60), wantTotal: 75, wantGrade: "B"},
		{name: "exam only", subjectID: f.english.ID, in: report.SubjectReportInput{Marks: report.Marks{Exam: &[]float64{39.996}[0]}}, wantTotal: 40, wantGrade: "E"},
		{name: "not enrolled", subjectID: other.ID, in: marks(1, 1), check: core.IsNotFound},
		{name: "unknown subject", subjectID: "nope", in: marks(1, 1), check: core.IsNotFound},
		{name: "negative mark", subjectID: f.math.ID, in: report.SubjectReportInput{Marks: report.Marks{Exam: &negative}}, check: core.IsValidation},
		{name: "no marks", subjectID: f.math.ID, in: report.SubjectReportInput{TeacherComment: "Absent"}, check: core.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr, err := f.app.Reports.UpsertSubjectReport(ctx, rep.ID, tt.subjectID, tt.in)
			if tt.check != nil {
				assert.True(t, tt.check(err), "UpsertSubjectReport() error = %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, sr.Total)
			assert.Equal(t, tt.wantGrade, sr.Grade)
		})
	}

	got, err := f.app.Reports.Get(ctx, rep.ID)
	require.NoError(t, err)
	assert.Len(t, got.Subjects, 2)

	_, err = f.app.Reports.UpsertSubjectReport(ctx, "nope", f.math.ID, marks(1, 1))
	assert.True(t, core.IsNotFound(err), "UpsertSubjectReport() error = %v", err)
}

func TestBuildSubjectReport_KeepsComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rep, err := f.app.Reports.EnsureReport(ctx, f.key())
	require.NoError(t, err)

	_, err = f.app.Reports.BuildSubjectReport(ctx, rep.ID, f.math.ID)
	assert.True(t, core.IsValidation(err), "BuildSubjectReport() error = %v", err)

	in := marks(0, 0)
	in.TeacherComment = "Keep it up"
	in.SignatureRef = "sig/teacher-1.png"
	_, err = f.app.Reports.UpsertSubjectReport(ctx, rep.ID, f.math.ID, in)
	require.NoError(t, err)

	testutil.RecordAssessment(t, f.app.Assessments, f.mathEnr, "quiz", 8, 10, term, year)
	testutil.RecordAssessment(t, f.app.Assessments, f.mathEnr, "exam", 45, 50, term, year)
	testutil.RecordAssessment(t, f.app.Assessments, f.mathEnr, "exam", 5, 50, "Term 2", year)

	sr, err := f.app.Reports.BuildSubjectReport(ctx, rep.ID, f.math.ID)
	require.NoError(t, err)
	require.NotNil(t, sr.Coursework)
	assert.Equal(t, 16.0, *sr.Coursework)
	assert.Equal(t, 88.0, sr.Total)
	assert.Equal(t, "A", sr.Grade)
	assert.Equal(t, "Keep it up", sr.TeacherComment)
	assert.Equal(t, "sig/teacher-1.png", sr.SignatureRef)

	// only enrolled subjects with assessments are built
	built, err := f.app.Reports.BuildReport(ctx, f.key())
	require.NoError(t, err)
	assert.Len(t, built.Subjects, 1)
}

func TestAttendanceAndComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rep, err := f.app.Reports.EnsureReport(ctx, f.key())
	require.NoError(t, err)

	_, err = f.app.Reports.SetAttendance(ctx, rep.ID, report.Attendance{DaysPresent: 61, TotalDays: 60})
	assert.True(t, core.IsValidation(err), "SetAttendance() error = %v", err)
	_, err = f.app.Reports.SetAttendance(ctx, rep.ID, report.Attendance{DaysPresent: -1, TotalDays: 60})
	assert.True(t, core.IsValidation(err), "SetAttendance() error = %v", err)

	got, err := f.app.Reports.SetAttendance(ctx, rep.ID, report.Attendance{DaysPresent: 58, TotalDays: 60})
	require.NoError(t, err)
	assert.Equal(t, 58, got.DaysPresent)
	assert.Equal(t, 60, got.TotalDays)

	got, err = f.app.Reports.SetComments(ctx, rep.ID, report.Comments{
		ClassTeacher:          " Good term. ",
		Principal:             "Promoted on merit.",
		PrincipalSignatureRef: "sig/principal.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "Good term.", got.ClassTeacherComment)
	assert.Equal(t, "Promoted on merit.", got.PrincipalComment)
	assert.Equal(t, "sig/principal.png", got.PrincipalSignatureRef)
	assert.Equal(t, 58, got.DaysPresent)
}

func TestPaymentStatusSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rep, err := f.app.Reports.EnsureReport(ctx, f.key())
	require.NoError(t, err)
	assert.Equal(t, fee.StatusUnpaid, rep.PaymentStatus)

	_, err = f.app.Fees.RecordPayment(ctx, fee.NewPayment{
		StudentID: f.std.ID, Term: term, Month: "january", AcademicYear: year,
		AmountPaid: 50, MonthlyFeeAmount: 100,
	})
	require.NoError(t, err)

	got, err := f.app.Reports.SetAttendance(ctx, rep.ID, report.Attendance{DaysPresent: 1, TotalDays: 1})
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPartial, got.PaymentStatus)

	_, err = f.app.Fees.RecordPayment(ctx, fee.NewPayment{
		StudentID: f.std.ID, Term: term, Month: "January", AcademicYear: year,
		AmountPaid: 50, MonthlyFeeAmount: 100,
	})
	require.NoError(t, err)

	got, err = f.app.Reports.EnsureReport(ctx, f.key())
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPaid, got.PaymentStatus)
}

func TestFinalize_Concurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rep, err := f.app.Reports.EnsureReport(ctx, f.key())
	require.NoError(t, err)
	_, err = f.app.Reports.UpsertSubjectReport(ctx, rep.ID, f.math.ID, marks(10, 50))
	require.NoError(t, err)
	_, err = f.app.Reports.UpsertSubjectReport(ctx, rep.ID, f.english.ID, marks(10, 50))
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		finalized []report.Report
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				got, err := f.app.Reports.Finalize(ctx, rep.ID)
				assert.NoError(t, err)
				mu.Lock()
				finalized = append(finalized, got)
				mu.Unlock()
				return
			}
			_, err := f.app.Reports.UpsertSubjectReport(ctx, rep.ID, f.math.ID, marks(float64(i), 50))
			if err != nil {
				assert.True(t, core.IsConflict(err), "UpsertSubjectReport() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.app.Metrics.Finalized)
	got, err := f.app.Reports.Get(ctx, rep.ID)
	require.NoError(t, err)
	require.True(t, got.Finalized)
	for _, fin := range finalized {
		assert.Equal(t, got, fin)
	}
}

func TestQueryAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := testutil.CreateStudent(t, f.app.Roster, "S-002", "Form 2", "B")
	_, err := f.app.Roster.CreateClassGroup(ctx, roster.NewClassGroup{
		Form: "Form 1", Section: "A", AcademicYear: year, Level: core.LevelOrdinary, Capacity: 40, SupervisorID: "teacher-1",
	})
	require.NoError(t, err)

	rep1, err := f.app.Reports.EnsureReport(ctx, f.key())
	require.NoError(t, err)
	_, err = f.app.Reports.UpsertSubjectReport(ctx, rep1.ID, f.math.ID, marks(10, 50))
	require.NoError(t, err)
	rep2, err := f.app.Reports.EnsureReport(ctx, report.Key{StudentID: other.ID, Term: term, AcademicYear: year})
	require.NoError(t, err)
	_, err = f.app.Reports.Finalize(ctx, rep2.ID)
	require.NoError(t, err)

	yes, no := true, false
	tests := []struct {
		name   string
		filter *report.QueryFilter
		want   []string
	}{
		{name: "all", filter: nil, want: []string{rep1.ID, rep2.ID}},
		{name: "by student", filter: &report.QueryFilter{StudentID: other.ID}, want: []string{rep2.ID}},
		{name: "by class teacher", filter: &report.QueryFilter{ClassTeacherID: "teacher-1"}, want: []string{rep1.ID}},
		{name: "by unknown class teacher", filter: &report.QueryFilter{ClassTeacherID: "teacher-2"}, want: []string{}},
		{name: "finalized", filter: &report.QueryFilter{Finalized: &yes}, want: []string{rep2.ID}},
		{name: "drafts", filter: &report.QueryFilter{Finalized: &no}, want: []string{rep1.ID}},
		{name: "by class", filter: &report.QueryFilter{Form: "Form 2", Section: "B", Term: term, AcademicYear: year}, want: []string{rep2.ID}},
		{name: "other term", filter: &report.QueryFilter{Term: "Term 2"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reps, err := f.app.Reports.Query(ctx, tt.filter, nil)
			require.NoError(t, err)
			ids := make([]string, 0, len(reps))
			for _, r := range reps {
				ids = append(ids, r.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}

	reps, err := f.app.Reports.Query(ctx, &report.QueryFilter{StudentID: f.std.ID}, nil)
	require.NoError(t, err)
	require.Len(t, reps, 1)
	assert.Len(t, reps[0].Subjects, 1)

	require.NoError(t, f.app.Reports.Delete(ctx, rep1.ID))
	_, err = f.app.Reports.Get(ctx, rep1.ID)
	assert.True(t, core.IsNotFound(err), "Get() error = %v", err)
	err = f.app.Reports.Delete(ctx, rep2.ID)
	assert.True(t, core.IsConflict(err), "Delete() error = %v", err)
}
