package roster_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/assessment"
	"github.com/trezcool/kadi/core/roster"
	"github.com/trezcool/kadi/tests"
)

func TestRegisterStudent(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()

	valid := roster.NewStudent{
		FirstName:    " Amani ",
		LastName:     "Zawadi",
		StudentCode:  "S-001",
		Form:         "Form 1",
		Section:      "A",
		Level:        "o level",
		AcademicYear: "2025",
	}
	std, err := app.Roster.RegisterStudent(ctx, valid)
	require.NoError(t, err)
	assert.NotEmpty(t, std.ID)
	assert.Equal(t, "Amani", std.FirstName)
	assert.Equal(t, core.LevelOrdinary, std.Level)
	assert.True(t, std.IsActive)
	assert.False(t, std.EnrollmentDate.IsZero())

	tests := []struct {
		name   string
		mutate func(ns *roster.NewStudent)
		check  func(err error) bool
	}{
		{name: "duplicate code", mutate: func(ns *roster.NewStudent) {}, check: core.IsConflict},
		{name: "blank name", mutate: func(ns *roster.NewStudent) { ns.StudentCode = "S-002"; ns.FirstName = "  " }, check: core.IsValidation},
		{name: "bad level", mutate: func(ns *roster.NewStudent) { ns.StudentCode = "S-003"; ns.Level = "B-Level" }, check: core.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ns := valid
			tt.mutate(&ns)
			_, err := app.Roster.RegisterStudent(ctx, ns)
			assert.True(t, tt.check(err), "RegisterStudent() error = %v", err)
		})
	}
}

func TestUpdateAndQueryStudents(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()
	s1 := testutil.CreateStudent(t, app.Roster, "S-001", "Form 1", "A")
	testutil.CreateStudent(t, app.Roster, "S-002", "Form 1", "B")
	testutil.CreateStudent(t, app.Roster, "S-003", "Form 2", "A")

	inactive := false
	got, err := app.Roster.UpdateStudent(ctx, s1.ID, roster.UpdateStudent{FirstName: "Baraka", IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "Baraka", got.FirstName)
	assert.Equal(t, s1.LastName, got.LastName)
	assert.False(t, got.IsActive)

	_, err = app.Roster.UpdateStudent(ctx, "nope", roster.UpdateStudent{FirstName: "X"})
	assert.True(t, core.IsNotFound(err), "UpdateStudent() error = %v", err)

	tests := []struct {
		name     string
		filter   *roster.StudentFilter
		ordering []core.DBOrdering
		want     []string
	}{
		{name: "all", want: []string{"S-001", "S-002", "S-003"}},
		{name: "ordered", ordering: core.ParseOrdering("-student_code"), want: []string{"S-003", "S-002", "S-001"}},
		{name: "by form", filter: &roster.StudentFilter{Form: "Form 1"}, want: []string{"S-001", "S-002"}},
		{name: "by class", filter: &roster.StudentFilter{Form: "Form 1", Section: "B"}, want: []string{"S-002"}},
		{name: "search", filter: &roster.StudentFilter{Search: "baraka"}, want: []string{"S-001"}},
		{name: "active", filter: &roster.StudentFilter{IsActive: &[]bool{true}[0]}, want: []string{"S-002", "S-003"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stds, err := app.Roster.QueryStudents(ctx, tt.filter, tt.ordering)
			require.NoError(t, err)
			codes := make([]string, 0, len(stds))
			for _, s := range stds {
				codes = append(codes, s.StudentCode)
			}
			assert.Equal(t, tt.want, codes)
		})
	}
}

func TestEnrollAndWithdraw(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()
	std := testutil.CreateStudent(t, app.Roster, "S-001", "Form 1", "A")
	math := testutil.CreateSubject(t, app.Roster, "Mathematics")
	bio := testutil.CreateSubject(t, app.Roster, "Biology")

	_, err := app.Roster.CreateSubject(ctx, roster.NewSubject{Name: "Mathematics", Code: "M2", Level: core.LevelOrdinary})
	assert.True(t, core.IsConflict(err), "CreateSubject() error = %v", err)

	enr := testutil.Enroll(t, app.Roster, std, math)
	assert.Equal(t, std.AcademicYear, enr.AcademicYear)
	testutil.Enroll(t, app.Roster, std, bio)

	tests := []struct {
		name  string
		ne    roster.NewEnrollment
		check func(err error) bool
	}{
		{name: "duplicate", ne: roster.NewEnrollment{StudentID: std.ID, SubjectID: math.ID}, check: core.IsConflict},
		{name: "unknown student", ne: roster.NewEnrollment{StudentID: "nope", SubjectID: math.ID}, check: core.IsNotFound},
		{name: "unknown subject", ne: roster.NewEnrollment{StudentID: std.ID, SubjectID: "nope"}, check: core.IsNotFound},
		{name: "blank", ne: roster.NewEnrollment{StudentID: std.ID}, check: core.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := app.Roster.Enroll(ctx, tt.ne)
			assert.True(t, tt.check(err), "Enroll() error = %v", err)
		})
	}

	// withdrawing drops the link's assessments
	a := testutil.RecordAssessment(t, app.Assessments, enr, "exam", 40, 50, "Term 1", "2025")
	require.NoError(t, app.Roster.Withdraw(ctx, enr.ID))
	_, err = app.Assessments.Get(ctx, a.ID)
	assert.True(t, core.IsNotFound(err), "Get() error = %v", err)
	as, err := app.Assessments.Query(ctx, &assessment.QueryFilter{EnrollmentID: enr.ID}, nil)
	require.NoError(t, err)
	assert.Empty(t, as)

	err = app.Roster.Withdraw(ctx, enr.ID)
	assert.True(t, core.IsNotFound(err), "Withdraw() error = %v", err)

	n, err := app.Roster.RemoveStudentEnrollments(ctx, std.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	enrs, err := app.Roster.QueryEnrollments(ctx, roster.EnrollmentFilter{StudentID: std.ID})
	require.NoError(t, err)
	assert.Empty(t, enrs)
}

func TestClassGroups(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()

	ng := roster.NewClassGroup{Form: "Form 1", Section: "A", AcademicYear: "2025", Level: core.LevelOrdinary, Capacity: 40, SupervisorID: "teacher-1"}
	grp, err := app.Roster.CreateClassGroup(ctx, ng)
	require.NoError(t, err)

	_, err = app.Roster.CreateClassGroup(ctx, ng)
	assert.True(t, core.IsConflict(err), "CreateClassGroup() error = %v", err)

	ng.Capacity = -1
	ng.Section = "B"
	_, err = app.Roster.CreateClassGroup(ctx, ng)
	assert.True(t, core.IsValidation(err), "CreateClassGroup() error = %v", err)

	got, err := app.Roster.GetClassGroup(ctx, grp.ID)
	require.NoError(t, err)
	assert.Equal(t, grp, got)

	grps, err := app.Roster.QueryClassGroups(ctx, roster.ClassGroupFilter{SupervisorID: "teacher-1"})
	require.NoError(t, err)
	assert.Len(t, grps, 1)
}
