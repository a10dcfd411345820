package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/roster"
)

type (
	studentRow struct {
		ID             string    `db:"id"`
		FirstName      string    `db:"first_name"`
		LastName       string    `db:"last_name"`
		StudentCode    string    `db:"student_code"`
		Form           string    `db:"form"`
		Section        string    `db:"section"`
		Level          string    `db:"level"`
		AcademicYear   string    `db:"academic_year"`
		EnrollmentDate time.Time `db:"enrollment_date"`
		IsActive       bool      `db:"is_active"`
		CreatedAt      time.Time `db:"created_at"`
		UpdatedAt      time.Time `db:"updated_at"`
	}

	subjectRow struct {
		ID          string      `db:"id"`
		Name        string      `db:"name"`
		Code        string      `db:"code"`
		Category    null.String `db:"category"`
		Level       string      `db:"level"`
		Description null.String `db:"description"`
		CreatedAt   time.Time   `db:"created_at"`
	}

	enrollmentRow struct {
		ID           string    `db:"id"`
		StudentID    string    `db:"student_id"`
		SubjectID    string    `db:"subject_id"`
		AcademicYear string    `db:"academic_year"`
		CreatedAt    time.Time `db:"created_at"`
	}

	classGroupRow struct {
		ID           string      `db:"id"`
		Form         string      `db:"form"`
		Section      string      `db:"section"`
		AcademicYear string      `db:"academic_year"`
		Level        string      `db:"level"`
		Capacity     int         `db:"capacity"`
		SupervisorID null.String `db:"supervisor_id"`
		CreatedAt    time.Time   `db:"created_at"`
	}
)

const (
	studentColumns    = "id, first_name, last_name, student_code, form, section, level, academic_year, enrollment_date, is_active, created_at, updated_at"
	subjectColumns    = "id, name, code, category, level, description, created_at"
	enrollmentColumns = "id, student_id, subject_id, academic_year, created_at"
	classGroupColumns = "id, form, section, academic_year, level, capacity, supervisor_id, created_at"
)

var studentOrdering = map[string]string{
	"first_name":   "first_name",
	"last_name":    "last_name",
	"student_code": "student_code",
	"form":         "form",
	"section":      "section",
	"created_at":   "created_at",
}

type rosterRepository struct {
	db *sqlx.DB
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db *sqlx.DB) *rosterRepository {
	return &rosterRepository{db: db}
}

// validID reports a malformed id as absent.
func validID(resource, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return core.NewNotFoundError(resource, id)
	}
	return nil
}

func boilStudent(std roster.Student) studentRow {
	return studentRow{
		ID:             std.ID,
		FirstName:      std.FirstName,
		LastName:       std.LastName,
		StudentCode:    std.StudentCode,
		Form:           std.Form,
		Section:        std.Section,
		Level:          std.Level,
		AcademicYear:   std.AcademicYear,
		EnrollmentDate: std.EnrollmentDate.UTC(),
		IsActive:       std.IsActive,
		CreatedAt:      std.CreatedAt.UTC(),
		UpdatedAt:      std.UpdatedAt.UTC(),
	}
}

func (r studentRow) unboil() roster.Student {
	return roster.Student{
		ID:             r.ID,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		StudentCode:    r.StudentCode,
		Form:           r.Form,
		Section:        r.Section,
		Level:          r.Level,
		AcademicYear:   r.AcademicYear,
		EnrollmentDate: r.EnrollmentDate.UTC(),
		IsActive:       r.IsActive,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func (r subjectRow) unboil() roster.Subject {
	return roster.Subject{
		ID:          r.ID,
		Name:        r.Name,
		Code:        r.Code,
		Category:    r.Category.String,
		Level:       r.Level,
		Description: r.Description.String,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func (r enrollmentRow) unboil() roster.Enrollment {
	return roster.Enrollment{
		ID:           r.ID,
		StudentID:    r.StudentID,
		SubjectID:    r.SubjectID,
		AcademicYear: r.AcademicYear,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

func (r classGroupRow) unboil() roster.ClassGroup {
	return roster.ClassGroup{
		ID:           r.ID,
		Form:         r.Form,
		Section:      r.Section,
		AcademicYear: r.AcademicYear,
		Level:        r.Level,
		Capacity:     r.Capacity,
		SupervisorID: r.SupervisorID.String,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

func (repo *rosterRepository) CreateStudent(ctx context.Context, std roster.Student) (roster.Student, error) {
	std.ID = uuid.NewString()
	row := boilStudent(std)
	q := "INSERT INTO students (" + studentColumns + ") VALUES (:id, :first_name, :last_name, :student_code, :form, :section, :level, :academic_year, :enrollment_date, :is_active, :created_at, :updated_at)"
	if _, err := sqlx.NamedExecContext(ctx, getExec(ctx, repo.db), q, row); err != nil {
		return roster.Student{}, mapErr(err, "student", std.StudentCode, "inserting student")
	}
	return row.unboil(), nil
}

func (repo *rosterRepository) GetStudent(ctx context.Context, id string) (roster.Student, error) {
	if err := validID("student", id); err != nil {
		return roster.Student{}, err
	}
	var row studentRow
	q := "SELECT " + studentColumns + " FROM students WHERE id = ?"
	if err := getOne(ctx, getExec(ctx, repo.db), &row, q, id); err != nil {
		return roster.Student{}, mapErr(err, "student", id, "selecting student")
	}
	return row.unboil(), nil
}

func (repo *rosterRepository) QueryStudents(ctx context.Context, filter *roster.StudentFilter, ordering []core.DBOrdering) ([]roster.Student, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			like := "%" + filter.Search + "%"
			w.add("(first_name ILIKE ? OR last_name ILIKE ? OR student_code ILIKE ?)", like, like, like)
		}
		if filter.Form != "" {
			w.add("form = ?", filter.Form)
		}
		if filter.Section != "" {
			w.add("section = ?", filter.Section)
		}
		if filter.Level != "" {
			w.add("level = ?", filter.Level)
		}
		if filter.AcademicYear != "" {
			w.add("academic_year = ?", filter.AcademicYear)
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
	}

	var rows []studentRow
	q := "SELECT " + studentColumns + " FROM students" + w.String() + orderBy(ordering, studentOrdering, "created_at ASC, id ASC")
	if err := selectAll(ctx, getExec(ctx, repo.db), &rows, q, w.args...); err != nil {
		return nil, mapErr(err, "student", "", "selecting students")
	}
	stds := make([]roster.Student, 0, len(rows))
	for _, r := range rows {
		stds = append(stds, r.unboil())
	}
	return stds, nil
}

// UpdateStudent never touches the student code or creation time.
func (repo *rosterRepository) UpdateStudent(ctx context.Context, std roster.Student) (roster.Student, error) {
	if err := validID("student", std.ID); err != nil {
		return roster.Student{}, err
	}
	var row studentRow
	q := `UPDATE students
		SET first_name = ?, last_name = ?, form = ?, section = ?, level = ?, academic_year = ?, is_active = ?, updated_at = ?
		WHERE id = ?
		RETURNING ` + studentColumns
	args := []interface{}{std.FirstName, std.LastName, std.Form, std.Section, std.Level, std.AcademicYear, std.IsActive, std.UpdatedAt.UTC(), std.ID}
	if err := getOne(ctx, getExec(ctx, repo.db), &row, q, args...); err != nil {
		return roster.Student{}, mapErr(err, "student", std.ID, "updating student")
	}
	return row.unboil(), nil
}

func (repo *rosterRepository) CreateSubject(ctx context.Context, sub roster.Subject) (roster.Subject, error) {
	row := subjectRow{
		ID:          uuid.NewString(),
		Name:        sub.Name,
		Code:        sub.Code,
		Category:    null.NewString(sub.Category, sub.Category != ""),
		Level:       sub.Level,
		Description: null.NewString(sub.Description, sub.Description != ""),
		CreatedAt:   sub.CreatedAt.UTC(),
	}
	q := "INSERT INTO subjects (" + subjectColumns + ") VALUES (:id, :name, :code, :category, :level, :description, :created_at)"
	if _, err := sqlx.NamedExecContext(ctx, getExec(ctx, repo.db), q, row); err != nil {
		return roster.Subject{}, mapErr(err, "subject", sub.Name, "inserting subject")
	}
	return row.unboil(), nil
}

func (repo *rosterRepository) GetSubject(ctx context.Context, id string) (roster.Subject, error) {
	if err := validID("subject", id); err != nil {
		return roster.Subject{}, err
	}
	var row subjectRow
	if err := getOne(ctx, getExec(ctx, repo.db), &row, "SELECT "+subjectColumns+" FROM subjects WHERE id = ?", id); err != nil {
		return roster.Subject{}, mapErr(err, "subject", id, "selecting subject")
	}
	return row.unboil(), nil
}

func (repo *rosterRepository) QuerySubjects(ctx context.Context, filter *roster.SubjectFilter) ([]roster.Subject, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			like := "%" + filter.Search + "%"
			w.add("(name ILIKE ? OR code ILIKE ?)", like, like)
		}
		if filter.Level != "" {
			w.add("level = ?", filter.Level)
		}
	}

	var rows []subjectRow
	q := "SELECT " + subjectColumns + " FROM subjects" + w.String() + " ORDER BY name ASC"
	if err := selectAll(ctx, getExec(ctx, repo.db), &rows, q, w.args...); err != nil {
		return nil, mapErr(err, "subject", "", "selecting subjects")
	}
	subs := make([]roster.Subject, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.unboil())
	}
	return subs, nil
}

func (repo *rosterRepository) CreateEnrollment(ctx context.Context, enr roster.Enrollment) (roster.Enrollment, error) {
	if err := validID("student", enr.StudentID); err != nil {
		return roster.Enrollment{}, err
	}
	if err := validID("subject", enr.SubjectID); err != nil {
		return roster.Enrollment{}, err
	}
	row := enrollmentRow{
		ID:           uuid.NewString(),
		StudentID:    enr.StudentID,
		SubjectID:    enr.SubjectID,
		AcademicYear: enr.AcademicYear,
		CreatedAt:    enr.CreatedAt.UTC(),
	}
	q := "INSERT INTO student_subjects (" + enrollmentColumns + ") VALUES (:id, :student_id, :subject_id, :academic_year, :created_at)"
	if _, err := sqlx.NamedExecContext(ctx, getExec(ctx, repo.db), q, row); err != nil {
		return roster.Enrollment{}, mapErr(err, "enrollment", enr.StudentID+"/"+enr.SubjectID, "inserting enrollment")
	}
	return row.unboil(), nil
}

func (repo *rosterRepository) GetEnrollment(ctx context.Context, id string) (roster.Enrollment, error) {
	if err := validID("enrollment", id); err != nil {
		return roster.Enrollment{}, err
	}
	var row enrollmentRow
	if err := getOne(ctx, getExec(ctx, repo.db), &row, "SELECT "+enrollmentColumns+" FROM student_subjects WHERE id = ?", id); err != nil {
		return roster.Enrollment{}, mapErr(err, "enrollment", id, "selecting enrollment")
	}
	return row.unboil(), nil
}

func (repo *rosterRepository) FindEnrollment(ctx context.Context, studentID, subjectID string) (roster.Enrollment, error) {
	key := studentID + "/" + subjectID
	if validID("student", studentID) != nil || validID("subject", subjectID) != nil {
		return roster.Enrollment{}, core.NewNotFoundError("enrollment", key)
	}
	var row enrollmentRow
	q := "SELECT " + enrollmentColumns + " FROM student_subjects WHERE student_id = ? AND subject_id = ?"
	if err := getOne(ctx, getExec(ctx, repo.db), &row, q, studentID, subjectID); err != nil {
		return roster.Enrollment{}, mapErr(err, "enrollment", key, "selecting enrollment")
	}
	return row.unboil(), nil
}

func (repo *rosterRepository) QueryEnrollments(ctx context.Context, filter roster.EnrollmentFilter) ([]roster.Enrollment, error) {
	var w where
	for _, f := range []struct{ col, id string }{{"student_id", filter.StudentID}, {"subject_id", filter.SubjectID}} {
		if f.id == "" {
			continue
		}
		if _, err := uuid.Parse(f.id); err != nil {
			return []roster.Enrollment{}, nil
		}
		w.add(f.col+" = ?", f.id)
	}
	if filter.AcademicYear != "" {
		w.add("academic_year = ?", filter.AcademicYear)
	}

	var rows []enrollmentRow
	q := "SELECT " + enrollmentColumns + " FROM student_subjects" + w.String() + " ORDER BY created_at ASC, id ASC"
	if err := selectAll(ctx, getExec(ctx, repo.db), &rows, q, w.args...); err != nil {
		return nil, mapErr(err, "enrollment", "", "selecting enrollments")
	}
	enrs := make([]roster.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrs = append(enrs, r.unboil())
	}
	return enrs, nil
}

func (repo *rosterRepository) MoveEnrollment(ctx context.Context, id, academicYear string) (roster.Enrollment, error) {
	if err := validID("enrollment", id); err != nil {
		return roster.Enrollment{}, err
	}
	var row enrollmentRow
	q := "UPDATE student_subjects SET academic_year = ? WHERE id = ? RETURNING " + enrollmentColumns
	if err := getOne(ctx, getExec(ctx, repo.db), &row, q, academicYear, id); err != nil {
		return roster.Enrollment{}, mapErr(err, "enrollment", id, "moving enrollment")
	}
	return row.unboil(), nil
}

// DeleteEnrollment drops the link; assessments cascade.
func (repo *rosterRepository) DeleteEnrollment(ctx context.Context, id string) error {
	if err := validID("enrollment", id); err != nil {
		return err
	}
	res, err := getExec(ctx, repo.db).ExecContext(ctx, "DELETE FROM student_subjects WHERE id = $1", id)
	if err != nil {
		return mapErr(err, "enrollment", id, "deleting enrollment")
	}
	return checkAffected(res, "enrollment", id)
}

func (repo *rosterRepository) DeleteStudentEnrollments(ctx context.Context, studentID string) (int, error) {
	if err := validID("student", studentID); err != nil {
		return 0, err
	}
	res, err := getExec(ctx, repo.db).ExecContext(ctx, "DELETE FROM student_subjects WHERE student_id = $1", studentID)
	if err != nil {
		return 0, mapErr(err, "enrollment", studentID, "deleting enrollments")
	}
	n, err := res.RowsAffected()
	return int(n), mapErr(err, "enrollment", studentID, "reading rows affected")
}

func (repo *rosterRepository) CreateClassGroup(ctx context.Context, grp roster.ClassGroup) (roster.ClassGroup, error) {
	row := classGroupRow{
		ID:           uuid.NewString(),
		Form:         grp.Form,
		Section:      grp.Section,
		AcademicYear: grp.AcademicYear,
		Level:        grp.Level,
		Capacity:     grp.Capacity,
		SupervisorID: null.NewString(grp.SupervisorID, grp.SupervisorID != ""),
		CreatedAt:    grp.CreatedAt.UTC(),
	}
	q := "INSERT INTO class_groups (" + classGroupColumns + ") VALUES (:id, :form, :section, :academic_year, :level, :capacity, :supervisor_id, :created_at)"
	if _, err := sqlx.NamedExecContext(ctx, getExec(ctx, repo.db), q, row); err != nil {
		return roster.ClassGroup{}, mapErr(err, "class group", grp.Form+"/"+grp.Section+"/"+grp.AcademicYear, "inserting class group")
	}
	return row.unboil(), nil
}

func (repo *rosterRepository) GetClassGroup(ctx context.Context, id string) (roster.ClassGroup, error) {
	if err := validID("class group", id); err != nil {
		return roster.ClassGroup{}, err
	}
	var row classGroupRow
	if err := getOne(ctx, getExec(ctx, repo.db), &row, "SELECT "+classGroupColumns+" FROM class_groups WHERE id = ?", id); err != nil {
		return roster.ClassGroup{}, mapErr(err, "class group", id, "selecting class group")
	}
	return row.unboil(), nil
}

func (repo *rosterRepository) QueryClassGroups(ctx context.Context, filter roster.ClassGroupFilter) ([]roster.ClassGroup, error) {
	var w where
	if filter.Form != "" {
		w.add("form = ?", filter.Form)
	}
	if filter.Section != "" {
		w.add("section = ?", filter.Section)
	}
	if filter.AcademicYear != "" {
		w.add("academic_year = ?", filter.AcademicYear)
	}
	if filter.SupervisorID != "" {
		w.add("supervisor_id = ?", filter.SupervisorID)
	}

	var rows []classGroupRow
	q := "SELECT " + classGroupColumns + " FROM class_groups" + w.String() + " ORDER BY created_at ASC, id ASC"
	if err := selectAll(ctx, getExec(ctx, repo.db), &rows, q, w.args...); err != nil {
		return nil, mapErr(err, "class group", "", "selecting class groups")
	}
	grps := make([]roster.ClassGroup, 0, len(rows))
	for _, r := range rows {
		grps = append(grps, r.unboil())
	}
	return grps, nil
}
