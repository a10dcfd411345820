package roster

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/kadi/core"
)

type (
	// Repository persists the roster. Implementations return core.NotFoundError for absent rows
	// and core.ConflictError for uniqueness violations (student code, subject name,
	// (student, subject) enrollment, (form, section, year) class group).
	Repository interface {
		CreateStudent(ctx context.Context, std Student) (Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		QueryStudents(ctx context.Context, filter *StudentFilter, ordering []core.DBOrdering) ([]Student, error)
		UpdateStudent(ctx context.Context, std Student) (Student, error)

		CreateSubject(ctx context.Context, sub Subject) (Subject, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
		QuerySubjects(ctx context.Context, filter *SubjectFilter) ([]Subject, error)

		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, id string) (Enrollment, error)
		FindEnrollment(ctx context.Context, studentID, subjectID string) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)
		// MoveEnrollment carries an enrollment into another academic year.
		MoveEnrollment(ctx context.Context, id, academicYear string) (Enrollment, error)
		DeleteEnrollment(ctx context.Context, id string) error
		DeleteStudentEnrollments(ctx context.Context, studentID string) (int, error)

		CreateClassGroup(ctx context.Context, grp ClassGroup) (ClassGroup, error)
		GetClassGroup(ctx context.Context, id string) (ClassGroup, error)
		QueryClassGroups(ctx context.Context, filter ClassGroupFilter) ([]ClassGroup, error)
	}

	Service struct {
		repo       Repository
		validate   *validator.Validate
		translator ut.Translator
	}
)

func NewService(repo Repository, validate *validator.Validate, translator ut.Translator) *Service {
	return &Service{repo: repo, validate: validate, translator: translator}
}

func (svc *Service) RegisterStudent(ctx context.Context, ns NewStudent) (Student, error) {
	ns.Clean()
	if err := core.ValidateStruct(svc.validate, svc.translator, ns); err != nil {
		return Student{}, err
	}
	now := time.Now().UTC()
	enrolledOn := ns.EnrollmentDate
	if enrolledOn.IsZero() {
		enrolledOn = now
	}
	std := Student{
		FirstName:      ns.FirstName,
		LastName:       ns.LastName,
		StudentCode:    ns.StudentCode,
		Form:           ns.Form,
		Section:        ns.Section,
		Level:          ns.Level,
		AcademicYear:   ns.AcademicYear,
		EnrollmentDate: enrolledOn.UTC(),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	std, err := svc.repo.CreateStudent(ctx, std)
	if err != nil {
		return Student{}, errors.Wrap(err, "creating student")
	}
	return std, nil
}

func (svc *Service) GetStudent(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *Service) QueryStudents(ctx context.Context, filter *StudentFilter, ordering []core.DBOrdering) ([]Student, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *Service) UpdateStudent(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	std, err := svc.repo.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if name := core.CleanString(us.FirstName); name != "" {
		std.FirstName = name
	}
	if name := core.CleanString(us.LastName); name != "" {
		std.LastName = name
	}
	if us.IsActive != nil {
		std.IsActive = *us.IsActive
	}
	std.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, std)
}

func (svc *Service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	ns.Clean()
	if err := core.ValidateStruct(svc.validate, svc.translator, ns); err != nil {
		return Subject{}, err
	}
	sub := Subject{
		Name:        ns.Name,
		Code:        ns.Code,
		Category:    ns.Category,
		Level:       ns.Level,
		Description: ns.Description,
		CreatedAt:   time.Now().UTC(),
	}
	sub, err := svc.repo.CreateSubject(ctx, sub)
	if err != nil {
		return Subject{}, errors.Wrap(err, "creating subject")
	}
	return sub, nil
}

func (svc *Service) GetSubject(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

func (svc *Service) QuerySubjects(ctx context.Context, filter *SubjectFilter) ([]Subject, error) {
	if filter != nil {
		filter.Search = core.CleanString(filter.Search)
		if filter.Level != "" {
			filter.Level = core.NormalizeLevel(filter.Level)
		}
	}
	return svc.repo.QuerySubjects(ctx, filter)
}

// Enroll links a student to a subject. A second enrollment of the same pair is a core.ConflictError.
func (svc *Service) Enroll(ctx context.Context, ne NewEnrollment) (Enrollment, error) {
	ne.StudentID = core.CleanString(ne.StudentID)
	ne.SubjectID = core.CleanString(ne.SubjectID)
	if err := core.ValidateStruct(svc.validate, svc.translator, ne); err != nil {
		return Enrollment{}, err
	}
	std, err := svc.repo.GetStudent(ctx, ne.StudentID)
	if err != nil {
		return Enrollment{}, err
	}
	if _, err = svc.repo.GetSubject(ctx, ne.SubjectID); err != nil {
		return Enrollment{}, err
	}
	year := core.CleanString(ne.AcademicYear)
	if year == "" {
		year = std.AcademicYear
	}
	enr, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		StudentID:    ne.StudentID,
		SubjectID:    ne.SubjectID,
		AcademicYear: year,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "creating enrollment")
	}
	return enr, nil
}

func (svc *Service) GetEnrollment(ctx context.Context, id string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, id)
}

func (svc *Service) QueryEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error) {
	filter.AcademicYear = core.CleanString(filter.AcademicYear)
	return svc.repo.QueryEnrollments(ctx, filter)
}

// Withdraw removes a student from a subject. Assessments recorded against the link go with it.
func (svc *Service) Withdraw(ctx context.Context, enrollmentID string) error {
	return svc.repo.DeleteEnrollment(ctx, enrollmentID)
}

// RemoveStudentEnrollments withdraws a student from every subject.
func (svc *Service) RemoveStudentEnrollments(ctx context.Context, studentID string) (int, error) {
	if _, err := svc.repo.GetStudent(ctx, studentID); err != nil {
		return 0, err
	}
	return svc.repo.DeleteStudentEnrollments(ctx, studentID)
}

func (svc *Service) CreateClassGroup(ctx context.Context, ng NewClassGroup) (ClassGroup, error) {
	ng.Clean()
	if err := core.ValidateStruct(svc.validate, svc.translator, ng); err != nil {
		return ClassGroup{}, err
	}
	grp, err := svc.repo.CreateClassGroup(ctx, ClassGroup{
		Form:         ng.Form,
		Section:      ng.Section,
		AcademicYear: ng.AcademicYear,
		Level:        ng.Level,
		Capacity:     ng.Capacity,
		SupervisorID: ng.SupervisorID,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return ClassGroup{}, errors.Wrap(err, "creating class group")
	}
	return grp, nil
}

func (svc *Service) GetClassGroup(ctx context.Context, id string) (ClassGroup, error) {
	return svc.repo.GetClassGroup(ctx, id)
}

func (svc *Service) QueryClassGroups(ctx context.Context, filter ClassGroupFilter) ([]ClassGroup, error) {
	return svc.repo.QueryClassGroups(ctx, filter)
}
