package inmemdb

import (
	"context"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/roster"
)

type rosterRepository struct {
	db *DB
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db *DB) *rosterRepository {
	return &rosterRepository{db: db}
}

var studentFields = map[string]lessFunc[roster.Student]{
	"first_name":   func(a, b roster.Student) int { return cmpString(a.FirstName, b.FirstName) },
	"last_name":    func(a, b roster.Student) int { return cmpString(a.LastName, b.LastName) },
	"student_code": func(a, b roster.Student) int { return cmpString(a.StudentCode, b.StudentCode) },
	"form":         func(a, b roster.Student) int { return cmpString(a.Form, b.Form) },
	"section":      func(a, b roster.Student) int { return cmpString(a.Section, b.Section) },
	"created_at":   func(a, b roster.Student) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (repo *rosterRepository) CreateStudent(ctx context.Context, std roster.Student) (roster.Student, error) {
	err := repo.db.write(ctx, func() error {
		for _, s := range repo.db.students {
			if s.StudentCode == std.StudentCode {
				return core.NewConflictError("student", std.StudentCode, "student code already exists")
			}
		}
		std.ID = repo.db.newID()
		repo.db.students[std.ID] = std
		return nil
	})
	if err != nil {
		return roster.Student{}, err
	}
	return std, nil
}

func (repo *rosterRepository) GetStudent(_ context.Context, id string) (std roster.Student, err error) {
	err = repo.db.read(func() error {
		var ok bool
		if std, ok = repo.db.students[id]; !ok {
			return core.NewNotFoundError("student", id)
		}
		return nil
	})
	return std, err
}

func (repo *rosterRepository) QueryStudents(_ context.Context, filter *roster.StudentFilter, ordering []core.DBOrdering) ([]roster.Student, error) {
	var stds []roster.Student
	err := repo.db.read(func() error {
		stds = make([]roster.Student, 0, len(repo.db.students))
		for _, s := range repo.db.students {
			if filter != nil {
				if filter.Search != "" &&
					!containsFold(s.FirstName, filter.Search) &&
					!containsFold(s.LastName, filter.Search) &&
					!containsFold(s.StudentCode, filter.Search) {
					continue
				}
				if (filter.Form != "" && s.Form != filter.Form) ||
					(filter.Section != "" && s.Section != filter.Section) ||
					(filter.Level != "" && s.Level != filter.Level) ||
					(filter.AcademicYear != "" && s.AcademicYear != filter.AcademicYear) ||
					(filter.IsActive != nil && s.IsActive != *filter.IsActive) {
					continue
				}
			}
			stds = append(stds, s)
		}
		sortRows(repo.db, stds, func(s roster.Student) string { return s.ID }, studentFields, ordering)
		return nil
	})
	return stds, err
}

func (repo *rosterRepository) UpdateStudent(ctx context.Context, std roster.Student) (roster.Student, error) {
	err := repo.db.write(ctx, func() error {
		orig, ok := repo.db.students[std.ID]
		if !ok {
			return core.NewNotFoundError("student", std.ID)
		}
		std.StudentCode = orig.StudentCode
		std.CreatedAt = orig.CreatedAt
		repo.db.students[std.ID] = std
		return nil
	})
	if err != nil {
		return roster.Student{}, err
	}
	return std, nil
}

func (repo *rosterRepository) CreateSubject(ctx context.Context, sub roster.Subject) (roster.Subject, error) {
	err := repo.db.write(ctx, func() error {
		for _, s := range repo.db.subjects {
			if s.Name == sub.Name {
				return core.NewConflictError("subject", sub.Name, "subject name already exists")
			}
		}
		sub.ID = repo.db.newID()
		repo.db.subjects[sub.ID] = sub
		return nil
	})
	if err != nil {
		return roster.Subject{}, err
	}
	return sub, nil
}

func (repo *rosterRepository) GetSubject(_ context.Context, id string) (sub roster.Subject, err error) {
	err = repo.db.read(func() error {
		var ok bool
		if sub, ok = repo.db.subjects[id]; !ok {
			return core.NewNotFoundError("subject", id)
		}
		return nil
	})
	return sub, err
}

func (repo *rosterRepository) QuerySubjects(_ context.Context, filter *roster.SubjectFilter) ([]roster.Subject, error) {
	var subs []roster.Subject
	err := repo.db.read(func() error {
		subs = make([]roster.Subject, 0, len(repo.db.subjects))
		for _, s := range repo.db.subjects {
			if filter != nil {
				if filter.Search != "" && !containsFold(s.Name, filter.Search) && !containsFold(s.Code, filter.Search) {
					continue
				}
				if filter.Level != "" && s.Level != filter.Level {
					continue
				}
			}
			subs = append(subs, s)
		}
		sortRows(repo.db, subs, func(s roster.Subject) string { return s.ID }, map[string]lessFunc[roster.Subject]{
			"name": func(a, b roster.Subject) int { return cmpString(a.Name, b.Name) },
		}, []core.DBOrdering{{Field: "name", Ascending: true}})
		return nil
	})
	return subs, err
}

func (repo *rosterRepository) CreateEnrollment(ctx context.Context, enr roster.Enrollment) (roster.Enrollment, error) {
	err := repo.db.write(ctx, func() error {
		if _, ok := repo.db.students[enr.StudentID]; !ok {
			return core.NewNotFoundError("student", enr.StudentID)
		}
		if _, ok := repo.db.subjects[enr.SubjectID]; !ok {
			return core.NewNotFoundError("subject", enr.SubjectID)
		}
		if _, ok := repo.findEnrollment(enr.StudentID, enr.SubjectID); ok {
			return core.NewConflictError("enrollment", enr.StudentID+"/"+enr.SubjectID, "student is already enrolled in subject")
		}
		enr.ID = repo.db.newID()
		repo.db.enrollments[enr.ID] = enr
		return nil
	})
	if err != nil {
		return roster.Enrollment{}, err
	}
	return enr, nil
}

func (repo *rosterRepository) GetEnrollment(_ context.Context, id string) (enr roster.Enrollment, err error) {
	err = repo.db.read(func() error {
		var ok bool
		if enr, ok = repo.db.enrollments[id]; !ok {
			return core.NewNotFoundError("enrollment", id)
		}
		return nil
	})
	return enr, err
}

// findEnrollment: caller holds mu.
func (repo *rosterRepository) findEnrollment(studentID, subjectID string) (roster.Enrollment, bool) {
	for _, e := range repo.db.enrollments {
		if e.StudentID == studentID && e.SubjectID == subjectID {
			return e, true
		}
	}
	return roster.Enrollment{}, false
}

func (repo *rosterRepository) FindEnrollment(_ context.Context, studentID, subjectID string) (enr roster.Enrollment, err error) {
	err = repo.db.read(func() error {
		var ok bool
		if enr, ok = repo.findEnrollment(studentID, subjectID); !ok {
			return core.NewNotFoundError("enrollment", studentID+"/"+subjectID)
		}
		return nil
	})
	return enr, err
}

func (repo *rosterRepository) QueryEnrollments(_ context.Context, filter roster.EnrollmentFilter) ([]roster.Enrollment, error) {
	var enrs []roster.Enrollment
	err := repo.db.read(func() error {
		enrs = make([]roster.Enrollment, 0)
		for _, e := range repo.db.enrollments {
			if (filter.StudentID != "" && e.StudentID != filter.StudentID) ||
				(filter.SubjectID != "" && e.SubjectID != filter.SubjectID) ||
				(filter.AcademicYear != "" && e.AcademicYear != filter.AcademicYear) {
				continue
			}
			enrs = append(enrs, e)
		}
		sortRows(repo.db, enrs, func(e roster.Enrollment) string { return e.ID }, nil, nil)
		return nil
	})
	return enrs, err
}

func (repo *rosterRepository) MoveEnrollment(ctx context.Context, id, academicYear string) (roster.Enrollment, error) {
	var enr roster.Enrollment
	err := repo.db.write(ctx, func() error {
		var ok bool
		if enr, ok = repo.db.enrollments[id]; !ok {
			return core.NewNotFoundError("enrollment", id)
		}
		enr.AcademicYear = academicYear
		repo.db.enrollments[id] = enr
		return nil
	})
	if err != nil {
		return roster.Enrollment{}, err
	}
	return enr, nil
}

// deleteEnrollment drops an enrollment and its assessments. Caller holds mu.
func (repo *rosterRepository) deleteEnrollment(id string) {
	for aid, a := range repo.db.assessments {
		if a.EnrollmentID == id {
			delete(repo.db.assessments, aid)
			delete(repo.db.order, aid)
		}
	}
	delete(repo.db.enrollments, id)
	delete(repo.db.order, id)
}

func (repo *rosterRepository) DeleteEnrollment(ctx context.Context, id string) error {
	return repo.db.write(ctx, func() error {
		if _, ok := repo.db.enrollments[id]; !ok {
			return core.NewNotFoundError("enrollment", id)
		}
		repo.deleteEnrollment(id)
		return nil
	})
}

func (repo *rosterRepository) DeleteStudentEnrollments(ctx context.Context, studentID string) (int, error) {
	var n int
	err := repo.db.write(ctx, func() error {
		for id, e := range repo.db.enrollments {
			if e.StudentID == studentID {
				repo.deleteEnrollment(id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (repo *rosterRepository) CreateClassGroup(ctx context.Context, grp roster.ClassGroup) (roster.ClassGroup, error) {
	err := repo.db.write(ctx, func() error {
		for _, g := range repo.db.classGroups {
			if g.Form == grp.Form && g.Section == grp.Section && g.AcademicYear == grp.AcademicYear {
				return core.NewConflictError("class group", grp.Form+"/"+grp.Section+"/"+grp.AcademicYear, "class group already exists")
			}
		}
		grp.ID = repo.db.newID()
		repo.db.classGroups[grp.ID] = grp
		return nil
	})
	if err != nil {
		return roster.ClassGroup{}, err
	}
	return grp, nil
}

func (repo *rosterRepository) GetClassGroup(_ context.Context, id string) (grp roster.ClassGroup, err error) {
	err = repo.db.read(func() error {
		var ok bool
		if grp, ok = repo.db.classGroups[id]; !ok {
			return core.NewNotFoundError("class group", id)
		}
		return nil
	})
	return grp, err
}

func (repo *rosterRepository) QueryClassGroups(_ context.Context, filter roster.ClassGroupFilter) ([]roster.ClassGroup, error) {
	var grps []roster.ClassGroup
	err := repo.db.read(func() error {
		grps = make([]roster.ClassGroup, 0)
		for _, g := range repo.db.classGroups {
			if (filter.Form != "" && g.Form != filter.Form) ||
				(filter.Section != "" && g.Section != filter.Section) ||
				(filter.AcademicYear != "" && g.AcademicYear != filter.AcademicYear) ||
				(filter.SupervisorID != "" && g.SupervisorID != filter.SupervisorID) {
				continue
			}
			grps = append(grps, g)
		}
		sortRows(repo.db, grps, func(g roster.ClassGroup) string { return g.ID }, nil, nil)
		return nil
	})
	return grps, err
}
