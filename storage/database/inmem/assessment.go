package inmemdb

import (
	"context"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/assessment"
)

type assessmentRepository struct {
	db *DB
}

var _ assessment.Repository = (*assessmentRepository)(nil) // interface compliance check

func NewAssessmentRepository(db *DB) *assessmentRepository {
	return &assessmentRepository{db: db}
}

var assessmentFields = map[string]lessFunc[assessment.Assessment]{
	"date":       func(a, b assessment.Assessment) int { return a.Date.Compare(b.Date) },
	"score":      func(a, b assessment.Assessment) int { return cmpFloat(a.Score, b.Score) },
	"kind":       func(a, b assessment.Assessment) int { return cmpString(a.Kind, b.Kind) },
	"title":      func(a, b assessment.Assessment) int { return cmpString(a.Title, b.Title) },
	"created_at": func(a, b assessment.Assessment) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (repo *assessmentRepository) CreateAssessment(ctx context.Context, a assessment.Assessment) (assessment.Assessment, error) {
	err := repo.db.write(ctx, func() error {
		if _, ok := repo.db.enrollments[a.EnrollmentID]; !ok {
			return core.NewNotFoundError("enrollment", a.EnrollmentID)
		}
		a.ID = repo.db.newID()
		repo.db.assessments[a.ID] = a
		return nil
	})
	if err != nil {
		return assessment.Assessment{}, err
	}
	return a, nil
}

func (repo *assessmentRepository) GetAssessment(_ context.Context, id string) (a assessment.Assessment, err error) {
	err = repo.db.read(func() error {
		var ok bool
		if a, ok = repo.db.assessments[id]; !ok {
			return core.NewNotFoundError("assessment", id)
		}
		return nil
	})
	return a, err
}

func (repo *assessmentRepository) QueryAssessments(_ context.Context, filter *assessment.QueryFilter, ordering []core.DBOrdering) ([]assessment.Assessment, error) {
	var as []assessment.Assessment
	err := repo.db.read(func() error {
		var enrIDs map[string]bool
		if filter != nil && len(filter.EnrollmentIDs) > 0 {
			enrIDs = make(map[string]bool, len(filter.EnrollmentIDs))
			for _, id := range filter.EnrollmentIDs {
				enrIDs[id] = true
			}
		}
		as = make([]assessment.Assessment, 0)
		for _, a := range repo.db.assessments {
			if filter != nil {
				if (filter.EnrollmentID != "" && a.EnrollmentID != filter.EnrollmentID) ||
					(enrIDs != nil && !enrIDs[a.EnrollmentID]) ||
					(filter.Term != "" && a.Term != filter.Term) ||
					(filter.AcademicYear != "" && a.AcademicYear != filter.AcademicYear) ||
					(filter.Kind != "" && a.Kind != filter.Kind) {
					continue
				}
			}
			as = append(as, a)
		}
		sortRows(repo.db, as, func(a assessment.Assessment) string { return a.ID }, assessmentFields, ordering)
		return nil
	})
	return as, err
}

func (repo *assessmentRepository) DeleteAssessment(ctx context.Context, id string) error {
	return repo.db.write(ctx, func() error {
		if _, ok := repo.db.assessments[id]; !ok {
			return core.NewNotFoundError("assessment", id)
		}
		delete(repo.db.assessments, id)
		delete(repo.db.order, id)
		return nil
	})
}
