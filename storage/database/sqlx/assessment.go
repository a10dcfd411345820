package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/assessment"
)

type assessmentRow struct {
	ID           string    `db:"id"`
	EnrollmentID string    `db:"enrollment_id"`
	Title        string    `db:"title"`
	Date         time.Time `db:"date"`
	Score        float64   `db:"score"`
	MaxScore     float64   `db:"max_score"`
	Kind         string    `db:"kind"`
	Term         string    `db:"term"`
	AcademicYear string    `db:"academic_year"`
	CreatedAt    time.Time `db:"created_at"`
}

const assessmentColumns = "id, enrollment_id, title, date, score, max_score, kind, term, academic_year, created_at"

var assessmentOrdering = map[string]string{
	"date":       "date",
	"score":      "score",
	"kind":       "kind",
	"title":      "title",
	"created_at": "created_at",
}

func (r assessmentRow) unboil() assessment.Assessment {
	return assessment.Assessment{
		ID:           r.ID,
		EnrollmentID: r.EnrollmentID,
		Title:        r.Title,
		Date:         r.Date.UTC(),
		Score:        r.Score,
		MaxScore:     r.MaxScore,
		Kind:         r.Kind,
		Term:         r.Term,
		AcademicYear: r.AcademicYear,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

type assessmentRepository struct {
	db *sqlx.DB
}

var _ assessment.Repository = (*assessmentRepository)(nil) // interface compliance check

func NewAssessmentRepository(db *sqlx.DB) *assessmentRepository {
	return &assessmentRepository{db: db}
}

func (repo *assessmentRepository) CreateAssessment(ctx context.Context, a assessment.Assessment) (assessment.Assessment, error) {
	if err := validID("enrollment", a.EnrollmentID); err != nil {
		return assessment.Assessment{}, err
	}
	row := assessmentRow{
		ID:           uuid.NewString(),
		EnrollmentID: a.EnrollmentID,
		Title:        a.Title,
		Date:         a.Date.UTC(),
		Score:        a.Score,
		MaxScore:     a.MaxScore,
		Kind:         a.Kind,
		Term:         a.Term,
		AcademicYear: a.AcademicYear,
		CreatedAt:    a.CreatedAt.UTC(),
	}
	q := "INSERT INTO assessments (" + assessmentColumns + ") VALUES (:id, :enrollment_id, :title, :date, :score, :max_score, :kind, :term, :academic_year, :created_at)"
	if _, err := sqlx.NamedExecContext(ctx, getExec(ctx, repo.db), q, row); err != nil {
		return assessment.Assessment{}, mapErr(err, "assessment", a.EnrollmentID, "inserting assessment")
	}
	return row.unboil(), nil
}

func (repo *assessmentRepository) GetAssessment(ctx context.Context, id string) (assessment.Assessment, error) {
	if err := validID("assessment", id); err != nil {
		return assessment.Assessment{}, err
	}
	var row assessmentRow
	if err := getOne(ctx, getExec(ctx, repo.db), &row, "SELECT "+assessmentColumns+" FROM assessments WHERE id = ?", id); err != nil {
		return assessment.Assessment{}, mapErr(err, "assessment", id, "selecting assessment")
	}
	return row.unboil(), nil
}

func (repo *assessmentRepository) QueryAssessments(ctx context.Context, filter *assessment.QueryFilter, ordering []core.DBOrdering) ([]assessment.Assessment, error) {
	var w where
	if filter != nil {
		if filter.EnrollmentID != "" {
			if _, err := uuid.Parse(filter.EnrollmentID); err != nil {
				return []assessment.Assessment{}, nil
			}
			w.add("enrollment_id = ?", filter.EnrollmentID)
		}
		if len(filter.EnrollmentIDs) > 0 {
			ids := make([]string, 0, len(filter.EnrollmentIDs))
			for _, id := range filter.EnrollmentIDs {
				if _, err := uuid.Parse(id); err == nil {
					ids = append(ids, id)
				}
			}
			if len(ids) == 0 {
				return []assessment.Assessment{}, nil
			}
			w.add("enrollment_id IN (?)", ids)
		}
		if filter.Term != "" {
			w.add("term = ?", filter.Term)
		}
		if filter.AcademicYear != "" {
			w.add("academic_year = ?", filter.AcademicYear)
		}
		if filter.Kind != "" {
			w.add("kind = ?", filter.Kind)
		}
	}

	var rows []assessmentRow
	q := "SELECT " + assessmentColumns + " FROM assessments" + w.String() + orderBy(ordering, assessmentOrdering, "created_at ASC, id ASC")
	if err := selectAll(ctx, getExec(ctx, repo.db), &rows, q, w.args...); err != nil {
		return nil, mapErr(err, "assessment", "", "selecting assessments")
	}
	as := make([]assessment.Assessment, 0, len(rows))
	for _, r := range rows {
		as = append(as, r.unboil())
	}
	return as, nil
}

func (repo *assessmentRepository) DeleteAssessment(ctx context.Context, id string) error {
	if err := validID("assessment", id); err != nil {
		return err
	}
	res, err := getExec(ctx, repo.db).ExecContext(ctx, "DELETE FROM assessments WHERE id = $1", id)
	if err != nil {
		return mapErr(err, "assessment", id, "deleting assessment")
	}
	return checkAffected(res, "assessment", id)
}
