package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/kadi/core/promotion"
)

type promotionRow struct {
	ID          string    `db:"id"`
	StudentID   string    `db:"student_id"`
	FromForm    string    `db:"from_form"`
	FromSection string    `db:"from_section"`
	FromLevel   string    `db:"from_level"`
	FromYear    string    `db:"from_academic_year"`
	ToForm      string    `db:"to_form"`
	ToSection   string    `db:"to_section"`
	ToLevel     string    `db:"to_level"`
	ToYear      string    `db:"to_academic_year"`
	PromotedAt  time.Time `db:"promoted_at"`
}

const promotionColumns = "id, student_id, from_form, from_section, from_level, from_academic_year, to_form, to_section, to_level, to_academic_year, promoted_at"

func (r promotionRow) unboil() promotion.Promotion {
	return promotion.Promotion{
		ID:          r.ID,
		StudentID:   r.StudentID,
		FromForm:    r.FromForm,
		FromSection: r.FromSection,
		FromLevel:   r.FromLevel,
		FromYear:    r.FromYear,
		ToForm:      r.ToForm,
		ToSection:   r.ToSection,
		ToLevel:     r.ToLevel,
		ToYear:      r.ToYear,
		PromotedAt:  r.PromotedAt.UTC(),
	}
}

type promotionRepository struct {
	db *sqlx.DB
}

var _ promotion.Repository = (*promotionRepository)(nil) // interface compliance check

func NewPromotionRepository(db *sqlx.DB) *promotionRepository {
	return &promotionRepository{db: db}
}

func (repo *promotionRepository) CreatePromotion(ctx context.Context, p promotion.Promotion) (promotion.Promotion, error) {
	if err := validID("student", p.StudentID); err != nil {
		return promotion.Promotion{}, err
	}
	row := promotionRow{
		ID:          uuid.NewString(),
		StudentID:   p.StudentID,
		FromForm:    p.FromForm,
		FromSection: p.FromSection,
		FromLevel:   p.FromLevel,
		FromYear:    p.FromYear,
		ToForm:      p.ToForm,
		ToSection:   p.ToSection,
		ToLevel:     p.ToLevel,
		ToYear:      p.ToYear,
		PromotedAt:  p.PromotedAt.UTC(),
	}
	q := "INSERT INTO promotions (" + promotionColumns + ") VALUES (" +
		":id, :student_id, :from_form, :from_section, :from_level, :from_academic_year, :to_form, :to_section, :to_level, :to_academic_year, :promoted_at)"
	if _, err := sqlx.NamedExecContext(ctx, getExec(ctx, repo.db), q, row); err != nil {
		return promotion.Promotion{}, mapErr(err, "promotion", p.StudentID, "inserting promotion")
	}
	return row.unboil(), nil
}

func (repo *promotionRepository) QueryPromotions(ctx context.Context, studentID string) ([]promotion.Promotion, error) {
	if _, err := uuid.Parse(studentID); err != nil {
		return []promotion.Promotion{}, nil
	}
	var rows []promotionRow
	q := "SELECT " + promotionColumns + " FROM promotions WHERE student_id = ? ORDER BY promoted_at ASC, id ASC"
	if err := selectAll(ctx, getExec(ctx, repo.db), &rows, q, studentID); err != nil {
		return nil, mapErr(err, "promotion", studentID, "selecting promotions")
	}
	ps := make([]promotion.Promotion, 0, len(rows))
	for _, r := range rows {
		ps = append(ps, r.unboil())
	}
	return ps, nil
}
