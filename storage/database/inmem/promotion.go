package inmemdb

import (
	"context"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/promotion"
)

type promotionRepository struct {
	db *DB
}

var _ promotion.Repository = (*promotionRepository)(nil) // interface compliance check

func NewPromotionRepository(db *DB) *promotionRepository {
	return &promotionRepository{db: db}
}

func (repo *promotionRepository) CreatePromotion(ctx context.Context, p promotion.Promotion) (promotion.Promotion, error) {
	err := repo.db.write(ctx, func() error {
		if _, ok := repo.db.students[p.StudentID]; !ok {
			return core.NewNotFoundError("student", p.StudentID)
		}
		p.ID = repo.db.newID()
		repo.db.promotions[p.ID] = p
		return nil
	})
	if err != nil {
		return promotion.Promotion{}, err
	}
	return p, nil
}

func (repo *promotionRepository) QueryPromotions(_ context.Context, studentID string) ([]promotion.Promotion, error) {
	var ps []promotion.Promotion
	err := repo.db.read(func() error {
		ps = make([]promotion.Promotion, 0)
		for _, p := range repo.db.promotions {
			if p.StudentID == studentID {
				ps = append(ps, p)
			}
		}
		sortRows(repo.db, ps, func(p promotion.Promotion) string { return p.ID }, nil, nil)
		return nil
	})
	return ps, err
}
