package inmemdb

import (
	"context"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/fee"
)

type feeRepository struct {
	db *DB
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *DB) *feeRepository {
	return &feeRepository{db: db}
}

var paymentFields = map[string]lessFunc[fee.Payment]{
	"payment_date": func(a, b fee.Payment) int { return a.PaymentDate.Compare(b.PaymentDate) },
	"amount_paid":  func(a, b fee.Payment) int { return cmpFloat(a.AmountPaid, b.AmountPaid) },
	"balance":      func(a, b fee.Payment) int { return cmpFloat(a.Balance, b.Balance) },
	"month":        func(a, b fee.Payment) int { return cmpString(a.Month, b.Month) },
	"created_at":   func(a, b fee.Payment) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

// findByKey: caller holds mu.
func (repo *feeRepository) findByKey(key fee.Key) (fee.Payment, bool) {
	for _, p := range repo.db.payments {
		if p.StudentID == key.StudentID && p.Term == key.Term && p.Month == key.Month && p.AcademicYear == key.AcademicYear {
			return p, true
		}
	}
	return fee.Payment{}, false
}

func (repo *feeRepository) GetPaymentByKey(_ context.Context, key fee.Key) (p fee.Payment, err error) {
	err = repo.db.read(func() error {
		var ok bool
		if p, ok = repo.findByKey(key); !ok {
			return core.NewNotFoundError("payment", key.String())
		}
		return nil
	})
	return p, err
}

func (repo *feeRepository) GetPayment(_ context.Context, id string) (p fee.Payment, err error) {
	err = repo.db.read(func() error {
		var ok bool
		if p, ok = repo.db.payments[id]; !ok {
			return core.NewNotFoundError("payment", id)
		}
		return nil
	})
	return p, err
}

func (repo *feeRepository) CreatePayment(ctx context.Context, p fee.Payment) (fee.Payment, error) {
	err := repo.db.write(ctx, func() error {
		if _, ok := repo.db.students[p.StudentID]; !ok {
			return core.NewNotFoundError("student", p.StudentID)
		}
		key := fee.Key{StudentID: p.StudentID, Term: p.Term, Month: p.Month, AcademicYear: p.AcademicYear}
		if _, ok := repo.findByKey(key); ok {
			return core.NewConflictError("payment", key.String(), "payment already exists")
		}
		p.ID = repo.db.newID()
		repo.db.payments[p.ID] = p
		return nil
	})
	if err != nil {
		return fee.Payment{}, err
	}
	return p, nil
}

func (repo *feeRepository) UpdatePayment(ctx context.Context, p fee.Payment) (fee.Payment, error) {
	err := repo.db.write(ctx, func() error {
		orig, ok := repo.db.payments[p.ID]
		if !ok {
			return core.NewNotFoundError("payment", p.ID)
		}
		p.StudentID = orig.StudentID
		p.Term = orig.Term
		p.Month = orig.Month
		p.AcademicYear = orig.AcademicYear
		p.CreatedAt = orig.CreatedAt
		repo.db.payments[p.ID] = p
		return nil
	})
	if err != nil {
		return fee.Payment{}, err
	}
	return p, nil
}

func (repo *feeRepository) QueryPayments(_ context.Context, filter *fee.QueryFilter, ordering []core.DBOrdering) ([]fee.Payment, error) {
	var ps []fee.Payment
	err := repo.db.read(func() error {
		ps = make([]fee.Payment, 0)
		for _, p := range repo.db.payments {
			if filter != nil && !repo.match(p, filter) {
				continue
			}
			ps = append(ps, p)
		}
		sortRows(repo.db, ps, func(p fee.Payment) string { return p.ID }, paymentFields, ordering)
		return nil
	})
	return ps, err
}

// match: caller holds mu.
func (repo *feeRepository) match(p fee.Payment, filter *fee.QueryFilter) bool {
	if (filter.StudentID != "" && p.StudentID != filter.StudentID) ||
		(filter.Term != "" && p.Term != filter.Term) ||
		(filter.Month != "" && p.Month != filter.Month) ||
		(filter.AcademicYear != "" && p.AcademicYear != filter.AcademicYear) ||
		(filter.Status != "" && p.Status != filter.Status) ||
		(filter.From != nil && p.PaymentDate.Before(*filter.From)) ||
		(filter.To != nil && !p.PaymentDate.Before(*filter.To)) {
		return false
	}
	if filter.Form != "" || filter.Section != "" {
		std, ok := repo.db.students[p.StudentID]
		if !ok || (filter.Form != "" && std.Form != filter.Form) || (filter.Section != "" && std.Section != filter.Section) {
			return false
		}
	}
	return true
}
