package fee

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/roster"
)

type (
	// Repository persists the ledger. CreatePayment returns a core.ConflictError when the key exists.
	Repository interface {
		// GetPaymentByKey locks the row until commit when called inside a transaction.
		GetPaymentByKey(ctx context.Context, key Key) (Payment, error)
		GetPayment(ctx context.Context, id string) (Payment, error)
		CreatePayment(ctx context.Context, p Payment) (Payment, error)
		UpdatePayment(ctx context.Context, p Payment) (Payment, error)
		QueryPayments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Payment, error)
	}

	StudentGetter interface {
		GetStudent(ctx context.Context, id string) (roster.Student, error)
	}

	Service struct {
		tx         core.TxManager
		repo       Repository
		students   StudentGetter
		validate   *validator.Validate
		translator ut.Translator
		metrics    core.Metrics
	}
)

func NewService(
	tx core.TxManager,
	repo Repository,
	students StudentGetter,
	validate *validator.Validate,
	translator ut.Translator,
	metrics core.Metrics,
) *Service {
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return &Service{
		tx:         tx,
		repo:       repo,
		students:   students,
		validate:   validate,
		translator: translator,
		metrics:    metrics,
	}
}

// RecordPayment adds a payment to the ledger row of (student, term, month, year), creating it if needed.
// Amounts accumulate; the latest monthly fee amount wins.
func (svc *Service) RecordPayment(ctx context.Context, np NewPayment) (Payment, error) {
	np.Clean()
	if err := core.ValidateStruct(svc.validate, svc.translator, np); err != nil {
		return Payment{}, err
	}
	if _, err := svc.students.GetStudent(ctx, np.StudentID); err != nil {
		return Payment{}, err
	}
	if np.PaymentDate.IsZero() {
		np.PaymentDate = time.Now()
	}
	np.PaymentDate = np.PaymentDate.UTC()

	p, err := svc.upsert(ctx, np)
	if core.IsConflict(err) {
		// lost the race to create the row; it exists now
		p, err = svc.upsert(ctx, np)
	}
	if err != nil {
		return Payment{}, errors.Wrap(err, "recording payment")
	}
	svc.metrics.PaymentRecorded(p.Status)
	return p, nil
}

func (svc *Service) upsert(ctx context.Context, np NewPayment) (Payment, error) {
	key := Key{StudentID: np.StudentID, Term: np.Term, Month: np.Month, AcademicYear: np.AcademicYear}
	var out Payment
	err := svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		p, err := svc.repo.GetPaymentByKey(ctx, key)
		switch {
		case core.IsNotFound(err):
			p = Payment{
				StudentID:        key.StudentID,
				Term:             key.Term,
				Month:            key.Month,
				AcademicYear:     key.AcademicYear,
				AmountPaid:       np.AmountPaid,
				MonthlyFeeAmount: np.MonthlyFeeAmount,
				PaymentDate:      np.PaymentDate,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			p.Recompute()
			out, err = svc.repo.CreatePayment(ctx, p)
			return err
		case err != nil:
			return err
		}
		p.AmountPaid += np.AmountPaid
		p.MonthlyFeeAmount = np.MonthlyFeeAmount
		p.PaymentDate = np.PaymentDate
		p.UpdatedAt = now
		p.Recompute()
		out, err = svc.repo.UpdatePayment(ctx, p)
		return err
	})
	return out, err
}

func (svc *Service) Get(ctx context.Context, id string) (Payment, error) {
	return svc.repo.GetPayment(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Payment, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryPayments(ctx, filter, ordering)
}

// Summarize totals the payments matching filter.
func (svc *Service) Summarize(ctx context.Context, filter *QueryFilter) (Summary, error) {
	ps, err := svc.Query(ctx, filter, nil)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{ByStatus: make(map[string]int, len(Statuses))}
	for _, st := range Statuses {
		sum.ByStatus[st] = 0
	}
	for _, p := range ps {
		sum.Count++
		sum.TotalDue += p.MonthlyFeeAmount
		sum.TotalPaid += p.AmountPaid
		if p.Balance > 0 {
			sum.Outstanding += p.Balance
		}
		sum.ByStatus[p.Status]++
	}
	sum.TotalDue = core.Round2(sum.TotalDue)
	sum.TotalPaid = core.Round2(sum.TotalPaid)
	sum.Outstanding = core.Round2(sum.Outstanding)
	return sum, nil
}

// PaymentStatus returns the term-level status of a student across all months. No rows is UNPAID.
func (svc *Service) PaymentStatus(ctx context.Context, studentID, term, academicYear string) (string, error) {
	ps, err := svc.repo.QueryPayments(ctx, &QueryFilter{StudentID: studentID, Term: term, AcademicYear: academicYear}, nil)
	if err != nil {
		return "", err
	}
	if len(ps) == 0 {
		return StatusUnpaid, nil
	}
	var paid, due float64
	for _, p := range ps {
		paid += p.AmountPaid
		due += p.MonthlyFeeAmount
	}
	return StatusOf(core.Round2(paid), core.Round2(due)), nil
}
