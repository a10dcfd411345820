package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/fee"
)

type paymentRow struct {
	ID               string    `db:"id"`
	StudentID        string    `db:"student_id"`
	Term             string    `db:"term"`
	Month            string    `db:"month"`
	AcademicYear     string    `db:"academic_year"`
	AmountPaid       float64   `db:"amount_paid"`
	MonthlyFeeAmount float64   `db:"monthly_fee_amount"`
	Balance          float64   `db:"balance"`
	Status           string    `db:"payment_status"`
	PaymentDate      time.Time `db:"payment_date"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

const paymentColumns = "id, student_id, term, month, academic_year, amount_paid, monthly_fee_amount, balance, payment_status, payment_date, created_at, updated_at"

var paymentOrdering = map[string]string{
	"payment_date": "p.payment_date",
	"amount_paid":  "p.amount_paid",
	"balance":      "p.balance",
	"month":        "p.month",
	"created_at":   "p.created_at",
}

func boilPayment(p fee.Payment) paymentRow {
	return paymentRow{
		ID:               p.ID,
		StudentID:        p.StudentID,
		Term:             p.Term,
		Month:            p.Month,
		AcademicYear:     p.AcademicYear,
		AmountPaid:       p.AmountPaid,
		MonthlyFeeAmount: p.MonthlyFeeAmount,
		Balance:          p.Balance,
		Status:           p.Status,
		PaymentDate:      p.PaymentDate.UTC(),
		CreatedAt:        p.CreatedAt.UTC(),
		UpdatedAt:        p.UpdatedAt.UTC(),
	}
}

func (r paymentRow) unboil() fee.Payment {
	return fee.Payment{
		ID:               r.ID,
		StudentID:        r.StudentID,
		Term:             r.Term,
		Month:            r.Month,
		AcademicYear:     r.AcademicYear,
		AmountPaid:       r.AmountPaid,
		MonthlyFeeAmount: r.MonthlyFeeAmount,
		Balance:          r.Balance,
		Status:           r.Status,
		PaymentDate:      r.PaymentDate.UTC(),
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

type feeRepository struct {
	db *sqlx.DB
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *sqlx.DB) *feeRepository {
	return &feeRepository{db: db}
}

func (repo *feeRepository) GetPaymentByKey(ctx context.Context, key fee.Key) (fee.Payment, error) {
	if validID("student", key.StudentID) != nil {
		return fee.Payment{}, core.NewNotFoundError("payment", key.String())
	}
	var row paymentRow
	q := "SELECT " + paymentColumns + " FROM fee_payments WHERE student_id = ? AND term = ? AND month = ? AND academic_year = ?" + forUpdate(ctx)
	if err := getOne(ctx, getExec(ctx, repo.db), &row, q, key.StudentID, key.Term, key.Month, key.AcademicYear); err != nil {
		return fee.Payment{}, mapErr(err, "payment", key.String(), "selecting payment")
	}
	return row.unboil(), nil
}

func (repo *feeRepository) GetPayment(ctx context.Context, id string) (fee.Payment, error) {
	if err := validID("payment", id); err != nil {
		return fee.Payment{}, err
	}
	var row paymentRow
	if err := getOne(ctx, getExec(ctx, repo.db), &row, "SELECT "+paymentColumns+" FROM fee_payments WHERE id = ?", id); err != nil {
		return fee.Payment{}, mapErr(err, "payment", id, "selecting payment")
	}
	return row.unboil(), nil
}

func (repo *feeRepository) CreatePayment(ctx context.Context, p fee.Payment) (fee.Payment, error) {
	if err := validID("student", p.StudentID); err != nil {
		return fee.Payment{}, err
	}
	p.ID = uuid.NewString()
	row := boilPayment(p)
	key := fee.Key{StudentID: p.StudentID, Term: p.Term, Month: p.Month, AcademicYear: p.AcademicYear}
	q := "INSERT INTO fee_payments (" + paymentColumns + ") VALUES (" +
		":id, :student_id, :term, :month, :academic_year, :amount_paid, :monthly_fee_amount, :balance, :payment_status, :payment_date, :created_at, :updated_at)"
	if _, err := sqlx.NamedExecContext(ctx, getExec(ctx, repo.db), q, row); err != nil {
		return fee.Payment{}, mapErr(err, "payment", key.String(), "inserting payment")
	}
	return row.unboil(), nil
}

// UpdatePayment never touches the key or the creation time.
func (repo *feeRepository) UpdatePayment(ctx context.Context, p fee.Payment) (fee.Payment, error) {
	if err := validID("payment", p.ID); err != nil {
		return fee.Payment{}, err
	}
	q := `UPDATE fee_payments
		SET amount_paid = ?, monthly_fee_amount = ?, balance = ?, payment_status = ?, payment_date = ?, updated_at = ?
		WHERE id = ?
		RETURNING ` + paymentColumns
	args := []interface{}{p.AmountPaid, p.MonthlyFeeAmount, p.Balance, p.Status, p.PaymentDate.UTC(), p.UpdatedAt.UTC(), p.ID}
	var row paymentRow
	if err := getOne(ctx, getExec(ctx, repo.db), &row, q, args...); err != nil {
		return fee.Payment{}, mapErr(err, "payment", p.ID, "updating payment")
	}
	return row.unboil(), nil
}

func (repo *feeRepository) QueryPayments(ctx context.Context, filter *fee.QueryFilter, ordering []core.DBOrdering) ([]fee.Payment, error) {
	var w where
	from := "fee_payments p"
	if filter != nil {
		if filter.StudentID != "" {
			if _, err := uuid.Parse(filter.StudentID); err != nil {
				return []fee.Payment{}, nil
			}
			w.add("p.student_id = ?", filter.StudentID)
		}
		if filter.Term != "" {
			w.add("p.term = ?", filter.Term)
		}
		if filter.Month != "" {
			w.add("p.month = ?", filter.Month)
		}
		if filter.AcademicYear != "" {
			w.add("p.academic_year = ?", filter.AcademicYear)
		}
		if filter.Status != "" {
			w.add("p.payment_status = ?", filter.Status)
		}
		if filter.From != nil {
			w.add("p.payment_date >= ?", filter.From.UTC())
		}
		if filter.To != nil {
			w.add("p.payment_date < ?", filter.To.UTC())
		}
		if filter.Form != "" || filter.Section != "" {
			from += " JOIN students s ON s.id = p.student_id"
			if filter.Form != "" {
				w.add("s.form = ?", filter.Form)
			}
			if filter.Section != "" {
				w.add("s.section = ?", filter.Section)
			}
		}
	}

	var rows []paymentRow
	q := "SELECT " + prefixColumns("p", paymentColumns) + " FROM " + from + w.String() +
		orderBy(ordering, paymentOrdering, "p.created_at ASC, p.id ASC")
	if err := selectAll(ctx, getExec(ctx, repo.db), &rows, q, w.args...); err != nil {
		return nil, mapErr(err, "payment", "", "selecting payments")
	}
	ps := make([]fee.Payment, 0, len(rows))
	for _, r := range rows {
		ps = append(ps, r.unboil())
	}
	return ps, nil
}
