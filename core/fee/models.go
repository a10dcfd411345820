package fee

import (
	"strings"
	"time"

	"github.com/trezcool/kadi/core"
)

// Statuses
const (
	StatusPaid     = "PAID"
	StatusPartial  = "PARTIAL"
	StatusUnpaid   = "UNPAID"
	StatusOverpaid = "OVERPAID"
)

var Statuses = []string{StatusPaid, StatusPartial, StatusUnpaid, StatusOverpaid}

// Payment is the ledger row of one student for one month of a term.
// Balance and Status are derived from AmountPaid and MonthlyFeeAmount on every write.
type Payment struct {
	ID               string    `json:"id"`
	StudentID        string    `json:"student_id"`
	Term             string    `json:"term"`
	Month            string    `json:"month"`
	AcademicYear     string    `json:"academic_year"`
	AmountPaid       float64   `json:"amount_paid"`
	MonthlyFeeAmount float64   `json:"monthly_fee_amount"`
	Balance          float64   `json:"balance"`
	Status           string    `json:"payment_status"`
	PaymentDate      time.Time `json:"payment_date"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Recompute derives Balance and Status.
func (p *Payment) Recompute() {
	p.AmountPaid = core.Round2(p.AmountPaid)
	p.MonthlyFeeAmount = core.Round2(p.MonthlyFeeAmount)
	p.Balance = core.Round2(p.MonthlyFeeAmount - p.AmountPaid)
	p.Status = StatusOf(p.AmountPaid, p.MonthlyFeeAmount)
}

// StatusOf returns the status of paid against due.
func StatusOf(paid, due float64) string {
	balance := core.Round2(due - paid)
	switch {
	case balance < 0:
		return StatusOverpaid
	case balance == 0:
		return StatusPaid
	case paid == 0:
		return StatusUnpaid
	default:
		return StatusPartial
	}
}

// NewPayment contains information needed to record a payment.
type NewPayment struct {
	StudentID        string    `json:"student_id" validate:"notblank"`
	Term             string    `json:"term" validate:"notblank"`
	Month            string    `json:"month" validate:"month"`
	AcademicYear     string    `json:"academic_year" validate:"notblank"`
	AmountPaid       float64   `json:"amount_paid" validate:"finite,gte=0"`
	MonthlyFeeAmount float64   `json:"monthly_fee_amount" validate:"finite,gte=0"`
	PaymentDate      time.Time `json:"payment_date"`
}

func (np *NewPayment) Clean() {
	np.StudentID = core.CleanString(np.StudentID)
	np.Term = core.CleanString(np.Term)
	np.Month = core.NormalizeMonth(np.Month)
	np.AcademicYear = core.CleanString(np.AcademicYear)
}

// Key identifies a Payment.
type Key struct {
	StudentID    string
	Term         string
	Month        string
	AcademicYear string
}

func (k Key) String() string {
	return k.StudentID + "/" + k.Term + "/" + k.Month + "/" + k.AcademicYear
}

type QueryFilter struct {
	StudentID    string     `query:"student_id"`
	Term         string     `query:"term"`
	Month        string     `query:"month"`
	AcademicYear string     `query:"academic_year"`
	Status       string     `query:"status"`
	Form         string     `query:"form"`    // student's current form
	Section      string     `query:"section"` // student's current section
	From         *time.Time `query:"-"`       // payment date, inclusive
	To           *time.Time `query:"-"`       // payment date, exclusive
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.Term = core.CleanString(qf.Term)
	if qf.Month != "" {
		qf.Month = core.NormalizeMonth(qf.Month)
	}
	qf.AcademicYear = core.CleanString(qf.AcademicYear)
	qf.Status = strings.ToUpper(core.CleanString(qf.Status))
	qf.Form = core.CleanString(qf.Form)
	qf.Section = core.CleanString(qf.Section)
}

type Summary struct {
	Count       int            `json:"count"`
	TotalDue    float64        `json:"total_due"`
	TotalPaid   float64        `json:"total_paid"`
	Outstanding float64        `json:"outstanding"` // sum of positive balances
	ByStatus    map[string]int `json:"by_status"`
}
