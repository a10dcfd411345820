package fee_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/fee"
	"github.com/trezcool/kadi/tests"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		paid, due float64
		want      string
	}{
		{paid: 0, due: 100, want: fee.StatusUnpaid},
		{paid: 50, due: 100, want: fee.StatusPartial},
		{paid: 100, due: 100, want: fee.StatusPaid},
		{paid: 120, due: 100, want: fee.StatusOverpaid},
		{paid: 0, due: 0, want: fee.StatusPaid},
		{paid: 33.33 + 33.33 + 33.34, due: 100, want: fee.StatusPaid},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fee.StatusOf(tt.paid, tt.due), "StatusOf(%v, %v)", tt.paid, tt.due)
	}
}

func TestRecordPayment(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()
	std := testutil.CreateStudent(t, app.Roster, "S-001", "Form 1", "A")

	np := fee.NewPayment{
		StudentID:        std.ID,
		Term:             "Term 1",
		Month:            " jan ",
		AcademicYear:     "2025",
		AmountPaid:       50,
		MonthlyFeeAmount: 100,
	}
	p1, err := app.Fees.RecordPayment(ctx, np)
	require.NoError(t, err)
	assert.Equal(t, "January", p1.Month)
	assert.Equal(t, 50.0, p1.Balance)
	assert.Equal(t, fee.StatusPartial, p1.Status)

	p2, err := app.Fees.RecordPayment(ctx, np)
	require.NoError(t, err)
	assert.Equal(t, p1.ID, p2.ID)
	assert.Equal(t, 100.0, p2.AmountPaid)
	assert.Equal(t, 0.0, p2.Balance)
	assert.Equal(t, fee.StatusPaid, p2.Status)

	np.AmountPaid = 10
	p3, err := app.Fees.RecordPayment(ctx, np)
	require.NoError(t, err)
	assert.Equal(t, -10.0, p3.Balance)
	assert.Equal(t, fee.StatusOverpaid, p3.Status)

	// latest monthly fee wins
	np.AmountPaid = 0
	np.MonthlyFeeAmount = 150
	p4, err := app.Fees.RecordPayment(ctx, np)
	require.NoError(t, err)
	assert.Equal(t, 40.0, p4.Balance)
	assert.Equal(t, fee.StatusPartial, p4.Status)

	ps, err := app.Fees.Query(ctx, &fee.QueryFilter{StudentID: std.ID}, nil)
	require.NoError(t, err)
	assert.Len(t, ps, 1)
	assert.Equal(t, 4, app.Metrics.Payments[fee.StatusPaid]+app.Metrics.Payments[fee.StatusPartial]+app.Metrics.Payments[fee.StatusOverpaid])
}

func TestRecordPayment_Invalid(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()
	std := testutil.CreateStudent(t, app.Roster, "S-001", "Form 1", "A")
	valid := func() fee.NewPayment {
		return fee.NewPayment{StudentID: std.ID, Term: "Term 1", Month: "March", AcademicYear: "2025", AmountPaid: 1, MonthlyFeeAmount: 1}
	}

	tests := []struct {
		name   string
		mutate func(np *fee.NewPayment)
		check  func(err error) bool
	}{
		{name: "bad month", mutate: func(np *fee.NewPayment) { np.Month = "Smarch" }, check: core.IsValidation},
		{name: "negative amount", mutate: func(np *fee.NewPayment) { np.AmountPaid = -5 }, check: core.IsValidation},
		{name: "NaN fee", mutate: func(np *fee.NewPayment) { np.MonthlyFeeAmount = math.NaN() }, check: core.IsValidation},
		{name: "no term", mutate: func(np *fee.NewPayment) { np.Term = "" }, check: core.IsValidation},
		{name: "unknown student", mutate: func(np *fee.NewPayment) { np.StudentID = "nope" }, check: core.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			np := valid()
			tt.mutate(&np)
			_, err := app.Fees.RecordPayment(ctx, np)
			assert.True(t, tt.check(err), "RecordPayment() error = %v", err)
		})
	}
}

func TestRecordPayment_Concurrent(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()
	std := testutil.CreateStudent(t, app.Roster, "S-001", "Form 1", "A")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := app.Fees.RecordPayment(ctx, fee.NewPayment{
				StudentID: std.ID, Term: "Term 1", Month: "May", AcademicYear: "2025",
				AmountPaid: 10, MonthlyFeeAmount: 100,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ps, err := app.Fees.Query(ctx, &fee.QueryFilter{StudentID: std.ID}, nil)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, 100.0, ps[0].AmountPaid)
	assert.Equal(t, fee.StatusPaid, ps[0].Status)
}

func TestPaymentStatusAndSummary(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()
	s1 := testutil.CreateStudent(t, app.Roster, "S-001", "Form 1", "A")
	s2 := testutil.CreateStudent(t, app.Roster, "S-002", "Form 2", "B")

	status, err := app.Fees.PaymentStatus(ctx, s1.ID, "Term 1", "2025")
	require.NoError(t, err)
	assert.Equal(t, fee.StatusUnpaid, status)

	jan := time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC)
	record := func(studentID, month string, paid float64, date time.Time) {
		_, err := app.Fees.RecordPayment(ctx, fee.NewPayment{
			StudentID: studentID, Term: "Term 1", Month: month, AcademicYear: "2025",
			AmountPaid: paid, MonthlyFeeAmount: 100, PaymentDate: date,
		})
		require.NoError(t, err)
	}
	record(s1.ID, "January", 100, jan)
	record(s1.ID, "February", 0, feb)
	record(s2.ID, "January", 100, jan)

	status, err = app.Fees.PaymentStatus(ctx, s1.ID, "Term 1", "2025")
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPartial, status)
	status, err = app.Fees.PaymentStatus(ctx, s2.ID, "Term 1", "2025")
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPaid, status)

	febStart := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		filter *fee.QueryFilter
		want   fee.Summary
	}{
		{
			name:   "all",
			filter: &fee.QueryFilter{},
			want: fee.Summary{Count: 3, TotalDue: 300, TotalPaid: 200, Outstanding: 100, ByStatus: map[string]int{
				fee.StatusPaid: 2, fee.StatusUnpaid: 1, fee.StatusPartial: 0, fee.StatusOverpaid: 0,
			}},
		},
		{
			name:   "by class",
			filter: &fee.QueryFilter{Form: "Form 1", Section: "A"},
			want: fee.Summary{Count: 2, TotalDue: 200, TotalPaid: 100, Outstanding: 100, ByStatus: map[string]int{
				fee.StatusPaid: 1, fee.StatusUnpaid: 1, fee.StatusPartial: 0, fee.StatusOverpaid: 0,
			}},
		},
		{
			name:   "by date range",
			filter: &fee.QueryFilter{To: &febStart},
			want: fee.Summary{Count: 2, TotalDue: 200, TotalPaid: 200, ByStatus: map[string]int{
				fee.StatusPaid: 2, fee.StatusUnpaid: 0, fee.StatusPartial: 0, fee.StatusOverpaid: 0,
			}},
		},
		{
			name:   "by status",
			filter: &fee.QueryFilter{Status: "unpaid", Term: "Term 1", AcademicYear: "2025"},
			want: fee.Summary{Count: 1, TotalDue: 100, Outstanding: 100, ByStatus: map[string]int{
				fee.StatusPaid: 0, fee.StatusUnpaid: 1, fee.StatusPartial: 0, fee.StatusOverpaid: 0,
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := app.Fees.Summarize(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
