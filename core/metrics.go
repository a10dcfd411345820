package core

// Metrics records domain events.
type Metrics interface {
	AssessmentRecorded(kind string)
	ReportFinalized(term, academicYear string)
	PaymentRecorded(status string)
	StudentsPromoted(n int)
}

// NopMetrics discards everything.
type NopMetrics struct{}

var _ Metrics = NopMetrics{}

func (NopMetrics) AssessmentRecorded(string)      {}
func (NopMetrics) ReportFinalized(string, string) {}
func (NopMetrics) PaymentRecorded(string)         {}
func (NopMetrics) StudentsPromoted(int)           {}
