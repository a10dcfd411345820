package assessment

import (
	"time"

	"github.com/trezcool/kadi/core"
)

// Assessment is one scored event recorded against an enrollment link.
type Assessment struct {
	ID           string    `json:"id"`
	EnrollmentID string    `json:"enrollment_id"`
	Title        string    `json:"title"`
	Date         time.Time `json:"date"`
	Score        float64   `json:"score"`
	MaxScore     float64   `json:"max_score"`
	Kind         string    `json:"kind"`
	Term         string    `json:"term"`
	AcademicYear string    `json:"academic_year"`
	CreatedAt    time.Time `json:"created_at"`
}

// Percentage returns score/max_score*100, or 0 when max_score is not positive.
// Scores above max_score are not clamped.
func (a Assessment) Percentage() float64 {
	if a.MaxScore <= 0 {
		return 0
	}
	return a.Score / a.MaxScore * 100
}

// NewAssessment contains information needed to record an Assessment.
type NewAssessment struct {
	EnrollmentID string    `json:"enrollment_id" validate:"notblank"`
	Title        string    `json:"title" validate:"notblank"`
	Date         time.Time `json:"date"`
	Score        float64   `json:"score" validate:"finite,gte=0"`
	MaxScore     float64   `json:"max_score" validate:"finite,gt=0"`
	Kind         string    `json:"kind" validate:"notblank"`
	Term         string    `json:"term" validate:"notblank"`
	AcademicYear string    `json:"academic_year" validate:"notblank"`
}

func (na *NewAssessment) Clean() {
	na.EnrollmentID = core.CleanString(na.EnrollmentID)
	na.Title = core.CleanString(na.Title)
	na.Kind = core.CleanString(na.Kind, true /* lower */)
	na.Term = core.CleanString(na.Term)
	na.AcademicYear = core.CleanString(na.AcademicYear)
}

type QueryFilter struct {
	EnrollmentID  string   `query:"enrollment_id"`
	EnrollmentIDs []string `query:"-"`
	Term          string   `query:"term"`
	AcademicYear  string   `query:"academic_year"`
	Kind          string   `query:"kind"`
}

func (qf *QueryFilter) Clean() {
	qf.EnrollmentID = core.CleanString(qf.EnrollmentID)
	qf.Term = core.CleanString(qf.Term)
	qf.AcademicYear = core.CleanString(qf.AcademicYear)
	qf.Kind = core.CleanString(qf.Kind, true /* lower */)
}
