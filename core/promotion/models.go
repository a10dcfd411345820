package promotion

import (
	"time"

	"github.com/trezcool/kadi/core"
)

// Promotion records one student moving to a new form, section, level and academic year.
type Promotion struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	FromForm    string    `json:"from_form"`
	FromSection string    `json:"from_section"`
	FromLevel   string    `json:"from_level"`
	FromYear    string    `json:"from_academic_year"`
	ToForm      string    `json:"to_form"`
	ToSection   string    `json:"to_section"`
	ToLevel     string    `json:"to_level"`
	ToYear      string    `json:"to_academic_year"`
	PromotedAt  time.Time `json:"promoted_at"`
}

// Request promotes StudentIDs into the target class and enrolls them in SubjectIDs.
type Request struct {
	StudentIDs   []string `json:"student_ids" validate:"required,min=1,dive,notblank"`
	SubjectIDs   []string `json:"subject_ids" validate:"required,min=1,dive,notblank"`
	Form         string   `json:"form" validate:"notblank"`
	Section      string   `json:"section" validate:"notblank"`
	Level        string   `json:"level" validate:"level"`
	AcademicYear string   `json:"academic_year" validate:"notblank"`
}

func (r *Request) Clean() {
	r.StudentIDs = cleanIDs(r.StudentIDs)
	r.SubjectIDs = cleanIDs(r.SubjectIDs)
	r.Form = core.CleanString(r.Form)
	r.Section = core.CleanString(r.Section)
	r.Level = core.NormalizeLevel(r.Level)
	r.AcademicYear = core.CleanString(r.AcademicYear)
}

// cleanIDs trims and dedupes ids, keeping their order.
func cleanIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = core.CleanString(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

type Result struct {
	Promoted int         `json:"promoted"`
	Enrolled int         `json:"enrolled"`
	Skipped  int         `json:"skipped"` // enrollments that already existed
	History  []Promotion `json:"history"`
}
