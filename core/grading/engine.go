// Package grading reduces the assessments of one enrollment link into a subject outcome.
//
// Assessments are partitioned by kind into a coursework and an exam bucket using a closed
// kind taxonomy. Each bucket is reduced to a percentage by a pluggable Reducer and scaled to
// the bucket's weight. The total is coursework + exam when both are present, otherwise
// whichever is present (optionally rescaled to 100), and the letter comes from an injected GradeScale.
package grading

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/assessment"
)

// Buckets
const (
	BucketCoursework = "coursework"
	BucketExam       = "exam"
)

var (
	ErrNoAssessments = errors.New("no assessments to aggregate")
	ErrUnknownKind   = errors.New("unknown assessment kind")
)

type (
	Bucket struct {
		// Weight is the mark a 100% bucket contributes to the total.
		Weight  float64
		Reducer Reducer
	}

	Engine struct {
		kinds      map[string]string // kind -> bucket
		coursework Bucket
		exam       Bucket
		scale      GradeScale
		// rescaleLone reports a lone bucket on 100 instead of its weight.
		rescaleLone bool
	}

	// Filter selects which assessments of an enrollment are aggregated.
	Filter struct {
		Term         string
		AcademicYear string
		Kind         string // optional
	}

	// Outcome is a SubjectReport draft. Coursework and Exam are nil when their bucket is empty.
	Outcome struct {
		ByKind     map[string][]assessment.Assessment `json:"-"`
		Coursework *float64                           `json:"coursework"`
		Exam       *float64                           `json:"exam"`
		Total      float64                            `json:"total"`
		Grade      string                             `json:"grade"`
	}
)

func NewEngine(kinds map[string]string, coursework, exam Bucket, scale GradeScale) (*Engine, error) {
	if len(kinds) == 0 {
		return nil, errors.New("grading: empty kind taxonomy")
	}
	for k, b := range kinds {
		if b != BucketCoursework && b != BucketExam {
			return nil, fmt.Errorf("grading: kind %q has unknown bucket %q", k, b)
		}
	}
	if coursework.Reducer == nil || exam.Reducer == nil {
		return nil, errors.New("grading: missing reducer")
	}
	if coursework.Weight <= 0 || exam.Weight <= 0 {
		return nil, errors.New("grading: bucket weights must be positive")
	}
	if err := scale.Validate(); err != nil {
		return nil, err
	}
	return &Engine{kinds: kinds, coursework: coursework, exam: exam, scale: scale}, nil
}

// NewEngineFromConfig builds an Engine from the grading configuration.
func NewEngineFromConfig(conf core.GradingConfig) (*Engine, error) {
	cwReducer, err := ReducerByName(conf.CourseworkReducer)
	if err != nil {
		return nil, err
	}
	exReducer, err := ReducerByName(conf.ExamReducer)
	if err != nil {
		return nil, err
	}
	scale, err := ParseScale(conf.Scale)
	if err != nil {
		return nil, err
	}
	eng, err := NewEngine(
		conf.Kinds,
		Bucket{Weight: conf.CourseworkWeight, Reducer: cwReducer},
		Bucket{Weight: conf.ExamWeight, Reducer: exReducer},
		scale,
	)
	if err != nil {
		return nil, err
	}
	eng.rescaleLone = conf.RescaleLoneBucket
	return eng, nil
}

func (e *Engine) Scale() GradeScale { return e.scale }

// BucketOf returns the bucket of kind.
func (e *Engine) BucketOf(kind string) (string, bool) {
	b, ok := e.kinds[kind]
	return b, ok
}

// Partition groups assessments matching filter by kind.
func (e *Engine) Partition(as []assessment.Assessment, filter Filter) (map[string][]assessment.Assessment, error) {
	byKind := make(map[string][]assessment.Assessment)
	for _, a := range as {
		if (filter.Term != "" && a.Term != filter.Term) ||
			(filter.AcademicYear != "" && a.AcademicYear != filter.AcademicYear) ||
			(filter.Kind != "" && a.Kind != filter.Kind) {
			continue
		}
		if _, ok := e.kinds[a.Kind]; !ok {
			return nil, errors.Wrapf(ErrUnknownKind, "assessment %s has kind %q", a.ID, a.Kind)
		}
		byKind[a.Kind] = append(byKind[a.Kind], a)
	}
	return byKind, nil
}

// Aggregate reduces the assessments of one enrollment link into an Outcome.
func (e *Engine) Aggregate(as []assessment.Assessment, filter Filter) (Outcome, error) {
	byKind, err := e.Partition(as, filter)
	if err != nil {
		return Outcome{}, err
	}
	if len(byKind) == 0 {
		return Outcome{}, ErrNoAssessments
	}

	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	var cw, ex []assessment.Assessment
	for _, k := range kinds {
		if e.kinds[k] == BucketExam {
			ex = append(ex, byKind[k]...)
		} else {
			cw = append(cw, byKind[k]...)
		}
	}

	out := Outcome{ByKind: byKind}
	if len(cw) > 0 {
		m := core.Round2(e.coursework.Reducer.Reduce(cw) * e.coursework.Weight / 100)
		out.Coursework = &m
	}
	if len(ex) > 0 {
		m := core.Round2(e.exam.Reducer.Reduce(ex) * e.exam.Weight / 100)
		out.Exam = &m
	}
	out.Total, out.Grade = e.Combine(out.Coursework, out.Exam)
	return out, nil
}

// Combine computes the total and letter of a coursework and exam mark pair.
// A nil mark is absent; when both are absent the total is 0 and the grade is empty.
// A lone mark counts at its bucket weight unless the engine rescales lone buckets to 100.
func (e *Engine) Combine(coursework, exam *float64) (float64, string) {
	if coursework == nil && exam == nil {
		return 0, ""
	}
	if e.rescaleLone && (coursework == nil || exam == nil) {
		mark, weight := exam, e.exam.Weight
		if exam == nil {
			mark, weight = coursework, e.coursework.Weight
		}
		total := core.Round2(*mark * 100 / weight)
		return total, e.scale.Letter(total)
	}
	var total float64
	if coursework != nil {
		total += *coursework
	}
	if exam != nil {
		total += *exam
	}
	total = core.Round2(total)
	return total, e.scale.Letter(total)
}
