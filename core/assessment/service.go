package assessment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/roster"
)

type (
	Repository interface {
		CreateAssessment(ctx context.Context, a Assessment) (Assessment, error)
		GetAssessment(ctx context.Context, id string) (Assessment, error)
		QueryAssessments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Assessment, error)
		DeleteAssessment(ctx context.Context, id string) error
	}

	EnrollmentGetter interface {
		GetEnrollment(ctx context.Context, id string) (roster.Enrollment, error)
	}

	Options struct {
		// Kinds is the closed taxonomy of accepted assessment kinds.
		Kinds map[string]string
		// StrictScores rejects scores above max_score.
		StrictScores bool
	}

	Service struct {
		repo        Repository
		enrollments EnrollmentGetter
		opts        Options
		validate    *validator.Validate
		translator  ut.Translator
		metrics     core.Metrics
	}
)

func NewService(
	repo Repository,
	enrollments EnrollmentGetter,
	opts Options,
	validate *validator.Validate,
	translator ut.Translator,
	metrics core.Metrics,
) *Service {
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return &Service{
		repo:        repo,
		enrollments: enrollments,
		opts:        opts,
		validate:    validate,
		translator:  translator,
		metrics:     metrics,
	}
}

func (svc *Service) validateKind(kind string) error {
	if _, ok := svc.opts.Kinds[kind]; ok {
		return nil
	}
	known := make([]string, 0, len(svc.opts.Kinds))
	for k := range svc.opts.Kinds {
		known = append(known, k)
	}
	sort.Strings(known)
	return core.NewFieldError("kind", fmt.Sprintf("must be one of: %s", strings.Join(known, ", ")))
}

// Record stores a new Assessment against an existing enrollment link.
func (svc *Service) Record(ctx context.Context, na NewAssessment) (Assessment, error) {
	na.Clean()
	if err := core.ValidateStruct(svc.validate, svc.translator, na); err != nil {
		return Assessment{}, err
	}
	if err := svc.validateKind(na.Kind); err != nil {
		return Assessment{}, err
	}
	if svc.opts.StrictScores && na.Score > na.MaxScore {
		return Assessment{}, core.NewFieldError("score", "cannot be greater than max_score")
	}
	if _, err := svc.enrollments.GetEnrollment(ctx, na.EnrollmentID); err != nil {
		return Assessment{}, err
	}

	now := time.Now().UTC()
	date := na.Date
	if date.IsZero() {
		date = now
	}
	a, err := svc.repo.CreateAssessment(ctx, Assessment{
		EnrollmentID: na.EnrollmentID,
		Title:        na.Title,
		Date:         date.UTC(),
		Score:        na.Score,
		MaxScore:     na.MaxScore,
		Kind:         na.Kind,
		Term:         na.Term,
		AcademicYear: na.AcademicYear,
		CreatedAt:    now,
	})
	if err != nil {
		return Assessment{}, errors.Wrap(err, "creating assessment")
	}
	svc.metrics.AssessmentRecorded(a.Kind)
	return a, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Assessment, error) {
	return svc.repo.GetAssessment(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Assessment, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryAssessments(ctx, filter, ordering)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteAssessment(ctx, id)
}
