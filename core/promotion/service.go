package promotion

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
	Repository interface {
		CreatePromotion(ctx context.Context, p Promotion) (Promotion, error)
		QueryPromotions(ctx context.Context, studentID string) ([]Promotion, error)
	}

	RosterWriter interface {
		GetStudent(ctx context.Context, id string) (roster.Student, error)
		UpdateStudent(ctx context.Context, std roster.Student) (roster.Student, error)
		GetSubject(ctx context.Context, id string) (roster.Subject, error)
		FindEnrollment(ctx context.Context, studentID, subjectID string) (roster.Enrollment, error)
		CreateEnrollment(ctx context.Context, enr roster.Enrollment) (roster.Enrollment, error)
		MoveEnrollment(ctx context.Context, id, academicYear string) (roster.Enrollment, error)
	}

	Service struct {
		tx         core.TxManager
		repo       Repository
		roster     RosterWriter
		validate   *validator.Validate
		translator ut.Translator
		logger     core.Logger
		metrics    core.Metrics
	}
)

func NewService(
	tx core.TxManager,
	repo Repository,
	rosterRepo RosterWriter,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
	metrics core.Metrics,
) *Service {
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return &Service{
		tx:         tx,
		repo:       repo,
		roster:     rosterRepo,
		validate:   validate,
		translator: translator,
		logger:     logger,
		metrics:    metrics,
	}
}

// Promote moves every student of req into the target class and enrolls them in the target subjects.
// The batch is all-or-nothing: any failure rolls back every student. Existing enrollments are skipped.
func (svc *Service) Promote(ctx context.Context, req Request) (Result, error) {
	req.Clean()
	if err := core.ValidateStruct(svc.validate, svc.translator, req); err != nil {
		return Result{}, err
	}

	var res Result
	err := svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		res = Result{}
		for _, subID := range req.SubjectIDs {
			if _, err := svc.roster.GetSubject(ctx, subID); err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		for _, stdID := range req.StudentIDs {
			p, enrolled, skipped, err := svc.promote(ctx, stdID, req, now)
			if err != nil {
				return errors.Wrapf(err, "promoting student %s", stdID)
			}
			res.Promoted++
			res.Enrolled += enrolled
			res.Skipped += skipped
			res.History = append(res.History, p)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	svc.metrics.StudentsPromoted(res.Promoted)
	svc.logger.Info("students promoted", map[string]interface{}{
		"promoted":      res.Promoted,
		"enrolled":      res.Enrolled,
		"skipped":       res.Skipped,
		"form":          req.Form,
		"section":       req.Section,
		"academic_year": req.AcademicYear,
	})
	return res, nil
}

func (svc *Service) promote(ctx context.Context, stdID string, req Request, now time.Time) (Promotion, int, int, error) {
	std, err := svc.roster.GetStudent(ctx, stdID)
	if err != nil {
		return Promotion{}, 0, 0, err
	}
	p := Promotion{
		StudentID:   std.ID,
		FromForm:    std.Form,
		FromSection: std.Section,
		FromLevel:   std.Level,
		FromYear:    std.AcademicYear,
		ToForm:      req.Form,
		ToSection:   req.Section,
		ToLevel:     req.Level,
		ToYear:      req.AcademicYear,
		PromotedAt:  now,
	}

	std.Form = req.Form
	std.Section = req.Section
	std.Level = req.Level
	std.AcademicYear = req.AcademicYear
	std.UpdatedAt = now
	if _, err = svc.roster.UpdateStudent(ctx, std); err != nil {
		return Promotion{}, 0, 0, err
	}

	var enrolled, skipped int
	for _, subID := range req.SubjectIDs {
		enr, err := svc.roster.FindEnrollment(ctx, std.ID, subID)
		switch {
		case err == nil:
			// carried over: the link moves into the target year
			if enr.AcademicYear != req.AcademicYear {
				if _, err = svc.roster.MoveEnrollment(ctx, enr.ID, req.AcademicYear); err != nil {
					return Promotion{}, 0, 0, err
				}
			}
			skipped++
			continue
		case !core.IsNotFound(err):
			return Promotion{}, 0, 0, err
		}
		if _, err = svc.roster.CreateEnrollment(ctx, roster.Enrollment{
			StudentID:    std.ID,
			SubjectID:    subID,
			AcademicYear: req.AcademicYear,
			CreatedAt:    now,
		}); err != nil {
			return Promotion{}, 0, 0, err
		}
		enrolled++
	}

	if p, err = svc.repo.CreatePromotion(ctx, p); err != nil {
		return Promotion{}, 0, 0, err
	}
	return p, enrolled, skipped, nil
}

// History lists the promotions of a student, oldest first.
func (svc *Service) History(ctx context.Context, studentID string) ([]Promotion, error) {
	if _, err := svc.roster.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	return svc.repo.QueryPromotions(ctx, studentID)
}
