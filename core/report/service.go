package report

import (
	"context"
	"sort"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/assessment"
	"github.com/trezcool/kadi/core/grading"
	"github.com/trezcool/kadi/core/roster"
)

const resource = "report"

// preloadLimit bounds concurrent assessment loads in BuildReport.
const preloadLimit = 4

type (
	// Repository persists reports. GetOrCreateReport must be atomic on (student, term, academic year).
	Repository interface {
		GetOrCreateReport(ctx context.Context, rep Report) (Report, bool, error)
		GetReport(ctx context.Context, id string) (Report, error)
		// LockReport reads a report and, inside a transaction, locks its row until commit.
		LockReport(ctx context.Context, id string) (Report, error)
		UpdateReport(ctx context.Context, rep Report) (Report, error)
		DeleteReport(ctx context.Context, id string) error
		QueryReports(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Report, error)

		UpsertSubjectReport(ctx context.Context, sr SubjectReport) (SubjectReport, error)
		QuerySubjectReports(ctx context.Context, reportIDs ...string) ([]SubjectReport, error)
	}

	RosterReader interface {
		GetStudent(ctx context.Context, id string) (roster.Student, error)
		GetSubject(ctx context.Context, id string) (roster.Subject, error)
		FindEnrollment(ctx context.Context, studentID, subjectID string) (roster.Enrollment, error)
		QueryEnrollments(ctx context.Context, filter roster.EnrollmentFilter) ([]roster.Enrollment, error)
	}

	AssessmentQuerier interface {
		QueryAssessments(ctx context.Context, filter *assessment.QueryFilter, ordering []core.DBOrdering) ([]assessment.Assessment, error)
	}

	// FeeStatusProvider reports a student's payment status for a term.
	FeeStatusProvider interface {
		PaymentStatus(ctx context.Context, studentID, term, academicYear string) (string, error)
	}

	Options struct {
		// RequireComplete refuses to finalize a report missing an enrolled subject.
		RequireComplete bool
	}

	Service struct {
		tx          core.TxManager
		repo        Repository
		roster      RosterReader
		assessments AssessmentQuerier
		fees        FeeStatusProvider
		engine      *grading.Engine
		opts        Options
		validate    *validator.Validate
		translator  ut.Translator
		logger      core.Logger
		metrics     core.Metrics
		locks       *keyedMutex
	}
)

func NewService(
	tx core.TxManager,
	repo Repository,
	rosterRepo RosterReader,
	assessments AssessmentQuerier,
	fees FeeStatusProvider,
	engine *grading.Engine,
	opts Options,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
	metrics core.Metrics,
) *Service {
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return &Service{
		tx:          tx,
		repo:        repo,
		roster:      rosterRepo,
		assessments: assessments,
		fees:        fees,
		engine:      engine,
		opts:        opts,
		validate:    validate,
		translator:  translator,
		logger:      logger,
		metrics:     metrics,
		locks:       newKeyedMutex(),
	}
}

func (svc *Service) paymentStatus(ctx context.Context, studentID, term, year string) (string, error) {
	if svc.fees == nil {
		return "", nil
	}
	status, err := svc.fees.PaymentStatus(ctx, studentID, term, year)
	if err != nil {
		return "", errors.Wrap(err, "reading payment status")
	}
	return status, nil
}

// mutate applies fn to a draft report under the report's lock and inside a transaction.
// The finalized guard is checked on the locked row; fn never runs on a finalized report.
func (svc *Service) mutate(ctx context.Context, id string, fn func(ctx context.Context, rep *Report) error) (Report, error) {
	unlock := svc.locks.Lock(id)
	defer unlock()

	var out Report
	err := svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		rep, err := svc.repo.LockReport(ctx, id)
		if err != nil {
			return err
		}
		if rep.Finalized {
			return core.NewConflictError(resource, id, "report is finalized")
		}
		if err = fn(ctx, &rep); err != nil {
			return err
		}
		if rep.PaymentStatus, err = svc.paymentStatus(ctx, rep.StudentID, rep.Term, rep.AcademicYear); err != nil {
			return err
		}
		rep.UpdatedAt = time.Now().UTC()
		out, err = svc.repo.UpdateReport(ctx, rep)
		return err
	})
	if err != nil {
		return Report{}, err
	}
	return out, nil
}

// EnsureReport returns the report of key, creating a draft if none exists.
// A new report snapshots the student's form and section.
func (svc *Service) EnsureReport(ctx context.Context, key Key) (Report, error) {
	key.Clean()
	if err := core.ValidateStruct(svc.validate, svc.translator, key); err != nil {
		return Report{}, err
	}
	std, err := svc.roster.GetStudent(ctx, key.StudentID)
	if err != nil {
		return Report{}, err
	}
	status, err := svc.paymentStatus(ctx, key.StudentID, key.Term, key.AcademicYear)
	if err != nil {
		return Report{}, err
	}

	now := time.Now().UTC()
	rep, created, err := svc.repo.GetOrCreateReport(ctx, Report{
		StudentID:     key.StudentID,
		Term:          key.Term,
		AcademicYear:  key.AcademicYear,
		Form:          std.Form,
		Section:       std.Section,
		PaymentStatus: status,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return Report{}, errors.Wrap(err, "creating report")
	}
	if created {
		svc.logger.Debug("report created", map[string]interface{}{"report": rep.ID, "key": key.String()}, std)
	} else if !rep.Finalized && rep.PaymentStatus != status {
		_, err = svc.mutate(ctx, rep.ID, func(context.Context, *Report) error { return nil })
		if err != nil && !core.IsConflict(err) { // finalized concurrently
			return Report{}, err
		}
	}
	return svc.Get(ctx, rep.ID)
}

// UpsertSubjectReport writes the marks of one subject into a draft report.
// The subject must be one the student is enrolled in and at least one mark is required.
// Total and grade are recomputed from the marks.
func (svc *Service) UpsertSubjectReport(ctx context.Context, reportID, subjectID string, in SubjectReportInput) (SubjectReport, error) {
	if err := core.ValidateStruct(svc.validate, svc.translator, in); err != nil {
		return SubjectReport{}, err
	}
	if in.Coursework == nil && in.Exam == nil {
		return SubjectReport{}, core.NewFieldError("marks", "coursework or exam is required")
	}
	in.TeacherComment = core.CleanString(in.TeacherComment)
	in.SignatureRef = core.CleanString(in.SignatureRef)

	var out SubjectReport
	_, err := svc.mutate(ctx, reportID, func(ctx context.Context, rep *Report) error {
		if err := svc.checkEnrolled(ctx, rep.StudentID, subjectID); err != nil {
			return err
		}
		total, grade := svc.engine.Combine(in.Coursework, in.Exam)
		var err error
		out, err = svc.repo.UpsertSubjectReport(ctx, SubjectReport{
			ReportID:       rep.ID,
			SubjectID:      subjectID,
			Coursework:     roundPtr(in.Coursework),
			Exam:           roundPtr(in.Exam),
			Total:          total,
			Grade:          grade,
			TeacherComment: in.TeacherComment,
			SignatureRef:   in.SignatureRef,
			UpdatedAt:      time.Now().UTC(),
		})
		return err
	})
	if err != nil {
		return SubjectReport{}, err
	}
	return out, nil
}

func (svc *Service) checkEnrolled(ctx context.Context, studentID, subjectID string) error {
	if _, err := svc.roster.GetSubject(ctx, subjectID); err != nil {
		return err
	}
	if _, err := svc.roster.FindEnrollment(ctx, studentID, subjectID); err != nil {
		return err
	}
	return nil
}

// BuildSubjectReport aggregates the subject's assessments for the report's term into its SubjectReport.
// Teacher comment and signature of an existing SubjectReport are kept.
func (svc *Service) BuildSubjectReport(ctx context.Context, reportID, subjectID string) (SubjectReport, error) {
	rep, err := svc.repo.GetReport(ctx, reportID)
	if err != nil {
		return SubjectReport{}, err
	}
	if rep.Finalized {
		return SubjectReport{}, core.NewConflictError(resource, reportID, "report is finalized")
	}
	if _, err = svc.roster.GetSubject(ctx, subjectID); err != nil {
		return SubjectReport{}, err
	}
	enr, err := svc.roster.FindEnrollment(ctx, rep.StudentID, subjectID)
	if err != nil {
		return SubjectReport{}, err
	}
	outcome, err := svc.aggregate(ctx, rep, enr.ID)
	if err != nil {
		if errors.Is(err, grading.ErrNoAssessments) {
			return SubjectReport{}, core.NewFieldError("subject_id", "no assessments recorded for this term")
		}
		return SubjectReport{}, err
	}

	var out SubjectReport
	_, err = svc.mutate(ctx, reportID, func(ctx context.Context, rep *Report) error {
		existing, err := svc.subjectReports(ctx, rep.ID)
		if err != nil {
			return err
		}
		out, err = svc.repo.UpsertSubjectReport(ctx, fromOutcome(rep.ID, subjectID, outcome, existing[subjectID]))
		return err
	})
	if err != nil {
		return SubjectReport{}, err
	}
	return out, nil
}

func (svc *Service) aggregate(ctx context.Context, rep Report, enrollmentID string) (grading.Outcome, error) {
	as, err := svc.assessments.QueryAssessments(ctx, &assessment.QueryFilter{
		EnrollmentID: enrollmentID,
		Term:         rep.Term,
		AcademicYear: rep.AcademicYear,
	}, nil)
	if err != nil {
		return grading.Outcome{}, errors.Wrap(err, "loading assessments")
	}
	return svc.engine.Aggregate(as, grading.Filter{Term: rep.Term, AcademicYear: rep.AcademicYear})
}

// BuildReport ensures the report of key exists and rebuilds a SubjectReport for every subject
// enrolled in the report's academic year with assessments in the term. Subjects without assessments are left untouched.
func (svc *Service) BuildReport(ctx context.Context, key Key) (Report, error) {
	rep, err := svc.EnsureReport(ctx, key)
	if err != nil {
		return Report{}, err
	}
	if rep.Finalized {
		return Report{}, core.NewConflictError(resource, rep.ID, "report is finalized")
	}
	enrollments, err := svc.roster.QueryEnrollments(ctx, roster.EnrollmentFilter{StudentID: rep.StudentID, AcademicYear: rep.AcademicYear})
	if err != nil {
		return Report{}, errors.Wrap(err, "loading enrollments")
	}

	outcomes := make([]*grading.Outcome, len(enrollments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(preloadLimit)
	for i, enr := range enrollments {
		i, enr := i, enr
		g.Go(func() error {
			outcome, err := svc.aggregate(gctx, rep, enr.ID)
			switch {
			case errors.Is(err, grading.ErrNoAssessments):
				return nil
			case err != nil:
				return errors.Wrapf(err, "aggregating subject %s", enr.SubjectID)
			}
			outcomes[i] = &outcome
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return Report{}, err
	}

	_, err = svc.mutate(ctx, rep.ID, func(ctx context.Context, rep *Report) error {
		existing, err := svc.subjectReports(ctx, rep.ID)
		if err != nil {
			return err
		}
		for i, outcome := range outcomes {
			if outcome == nil {
				continue
			}
			subjectID := enrollments[i].SubjectID
			if _, err = svc.repo.UpsertSubjectReport(ctx, fromOutcome(rep.ID, subjectID, *outcome, existing[subjectID])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	return svc.Get(ctx, rep.ID)
}

func (svc *Service) SetAttendance(ctx context.Context, id string, att Attendance) (Report, error) {
	if err := core.ValidateStruct(svc.validate, svc.translator, att); err != nil {
		return Report{}, err
	}
	if _, err := svc.mutate(ctx, id, func(_ context.Context, rep *Report) error {
		rep.DaysPresent = att.DaysPresent
		rep.TotalDays = att.TotalDays
		return nil
	}); err != nil {
		return Report{}, err
	}
	return svc.Get(ctx, id)
}

func (svc *Service) SetComments(ctx context.Context, id string, cmts Comments) (Report, error) {
	if _, err := svc.mutate(ctx, id, func(_ context.Context, rep *Report) error {
		rep.ClassTeacherComment = core.CleanString(cmts.ClassTeacher)
		rep.PrincipalComment = core.CleanString(cmts.Principal)
		rep.PrincipalSignatureRef = core.CleanString(cmts.PrincipalSignatureRef)
		return nil
	}); err != nil {
		return Report{}, err
	}
	return svc.Get(ctx, id)
}

// Finalize moves a draft report to FINALIZED. Finalizing a finalized report returns it unchanged.
// With RequireComplete, every subject the student is enrolled in needs a SubjectReport.
func (svc *Service) Finalize(ctx context.Context, id string) (Report, error) {
	unlock := svc.locks.Lock(id)
	defer unlock()

	var (
		out          Report
		transitioned bool
	)
	err := svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		rep, err := svc.repo.LockReport(ctx, id)
		if err != nil {
			return err
		}
		if rep.Finalized {
			out = rep
			return nil
		}
		if svc.opts.RequireComplete {
			if err = svc.checkComplete(ctx, rep); err != nil {
				return err
			}
		}
		if rep.PaymentStatus, err = svc.paymentStatus(ctx, rep.StudentID, rep.Term, rep.AcademicYear); err != nil {
			return err
		}
		now := time.Now().UTC()
		rep.Finalized = true
		rep.FinalizedAt = &now
		rep.UpdatedAt = now
		if out, err = svc.repo.UpdateReport(ctx, rep); err != nil {
			return err
		}
		transitioned = true
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	if transitioned {
		svc.metrics.ReportFinalized(out.Term, out.AcademicYear)
		args := []interface{}{map[string]interface{}{
			"report":        out.ID,
			"student":       out.StudentID,
			"term":          out.Term,
			"academic_year": out.AcademicYear,
		}}
		if std, err := svc.roster.GetStudent(ctx, out.StudentID); err == nil {
			args = append(args, std)
		}
		svc.logger.Info("report finalized", args...)
	}
	return svc.Get(ctx, out.ID)
}

func (svc *Service) checkComplete(ctx context.Context, rep Report) error {
	enrollments, err := svc.roster.QueryEnrollments(ctx, roster.EnrollmentFilter{StudentID: rep.StudentID, AcademicYear: rep.AcademicYear})
	if err != nil {
		return errors.Wrap(err, "loading enrollments")
	}
	existing, err := svc.subjectReports(ctx, rep.ID)
	if err != nil {
		return err
	}
	var missing []string
	for _, enr := range enrollments {
		if _, ok := existing[enr.SubjectID]; !ok {
			missing = append(missing, enr.SubjectID)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return core.NewIncompleteError(resource, rep.ID, missing)
	}
	return nil
}

func (svc *Service) subjectReports(ctx context.Context, reportID string) (map[string]SubjectReport, error) {
	srs, err := svc.repo.QuerySubjectReports(ctx, reportID)
	if err != nil {
		return nil, errors.Wrap(err, "loading subject reports")
	}
	bySubject := make(map[string]SubjectReport, len(srs))
	for _, sr := range srs {
		bySubject[sr.SubjectID] = sr
	}
	return bySubject, nil
}

// Get returns a report with its SubjectReports.
func (svc *Service) Get(ctx context.Context, id string) (Report, error) {
	rep, err := svc.repo.GetReport(ctx, id)
	if err != nil {
		return Report{}, err
	}
	if rep.Subjects, err = svc.repo.QuerySubjectReports(ctx, id); err != nil {
		return Report{}, errors.Wrap(err, "loading subject reports")
	}
	if rep.Subjects == nil {
		rep.Subjects = []SubjectReport{}
	}
	return rep, nil
}

// Query lists reports matching filter. SubjectReports of all matches are loaded in one batch.
func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Report, error) {
	if filter != nil {
		filter.Clean()
	}
	reps, err := svc.repo.QueryReports(ctx, filter, ordering)
	if err != nil {
		return nil, err
	}
	if len(reps) == 0 {
		return reps, nil
	}

	ids := make([]string, len(reps))
	for i, rep := range reps {
		ids[i] = rep.ID
	}
	srs, err := svc.repo.QuerySubjectReports(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "loading subject reports")
	}
	byReport := make(map[string][]SubjectReport, len(reps))
	for _, sr := range srs {
		byReport[sr.ReportID] = append(byReport[sr.ReportID], sr)
	}
	for i := range reps {
		reps[i].Subjects = byReport[reps[i].ID]
		if reps[i].Subjects == nil {
			reps[i].Subjects = []SubjectReport{}
		}
	}
	return reps, nil
}

// Delete removes a draft report and its SubjectReports.
func (svc *Service) Delete(ctx context.Context, id string) error {
	unlock := svc.locks.Lock(id)
	defer unlock()

	return svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		rep, err := svc.repo.LockReport(ctx, id)
		if err != nil {
			return err
		}
		if rep.Finalized {
			return core.NewConflictError(resource, id, "report is finalized")
		}
		return svc.repo.DeleteReport(ctx, id)
	})
}

func fromOutcome(reportID, subjectID string, outcome grading.Outcome, prev SubjectReport) SubjectReport {
	return SubjectReport{
		ReportID:       reportID,
		SubjectID:      subjectID,
		Coursework:     outcome.Coursework,
		Exam:           outcome.Exam,
		Total:          outcome.Total,
		Grade:          outcome.Grade,
		TeacherComment: prev.TeacherComment,
		SignatureRef:   prev.SignatureRef,
		UpdatedAt:      time.Now().UTC(),
	}
}

func roundPtr(f *float64) *float64 {
	if f == nil {
		return nil
	}
	r := core.Round2(*f)
	return &r
}
