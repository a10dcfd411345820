package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/report"
)

type (
	reportRow struct {
		ID                    string      `db:"id"`
		StudentID             string      `db:"student_id"`
		Term                  string      `db:"term"`
		AcademicYear          string      `db:"academic_year"`
		Form                  string      `db:"form"`
		Section               string      `db:"section"`
		DaysPresent           int         `db:"days_present"`
		TotalDays             int         `db:"total_days"`
		ClassTeacherComment   null.String `db:"class_teacher_comment"`
		PrincipalComment      null.String `db:"principal_comment"`
		PrincipalSignatureRef null.String `db:"principal_signature_ref"`
		PaymentStatus         null.String `db:"payment_status"`
		Finalized             bool        `db:"finalized"`
		FinalizedAt           null.Time   `db:"finalized_at"`
		CreatedAt             time.Time   `db:"created_at"`
		UpdatedAt             time.Time   `db:"updated_at"`
	}

	subjectReportRow struct {
		ID             string       `db:"id"`
		ReportID       string       `db:"report_id"`
		SubjectID      string       `db:"subject_id"`
		Coursework     null.Float64 `db:"coursework"`
		Exam           null.Float64 `db:"exam"`
		Total          float64      `db:"total"`
		Grade          null.String  `db:"grade"`
		TeacherComment null.String  `db:"teacher_comment"`
		SignatureRef   null.String  `db:"signature_ref"`
		UpdatedAt      time.Time    `db:"updated_at"`
	}
)

const (
	resourceReport = "report"

	reportColumns = "id, student_id, term, academic_year, form, section, days_present, total_days, " +
		"class_teacher_comment, principal_comment, principal_signature_ref, payment_status, finalized, finalized_at, created_at, updated_at"
	subjectReportColumns = "id, report_id, subject_id, coursework, exam, total, grade, teacher_comment, signature_ref, updated_at"
)

var reportOrdering = map[string]string{
	"term":          "r.term",
	"academic_year": "r.academic_year",
	"form":          "r.form",
	"section":       "r.section",
	"created_at":    "r.created_at",
	"updated_at":    "r.updated_at",
}

func boilReport(rep report.Report) reportRow {
	var finalizedAt null.Time
	if rep.FinalizedAt != nil {
		finalizedAt = null.TimeFrom(rep.FinalizedAt.UTC())
	}
	return reportRow{
		ID:                    rep.ID,
		StudentID:             rep.StudentID,
		Term:                  rep.Term,
		AcademicYear:          rep.AcademicYear,
		Form:                  rep.Form,
		Section:               rep.Section,
		DaysPresent:           rep.DaysPresent,
		TotalDays:             rep.TotalDays,
		ClassTeacherComment:   null.NewString(rep.ClassTeacherComment, rep.ClassTeacherComment != ""),
		PrincipalComment:      null.NewString(rep.PrincipalComment, rep.PrincipalComment != ""),
		PrincipalSignatureRef: null.NewString(rep.PrincipalSignatureRef, rep.PrincipalSignatureRef != ""),
		PaymentStatus:         null.NewString(rep.PaymentStatus, rep.PaymentStatus != ""),
		Finalized:             rep.Finalized,
		FinalizedAt:           finalizedAt,
		CreatedAt:             rep.CreatedAt.UTC(),
		UpdatedAt:             rep.UpdatedAt.UTC(),
	}
}

func (r reportRow) unboil() report.Report {
	rep := report.Report{
		ID:                    r.ID,
		StudentID:             r.StudentID,
		Term:                  r.Term,
		AcademicYear:          r.AcademicYear,
		Form:                  r.Form,
		Section:               r.Section,
		DaysPresent:           r.DaysPresent,
		TotalDays:             r.TotalDays,
		ClassTeacherComment:   r.ClassTeacherComment.String,
		PrincipalComment:      r.PrincipalComment.String,
		PrincipalSignatureRef: r.PrincipalSignatureRef.String,
		PaymentStatus:         r.PaymentStatus.String,
		Finalized:             r.Finalized,
		CreatedAt:             r.CreatedAt.UTC(),
		UpdatedAt:             r.UpdatedAt.UTC(),
	}
	if r.FinalizedAt.Valid {
		at := r.FinalizedAt.Time.UTC()
		rep.FinalizedAt = &at
	}
	return rep
}

func boilSubjectReport(sr report.SubjectReport) subjectReportRow {
	return subjectReportRow{
		ID:             sr.ID,
		ReportID:       sr.ReportID,
		SubjectID:      sr.SubjectID,
		Coursework:     null.Float64FromPtr(sr.Coursework),
		Exam:           null.Float64FromPtr(sr.Exam),
		Total:          sr.Total,
		Grade:          null.NewString(sr.Grade, sr.Grade != ""),
		TeacherComment: null.NewString(sr.TeacherComment, sr.TeacherComment != ""),
		SignatureRef:   null.NewString(sr.SignatureRef, sr.SignatureRef != ""),
		UpdatedAt:      sr.UpdatedAt.UTC(),
	}
}

func (r subjectReportRow) unboil() report.SubjectReport {
	return report.SubjectReport{
		ID:             r.ID,
		ReportID:       r.ReportID,
		SubjectID:      r.SubjectID,
		Coursework:     r.Coursework.Ptr(),
		Exam:           r.Exam.Ptr(),
		Total:          r.Total,
		Grade:          r.Grade.String,
		TeacherComment: r.TeacherComment.String,
		SignatureRef:   r.SignatureRef.String,
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

type reportRepository struct {
	db *sqlx.DB
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db *sqlx.DB) *reportRepository {
	return &reportRepository{db: db}
}

// GetOrCreateReport inserts rep unless a report with its key exists, in which case the stored one is returned.
func (repo *reportRepository) GetOrCreateReport(ctx context.Context, rep report.Report) (report.Report, bool, error) {
	key := report.Key{StudentID: rep.StudentID, Term: rep.Term, AcademicYear: rep.AcademicYear}
	if err := validID("student", rep.StudentID); err != nil {
		return report.Report{}, false, err
	}
	exec := getExec(ctx, repo.db)

	rep.ID = uuid.NewString()
	row := boilReport(rep)
	q := "INSERT INTO reports (" + reportColumns + ") VALUES (" +
		":id, :student_id, :term, :academic_year, :form, :section, :days_present, :total_days, " +
		":class_teacher_comment, :principal_comment, :principal_signature_ref, :payment_status, :finalized, :finalized_at, :created_at, :updated_at" +
		") ON CONFLICT (student_id, term, academic_year) DO NOTHING"
	res, err := sqlx.NamedExecContext(ctx, exec, q, row)
	if err != nil {
		return report.Report{}, false, mapErr(err, resourceReport, key.String(), "inserting report")
	}
	if n, err := res.RowsAffected(); err != nil {
		return report.Report{}, false, errors.Wrap(err, "reading rows affected")
	} else if n == 1 {
		return row.unboil(), true, nil
	}

	var existing reportRow
	q = "SELECT " + reportColumns + " FROM reports WHERE student_id = ? AND term = ? AND academic_year = ?"
	if err = getOne(ctx, exec, &existing, q, key.StudentID, key.Term, key.AcademicYear); err != nil {
		return report.Report{}, false, mapErr(err, resourceReport, key.String(), "selecting report")
	}
	return existing.unboil(), false, nil
}

func (repo *reportRepository) getReport(ctx context.Context, id, suffix string) (report.Report, error) {
	if err := validID(resourceReport, id); err != nil {
		return report.Report{}, err
	}
	var row reportRow
	if err := getOne(ctx, getExec(ctx, repo.db), &row, "SELECT "+reportColumns+" FROM reports WHERE id = ?"+suffix, id); err != nil {
		return report.Report{}, mapErr(err, resourceReport, id, "selecting report")
	}
	return row.unboil(), nil
}

func (repo *reportRepository) GetReport(ctx context.Context, id string) (report.Report, error) {
	return repo.getReport(ctx, id, "")
}

func (repo *reportRepository) LockReport(ctx context.Context, id string) (report.Report, error) {
	return repo.getReport(ctx, id, forUpdate(ctx))
}

// UpdateReport never touches the key, the form/section snapshot or the creation time.
func (repo *reportRepository) UpdateReport(ctx context.Context, rep report.Report) (report.Report, error) {
	if err := validID(resourceReport, rep.ID); err != nil {
		return report.Report{}, err
	}
	row := boilReport(rep)
	q := `UPDATE reports
		SET days_present = ?, total_days = ?, class_teacher_comment = ?, principal_comment = ?, principal_signature_ref = ?,
			payment_status = ?, finalized = ?, finalized_at = ?, updated_at = ?
		WHERE id = ?
		RETURNING ` + reportColumns
	args := []interface{}{
		row.DaysPresent, row.TotalDays, row.ClassTeacherComment, row.PrincipalComment, row.PrincipalSignatureRef,
		row.PaymentStatus, row.Finalized, row.FinalizedAt, row.UpdatedAt, row.ID,
	}
	var updated reportRow
	if err := getOne(ctx, getExec(ctx, repo.db), &updated, q, args...); err != nil {
		return report.Report{}, mapErr(err, resourceReport, rep.ID, "updating report")
	}
	return updated.unboil(), nil
}

// DeleteReport drops a report; its subject reports cascade.
func (repo *reportRepository) DeleteReport(ctx context.Context, id string) error {
	if err := validID(resourceReport, id); err != nil {
		return err
	}
	res, err := getExec(ctx, repo.db).ExecContext(ctx, "DELETE FROM reports WHERE id = $1", id)
	if err != nil {
		return mapErr(err, resourceReport, id, "deleting report")
	}
	return checkAffected(res, resourceReport, id)
}

func (repo *reportRepository) QueryReports(ctx context.Context, filter *report.QueryFilter, ordering []core.DBOrdering) ([]report.Report, error) {
	var w where
	from := "reports r"
	if filter != nil {
		if filter.StudentID != "" {
			if _, err := uuid.Parse(filter.StudentID); err != nil {
				return []report.Report{}, nil
			}
			w.add("r.student_id = ?", filter.StudentID)
		}
		if filter.ClassTeacherID != "" {
			from += " JOIN class_groups g ON g.form = r.form AND g.section = r.section AND g.academic_year = r.academic_year"
			w.add("g.supervisor_id = ?", filter.ClassTeacherID)
		}
		if filter.Finalized != nil {
			w.add("r.finalized = ?", *filter.Finalized)
		}
		if filter.Form != "" {
			w.add("r.form = ?", filter.Form)
		}
		if filter.Section != "" {
			w.add("r.section = ?", filter.Section)
		}
		if filter.Term != "" {
			w.add("r.term = ?", filter.Term)
		}
		if filter.AcademicYear != "" {
			w.add("r.academic_year = ?", filter.AcademicYear)
		}
	}

	var rows []reportRow
	q := "SELECT " + prefixColumns("r", reportColumns) + " FROM " + from + w.String() +
		orderBy(ordering, reportOrdering, "r.created_at ASC, r.id ASC")
	if err := selectAll(ctx, getExec(ctx, repo.db), &rows, q, w.args...); err != nil {
		return nil, mapErr(err, resourceReport, "", "selecting reports")
	}
	reps := make([]report.Report, 0, len(rows))
	for _, r := range rows {
		reps = append(reps, r.unboil())
	}
	return reps, nil
}

// UpsertSubjectReport replaces the (report, subject) row if one exists.
func (repo *reportRepository) UpsertSubjectReport(ctx context.Context, sr report.SubjectReport) (report.SubjectReport, error) {
	if err := validID(resourceReport, sr.ReportID); err != nil {
		return report.SubjectReport{}, err
	}
	if err := validID("subject", sr.SubjectID); err != nil {
		return report.SubjectReport{}, err
	}
	sr.ID = uuid.NewString()
	row := boilSubjectReport(sr)
	q := `INSERT INTO subject_reports (` + subjectReportColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (report_id, subject_id) DO UPDATE SET
			coursework = EXCLUDED.coursework,
			exam = EXCLUDED.exam,
			total = EXCLUDED.total,
			grade = EXCLUDED.grade,
			teacher_comment = EXCLUDED.teacher_comment,
			signature_ref = EXCLUDED.signature_ref,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + subjectReportColumns
	args := []interface{}{
		row.ID, row.ReportID, row.SubjectID, row.Coursework, row.Exam, row.Total,
		row.Grade, row.TeacherComment, row.SignatureRef, row.UpdatedAt,
	}
	var saved subjectReportRow
	if err := getOne(ctx, getExec(ctx, repo.db), &saved, q, args...); err != nil {
		return report.SubjectReport{}, mapErr(err, "subject report", sr.ReportID+"/"+sr.SubjectID, "upserting subject report")
	}
	return saved.unboil(), nil
}

func (repo *reportRepository) QuerySubjectReports(ctx context.Context, reportIDs ...string) ([]report.SubjectReport, error) {
	ids := make([]string, 0, len(reportIDs))
	for _, id := range reportIDs {
		if _, err := uuid.Parse(id); err == nil {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []report.SubjectReport{}, nil
	}

	var rows []subjectReportRow
	q := "SELECT " + subjectReportColumns + " FROM subject_reports WHERE report_id IN (?) ORDER BY report_id, updated_at ASC, id ASC"
	if err := selectAll(ctx, getExec(ctx, repo.db), &rows, q, ids); err != nil {
		return nil, mapErr(err, "subject report", "", "selecting subject reports")
	}
	srs := make([]report.SubjectReport, 0, len(rows))
	for _, r := range rows {
		srs = append(srs, r.unboil())
	}
	return srs, nil
}
