package report

import (
	"time"

	"github.com/trezcool/kadi/core"
)

// States
const (
	StateDraft     = "DRAFT"
	StateFinalized = "FINALIZED"
)

// Report is the per-student, per-term, per-academic-year aggregate.
// At most one Report exists per (student, term, academic year).
// Once Finalized, neither the Report nor its SubjectReports change.
type Report struct {
	ID                    string          `json:"id"`
	StudentID             string          `json:"student_id"`
	Term                  string          `json:"term"`
	AcademicYear          string          `json:"academic_year"`
	Form                  string          `json:"form"`    // snapshot at creation
	Section               string          `json:"section"` // snapshot at creation
	DaysPresent           int             `json:"days_present"`
	TotalDays             int             `json:"total_days"`
	ClassTeacherComment   string          `json:"class_teacher_comment"`
	PrincipalComment      string          `json:"principal_comment"`
	PrincipalSignatureRef string          `json:"principal_signature_ref"`
	PaymentStatus         string          `json:"payment_status"`
	Finalized             bool            `json:"finalized"`
	FinalizedAt           *time.Time      `json:"finalized_at"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	Subjects              []SubjectReport `json:"subjects"`
}

func (r Report) State() string {
	if r.Finalized {
		return StateFinalized
	}
	return StateDraft
}

// SubjectReport is the outcome of one subject within a Report. Unique per (report, subject).
type SubjectReport struct {
	ID             string    `json:"id"`
	ReportID       string    `json:"report_id"`
	SubjectID      string    `json:"subject_id"`
	Coursework     *float64  `json:"coursework"`
	Exam           *float64  `json:"exam"`
	Total          float64   `json:"total"`
	Grade          string    `json:"grade"`
	TeacherComment string    `json:"teacher_comment"`
	SignatureRef   string    `json:"signature_ref"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Key identifies a Report.
type Key struct {
	StudentID    string `json:"student_id" validate:"notblank"`
	Term         string `json:"term" validate:"notblank"`
	AcademicYear string `json:"academic_year" validate:"notblank"`
}

func (k *Key) Clean() {
	k.StudentID = core.CleanString(k.StudentID)
	k.Term = core.CleanString(k.Term)
	k.AcademicYear = core.CleanString(k.AcademicYear)
}

func (k Key) String() string {
	return k.StudentID + "/" + k.Term + "/" + k.AcademicYear
}

type Marks struct {
	Coursework *float64 `json:"coursework" validate:"omitempty,finite,gte=0"`
	Exam       *float64 `json:"exam" validate:"omitempty,finite,gte=0"`
}

// SubjectReportInput holds what a teacher enters for one subject.
type SubjectReportInput struct {
	Marks
	TeacherComment string `json:"teacher_comment"`
	SignatureRef   string `json:"signature_ref"`
}

type Attendance struct {
	DaysPresent int `json:"days_present" validate:"gte=0"`
	TotalDays   int `json:"total_days" validate:"gte=0,gtefield=DaysPresent"`
}

type Comments struct {
	ClassTeacher          string `json:"class_teacher_comment"`
	Principal             string `json:"principal_comment"`
	PrincipalSignatureRef string `json:"principal_signature_ref"`
}

type QueryFilter struct {
	StudentID      string `query:"student_id"`
	ClassTeacherID string `query:"class_teacher_id"`
	Finalized      *bool  `query:"finalized"`
	Form           string `query:"form"`
	Section        string `query:"section"`
	Term           string `query:"term"`
	AcademicYear   string `query:"academic_year"`
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.ClassTeacherID = core.CleanString(qf.ClassTeacherID)
	qf.Form = core.CleanString(qf.Form)
	qf.Section = core.CleanString(qf.Section)
	qf.Term = core.CleanString(qf.Term)
	qf.AcademicYear = core.CleanString(qf.AcademicYear)
}
