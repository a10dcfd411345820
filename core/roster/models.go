package roster

import (
	"time"

	"github.com/trezcool/kadi/core"
)

type Student struct {
	ID             string    `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	StudentCode    string    `json:"student_code"`
	Form           string    `json:"form"`
	Section        string    `json:"section"`
	Level          string    `json:"level"`
	AcademicYear   string    `json:"academic_year"`
	EnrollmentDate time.Time `json:"enrollment_date"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

type Subject struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Category    string    `json:"category"`
	Level       string    `json:"level"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Enrollment links a Student to a Subject. A (student, subject) pair exists at most once.
type Enrollment struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	SubjectID    string    `json:"subject_id"`
	AcademicYear string    `json:"academic_year"`
	CreatedAt    time.Time `json:"created_at"`
}

// ClassGroup is a physical class: (form, section, academic year) with a supervising teacher.
type ClassGroup struct {
	ID           string    `json:"id"`
	Form         string    `json:"form"`
	Section      string    `json:"section"`
	AcademicYear string    `json:"academic_year"`
	Level        string    `json:"level"`
	Capacity     int       `json:"capacity"`
	SupervisorID string    `json:"supervisor_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewStudent contains information needed to register a new Student.
type NewStudent struct {
	FirstName      string    `json:"first_name" validate:"notblank"`
	LastName       string    `json:"last_name" validate:"notblank"`
	StudentCode    string    `json:"student_code" validate:"notblank,max=50"`
	Form           string    `json:"form" validate:"notblank"`
	Section        string    `json:"section" validate:"notblank"`
	Level          string    `json:"level" validate:"level"`
	AcademicYear   string    `json:"academic_year" validate:"notblank"`
	EnrollmentDate time.Time `json:"enrollment_date"`
}

func (ns *NewStudent) Clean() {
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.StudentCode = core.CleanString(ns.StudentCode)
	ns.Form = core.CleanString(ns.Form)
	ns.Section = core.CleanString(ns.Section)
	ns.Level = core.NormalizeLevel(ns.Level)
	ns.AcademicYear = core.CleanString(ns.AcademicYear)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Form, section, level and academic year only change through promotion.
type UpdateStudent struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsActive  *bool  `json:"is_active"`
}

type NewSubject struct {
	Name        string `json:"name" validate:"notblank"`
	Code        string `json:"code" validate:"notblank,max=50"`
	Category    string `json:"category"`
	Level       string `json:"level" validate:"level"`
	Description string `json:"description"`
}

func (ns *NewSubject) Clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = core.CleanString(ns.Code)
	ns.Category = core.CleanString(ns.Category)
	ns.Level = core.NormalizeLevel(ns.Level)
	ns.Description = core.CleanString(ns.Description)
}

type NewEnrollment struct {
	StudentID    string `json:"student_id" validate:"notblank"`
	SubjectID    string `json:"subject_id" validate:"notblank"`
	AcademicYear string `json:"academic_year"`
}

type NewClassGroup struct {
	Form         string `json:"form" validate:"notblank"`
	Section      string `json:"section" validate:"notblank"`
	AcademicYear string `json:"academic_year" validate:"notblank"`
	Level        string `json:"level" validate:"level"`
	Capacity     int    `json:"capacity" validate:"gte=0"`
	SupervisorID string `json:"supervisor_id"`
}

func (ng *NewClassGroup) Clean() {
	ng.Form = core.CleanString(ng.Form)
	ng.Section = core.CleanString(ng.Section)
	ng.AcademicYear = core.CleanString(ng.AcademicYear)
	ng.Level = core.NormalizeLevel(ng.Level)
	ng.SupervisorID = core.CleanString(ng.SupervisorID)
}

type StudentFilter struct {
	Search       string `query:"search"`
	Form         string `query:"form"`
	Section      string `query:"section"`
	Level        string `query:"level"`
	AcademicYear string `query:"academic_year"`
	IsActive     *bool  `query:"is_active"`
}

func (sf *StudentFilter) Clean() {
	sf.Search = core.CleanString(sf.Search)
	sf.Form = core.CleanString(sf.Form)
	sf.Section = core.CleanString(sf.Section)
	if sf.Level != "" {
		sf.Level = core.NormalizeLevel(sf.Level)
	}
	sf.AcademicYear = core.CleanString(sf.AcademicYear)
}

type SubjectFilter struct {
	Search string `query:"search"`
	Level  string `query:"level"`
}

type EnrollmentFilter struct {
	StudentID    string `query:"student_id"`
	SubjectID    string `query:"subject_id"`
	AcademicYear string `query:"academic_year"`
}

type ClassGroupFilter struct {
	Form         string `query:"form"`
	Section      string `query:"section"`
	AcademicYear string `query:"academic_year"`
	SupervisorID string `query:"supervisor_id"`
}
