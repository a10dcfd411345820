package inmemdb

import (
	"context"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/report"
)

type reportRepository struct {
	db *DB
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db *DB) *reportRepository {
	return &reportRepository{db: db}
}

var reportFields = map[string]lessFunc[report.Report]{
	"term":          func(a, b report.Report) int { return cmpString(a.Term, b.Term) },
	"academic_year": func(a, b report.Report) int { return cmpString(a.AcademicYear, b.AcademicYear) },
	"form":          func(a, b report.Report) int { return cmpString(a.Form, b.Form) },
	"section":       func(a, b report.Report) int { return cmpString(a.Section, b.Section) },
	"created_at":    func(a, b report.Report) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"updated_at":    func(a, b report.Report) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
}

func (repo *reportRepository) GetOrCreateReport(ctx context.Context, rep report.Report) (report.Report, bool, error) {
	var created bool
	err := repo.db.write(ctx, func() error {
		for _, r := range repo.db.reports {
			if r.StudentID == rep.StudentID && r.Term == rep.Term && r.AcademicYear == rep.AcademicYear {
				rep = r
				return nil
			}
		}
		if _, ok := repo.db.students[rep.StudentID]; !ok {
			return core.NewNotFoundError("student", rep.StudentID)
		}
		rep.ID = repo.db.newID()
		rep.Subjects = nil
		repo.db.reports[rep.ID] = rep
		created = true
		return nil
	})
	if err != nil {
		return report.Report{}, false, err
	}
	return rep, created, nil
}

func (repo *reportRepository) GetReport(_ context.Context, id string) (rep report.Report, err error) {
	err = repo.db.read(func() error {
		var ok bool
		if rep, ok = repo.db.reports[id]; !ok {
			return core.NewNotFoundError("report", id)
		}
		return nil
	})
	return rep, err
}

// LockReport is GetReport: transactions already hold the store exclusively.
func (repo *reportRepository) LockReport(ctx context.Context, id string) (report.Report, error) {
	return repo.GetReport(ctx, id)
}

func (repo *reportRepository) UpdateReport(ctx context.Context, rep report.Report) (report.Report, error) {
	err := repo.db.write(ctx, func() error {
		orig, ok := repo.db.reports[rep.ID]
		if !ok {
			return core.NewNotFoundError("report", rep.ID)
		}
		// key and snapshot are immutable
		rep.StudentID = orig.StudentID
		rep.Term = orig.Term
		rep.AcademicYear = orig.AcademicYear
		rep.Form = orig.Form
		rep.Section = orig.Section
		rep.CreatedAt = orig.CreatedAt
		rep.Subjects = nil
		repo.db.reports[rep.ID] = rep
		return nil
	})
	if err != nil {
		return report.Report{}, err
	}
	return rep, nil
}

func (repo *reportRepository) DeleteReport(ctx context.Context, id string) error {
	return repo.db.write(ctx, func() error {
		if _, ok := repo.db.reports[id]; !ok {
			return core.NewNotFoundError("report", id)
		}
		for srID, sr := range repo.db.subjectReports {
			if sr.ReportID == id {
				delete(repo.db.subjectReports, srID)
				delete(repo.db.order, srID)
			}
		}
		delete(repo.db.reports, id)
		delete(repo.db.order, id)
		return nil
	})
}

func (repo *reportRepository) QueryReports(_ context.Context, filter *report.QueryFilter, ordering []core.DBOrdering) ([]report.Report, error) {
	var reps []report.Report
	err := repo.db.read(func() error {
		reps = make([]report.Report, 0)
		for _, r := range repo.db.reports {
			if filter != nil && !repo.match(r, filter) {
				continue
			}
			reps = append(reps, r)
		}
		sortRows(repo.db, reps, func(r report.Report) string { return r.ID }, reportFields, ordering)
		return nil
	})
	return reps, err
}

// match: caller holds mu.
func (repo *reportRepository) match(r report.Report, filter *report.QueryFilter) bool {
	if (filter.StudentID != "" && r.StudentID != filter.StudentID) ||
		(filter.Finalized != nil && r.Finalized != *filter.Finalized) ||
		(filter.Form != "" && r.Form != filter.Form) ||
		(filter.Section != "" && r.Section != filter.Section) ||
		(filter.Term != "" && r.Term != filter.Term) ||
		(filter.AcademicYear != "" && r.AcademicYear != filter.AcademicYear) {
		return false
	}
	if filter.ClassTeacherID != "" {
		for _, g := range repo.db.classGroups {
			if g.SupervisorID == filter.ClassTeacherID &&
				g.Form == r.Form && g.Section == r.Section && g.AcademicYear == r.AcademicYear {
				return true
			}
		}
		return false
	}
	return true
}

func (repo *reportRepository) UpsertSubjectReport(ctx context.Context, sr report.SubjectReport) (report.SubjectReport, error) {
	err := repo.db.write(ctx, func() error {
		if _, ok := repo.db.reports[sr.ReportID]; !ok {
			return core.NewNotFoundError("report", sr.ReportID)
		}
		if _, ok := repo.db.subjects[sr.SubjectID]; !ok {
			return core.NewNotFoundError("subject", sr.SubjectID)
		}
		for id, existing := range repo.db.subjectReports {
			if existing.ReportID == sr.ReportID && existing.SubjectID == sr.SubjectID {
				sr.ID = id
				repo.db.subjectReports[id] = sr
				return nil
			}
		}
		sr.ID = repo.db.newID()
		repo.db.subjectReports[sr.ID] = sr
		return nil
	})
	if err != nil {
		return report.SubjectReport{}, err
	}
	return sr, nil
}

func (repo *reportRepository) QuerySubjectReports(_ context.Context, reportIDs ...string) ([]report.SubjectReport, error) {
	var srs []report.SubjectReport
	err := repo.db.read(func() error {
		ids := make(map[string]bool, len(reportIDs))
		for _, id := range reportIDs {
			ids[id] = true
		}
		srs = make([]report.SubjectReport, 0)
		for _, sr := range repo.db.subjectReports {
			if ids[sr.ReportID] {
				srs = append(srs, sr)
			}
		}
		sortRows(repo.db, srs, func(sr report.SubjectReport) string { return sr.ID }, nil, nil)
		return nil
	})
	return srs, err
}
