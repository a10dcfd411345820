package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kadi/core/report"
)

type reportApi struct {
	svc *report.Service
}

func registerReportAPI(g *echo.Group, svc *report.Service) {
	api := reportApi{svc: svc}

	rg := g.Group("/reports")
	rg.POST("", api.ensure)
	rg.GET("", api.query)
	rg.POST("/build", api.build)

	// detail endpoints
	dg := rg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy)
	dg.PUT("/subjects/:subject_id", api.upsertSubject)
	dg.POST("/subjects/:subject_id/build", api.buildSubject)
	dg.PUT("/attendance", api.setAttendance)
	dg.PUT("/comments", api.setComments)
	dg.POST("/finalize", api.finalize)
}

// Handlers

func (api *reportApi) ensure(ctx echo.Context) error {
	var data report.Key
	if err := bindBody(ctx, &data, "Key"); err != nil {
		return err
	}
	rep, err := api.svc.EnsureReport(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "ensuring report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportApi) build(ctx echo.Context) error {
	var data report.Key
	if err := bindBody(ctx, &data, "Key"); err != nil {
		return err
	}
	rep, err := api.svc.BuildReport(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "building report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportApi) query(ctx echo.Context) error {
	filter := new(report.QueryFilter)
	err := echo.QueryParamsBinder(ctx).
		String("student_id", &filter.StudentID).
		String("class_teacher_id", &filter.ClassTeacherID).
		String("form", &filter.Form).
		String("section", &filter.Section).
		String("term", &filter.Term).
		String("academic_year", &filter.AcademicYear).
		BindError()
	if err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	if filter.Finalized, err = queryBool(ctx, "finalized"); err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	reps, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying reports")
	}
	return ctx.JSON(http.StatusOK, reps)
}

func (api *reportApi) retrieve(ctx echo.Context) error {
	rep, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting report")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *reportApi) upsertSubject(ctx echo.Context) error {
	var data report.SubjectReportInput
	if err := bindBody(ctx, &data, "SubjectReportInput"); err != nil {
		return err
	}
	sr, err := api.svc.UpsertSubjectReport(ctx.Request().Context(), ctx.Param("id"), ctx.Param("subject_id"), data)
	if err != nil {
		return errors.Wrap(err, "upserting subject report")
	}
	return ctx.JSON(http.StatusOK, sr)
}

func (api *reportApi) buildSubject(ctx echo.Context) error {
	sr, err := api.svc.BuildSubjectReport(ctx.Request().Context(), ctx.Param("id"), ctx.Param("subject_id"))
	if err != nil {
		return errors.Wrap(err, "building subject report")
	}
	return ctx.JSON(http.StatusOK, sr)
}

func (api *reportApi) setAttendance(ctx echo.Context) error {
	var data report.Attendance
	if err := bindBody(ctx, &data, "Attendance"); err != nil {
		return err
	}
	rep, err := api.svc.SetAttendance(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "setting attendance")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportApi) setComments(ctx echo.Context) error {
	var data report.Comments
	if err := bindBody(ctx, &data, "Comments"); err != nil {
		return err
	}
	rep, err := api.svc.SetComments(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "setting comments")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportApi) finalize(ctx echo.Context) error {
	rep, err := api.svc.Finalize(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finalizing report")
	}
	return ctx.JSON(http.StatusOK, rep)
}
