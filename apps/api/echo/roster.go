package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kadi/core/promotion"
	"github.com/trezcool/kadi/core/roster"
)

type rosterApi struct {
	svc        *roster.Service
	promotions *promotion.Service
}

func registerRosterAPI(g *echo.Group, svc *roster.Service, promotions *promotion.Service) {
	api := rosterApi{svc: svc, promotions: promotions}

	sg := g.Group("/students")
	sg.POST("", api.createStudent)
	sg.GET("", api.queryStudents)
	sg.GET("/:id", api.retrieveStudent)
	sg.PUT("/:id", api.updateStudent)
	sg.GET("/:id/promotions", api.studentPromotions)

	g.POST("/subjects", api.createSubject)
	g.GET("/subjects", api.querySubjects)

	eg := g.Group("/enrollments")
	eg.POST("", api.enroll)
	eg.GET("", api.queryEnrollments)
	eg.DELETE("/:id", api.withdraw)

	g.POST("/classes", api.createClassGroup)
	g.GET("/classes", api.queryClassGroups)
}

// Handlers

func (api *rosterApi) createStudent(ctx echo.Context) error {
	var data roster.NewStudent
	if err := bindBody(ctx, &data, "NewStudent"); err != nil {
		return err
	}
	std, err := api.svc.RegisterStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering student")
	}
	return ctx.JSON(http.StatusCreated, std)
}

func (api *rosterApi) queryStudents(ctx echo.Context) error {
	filter := new(roster.StudentFilter)
	err := echo.QueryParamsBinder(ctx).
		String("search", &filter.Search).
		String("form", &filter.Form).
		String("section", &filter.Section).
		String("level", &filter.Level).
		String("academic_year", &filter.AcademicYear).
		BindError()
	if err != nil {
		return errors.Wrap(err, "binding to StudentFilter")
	}
	if filter.IsActive, err = queryBool(ctx, "is_active"); err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	stds, err := api.svc.QueryStudents(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, stds)
}

func (api *rosterApi) retrieveStudent(ctx echo.Context) error {
	std, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *rosterApi) updateStudent(ctx echo.Context) error {
	var data roster.UpdateStudent
	if err := bindBody(ctx, &data, "UpdateStudent"); err != nil {
		return err
	}
	std, err := api.svc.UpdateStudent(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *rosterApi) studentPromotions(ctx echo.Context) error {
	hist, err := api.promotions.History(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying promotions")
	}
	return ctx.JSON(http.StatusOK, hist)
}

func (api *rosterApi) createSubject(ctx echo.Context) error {
	var data roster.NewSubject
	if err := bindBody(ctx, &data, "NewSubject"); err != nil {
		return err
	}
	sub, err := api.svc.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *rosterApi) querySubjects(ctx echo.Context) error {
	filter := new(roster.SubjectFilter)
	err := echo.QueryParamsBinder(ctx).
		String("search", &filter.Search).
		String("level", &filter.Level).
		BindError()
	if err != nil {
		return errors.Wrap(err, "binding to SubjectFilter")
	}
	subs, err := api.svc.QuerySubjects(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *rosterApi) enroll(ctx echo.Context) error {
	var data roster.NewEnrollment
	if err := bindBody(ctx, &data, "NewEnrollment"); err != nil {
		return err
	}
	enr, err := api.svc.Enroll(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *rosterApi) queryEnrollments(ctx echo.Context) error {
	var filter roster.EnrollmentFilter
	err := echo.QueryParamsBinder(ctx).
		String("student_id", &filter.StudentID).
		String("subject_id", &filter.SubjectID).
		String("academic_year", &filter.AcademicYear).
		BindError()
	if err != nil {
		return errors.Wrap(err, "binding to EnrollmentFilter")
	}
	enrs, err := api.svc.QueryEnrollments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *rosterApi) withdraw(ctx echo.Context) error {
	if err := api.svc.Withdraw(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "withdrawing enrollment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *rosterApi) createClassGroup(ctx echo.Context) error {
	var data roster.NewClassGroup
	if err := bindBody(ctx, &data, "NewClassGroup"); err != nil {
		return err
	}
	grp, err := api.svc.CreateClassGroup(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *rosterApi) queryClassGroups(ctx echo.Context) error {
	var filter roster.ClassGroupFilter
	err := echo.QueryParamsBinder(ctx).
		String("form", &filter.Form).
		String("section", &filter.Section).
		String("academic_year", &filter.AcademicYear).
		String("supervisor_id", &filter.SupervisorID).
		BindError()
	if err != nil {
		return errors.Wrap(err, "binding to ClassGroupFilter")
	}
	grps, err := api.svc.QueryClassGroups(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying class groups")
	}
	return ctx.JSON(http.StatusOK, grps)
}
