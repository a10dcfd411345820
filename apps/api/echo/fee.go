package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kadi/core/fee"
)

type feeApi struct {
	svc *fee.Service
}

func registerFeeAPI(g *echo.Group, svc *fee.Service) {
	api := feeApi{svc: svc}

	pg := g.Group("/payments")
	pg.POST("", api.record)
	pg.GET("", api.query)
	pg.GET("/summary", api.summary)
}

func (api *feeApi) record(ctx echo.Context) error {
	var data fee.NewPayment
	if err := bindBody(ctx, &data, "NewPayment"); err != nil {
		return err
	}
	p, err := api.svc.RecordPayment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func bindPaymentFilter(ctx echo.Context) (*fee.QueryFilter, error) {
	filter := new(fee.QueryFilter)
	err := echo.QueryParamsBinder(ctx).
		String("student_id", &filter.StudentID).
		String("term", &filter.Term).
		String("month", &filter.Month).
		String("academic_year", &filter.AcademicYear).
		String("status", &filter.Status).
		String("form", &filter.Form).
		String("section", &filter.Section).
		BindError()
	if err != nil {
		return nil, errors.Wrap(err, "binding to QueryFilter")
	}
	if filter.From, err = queryDate(ctx, "from"); err != nil {
		return nil, err
	}
	if filter.To, err = queryDate(ctx, "to"); err != nil {
		return nil, err
	}
	return filter, nil
}

func (api *feeApi) query(ctx echo.Context) error {
	filter, err := bindPaymentFilter(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	ps, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	return ctx.JSON(http.StatusOK, ps)
}

func (api *feeApi) summary(ctx echo.Context) error {
	filter, err := bindPaymentFilter(ctx)
	if err != nil {
		return err
	}
	sum, err := api.svc.Summarize(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "summarizing payments")
	}
	return ctx.JSON(http.StatusOK, sum)
}
