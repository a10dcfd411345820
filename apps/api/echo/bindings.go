package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kadi/core"
)

const (
	orderingParam = "ordering"
	dateLayout    = "2006-01-02"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	ord.Orderings = core.ParseOrdering(ctx.QueryParam(orderingParam))
}

// bindBody decodes the request body into dest. Malformed payloads are validation errors.
func bindBody(ctx echo.Context, dest interface{}, name string) error {
	if err := (&echo.DefaultBinder{}).BindBody(ctx, dest); err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return core.NewValidationError(errors.Errorf("malformed %s: %v", name, httpErr.Message))
		}
		return errors.Wrapf(err, "binding to %s", name)
	}
	return nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(ctx echo.Context, name string) (*bool, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, core.NewFieldError(name, "must be a boolean")
	}
	return &b, nil
}

// queryDate parses an optional YYYY-MM-DD query parameter as UTC midnight.
func queryDate(ctx echo.Context, name string) (*time.Time, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, val, time.UTC)
	if err != nil {
		return nil, core.NewFieldError(name, "must be a date formatted as "+dateLayout)
	}
	return &t, nil
}
