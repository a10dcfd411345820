package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kadi/core/promotion"
)

type promotionApi struct {
	svc *promotion.Service
}

func registerPromotionAPI(g *echo.Group, svc *promotion.Service) {
	api := promotionApi{svc: svc}
	g.POST("/promotions", api.promote)
}

func (api *promotionApi) promote(ctx echo.Context) error {
	var data promotion.Request
	if err := bindBody(ctx, &data, "Request"); err != nil {
		return err
	}
	res, err := api.svc.Promote(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "promoting students")
	}
	return ctx.JSON(http.StatusOK, res)
}
