package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/finance"
)

type financeApi struct {
	svc finance.Service
}

func registerFinanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc finance.Service) {
	api := financeApi{svc: svc}

	fg := g.Group("/finance", jwt)

	fg.POST("/fee-structures", api.createFeeStructure, adminMiddleware())
	fg.GET("/fee-structures", api.queryFeeStructures, staffMiddleware())
	fg.GET("/fee-structures/:id", api.retrieveFeeStructure, staffMiddleware())
	fg.PUT("/fee-structures/:id", api.updateFeeStructure, adminMiddleware())
	fg.DELETE("/fee-structures/:id", api.deleteFeeStructure, adminMiddleware())
	fg.POST("/fee-structures/:id/bill", api.billFees, adminMiddleware())

	fg.POST("/students/:id/obligations", api.billClass, adminMiddleware())
	fg.GET("/students/:id/obligations", api.queryObligations, staffMiddleware())
	fg.POST("/students/:id/payments/canteen", api.payCanteen, staffMiddleware())
	fg.POST("/obligations/:id/payments", api.pay, staffMiddleware())

	fg.POST("/students/:id/adjustments", api.adjustBalance, adminMiddleware())
	fg.GET("/students/:id/balance", api.balance, staffMiddleware())
	fg.GET("/students/:id/ledger", api.ledger, staffMiddleware())
}

type (
	BillClassRequest struct {
		Label   string          `json:"label" validate:"required"`
		Amount  decimal.Decimal `json:"amount"`
		DueDate *time.Time      `json:"due_date"`
	}

	BalanceResponse struct {
		StudentID string          `json:"student_id"`
		Balance   decimal.Decimal `json:"balance"`
	}
)

func (br *BillClassRequest) Validate() error {
	br.Label = core.CleanString(br.Label)
	return core.Validate.Struct(br)
}

func (api *financeApi) createFeeStructure(ctx echo.Context) error {
	var data finance.NewFeeStructure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeeStructure")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	fs, err := api.svc.CreateFeeStructure(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating fee structure")
	}
	return ctx.JSON(http.StatusCreated, fs)
}

func (api *financeApi) queryFeeStructures(ctx echo.Context) error {
	structures, err := api.svc.QueryFeeStructures(ctx.Request().Context(), ctx.QueryParam("class_id"), ctx.QueryParam("term_id"))
	if err != nil {
		return errors.Wrap(err, "querying fee structures")
	}
	if structures == nil {
		structures = []finance.FeeStructure{}
	}
	return ctx.JSON(http.StatusOK, structures)
}

func (api *financeApi) retrieveFeeStructure(ctx echo.Context) error {
	fs, err := api.svc.GetFeeStructure(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, fs)
}

func (api *financeApi) updateFeeStructure(ctx echo.Context) error {
	var data finance.FeeItemsUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FeeItemsUpdate")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	fs, err := api.svc.UpdateFeeStructureItems(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, fs)
}

func (api *financeApi) deleteFeeStructure(ctx echo.Context) error {
	if err := api.svc.DeleteFeeStructure(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *financeApi) billFees(ctx echo.Context) error {
	obs, err := api.svc.BillFees(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if obs == nil {
		obs = []finance.Obligation{}
	}
	return ctx.JSON(http.StatusCreated, obs)
}

func (api *financeApi) billClass(ctx echo.Context) error {
	var data BillClassRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BillClassRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	var dueDate null.Time
	if data.DueDate != nil {
		dueDate = null.TimeFrom(*data.DueDate)
	}
	ob, err := api.svc.BillClass(ctx.Request().Context(), ctx.Param("id"), data.Label, data.Amount, dueDate)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ob)
}

func (api *financeApi) queryObligations(ctx echo.Context) error {
	obs, err := api.svc.QueryObligations(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying obligations")
	}
	if obs == nil {
		obs = []finance.Obligation{}
	}
	return ctx.JSON(http.StatusOK, obs)
}

func (api *financeApi) payCanteen(ctx echo.Context) error {
	var data finance.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	ob, err := api.svc.PayCanteen(ctx.Request().Context(), ctx.Param("id"), data, claims.Username)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ob)
}

func (api *financeApi) pay(ctx echo.Context) error {
	var data finance.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	ob, err := api.svc.Pay(ctx.Request().Context(), ctx.Param("id"), data, claims.Username)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ob)
}

func (api *financeApi) adjustBalance(ctx echo.Context) error {
	var data finance.Adjustment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Adjustment")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	entry, err := api.svc.AdjustBalance(ctx.Request().Context(), ctx.Param("id"), data, claims.Username)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, entry)
}

func (api *financeApi) balance(ctx echo.Context) error {
	bal, err := api.svc.Balance(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing balance")
	}
	return ctx.JSON(http.StatusOK, BalanceResponse{StudentID: ctx.Param("id"), Balance: bal})
}

func (api *financeApi) ledger(ctx echo.Context) error {
	entries, err := api.svc.Ledger(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying ledger")
	}
	if entries == nil {
		entries = []finance.LedgerEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}
