package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/exam"
)

type examApi struct {
	svc exam.Service
}

func registerExamAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc exam.Service) {
	api := examApi{svc: svc}

	eg := g.Group("/exams", jwt)

	eg.POST("/records/init", api.initTerm, staffMiddleware())
	eg.GET("/records", api.query, staffMiddleware())
	eg.GET("/records/:id", api.retrieve, staffMiddleware())
	eg.PUT("/records/:id/marks", api.saveEntries, staffMiddleware())
	eg.POST("/positions", api.generatePosition, staffMiddleware())
	eg.POST("/publish", api.publish, adminMiddleware())
}

type (
	// MarkRecordResponse decorates a record with its display rank ("1st",
	// "2nd", ...). Unranked records have no rank.
	MarkRecordResponse struct {
		exam.MarkRecord
		Rank string `json:"rank,omitempty"`
	}

	ClassTermRequest struct {
		ClassID string `json:"class_id" validate:"required"`
		TermID  string `json:"term_id" validate:"required"`
	}

	PublishRequest struct {
		ClassTermRequest
		Publish bool `json:"publish"`
	}
)

func (ctr *ClassTermRequest) Validate() error {
	return core.Validate.Struct(ctr)
}

func newMarkRecordResponse(rec exam.MarkRecord) MarkRecordResponse {
	resp := MarkRecordResponse{MarkRecord: rec}
	if rec.Position > 0 {
		resp.Rank = exam.OrdinalSuffix(rec.Position)
	}
	return resp
}

func newMarkRecordResponseList(recs []exam.MarkRecord) []MarkRecordResponse {
	resps := make([]MarkRecordResponse, 0, len(recs))
	for _, rec := range recs {
		resps = append(resps, newMarkRecordResponse(rec))
	}
	return resps
}

func (api *examApi) initTerm(ctx echo.Context) error {
	var data ClassTermRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ClassTermRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	recs, err := api.svc.InitTerm(ctx.Request().Context(), data.ClassID, data.TermID, claims.Username)
	if err != nil {
		return errors.Wrap(err, "initializing term records")
	}
	return ctx.JSON(http.StatusCreated, newMarkRecordResponseList(recs))
}

func (api *examApi) query(ctx echo.Context) error {
	recs, err := api.svc.QueryByClass(ctx.Request().Context(), ctx.QueryParam("class_id"), ctx.QueryParam("term_id"))
	if err != nil {
		return errors.Wrap(err, "querying mark records")
	}
	return ctx.JSON(http.StatusOK, newMarkRecordResponseList(recs))
}

func (api *examApi) retrieve(ctx echo.Context) error {
	rec, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newMarkRecordResponse(rec))
}

func (api *examApi) saveEntries(ctx echo.Context) error {
	var data exam.EntryUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EntryUpdate")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	rec, err := api.svc.SaveEntries(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newMarkRecordResponse(rec))
}

func (api *examApi) generatePosition(ctx echo.Context) error {
	var data ClassTermRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ClassTermRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if err := api.svc.GeneratePosition(ctx.Request().Context(), data.ClassID, data.TermID); err != nil {
		return errors.Wrap(err, "generating positions")
	}

	recs, err := api.svc.QueryByClass(ctx.Request().Context(), data.ClassID, data.TermID)
	if err != nil {
		return errors.Wrap(err, "querying mark records")
	}
	return ctx.JSON(http.StatusOK, newMarkRecordResponseList(recs))
}

func (api *examApi) publish(ctx echo.Context) error {
	var data PublishRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PublishRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if err := api.svc.Publish(ctx.Request().Context(), data.ClassID, data.TermID, data.Publish); err != nil {
		return errors.Wrap(err, "publishing mark records")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Records updated."})
}
