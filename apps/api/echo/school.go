package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/school"
)

type schoolApi struct {
	svc school.Service
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc school.Service) {
	api := schoolApi{svc: svc}

	sg := g.Group("/school", jwt)

	sg.POST("/classes", api.createClass, adminMiddleware())
	sg.GET("/classes", api.queryClasses, staffMiddleware())
	sg.GET("/classes/:id", api.retrieveClass, staffMiddleware())
	sg.GET("/classes/:id/subjects", api.querySubjects, staffMiddleware())
	sg.GET("/classes/:id/students", api.queryStudents, staffMiddleware())

	sg.POST("/terms", api.createTerm, adminMiddleware())
	sg.GET("/terms", api.queryTerms, staffMiddleware())

	sg.POST("/subjects", api.createSubject, adminMiddleware())

	sg.POST("/meal-plans", api.createMealPlan, adminMiddleware())
	sg.GET("/meal-plans", api.queryMealPlans, staffMiddleware())

	sg.POST("/students", api.createStudent, adminMiddleware())
	sg.GET("/students/:id", api.retrieveStudent, staffMiddleware())
	sg.PUT("/students/:id/meal-plan", api.assignMealPlan, adminMiddleware())
}

func (api *schoolApi) createClass(ctx echo.Context) error {
	var data school.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	cls, err := api.svc.CreateClass(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *schoolApi) queryClasses(ctx echo.Context) error {
	classes, err := api.svc.QueryClasses(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []school.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *schoolApi) retrieveClass(ctx echo.Context) error {
	cls, err := api.svc.GetClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *schoolApi) createTerm(ctx echo.Context) error {
	var data school.NewTerm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTerm")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	term, err := api.svc.CreateTerm(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating term")
	}
	return ctx.JSON(http.StatusCreated, term)
}

func (api *schoolApi) queryTerms(ctx echo.Context) error {
	terms, err := api.svc.QueryTerms(ctx.Request().Context(), ctx.QueryParam("session"))
	if err != nil {
		return errors.Wrap(err, "querying terms")
	}
	if terms == nil {
		terms = []school.Term{}
	}
	return ctx.JSON(http.StatusOK, terms)
}

func (api *schoolApi) createSubject(ctx echo.Context) error {
	var data school.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sub, err := api.svc.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *schoolApi) querySubjects(ctx echo.Context) error {
	subjects, err := api.svc.QuerySubjectsByClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []school.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *schoolApi) createMealPlan(ctx echo.Context) error {
	var data school.NewMealPlan
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMealPlan")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	plan, err := api.svc.CreateMealPlan(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating meal plan")
	}
	return ctx.JSON(http.StatusCreated, plan)
}

func (api *schoolApi) queryMealPlans(ctx echo.Context) error {
	plans, err := api.svc.QueryMealPlans(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying meal plans")
	}
	if plans == nil {
		plans = []school.MealPlan{}
	}
	return ctx.JSON(http.StatusOK, plans)
}

func (api *schoolApi) createStudent(ctx echo.Context) error {
	var data school.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.svc); err != nil {
		return err
	}

	std, err := api.svc.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, std)
}

func (api *schoolApi) queryStudents(ctx echo.Context) error {
	students, err := api.svc.QueryStudentsByClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []school.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *schoolApi) retrieveStudent(ctx echo.Context) error {
	std, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, std)
}

type AssignMealPlanRequest struct {
	MealPlanID string `json:"meal_plan_id" validate:"required"`
}

func (ar *AssignMealPlanRequest) Validate() error {
	return core.Validate.Struct(ar)
}

func (api *schoolApi) assignMealPlan(ctx echo.Context) error {
	var data AssignMealPlanRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignMealPlanRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	std, err := api.svc.AssignMealPlan(ctx.Request().Context(), ctx.Param("id"), data.MealPlanID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, std)
}
