package school

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
)

type (
	Class struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Level     int       `json:"level"`
		CreatedAt time.Time `json:"created_at"` // UTC
		UpdatedAt time.Time `json:"updated_at"` // UTC
	}

	Term struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Session   string    `json:"session"` // e.g. "2023-2024"
		StartDate time.Time `json:"start_date"`
		EndDate   time.Time `json:"end_date"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	// Distribution is a named grading component of a Subject (e.g. "midterm",
	// "homework") contributing a partial mark capped at MaxMark.
	Distribution struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		MaxMark int    `json:"max_mark"`
	}

	Subject struct {
		ID            string         `json:"id"`
		ClassID       string         `json:"class_id"`
		Name          string         `json:"name"`
		Distributions []Distribution `json:"distributions"`
		CreatedAt     time.Time      `json:"created_at"`
		UpdatedAt     time.Time      `json:"updated_at"`
	}

	MealPlan struct {
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Price     decimal.Decimal `json:"price"`
		CreatedAt time.Time       `json:"created_at"`
		UpdatedAt time.Time       `json:"updated_at"`
	}

	Student struct {
		ID          string      `json:"id"`
		Name        string      `json:"name"`
		AdmissionNo string      `json:"admission_no"`
		Email       string      `json:"email"`
		ClassID     string      `json:"class_id"`
		MealPlanID  null.String `json:"meal_plan_id"`
		CreatedAt   time.Time   `json:"created_at"`
		UpdatedAt   time.Time   `json:"updated_at"`
	}
)

// NewClass contains information needed to create a new Class.
type NewClass struct {
	Name  string `json:"name" validate:"required"`
	Level int    `json:"level" validate:"gte=0"`
}

func (nc *NewClass) Validate() error {
	nc.Name = core.CleanString(nc.Name)
	return core.Validate.Struct(nc)
}

type NewTerm struct {
	Name      string    `json:"name" validate:"required"`
	Session   string    `json:"session" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
}

func (nt *NewTerm) Validate() error {
	nt.Name = core.CleanString(nt.Name)
	nt.Session = core.CleanString(nt.Session)
	return core.Validate.Struct(nt)
}

type NewDistribution struct {
	Name    string `json:"name" validate:"required"`
	MaxMark int    `json:"max_mark" validate:"gt=0"`
}

type NewSubject struct {
	ClassID       string            `json:"class_id" validate:"required"`
	Name          string            `json:"name" validate:"required"`
	Distributions []NewDistribution `json:"distributions" validate:"required,min=1,dive"`
}

func (ns *NewSubject) Validate() error {
	ns.Name = core.CleanString(ns.Name)
	for i := range ns.Distributions {
		ns.Distributions[i].Name = core.CleanString(ns.Distributions[i].Name, true /* lower */)
	}
	return core.Validate.Struct(ns)
}

type NewMealPlan struct {
	Name  string          `json:"name" validate:"required"`
	Price decimal.Decimal `json:"price"`
}

func (np *NewMealPlan) Validate() error {
	np.Name = core.CleanString(np.Name)
	if err := core.Validate.Struct(np); err != nil {
		return err
	}
	if !np.Price.IsPositive() {
		return core.NewValidationError(nil, core.FieldError{Field: "price", Error: "price must be greater than zero"})
	}
	return nil
}

// NewStudent contains information needed to enroll a new Student.
type NewStudent struct {
	Name        string `json:"name" validate:"required"`
	AdmissionNo string `json:"admission_no" validate:"required"`
	Email       string `json:"email" validate:"omitempty,email"`
	ClassID     string `json:"class_id" validate:"required"`
}

func (ns *NewStudent) Validate(svc Service) error {
	ns.Name = core.CleanString(ns.Name)
	ns.AdmissionNo = core.CleanString(ns.AdmissionNo, true /* lower */)
	ns.Email = core.CleanString(ns.Email, true /* lower */)

	if err := core.Validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckAdmissionNoUniqueness(ns.AdmissionNo)
}
