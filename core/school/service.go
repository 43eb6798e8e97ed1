package school

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrClassNotFound     = errors.New("class not found")
	ErrTermNotFound      = errors.New("term not found")
	ErrSubjectNotFound   = errors.New("subject not found")
	ErrMealPlanNotFound  = errors.New("meal plan not found")
	ErrStudentNotFound   = errors.New("student not found")
	ErrAdmissionNoExists = errors.New("a student with this admission number already exists")
)

type (
	Repository interface {
		CreateClass(ctx context.Context, cls Class, exec ...core.DBExecutor) (Class, error)
		QueryClasses(ctx context.Context, exec ...core.DBExecutor) ([]Class, error)
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (Class, error)

		CreateTerm(ctx context.Context, term Term, exec ...core.DBExecutor) (Term, error)
		QueryTerms(ctx context.Context, session string, exec ...core.DBExecutor) ([]Term, error)
		GetTerm(ctx context.Context, id string, exec ...core.DBExecutor) (Term, error)

		CreateSubject(ctx context.Context, sub Subject, exec ...core.DBExecutor) (Subject, error)
		QuerySubjectsByClass(ctx context.Context, classID string, exec ...core.DBExecutor) ([]Subject, error)
		GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (Subject, error)

		CreateMealPlan(ctx context.Context, plan MealPlan, exec ...core.DBExecutor) (MealPlan, error)
		QueryMealPlans(ctx context.Context, exec ...core.DBExecutor) ([]MealPlan, error)
		GetMealPlan(ctx context.Context, id string, exec ...core.DBExecutor) (MealPlan, error)

		CheckAdmissionNoUniqueness(ctx context.Context, admissionNo string, exec ...core.DBExecutor) error
		CreateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		QueryStudentsByClass(ctx context.Context, classID string, exec ...core.DBExecutor) ([]Student, error)
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		UpdateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
	}

	Service interface {
		CheckAdmissionNoUniqueness(admissionNo string) error

		CreateClass(ctx context.Context, nc NewClass) (Class, error)
		QueryClasses(ctx context.Context) ([]Class, error)
		GetClass(ctx context.Context, id string) (Class, error)

		CreateTerm(ctx context.Context, nt NewTerm) (Term, error)
		QueryTerms(ctx context.Context, session string) ([]Term, error)
		GetTerm(ctx context.Context, id string) (Term, error)

		CreateSubject(ctx context.Context, ns NewSubject) (Subject, error)
		QuerySubjectsByClass(ctx context.Context, classID string) ([]Subject, error)

		CreateMealPlan(ctx context.Context, np NewMealPlan) (MealPlan, error)
		QueryMealPlans(ctx context.Context) ([]MealPlan, error)
		GetMealPlan(ctx context.Context, id string) (MealPlan, error)

		CreateStudent(ctx context.Context, ns NewStudent) (Student, error)
		QueryStudentsByClass(ctx context.Context, classID string) ([]Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		AssignMealPlan(ctx context.Context, studentID, planID string) (Student, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) CheckAdmissionNoUniqueness(admissionNo string) error {
	if err := svc.repo.CheckAdmissionNoUniqueness(context.Background(), admissionNo); err != nil {
		if err == ErrAdmissionNoExists {
			return core.NewValidationError(err, core.FieldError{Field: "admission_no", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) CreateClass(ctx context.Context, nc NewClass) (Class, error) {
	now := time.Now().UTC()
	return svc.repo.CreateClass(ctx, Class{
		Name:      nc.Name,
		Level:     nc.Level,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) QueryClasses(ctx context.Context) ([]Class, error) {
	return svc.repo.QueryClasses(ctx)
}

func (svc *service) GetClass(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *service) CreateTerm(ctx context.Context, nt NewTerm) (Term, error) {
	now := time.Now().UTC()
	return svc.repo.CreateTerm(ctx, Term{
		Name:      nt.Name,
		Session:   nt.Session,
		StartDate: nt.StartDate,
		EndDate:   nt.EndDate,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) QueryTerms(ctx context.Context, session string) ([]Term, error) {
	return svc.repo.QueryTerms(ctx, core.CleanString(session))
}

func (svc *service) GetTerm(ctx context.Context, id string) (Term, error) {
	return svc.repo.GetTerm(ctx, id)
}

func (svc *service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	if _, err := svc.repo.GetClass(ctx, ns.ClassID); err != nil {
		return Subject{}, err
	}
	now := time.Now().UTC()
	sub := Subject{
		ClassID:   ns.ClassID,
		Name:      ns.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, nd := range ns.Distributions {
		sub.Distributions = append(sub.Distributions, Distribution{Name: nd.Name, MaxMark: nd.MaxMark})
	}
	return svc.repo.CreateSubject(ctx, sub)
}

func (svc *service) QuerySubjectsByClass(ctx context.Context, classID string) ([]Subject, error) {
	return svc.repo.QuerySubjectsByClass(ctx, classID)
}

func (svc *service) CreateMealPlan(ctx context.Context, np NewMealPlan) (MealPlan, error) {
	now := time.Now().UTC()
	return svc.repo.CreateMealPlan(ctx, MealPlan{
		Name:      np.Name,
		Price:     np.Price,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) QueryMealPlans(ctx context.Context) ([]MealPlan, error) {
	return svc.repo.QueryMealPlans(ctx)
}

func (svc *service) GetMealPlan(ctx context.Context, id string) (MealPlan, error) {
	return svc.repo.GetMealPlan(ctx, id)
}

func (svc *service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	if _, err := svc.repo.GetClass(ctx, ns.ClassID); err != nil {
		return Student{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateStudent(ctx, Student{
		Name:        ns.Name,
		AdmissionNo: ns.AdmissionNo,
		Email:       ns.Email,
		ClassID:     ns.ClassID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) QueryStudentsByClass(ctx context.Context, classID string) ([]Student, error) {
	return svc.repo.QueryStudentsByClass(ctx, classID)
}

func (svc *service) GetStudent(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *service) AssignMealPlan(ctx context.Context, studentID, planID string) (Student, error) {
	std, err := svc.repo.GetStudent(ctx, studentID)
	if err != nil {
		return Student{}, err
	}
	if _, err := svc.repo.GetMealPlan(ctx, planID); err != nil {
		return Student{}, err
	}
	std.MealPlanID.SetValid(planID)
	std.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, std)
}
