package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/school"
)

type schoolRepository struct {
	db *schoolTable
}

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db.school}
}

func (repo *schoolRepository) CreateClass(_ context.Context, cls school.Class, _ ...core.DBExecutor) (school.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	cls.ID = uuid.New().String()
	repo.db.classes[cls.ID] = &cls
	return cls, nil
}

func (repo *schoolRepository) QueryClasses(_ context.Context, _ ...core.DBExecutor) ([]school.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := make([]school.Class, 0, len(repo.db.classes))
	for _, cls := range repo.db.classes {
		classes = append(classes, *cls)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
	return classes, nil
}

func (repo *schoolRepository) GetClass(_ context.Context, id string, _ ...core.DBExecutor) (school.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cls, ok := repo.db.classes[id]; ok {
		return *cls, nil
	}
	return school.Class{}, school.ErrClassNotFound
}

func (repo *schoolRepository) CreateTerm(_ context.Context, term school.Term, _ ...core.DBExecutor) (school.Term, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	term.ID = uuid.New().String()
	repo.db.terms[term.ID] = &term
	return term, nil
}

func (repo *schoolRepository) QueryTerms(_ context.Context, session string, _ ...core.DBExecutor) ([]school.Term, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	terms := make([]school.Term, 0, len(repo.db.terms))
	for _, term := range repo.db.terms {
		if session != "" && term.Session != session {
			continue
		}
		terms = append(terms, *term)
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].StartDate.Before(terms[j].StartDate) })
	return terms, nil
}

func (repo *schoolRepository) GetTerm(_ context.Context, id string, _ ...core.DBExecutor) (school.Term, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if term, ok := repo.db.terms[id]; ok {
		return *term, nil
	}
	return school.Term{}, school.ErrTermNotFound
}

func (repo *schoolRepository) CreateSubject(_ context.Context, sub school.Subject, _ ...core.DBExecutor) (school.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sub.ID = uuid.New().String()
	for i := range sub.Distributions {
		sub.Distributions[i].ID = uuid.New().String()
	}
	repo.db.subjects[sub.ID] = &sub
	return sub, nil
}

func (repo *schoolRepository) QuerySubjectsByClass(_ context.Context, classID string, _ ...core.DBExecutor) ([]school.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subjects := make([]school.Subject, 0)
	for _, sub := range repo.db.subjects {
		if sub.ClassID == classID {
			subjects = append(subjects, *sub)
		}
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Name < subjects[j].Name })
	return subjects, nil
}

func (repo *schoolRepository) GetSubject(_ context.Context, id string, _ ...core.DBExecutor) (school.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sub, ok := repo.db.subjects[id]; ok {
		return *sub, nil
	}
	return school.Subject{}, school.ErrSubjectNotFound
}

func (repo *schoolRepository) CreateMealPlan(_ context.Context, plan school.MealPlan, _ ...core.DBExecutor) (school.MealPlan, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	plan.ID = uuid.New().String()
	repo.db.mealPlans[plan.ID] = &plan
	return plan, nil
}

func (repo *schoolRepository) QueryMealPlans(_ context.Context, _ ...core.DBExecutor) ([]school.MealPlan, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	plans := make([]school.MealPlan, 0, len(repo.db.mealPlans))
	for _, plan := range repo.db.mealPlans {
		plans = append(plans, *plan)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Name < plans[j].Name })
	return plans, nil
}

func (repo *schoolRepository) GetMealPlan(_ context.Context, id string, _ ...core.DBExecutor) (school.MealPlan, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if plan, ok := repo.db.mealPlans[id]; ok {
		return *plan, nil
	}
	return school.MealPlan{}, school.ErrMealPlanNotFound
}

func (repo *schoolRepository) CheckAdmissionNoUniqueness(_ context.Context, admissionNo string, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, std := range repo.db.students {
		if std.AdmissionNo == admissionNo {
			return school.ErrAdmissionNoExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateStudent(_ context.Context, std school.Student, _ ...core.DBExecutor) (school.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	std.ID = uuid.New().String()
	repo.db.students[std.ID] = &std
	return std, nil
}

func (repo *schoolRepository) QueryStudentsByClass(_ context.Context, classID string, _ ...core.DBExecutor) ([]school.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := make([]school.Student, 0)
	for _, std := range repo.db.students {
		if std.ClassID == classID {
			students = append(students, *std)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].AdmissionNo < students[j].AdmissionNo })
	return students, nil
}

func (repo *schoolRepository) GetStudent(_ context.Context, id string, _ ...core.DBExecutor) (school.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if std, ok := repo.db.students[id]; ok {
		return *std, nil
	}
	return school.Student{}, school.ErrStudentNotFound
}

func (repo *schoolRepository) UpdateStudent(_ context.Context, std school.Student, _ ...core.DBExecutor) (school.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.students[std.ID]; !ok {
		return school.Student{}, school.ErrStudentNotFound
	}
	repo.db.students[std.ID] = &std
	return std, nil
}
