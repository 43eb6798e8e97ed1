package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/academia/core/school"
	"github.com/trezcool/academia/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateClass(t *testing.T, repo school.Repository, name string, level int) school.Class {
	now := time.Now().UTC()
	cls, err := repo.CreateClass(context.Background(), school.Class{
		Name:      name,
		Level:     level,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return cls
}

func CreateTerm(t *testing.T, repo school.Repository, name, session string, start, end time.Time) school.Term {
	now := time.Now().UTC()
	term, err := repo.CreateTerm(context.Background(), school.Term{
		Name:      name,
		Session:   session,
		StartDate: start,
		EndDate:   end,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateTerm() failed: %v", err)
	}
	return term
}

func CreateSubject(t *testing.T, repo school.Repository, classID, name string, distributions ...school.Distribution) school.Subject {
	now := time.Now().UTC()
	sub, err := repo.CreateSubject(context.Background(), school.Subject{
		ClassID:       classID,
		Name:          name,
		Distributions: distributions,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	return sub
}

func CreateMealPlan(t *testing.T, repo school.Repository, name string, price decimal.Decimal) school.MealPlan {
	now := time.Now().UTC()
	plan, err := repo.CreateMealPlan(context.Background(), school.MealPlan{
		Name:      name,
		Price:     price,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateMealPlan() failed: %v", err)
	}
	return plan
}

func CreateStudent(t *testing.T, repo school.Repository, name, admissionNo, email, classID string) school.Student {
	now := time.Now().UTC()
	std, err := repo.CreateStudent(context.Background(), school.Student{
		Name:        name,
		AdmissionNo: admissionNo,
		Email:       email,
		ClassID:     classID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return std
}
