package inmemdb

import (
	"sync"

	"github.com/trezcool/academia/core/exam"
	"github.com/trezcool/academia/core/finance"
	"github.com/trezcool/academia/core/school"
	"github.com/trezcool/academia/core/user"
)

type (
	DB struct {
		user    *userTable
		school  *schoolTable
		exam    *examTable
		finance *financeTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	schoolTable struct {
		sync.RWMutex
		classes   map[string]*school.Class
		terms     map[string]*school.Term
		subjects  map[string]*school.Subject
		mealPlans map[string]*school.MealPlan
		students  map[string]*school.Student
	}

	examTable struct {
		sync.RWMutex
		records map[string]*exam.MarkRecord
		order   []string // insertion order
	}

	financeTable struct {
		sync.RWMutex
		feeStructures map[string]*finance.FeeStructure
		obligations   map[string]*finance.Obligation
		obOrder       []string
		entries       map[string]*finance.LedgerEntry
		entryOrder    []string
		requestKeys   map[string]bool
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		school: &schoolTable{
			classes:   make(map[string]*school.Class),
			terms:     make(map[string]*school.Term),
			subjects:  make(map[string]*school.Subject),
			mealPlans: make(map[string]*school.MealPlan),
			students:  make(map[string]*school.Student),
		},
		exam: &examTable{records: make(map[string]*exam.MarkRecord)},
		finance: &financeTable{
			feeStructures: make(map[string]*finance.FeeStructure),
			obligations:   make(map[string]*finance.Obligation),
			entries:       make(map[string]*finance.LedgerEntry),
			requestKeys:   make(map[string]bool),
		},
	}
	return db, nil
}
