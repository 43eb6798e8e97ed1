package finance_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/finance"
	"github.com/trezcool/academia/core/school"
	emailsvc "github.com/trezcool/academia/services/email"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
)

type testEnv struct {
	svc        finance.Service
	repo       finance.Repository
	schoolRepo school.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := inmemdb.NewFinanceRepository(db)
	schoolRepo := inmemdb.NewSchoolRepository(db)
	return &testEnv{
		svc:        finance.NewServiceMock(repo, schoolRepo, emailsvc.NewConsoleServiceMock()),
		repo:       repo,
		schoolRepo: schoolRepo,
	}
}

func (env *testEnv) createStudent(t *testing.T, planID string) school.Student {
	t.Helper()
	ctx := context.Background()
	cls, err := env.schoolRepo.CreateClass(ctx, school.Class{Name: "JSS 1"})
	require.NoError(t, err)
	std := school.Student{Name: "Awe Mary", AdmissionNo: "STD001", Email: "awemary@mail.com", ClassID: cls.ID}
	if planID != "" {
		std.MealPlanID = null.StringFrom(planID)
	}
	std, err = env.schoolRepo.CreateStudent(ctx, std)
	require.NoError(t, err)
	return std
}

func (env *testEnv) createMealPlan(t *testing.T, price int64) school.MealPlan {
	t.Helper()
	plan, err := env.schoolRepo.CreateMealPlan(context.Background(), school.MealPlan{
		Name:  "Weekly Lunch",
		Price: decimal.NewFromInt(price),
	})
	require.NoError(t, err)
	return plan
}

func TestService_PayCanteen(t *testing.T) {
	ctx := context.Background()

	t.Run("exact price is accepted and settles immediately", func(t *testing.T) {
		env := newTestEnv(t)
		plan := env.createMealPlan(t, 100)
		std := env.createStudent(t, plan.ID)

		np := finance.NewPayment{
			Amount:        decimal.NewFromInt(100),
			PaymentMethod: finance.MethodCash,
			RequestKey:    "req-001",
		}
		ob, err := env.svc.PayCanteen(ctx, std.ID, np, "bursar")
		require.NoError(t, err)
		assert.True(t, ob.Settled)
		assert.Equal(t, finance.KindCanteen, ob.Kind)
		assert.True(t, ob.Paid.Equal(plan.Price))
		assert.True(t, ob.Outstanding().IsZero())

		ledger, err := env.svc.Ledger(ctx, std.ID)
		require.NoError(t, err)
		require.Len(t, ledger, 1)
		assert.Equal(t, finance.EntryPayment, ledger[0].Kind)
		assert.True(t, ledger[0].Amount.Equal(plan.Price))
	})

	t.Run("mismatched amount is rejected with nothing persisted", func(t *testing.T) {
		env := newTestEnv(t)
		plan := env.createMealPlan(t, 100)
		std := env.createStudent(t, plan.ID)

		np := finance.NewPayment{
			Amount:        decimal.NewFromInt(99),
			PaymentMethod: finance.MethodCash,
			RequestKey:    "req-001",
		}
		_, err := env.svc.PayCanteen(ctx, std.ID, np, "bursar")
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		require.Len(t, vErr.Fields, 1)
		// the error names both the submitted amount and the plan price
		assert.Equal(t, "amount 99.00 does not match the meal plan price of 100.00", vErr.Fields[0].Error)

		ledger, err := env.svc.Ledger(ctx, std.ID)
		require.NoError(t, err)
		assert.Empty(t, ledger)
		obs, err := env.svc.QueryObligations(ctx, std.ID)
		require.NoError(t, err)
		assert.Empty(t, obs)
	})

	t.Run("student without a meal plan is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		std := env.createStudent(t, "")

		np := finance.NewPayment{
			Amount:        decimal.NewFromInt(100),
			PaymentMethod: finance.MethodCash,
			RequestKey:    "req-001",
		}
		_, err := env.svc.PayCanteen(ctx, std.ID, np, "bursar")
		assert.Equal(t, finance.ErrNoMealPlan, err)
	})

	t.Run("duplicate request key is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		plan := env.createMealPlan(t, 100)
		std := env.createStudent(t, plan.ID)

		np := finance.NewPayment{
			Amount:        decimal.NewFromInt(100),
			PaymentMethod: finance.MethodCash,
			RequestKey:    "req-001",
		}
		_, err := env.svc.PayCanteen(ctx, std.ID, np, "bursar")
		require.NoError(t, err)

		// the same submission again
		_, err = env.svc.PayCanteen(ctx, std.ID, np, "bursar")
		assert.Equal(t, finance.ErrDuplicatePayment, err)

		ledger, err := env.svc.Ledger(ctx, std.ID)
		require.NoError(t, err)
		assert.Len(t, ledger, 1)
	})
}

func TestService_Pay(t *testing.T) {
	ctx := context.Background()

	t.Run("partial payment with fine", func(t *testing.T) {
		env := newTestEnv(t)
		std := env.createStudent(t, "")
		ob, err := env.svc.BillClass(ctx, std.ID, "Field trip", decimal.NewFromInt(500), null.Time{})
		require.NoError(t, err)

		np := finance.NewPayment{
			Amount:        decimal.NewFromInt(200),
			Fine:          decimal.NewFromInt(50),
			PaymentMethod: finance.MethodMobileMoney,
			RequestKey:    "req-001",
		}
		ob, err = env.svc.Pay(ctx, ob.ID, np, "bursar")
		require.NoError(t, err)
		assert.False(t, ob.Settled)
		assert.True(t, ob.Outstanding().Equal(decimal.NewFromInt(350))) // 500 + 50 - 200

		ledger, err := env.svc.Ledger(ctx, std.ID)
		require.NoError(t, err)
		require.Len(t, ledger, 2)
		assert.Equal(t, finance.EntryPayment, ledger[0].Kind)
		assert.Equal(t, finance.EntryFine, ledger[1].Kind)
	})

	t.Run("zero amount settles the outstanding balance", func(t *testing.T) {
		env := newTestEnv(t)
		std := env.createStudent(t, "")
		ob, err := env.svc.BillClass(ctx, std.ID, "Field trip", decimal.NewFromInt(500), null.Time{})
		require.NoError(t, err)

		np := finance.NewPayment{PaymentMethod: finance.MethodCash, RequestKey: "req-001"}
		ob, err = env.svc.Pay(ctx, ob.ID, np, "bursar")
		require.NoError(t, err)
		assert.True(t, ob.Settled)
		assert.True(t, ob.Outstanding().IsZero())
		assert.True(t, ob.Paid.Equal(decimal.NewFromInt(500)))
	})

	t.Run("overpayment is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		std := env.createStudent(t, "")
		ob, err := env.svc.BillClass(ctx, std.ID, "Field trip", decimal.NewFromInt(500), null.Time{})
		require.NoError(t, err)

		np := finance.NewPayment{
			Amount:        decimal.NewFromInt(600),
			PaymentMethod: finance.MethodCash,
			RequestKey:    "req-001",
		}
		_, err = env.svc.Pay(ctx, ob.ID, np, "bursar")
		assert.Error(t, err)
	})

	t.Run("unknown obligation", func(t *testing.T) {
		env := newTestEnv(t)
		np := finance.NewPayment{PaymentMethod: finance.MethodCash, RequestKey: "req-001"}
		_, err := env.svc.Pay(ctx, "nope", np, "bursar")
		assert.Equal(t, finance.ErrObligationNotFound, err)
	})
}

func TestService_Balance(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	plan := env.createMealPlan(t, 100)
	std := env.createStudent(t, plan.ID)

	bal, err := env.svc.Balance(ctx, std.ID)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	// credit 300
	_, err = env.svc.AdjustBalance(ctx, std.ID, finance.Adjustment{
		Amount:     decimal.NewFromInt(300),
		Direction:  "credit",
		Note:       "term deposit",
		RequestKey: "adj-001",
	}, "bursar")
	require.NoError(t, err)

	// debit 50
	_, err = env.svc.AdjustBalance(ctx, std.ID, finance.Adjustment{
		Amount:     decimal.NewFromInt(50),
		Direction:  "debit",
		Note:       "refund",
		RequestKey: "adj-002",
	}, "bursar")
	require.NoError(t, err)

	bal, err = env.svc.Balance(ctx, std.ID)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(250)))

	// an account-method payment draws on the balance...
	np := finance.NewPayment{
		Amount:        decimal.NewFromInt(100),
		PaymentMethod: finance.MethodAccount,
		RequestKey:    "req-001",
	}
	_, err = env.svc.PayCanteen(ctx, std.ID, np, "bursar")
	require.NoError(t, err)

	bal, err = env.svc.Balance(ctx, std.ID)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(150)))

	// ...but a cash payment does not
	np = finance.NewPayment{
		Amount:        decimal.NewFromInt(100),
		PaymentMethod: finance.MethodCash,
		RequestKey:    "req-002",
	}
	_, err = env.svc.PayCanteen(ctx, std.ID, np, "bursar")
	require.NoError(t, err)

	bal, err = env.svc.Balance(ctx, std.ID)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(150)))

	// insufficient balance
	_, err = env.svc.AdjustBalance(ctx, std.ID, finance.Adjustment{
		Amount:     decimal.NewFromInt(1000),
		Direction:  "debit",
		RequestKey: "adj-003",
	}, "bursar")
	assert.Equal(t, finance.ErrInsufficientBalance, err)
}

func TestService_BillFees(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	cls, err := env.schoolRepo.CreateClass(ctx, school.Class{Name: "JSS 2"})
	require.NoError(t, err)
	term, err := env.schoolRepo.CreateTerm(ctx, school.Term{Name: "First Term", Session: "2026/2027"})
	require.NoError(t, err)
	for _, admNo := range []string{"STD001", "STD002", "STD003"} {
		_, err = env.schoolRepo.CreateStudent(ctx, school.Student{Name: "Student " + admNo, AdmissionNo: admNo, ClassID: cls.ID})
		require.NoError(t, err)
	}

	fs, err := env.svc.CreateFeeStructure(ctx, finance.NewFeeStructure{
		ClassID: cls.ID,
		TermID:  term.ID,
		Session: "2026/2027",
		Items: []finance.FeeItem{
			{Category: "Tuition", Amount: decimal.NewFromInt(1000)},
			{Category: "Library", Amount: decimal.NewFromInt(200)},
		},
		DueDate: term.StartDate.AddDate(0, 1, 0),
	})
	require.NoError(t, err)

	billed, err := env.svc.BillFees(ctx, fs.ID)
	require.NoError(t, err)
	require.Len(t, billed, 3)
	for _, ob := range billed {
		assert.Equal(t, finance.KindFees, ob.Kind)
		assert.True(t, ob.Amount.Equal(decimal.NewFromInt(1200)))
		assert.False(t, ob.Settled)
	}

	// billing again creates nothing new
	billed, err = env.svc.BillFees(ctx, fs.ID)
	require.NoError(t, err)
	assert.Empty(t, billed)
}

func TestService_FeeStructureLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	cls, err := env.schoolRepo.CreateClass(ctx, school.Class{Name: "JSS 3"})
	require.NoError(t, err)
	term, err := env.schoolRepo.CreateTerm(ctx, school.Term{Name: "First Term", Session: "2026/2027"})
	require.NoError(t, err)
	std, err := env.schoolRepo.CreateStudent(ctx, school.Student{Name: "Obi Ken", AdmissionNo: "STD010", ClassID: cls.ID})
	require.NoError(t, err)

	fs, err := env.svc.CreateFeeStructure(ctx, finance.NewFeeStructure{
		ClassID: cls.ID,
		TermID:  term.ID,
		Session: "2026/2027",
		Items: []finance.FeeItem{
			{Category: "Tuition", Amount: decimal.NewFromInt(1000)},
		},
	})
	require.NoError(t, err)

	t.Run("line items are editable, the rest stays as created", func(t *testing.T) {
		updated, err := env.svc.UpdateFeeStructureItems(ctx, fs.ID, finance.FeeItemsUpdate{
			Items: []finance.FeeItem{
				{Category: "Tuition", Amount: decimal.NewFromInt(1100)},
				{Category: "Sports", Amount: decimal.NewFromInt(100)},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, fs.ClassID, updated.ClassID)
		assert.Equal(t, fs.TermID, updated.TermID)
		assert.Equal(t, fs.Session, updated.Session)
		require.Len(t, updated.Items, 2)

		got, err := env.svc.GetFeeStructure(ctx, fs.ID)
		require.NoError(t, err)
		require.Len(t, got.Items, 2)
		assert.True(t, got.Items[0].Amount.Equal(decimal.NewFromInt(1100)))
	})

	t.Run("billing after an edit uses the new total", func(t *testing.T) {
		billed, err := env.svc.BillFees(ctx, fs.ID)
		require.NoError(t, err)
		require.Len(t, billed, 1)
		assert.Equal(t, std.ID, billed[0].StudentID)
		assert.True(t, billed[0].Amount.Equal(decimal.NewFromInt(1200)))
	})

	t.Run("editing an unknown structure", func(t *testing.T) {
		_, err := env.svc.UpdateFeeStructureItems(ctx, "nope", finance.FeeItemsUpdate{
			Items: []finance.FeeItem{{Category: "Tuition", Amount: decimal.NewFromInt(1)}},
		})
		assert.Equal(t, finance.ErrFeeStructureNotFound, err)
	})

	t.Run("admin delete", func(t *testing.T) {
		require.NoError(t, env.svc.DeleteFeeStructure(ctx, fs.ID))

		_, err := env.svc.GetFeeStructure(ctx, fs.ID)
		assert.Equal(t, finance.ErrFeeStructureNotFound, err)
		// deleting again has nothing left to remove
		assert.Equal(t, finance.ErrFeeStructureNotFound, env.svc.DeleteFeeStructure(ctx, fs.ID))
	})
}
