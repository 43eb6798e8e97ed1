package finance

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/school"
)

var (
	// errors
	ErrFeeStructureNotFound = errors.New("fee structure not found")
	ErrObligationNotFound   = errors.New("obligation not found")
	ErrNoMealPlan           = errors.New("student has no meal plan assigned")
	ErrDuplicatePayment     = errors.New("a payment with this request key was already recorded")
	ErrInsufficientBalance  = errors.New("account balance is insufficient")
)

type (
	// StudentDirectory is the subset of the school repository the finance
	// service needs; school.Repository satisfies it.
	StudentDirectory interface {
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (school.Student, error)
		QueryStudentsByClass(ctx context.Context, classID string, exec ...core.DBExecutor) ([]school.Student, error)
		GetMealPlan(ctx context.Context, id string, exec ...core.DBExecutor) (school.MealPlan, error)
	}

	Repository interface {
		CreateFeeStructure(ctx context.Context, fs FeeStructure, exec ...core.DBExecutor) (FeeStructure, error)
		GetFeeStructure(ctx context.Context, id string, exec ...core.DBExecutor) (FeeStructure, error)
		QueryFeeStructures(ctx context.Context, classID, termID string, exec ...core.DBExecutor) ([]FeeStructure, error)
		UpdateFeeStructure(ctx context.Context, fs FeeStructure, exec ...core.DBExecutor) (FeeStructure, error)
		DeleteFeeStructure(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateObligation(ctx context.Context, ob Obligation, exec ...core.DBExecutor) (Obligation, error)
		GetObligation(ctx context.Context, id string, exec ...core.DBExecutor) (Obligation, error)
		QueryObligationsByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]Obligation, error)
		UpdateObligation(ctx context.Context, ob Obligation, exec ...core.DBExecutor) (Obligation, error)

		// CreateEntry fails with ErrDuplicatePayment when an entry with the
		// same request key already exists.
		CreateEntry(ctx context.Context, entry LedgerEntry, exec ...core.DBExecutor) (LedgerEntry, error)
		// QueryEntriesByStudent returns the student's full ledger ordered by
		// creation time.
		QueryEntriesByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]LedgerEntry, error)
	}

	Service interface {
		CreateFeeStructure(ctx context.Context, nf NewFeeStructure) (FeeStructure, error)
		GetFeeStructure(ctx context.Context, id string) (FeeStructure, error)
		QueryFeeStructures(ctx context.Context, classID, termID string) ([]FeeStructure, error)
		// UpdateFeeStructureItems replaces the structure's line items; the
		// class, term and session are immutable after creation.
		UpdateFeeStructureItems(ctx context.Context, id string, fu FeeItemsUpdate) (FeeStructure, error)
		DeleteFeeStructure(ctx context.Context, id string) error

		// BillFees creates a "fees" obligation for every student of the fee
		// structure's class that does not have one yet.
		BillFees(ctx context.Context, feeStructureID string) ([]Obligation, error)
		// BillClass creates an ad-hoc "class" obligation for one student.
		BillClass(ctx context.Context, studentID, label string, amount decimal.Decimal, dueDate null.Time) (Obligation, error)
		QueryObligations(ctx context.Context, studentID string) ([]Obligation, error)

		// PayCanteen records a canteen payment for the student's assigned meal
		// plan. The amount must match the plan price exactly; anything else is
		// rejected and nothing is persisted.
		PayCanteen(ctx context.Context, studentID string, np NewPayment, createdBy string) (Obligation, error)
		// Pay applies a payment to an open class or fees obligation. A zero
		// amount defaults to the obligation's outstanding balance.
		Pay(ctx context.Context, obligationID string, np NewPayment, createdBy string) (Obligation, error)

		AdjustBalance(ctx context.Context, studentID string, adj Adjustment, createdBy string) (LedgerEntry, error)
		// Balance is a projection over the student's ledger: credit
		// adjustments add, debit adjustments and account-method payments
		// subtract. No stored balance field exists to drift from it.
		Balance(ctx context.Context, studentID string) (decimal.Decimal, error)
		Ledger(ctx context.Context, studentID string) ([]LedgerEntry, error)
	}

	service struct {
		repo    Repository
		dir     StudentDirectory
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, dir StudentDirectory, mailSvc core.EmailService) Service {
	return &service{
		repo:    repo,
		dir:     dir,
		mailSvc: mailSvc,
	}
}

func (svc *service) CreateFeeStructure(ctx context.Context, nf NewFeeStructure) (FeeStructure, error) {
	now := time.Now().UTC()
	fs := FeeStructure{
		ClassID:   nf.ClassID,
		TermID:    nf.TermID,
		Session:   nf.Session,
		Items:     nf.Items,
		DueDate:   nf.DueDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateFeeStructure(ctx, fs)
}

func (svc *service) GetFeeStructure(ctx context.Context, id string) (FeeStructure, error) {
	return svc.repo.GetFeeStructure(ctx, id)
}

func (svc *service) QueryFeeStructures(ctx context.Context, classID, termID string) ([]FeeStructure, error) {
	return svc.repo.QueryFeeStructures(ctx, classID, termID)
}

func (svc *service) UpdateFeeStructureItems(ctx context.Context, id string, fu FeeItemsUpdate) (FeeStructure, error) {
	fs, err := svc.repo.GetFeeStructure(ctx, id)
	if err != nil {
		return FeeStructure{}, err
	}
	fs.Items = fu.Items
	fs.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateFeeStructure(ctx, fs)
}

func (svc *service) DeleteFeeStructure(ctx context.Context, id string) error {
	return svc.repo.DeleteFeeStructure(ctx, id)
}

func (svc *service) BillFees(ctx context.Context, feeStructureID string) ([]Obligation, error) {
	fs, err := svc.repo.GetFeeStructure(ctx, feeStructureID)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, item := range fs.Items {
		total = total.Add(item.Amount)
	}

	students, err := svc.dir.QueryStudentsByClass(ctx, fs.ClassID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	billed := make([]Obligation, 0, len(students))
	for _, std := range students {
		exists, err := svc.hasObligation(ctx, std.ID, KindFees, fs.ID)
		if err != nil {
			return billed, err
		}
		if exists {
			continue
		}
		ob := Obligation{
			StudentID: std.ID,
			Kind:      KindFees,
			Reference: fs.ID,
			Label:     fmt.Sprintf("%s fees - %s", fs.Session, std.Name),
			Amount:    total,
			DueDate:   null.TimeFrom(fs.DueDate),
			CreatedAt: now,
			UpdatedAt: now,
		}
		ob, err = svc.repo.CreateObligation(ctx, ob)
		if err != nil {
			return billed, err
		}
		billed = append(billed, ob)
	}
	return billed, nil
}

func (svc *service) hasObligation(ctx context.Context, studentID, kind, reference string) (bool, error) {
	obs, err := svc.repo.QueryObligationsByStudent(ctx, studentID)
	if err != nil {
		return false, err
	}
	for _, ob := range obs {
		if ob.Kind == kind && ob.Reference == reference {
			return true, nil
		}
	}
	return false, nil
}

func (svc *service) BillClass(ctx context.Context, studentID, label string, amount decimal.Decimal, dueDate null.Time) (Obligation, error) {
	if !amount.IsPositive() {
		return Obligation{}, core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "amount must be greater than zero"})
	}
	if _, err := svc.dir.GetStudent(ctx, studentID); err != nil {
		return Obligation{}, err
	}
	now := time.Now().UTC()
	ob := Obligation{
		StudentID: studentID,
		Kind:      KindClass,
		Label:     core.CleanString(label),
		Amount:    amount,
		DueDate:   dueDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateObligation(ctx, ob)
}

func (svc *service) QueryObligations(ctx context.Context, studentID string) ([]Obligation, error) {
	return svc.repo.QueryObligationsByStudent(ctx, studentID)
}

// PayCanteen validates the amount against the student's meal plan price before
// touching the ledger; a mismatched amount leaves no trace.
func (svc *service) PayCanteen(ctx context.Context, studentID string, np NewPayment, createdBy string) (Obligation, error) {
	std, err := svc.dir.GetStudent(ctx, studentID)
	if err != nil {
		return Obligation{}, err
	}
	if !std.MealPlanID.Valid {
		return Obligation{}, ErrNoMealPlan
	}
	plan, err := svc.dir.GetMealPlan(ctx, std.MealPlanID.String)
	if err != nil {
		return Obligation{}, err
	}
	if !np.Amount.Equal(plan.Price) {
		return Obligation{}, core.NewValidationError(nil, core.FieldError{
			Field: "amount",
			Error: fmt.Sprintf("amount %s does not match the meal plan price of %s", np.Amount.StringFixed(2), plan.Price.StringFixed(2)),
		})
	}

	if np.PaymentMethod == MethodAccount {
		if err = svc.checkBalance(ctx, studentID, np.Amount); err != nil {
			return Obligation{}, err
		}
	}

	now := time.Now().UTC()
	ob := Obligation{
		StudentID: studentID,
		Kind:      KindCanteen,
		Reference: plan.ID,
		Label:     plan.Name,
		Amount:    plan.Price,
		Paid:      plan.Price,
		Settled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// the ledger entry goes in first so a duplicate request key bails out
	// before any obligation is created
	entry := LedgerEntry{
		StudentID:     studentID,
		Kind:          EntryPayment,
		Amount:        np.Amount,
		PaymentMethod: np.PaymentMethod,
		RequestKey:    np.RequestKey,
		Note:          plan.Name,
		CreatedBy:     createdBy,
		CreatedAt:     now,
	}
	if _, err = svc.repo.CreateEntry(ctx, entry); err != nil {
		return Obligation{}, err
	}
	if ob, err = svc.repo.CreateObligation(ctx, ob); err != nil {
		return Obligation{}, err
	}
	svc.sendReceiptMail(std, np.Amount, ob.Label)
	return ob, nil
}

// Pay applies a payment (plus an optional late fine) to an open obligation.
func (svc *service) Pay(ctx context.Context, obligationID string, np NewPayment, createdBy string) (Obligation, error) {
	ob, err := svc.repo.GetObligation(ctx, obligationID)
	if err != nil {
		return Obligation{}, err
	}
	if ob.Kind == KindCanteen {
		return Obligation{}, core.NewValidationError(nil, core.FieldError{Field: "obligation_id", Error: "canteen payments go through the canteen endpoint"})
	}
	std, err := svc.dir.GetStudent(ctx, ob.StudentID)
	if err != nil {
		return Obligation{}, err
	}

	if np.Fine.IsPositive() {
		ob.Fine = ob.Fine.Add(np.Fine)
	}
	amount := np.Amount
	if amount.IsZero() {
		amount = ob.Outstanding()
	}
	if amount.GreaterThan(ob.Outstanding()) {
		return Obligation{}, core.NewValidationError(nil, core.FieldError{
			Field: "amount",
			Error: fmt.Sprintf("amount exceeds the outstanding balance of %s", ob.Outstanding().StringFixed(2)),
		})
	}

	if np.PaymentMethod == MethodAccount {
		if err = svc.checkBalance(ctx, ob.StudentID, amount); err != nil {
			return Obligation{}, err
		}
	}

	now := time.Now().UTC()
	entry := LedgerEntry{
		StudentID:     ob.StudentID,
		Kind:          EntryPayment,
		Amount:        amount,
		PaymentMethod: np.PaymentMethod,
		ObligationID:  null.StringFrom(ob.ID),
		RequestKey:    np.RequestKey,
		Note:          ob.Label,
		CreatedBy:     createdBy,
		CreatedAt:     now,
	}
	if _, err = svc.repo.CreateEntry(ctx, entry); err != nil {
		return Obligation{}, err
	}
	if np.Fine.IsPositive() {
		fine := LedgerEntry{
			StudentID:    ob.StudentID,
			Kind:         EntryFine,
			Amount:       np.Fine,
			ObligationID: null.StringFrom(ob.ID),
			RequestKey:   np.RequestKey + ":fine",
			Note:         "late payment fine",
			CreatedBy:    createdBy,
			CreatedAt:    now,
		}
		if _, err = svc.repo.CreateEntry(ctx, fine); err != nil {
			return Obligation{}, err
		}
	}

	ob.Paid = ob.Paid.Add(amount)
	ob.Settled = ob.Paid.GreaterThanOrEqual(ob.Amount.Add(ob.Fine))
	ob.UpdatedAt = now
	if ob, err = svc.repo.UpdateObligation(ctx, ob); err != nil {
		return Obligation{}, err
	}
	svc.sendReceiptMail(std, amount, ob.Label)
	return ob, nil
}

func (svc *service) AdjustBalance(ctx context.Context, studentID string, adj Adjustment, createdBy string) (LedgerEntry, error) {
	if _, err := svc.dir.GetStudent(ctx, studentID); err != nil {
		return LedgerEntry{}, err
	}
	amount := adj.Amount
	if adj.Direction == "debit" {
		if err := svc.checkBalance(ctx, studentID, amount); err != nil {
			return LedgerEntry{}, err
		}
		amount = amount.Neg()
	}
	entry := LedgerEntry{
		StudentID:  studentID,
		Kind:       EntryAdjustment,
		Amount:     amount,
		RequestKey: adj.RequestKey,
		Note:       adj.Note,
		CreatedBy:  createdBy,
		CreatedAt:  time.Now().UTC(),
	}
	return svc.repo.CreateEntry(ctx, entry)
}

func (svc *service) Balance(ctx context.Context, studentID string) (decimal.Decimal, error) {
	entries, err := svc.repo.QueryEntriesByStudent(ctx, studentID)
	if err != nil {
		return decimal.Zero, err
	}
	return balanceOf(entries), nil
}

// balanceOf folds a ledger into the account balance. Adjustments carry their
// sign; only account-method payments draw on the balance, cash and the other
// methods settle outside of it.
func balanceOf(entries []LedgerEntry) decimal.Decimal {
	bal := decimal.Zero
	for _, e := range entries {
		switch e.Kind {
		case EntryAdjustment:
			bal = bal.Add(e.Amount)
		case EntryPayment:
			if e.PaymentMethod == MethodAccount {
				bal = bal.Sub(e.Amount)
			}
		}
	}
	return bal
}

func (svc *service) checkBalance(ctx context.Context, studentID string, amount decimal.Decimal) error {
	bal, err := svc.Balance(ctx, studentID)
	if err != nil {
		return err
	}
	if bal.LessThan(amount) {
		return ErrInsufficientBalance
	}
	return nil
}

func (svc *service) Ledger(ctx context.Context, studentID string) ([]LedgerEntry, error) {
	return svc.repo.QueryEntriesByStudent(ctx, studentID)
}

func (svc *service) sendReceiptMail(std school.Student, amount decimal.Decimal, label string) {
	if std.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: std.Name, Address: std.Email}},
		Subject: "Payment Receipt",
		BodyStr: fmt.Sprintf(
			"Hello %s,\n\nWe received your payment of %s for %s. Thank you.",
			std.Name, amount.StringFixed(2), label,
		),
	})
}
