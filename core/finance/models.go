package finance

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
)

// Obligation kinds
const (
	KindCanteen = "canteen"
	KindClass   = "class"
	KindFees    = "fees"
)

// Ledger entry kinds
const (
	EntryPayment    = "payment"
	EntryFine       = "fine"
	EntryAdjustment = "adjustment"
)

// Payment methods
const (
	MethodCash        = "cash"
	MethodCheque      = "cheque"
	MethodMobileMoney = "mobile_money"
	MethodCard        = "card"
	// MethodAccount pays out of the student's account balance; it is the only
	// method that debits the balance projection.
	MethodAccount = "account"
)

type (
	FeeItem struct {
		Category string          `json:"category" validate:"required"`
		Amount   decimal.Decimal `json:"amount"`
	}

	// FeeStructure is the priced fee breakdown for a class+term+session.
	FeeStructure struct {
		ID        string          `json:"id"`
		ClassID   string          `json:"class_id"`
		TermID    string          `json:"term_id"`
		Session   string          `json:"session"`
		Items     []FeeItem       `json:"items"`
		DueDate   time.Time       `json:"due_date"`
		CreatedAt time.Time       `json:"created_at"` // UTC
		UpdatedAt time.Time       `json:"updated_at"` // UTC
	}

	// Obligation is a priced item a student owes against: a canteen meal plan,
	// a class fee or a term's fee structure. Paid accumulates across payments;
	// Settled flips once Paid covers Amount.
	Obligation struct {
		ID        string          `json:"id"`
		StudentID string          `json:"student_id"`
		Kind      string          `json:"kind"`
		Reference string          `json:"reference"` // meal plan / fee structure / class bill ID
		Label     string          `json:"label"`
		Amount    decimal.Decimal `json:"amount"`
		Fine      decimal.Decimal `json:"fine"`
		Paid      decimal.Decimal `json:"paid"`
		Settled   bool            `json:"settled"`
		DueDate   null.Time       `json:"due_date"`
		CreatedAt time.Time       `json:"created_at"`
		UpdatedAt time.Time       `json:"updated_at"`
	}

	// LedgerEntry is one movement in a student's ledger. All payments, fines
	// and manual balance adjustments go through here; the account balance is a
	// projection over these entries, never a separately mutated field.
	LedgerEntry struct {
		ID            string          `json:"id"`
		StudentID     string          `json:"student_id"`
		Kind          string          `json:"kind"`
		Amount        decimal.Decimal `json:"amount"`
		PaymentMethod string          `json:"payment_method,omitempty"`
		ObligationID  null.String     `json:"obligation_id"`
		// RequestKey is the client-supplied idempotency key; a duplicate key
		// is rejected instead of creating a second transaction.
		RequestKey string    `json:"request_key"`
		Note       string    `json:"note,omitempty"`
		CreatedBy  string    `json:"created_by"`
		CreatedAt  time.Time `json:"created_at"` // UTC
	}
)

// Outstanding returns what is still owed on the obligation, fines included.
func (ob *Obligation) Outstanding() decimal.Decimal {
	out := ob.Amount.Add(ob.Fine).Sub(ob.Paid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// NewFeeStructure contains information needed to create a new FeeStructure.
type NewFeeStructure struct {
	ClassID string    `json:"class_id" validate:"required"`
	TermID  string    `json:"term_id" validate:"required"`
	Session string    `json:"session" validate:"required"`
	Items   []FeeItem `json:"items" validate:"required,min=1,dive"`
	DueDate time.Time `json:"due_date" validate:"required"`
}

func (nf *NewFeeStructure) Validate() error {
	nf.Session = core.CleanString(nf.Session)
	for i := range nf.Items {
		nf.Items[i].Category = core.CleanString(nf.Items[i].Category)
	}
	if err := core.Validate.Struct(nf); err != nil {
		return err
	}
	for _, item := range nf.Items {
		if !item.Amount.IsPositive() {
			return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "fee amounts must be greater than zero"})
		}
	}
	return nil
}

// FeeItemsUpdate replaces a fee structure's line items. Everything else on
// the structure is immutable after creation.
type FeeItemsUpdate struct {
	Items []FeeItem `json:"items" validate:"required,min=1,dive"`
}

func (fu *FeeItemsUpdate) Validate() error {
	for i := range fu.Items {
		fu.Items[i].Category = core.CleanString(fu.Items[i].Category)
	}
	if err := core.Validate.Struct(fu); err != nil {
		return err
	}
	for _, item := range fu.Items {
		if !item.Amount.IsPositive() {
			return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "fee amounts must be greater than zero"})
		}
	}
	return nil
}

// NewPayment is a payment submission against an obligation.
type NewPayment struct {
	Amount        decimal.Decimal `json:"amount"`
	Fine          decimal.Decimal `json:"fine"`
	PaymentMethod string          `json:"payment_method" validate:"required,oneof=cash cheque mobile_money card account"`
	RequestKey    string          `json:"request_key" validate:"required"`
}

func (np *NewPayment) Validate() error {
	np.RequestKey = core.CleanString(np.RequestKey)
	if err := core.Validate.Struct(np); err != nil {
		return err
	}
	if np.Amount.IsNegative() || np.Fine.IsNegative() {
		return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "amounts cannot be negative"})
	}
	return nil
}

// Adjustment is an operator-triggered credit or debit of a student's account
// balance, recorded as a ledger entry like everything else.
type Adjustment struct {
	Amount     decimal.Decimal `json:"amount"`
	Direction  string          `json:"direction" validate:"required,oneof=credit debit"`
	Note       string          `json:"note"`
	RequestKey string          `json:"request_key" validate:"required"`
}

func (adj *Adjustment) Validate() error {
	adj.Note = core.CleanString(adj.Note)
	adj.RequestKey = core.CleanString(adj.RequestKey)
	if err := core.Validate.Struct(adj); err != nil {
		return err
	}
	if !adj.Amount.IsPositive() {
		return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "amount must be greater than zero"})
	}
	return nil
}
