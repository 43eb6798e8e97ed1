package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/finance"
)

const pqUniqueViolation = "23505"

type (
	feeStructureRow struct {
		ID        string       `db:"id"`
		ClassID   string       `db:"class_id"`
		TermID    string       `db:"term_id"`
		Session   string       `db:"session"`
		Items     []byte       `db:"items"`
		DueDate   sql.NullTime `db:"due_date"`
		CreatedAt sql.NullTime `db:"created_at"`
		UpdatedAt sql.NullTime `db:"updated_at"`
	}

	obligationRow struct {
		ID        string          `db:"id"`
		StudentID string          `db:"student_id"`
		Kind      string          `db:"kind"`
		Reference string          `db:"reference"`
		Label     string          `db:"label"`
		Amount    decimal.Decimal `db:"amount"`
		Fine      decimal.Decimal `db:"fine"`
		Paid      decimal.Decimal `db:"paid"`
		Settled   bool            `db:"settled"`
		DueDate   null.Time       `db:"due_date"`
		CreatedAt sql.NullTime    `db:"created_at"`
		UpdatedAt sql.NullTime    `db:"updated_at"`
	}

	ledgerEntryRow struct {
		ID            string          `db:"id"`
		StudentID     string          `db:"student_id"`
		Kind          string          `db:"kind"`
		Amount        decimal.Decimal `db:"amount"`
		PaymentMethod string          `db:"payment_method"`
		ObligationID  null.String     `db:"obligation_id"`
		RequestKey    string          `db:"request_key"`
		Note          string          `db:"note"`
		CreatedBy     string          `db:"created_by"`
		CreatedAt     sql.NullTime    `db:"created_at"`
	}
)

func (row feeStructureRow) unpack() (finance.FeeStructure, error) {
	fs := finance.FeeStructure{
		ID:        row.ID,
		ClassID:   row.ClassID,
		TermID:    row.TermID,
		Session:   row.Session,
		DueDate:   row.DueDate.Time,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
	if err := json.Unmarshal(row.Items, &fs.Items); err != nil {
		return finance.FeeStructure{}, errors.Wrap(err, "unpacking fee items")
	}
	return fs, nil
}

func (row obligationRow) unpack() finance.Obligation {
	return finance.Obligation{
		ID:        row.ID,
		StudentID: row.StudentID,
		Kind:      row.Kind,
		Reference: row.Reference,
		Label:     row.Label,
		Amount:    row.Amount,
		Fine:      row.Fine,
		Paid:      row.Paid,
		Settled:   row.Settled,
		DueDate:   row.DueDate,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}

func (row ledgerEntryRow) unpack() finance.LedgerEntry {
	return finance.LedgerEntry{
		ID:            row.ID,
		StudentID:     row.StudentID,
		Kind:          row.Kind,
		Amount:        row.Amount,
		PaymentMethod: row.PaymentMethod,
		ObligationID:  row.ObligationID,
		RequestKey:    row.RequestKey,
		Note:          row.Note,
		CreatedBy:     row.CreatedBy,
		CreatedAt:     row.CreatedAt.Time,
	}
}

type financeRepository struct {
	exec core.DBExecutor
}

var _ finance.Repository = (*financeRepository)(nil) // interface compliance check

func NewFinanceRepository(exec core.DBExecutor) *financeRepository {
	return &financeRepository{exec: exec}
}

func (repo financeRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo financeRepository) CreateFeeStructure(ctx context.Context, fs finance.FeeStructure, exec ...core.DBExecutor) (finance.FeeStructure, error) {
	db := repo.getExec(exec)

	fs.ID = uuid.New().String()
	items, err := json.Marshal(fs.Items)
	if err != nil {
		return finance.FeeStructure{}, errors.Wrap(err, "packing fee items")
	}

	q := db.Rebind(`
		INSERT INTO fee_structure (id, class_id, term_id, session, items, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = db.ExecContext(ctx, q, fs.ID, fs.ClassID, fs.TermID, fs.Session, items, fs.DueDate, fs.CreatedAt, fs.UpdatedAt)
	if err != nil {
		return finance.FeeStructure{}, errors.Wrap(err, "inserting fee structure")
	}
	return fs, nil
}

func (repo financeRepository) GetFeeStructure(ctx context.Context, id string, exec ...core.DBExecutor) (finance.FeeStructure, error) {
	db := repo.getExec(exec)

	var row feeStructureRow
	if err := db.GetContext(ctx, &row, db.Rebind(`SELECT * FROM fee_structure WHERE id = ?`), id); err != nil {
		return finance.FeeStructure{}, trapNoRowsErr(err, finance.ErrFeeStructureNotFound, "getting fee structure")
	}
	return row.unpack()
}

func (repo financeRepository) QueryFeeStructures(ctx context.Context, classID, termID string, exec ...core.DBExecutor) ([]finance.FeeStructure, error) {
	db := repo.getExec(exec)

	q := `SELECT * FROM fee_structure`
	var conds []string
	var args []interface{}
	if classID != "" {
		conds = append(conds, `class_id = ?`)
		args = append(args, classID)
	}
	if termID != "" {
		conds = append(conds, `term_id = ?`)
		args = append(args, termID)
	}
	for i, cond := range conds {
		if i == 0 {
			q += ` WHERE ` + cond
		} else {
			q += ` AND ` + cond
		}
	}
	q += ` ORDER BY created_at`

	var rows []feeStructureRow
	if err := db.SelectContext(ctx, &rows, db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying fee structures")
	}
	structs := make([]finance.FeeStructure, 0, len(rows))
	for _, row := range rows {
		fs, err := row.unpack()
		if err != nil {
			return nil, err
		}
		structs = append(structs, fs)
	}
	return structs, nil
}

func (repo financeRepository) UpdateFeeStructure(ctx context.Context, fs finance.FeeStructure, exec ...core.DBExecutor) (finance.FeeStructure, error) {
	db := repo.getExec(exec)

	items, err := json.Marshal(fs.Items)
	if err != nil {
		return finance.FeeStructure{}, errors.Wrap(err, "packing fee items")
	}

	q := db.Rebind(`UPDATE fee_structure SET items = ?, updated_at = ? WHERE id = ? RETURNING id`)
	var id string
	if err = db.GetContext(ctx, &id, q, items, fs.UpdatedAt, fs.ID); err != nil {
		return finance.FeeStructure{}, trapNoRowsErr(err, finance.ErrFeeStructureNotFound, "updating fee structure")
	}
	return fs, nil
}

func (repo financeRepository) DeleteFeeStructure(ctx context.Context, id string, exec ...core.DBExecutor) error {
	db := repo.getExec(exec)

	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM fee_structure WHERE id = ?`), id)
	if err != nil {
		return errors.Wrap(err, "deleting fee structure")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "deleting fee structure")
	} else if n == 0 {
		return finance.ErrFeeStructureNotFound
	}
	return nil
}

func (repo financeRepository) CreateObligation(ctx context.Context, ob finance.Obligation, exec ...core.DBExecutor) (finance.Obligation, error) {
	db := repo.getExec(exec)

	ob.ID = uuid.New().String()
	q := db.Rebind(`
		INSERT INTO obligation (id, student_id, kind, reference, label, amount, fine, paid, settled, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := db.ExecContext(ctx, q,
		ob.ID, ob.StudentID, ob.Kind, ob.Reference, ob.Label,
		ob.Amount, ob.Fine, ob.Paid, ob.Settled, ob.DueDate, ob.CreatedAt, ob.UpdatedAt,
	)
	if err != nil {
		return finance.Obligation{}, errors.Wrap(err, "inserting obligation")
	}
	return ob, nil
}

func (repo financeRepository) GetObligation(ctx context.Context, id string, exec ...core.DBExecutor) (finance.Obligation, error) {
	db := repo.getExec(exec)

	var row obligationRow
	if err := db.GetContext(ctx, &row, db.Rebind(`SELECT * FROM obligation WHERE id = ?`), id); err != nil {
		return finance.Obligation{}, trapNoRowsErr(err, finance.ErrObligationNotFound, "getting obligation")
	}
	return row.unpack(), nil
}

func (repo financeRepository) QueryObligationsByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]finance.Obligation, error) {
	db := repo.getExec(exec)

	var rows []obligationRow
	q := db.Rebind(`SELECT * FROM obligation WHERE student_id = ? ORDER BY created_at, id`)
	if err := db.SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying obligations")
	}
	obs := make([]finance.Obligation, 0, len(rows))
	for _, row := range rows {
		obs = append(obs, row.unpack())
	}
	return obs, nil
}

func (repo financeRepository) UpdateObligation(ctx context.Context, ob finance.Obligation, exec ...core.DBExecutor) (finance.Obligation, error) {
	db := repo.getExec(exec)

	q := db.Rebind(`
		UPDATE obligation SET amount = ?, fine = ?, paid = ?, settled = ?, due_date = ?, updated_at = ?
		WHERE id = ? RETURNING id`)
	var id string
	err := db.GetContext(ctx, &id, q, ob.Amount, ob.Fine, ob.Paid, ob.Settled, ob.DueDate, ob.UpdatedAt, ob.ID)
	if err != nil {
		return finance.Obligation{}, trapNoRowsErr(err, finance.ErrObligationNotFound, "updating obligation")
	}
	return ob, nil
}

func (repo financeRepository) CreateEntry(ctx context.Context, entry finance.LedgerEntry, exec ...core.DBExecutor) (finance.LedgerEntry, error) {
	db := repo.getExec(exec)

	entry.ID = uuid.New().String()
	q := db.Rebind(`
		INSERT INTO ledger_entry (id, student_id, kind, amount, payment_method, obligation_id, request_key, note, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := db.ExecContext(ctx, q,
		entry.ID, entry.StudentID, entry.Kind, entry.Amount, entry.PaymentMethod,
		entry.ObligationID, entry.RequestKey, entry.Note, entry.CreatedBy, entry.CreatedAt,
	)
	if err != nil {
		// the unique index on request_key is the idempotency guard
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return finance.LedgerEntry{}, finance.ErrDuplicatePayment
		}
		return finance.LedgerEntry{}, errors.Wrap(err, "inserting ledger entry")
	}
	return entry, nil
}

func (repo financeRepository) QueryEntriesByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]finance.LedgerEntry, error) {
	db := repo.getExec(exec)

	var rows []ledgerEntryRow
	q := db.Rebind(`SELECT * FROM ledger_entry WHERE student_id = ? ORDER BY created_at, id`)
	if err := db.SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying ledger entries")
	}
	entries := make([]finance.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.unpack())
	}
	return entries, nil
}
