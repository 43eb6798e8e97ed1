package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/exam"
)

type markRecordRow struct {
	ID         string       `db:"id"`
	StudentID  string       `db:"student_id"`
	ClassID    string       `db:"class_id"`
	TermID     string       `db:"term_id"`
	Subjects   []byte       `db:"subjects"`
	TotalMarks int          `db:"total_marks"`
	Position   int          `db:"position"`
	Publish    bool         `db:"publish"`
	CreatedBy  string       `db:"created_by"`
	CreatedAt  sql.NullTime `db:"created_at"`
	UpdatedAt  sql.NullTime `db:"updated_at"`
}

func (row markRecordRow) unpack() (exam.MarkRecord, error) {
	rec := exam.MarkRecord{
		ID:         row.ID,
		StudentID:  row.StudentID,
		ClassID:    row.ClassID,
		TermID:     row.TermID,
		TotalMarks: row.TotalMarks,
		Position:   row.Position,
		Publish:    row.Publish,
		CreatedBy:  row.CreatedBy,
		CreatedAt:  row.CreatedAt.Time,
		UpdatedAt:  row.UpdatedAt.Time,
	}
	if err := json.Unmarshal(row.Subjects, &rec.Subjects); err != nil {
		return exam.MarkRecord{}, errors.Wrap(err, "unpacking record subjects")
	}
	return rec, nil
}

type examRepository struct {
	db core.DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db core.DB) *examRepository {
	return &examRepository{db: db}
}

func (repo examRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

func (repo examRepository) CreateRecord(ctx context.Context, rec exam.MarkRecord, exec ...core.DBExecutor) (exam.MarkRecord, error) {
	db := repo.getExec(exec)

	rec.ID = uuid.New().String()
	subjects, err := json.Marshal(rec.Subjects)
	if err != nil {
		return exam.MarkRecord{}, errors.Wrap(err, "packing record subjects")
	}

	q := db.Rebind(`
		INSERT INTO mark_record (id, student_id, class_id, term_id, subjects, total_marks, position, publish, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = db.ExecContext(ctx, q,
		rec.ID, rec.StudentID, rec.ClassID, rec.TermID, subjects,
		rec.TotalMarks, rec.Position, rec.Publish, rec.CreatedBy, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return exam.MarkRecord{}, errors.Wrap(err, "inserting mark record")
	}
	return rec, nil
}

func (repo examRepository) GetRecord(ctx context.Context, id string, exec ...core.DBExecutor) (exam.MarkRecord, error) {
	db := repo.getExec(exec)

	var row markRecordRow
	if err := db.GetContext(ctx, &row, db.Rebind(`SELECT * FROM mark_record WHERE id = ?`), id); err != nil {
		return exam.MarkRecord{}, trapNoRowsErr(err, exam.ErrNotFound, "getting mark record")
	}
	return row.unpack()
}

func (repo examRepository) QueryRecords(ctx context.Context, classID, termID string, exec ...core.DBExecutor) ([]exam.MarkRecord, error) {
	db := repo.getExec(exec)

	var rows []markRecordRow
	q := db.Rebind(`SELECT * FROM mark_record WHERE class_id = ? AND term_id = ? ORDER BY created_at, id`)
	if err := db.SelectContext(ctx, &rows, q, classID, termID); err != nil {
		return nil, errors.Wrap(err, "querying mark records")
	}
	recs := make([]exam.MarkRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.unpack()
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (repo examRepository) UpdateRecord(ctx context.Context, rec exam.MarkRecord, exec ...core.DBExecutor) (exam.MarkRecord, error) {
	db := repo.getExec(exec)

	subjects, err := json.Marshal(rec.Subjects)
	if err != nil {
		return exam.MarkRecord{}, errors.Wrap(err, "packing record subjects")
	}

	q := db.Rebind(`
		UPDATE mark_record SET subjects = ?, total_marks = ?, position = ?, publish = ?, updated_at = ?
		WHERE id = ? RETURNING id`)
	var id string
	err = db.GetContext(ctx, &id, q, subjects, rec.TotalMarks, rec.Position, rec.Publish, rec.UpdatedAt, rec.ID)
	if err != nil {
		return exam.MarkRecord{}, trapNoRowsErr(err, exam.ErrNotFound, "updating mark record")
	}
	return rec, nil
}

// UpdateTotals persists the whole batch in one transaction so a class is never
// left half-ranked.
func (repo examRepository) UpdateTotals(ctx context.Context, recs []exam.MarkRecord) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	q := tx.Rebind(`UPDATE mark_record SET subjects = ?, total_marks = ?, position = ?, updated_at = ? WHERE id = ?`)
	for _, rec := range recs {
		subjects, err := json.Marshal(rec.Subjects)
		if err != nil {
			return errors.Wrap(err, "packing record subjects")
		}
		res, err := tx.ExecContext(ctx, q, subjects, rec.TotalMarks, rec.Position, rec.UpdatedAt, rec.ID)
		if err != nil {
			return errors.Wrap(err, "updating totals")
		}
		if n, err := res.RowsAffected(); err != nil {
			return errors.Wrap(err, "updating totals")
		} else if n == 0 {
			return exam.ErrNotFound
		}
	}
	return errors.Wrap(tx.Commit(), "committing totals")
}

func (repo examRepository) SetPublished(ctx context.Context, classID, termID string, publish bool, exec ...core.DBExecutor) (int, error) {
	db := repo.getExec(exec)

	q := db.Rebind(`UPDATE mark_record SET publish = ? WHERE class_id = ? AND term_id = ?`)
	res, err := db.ExecContext(ctx, q, publish, classID, termID)
	if err != nil {
		return 0, errors.Wrap(err, "publishing mark records")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "publishing mark records")
}
