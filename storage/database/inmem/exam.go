package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/exam"
)

type examRepository struct {
	db *examTable
}

func NewExamRepository(db *DB) exam.Repository {
	return &examRepository{db: db.exam}
}

func (repo *examRepository) CreateRecord(_ context.Context, rec exam.MarkRecord, _ ...core.DBExecutor) (exam.MarkRecord, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rec.ID = uuid.New().String()
	repo.db.records[rec.ID] = &rec
	repo.db.order = append(repo.db.order, rec.ID)
	return rec, nil
}

func (repo *examRepository) GetRecord(_ context.Context, id string, _ ...core.DBExecutor) (exam.MarkRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.records[id]; ok {
		return *rec, nil
	}
	return exam.MarkRecord{}, exam.ErrNotFound
}

func (repo *examRepository) QueryRecords(_ context.Context, classID, termID string, _ ...core.DBExecutor) ([]exam.MarkRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := make([]exam.MarkRecord, 0)
	for _, id := range repo.db.order {
		rec := repo.db.records[id]
		if rec.ClassID == classID && rec.TermID == termID {
			recs = append(recs, *rec)
		}
	}
	return recs, nil
}

func (repo *examRepository) UpdateRecord(_ context.Context, rec exam.MarkRecord, _ ...core.DBExecutor) (exam.MarkRecord, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.records[rec.ID]; !ok {
		return exam.MarkRecord{}, exam.ErrNotFound
	}
	repo.db.records[rec.ID] = &rec
	return rec, nil
}

func (repo *examRepository) UpdateTotals(_ context.Context, recs []exam.MarkRecord) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	// all or nothing
	for _, rec := range recs {
		if _, ok := repo.db.records[rec.ID]; !ok {
			return exam.ErrNotFound
		}
	}
	for _, rec := range recs {
		orig := repo.db.records[rec.ID]
		orig.Subjects = rec.Subjects
		orig.TotalMarks = rec.TotalMarks
		orig.Position = rec.Position
		orig.UpdatedAt = rec.UpdatedAt
	}
	return nil
}

func (repo *examRepository) SetPublished(_ context.Context, classID, termID string, publish bool, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var n int
	for _, rec := range repo.db.records {
		if rec.ClassID == classID && rec.TermID == termID {
			rec.Publish = publish
			n++
		}
	}
	return n, nil
}
