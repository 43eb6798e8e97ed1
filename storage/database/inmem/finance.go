package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/finance"
)

type financeRepository struct {
	db *financeTable
}

func NewFinanceRepository(db *DB) finance.Repository {
	return &financeRepository{db: db.finance}
}

func (repo *financeRepository) CreateFeeStructure(_ context.Context, fs finance.FeeStructure, _ ...core.DBExecutor) (finance.FeeStructure, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	fs.ID = uuid.New().String()
	repo.db.feeStructures[fs.ID] = &fs
	return fs, nil
}

func (repo *financeRepository) GetFeeStructure(_ context.Context, id string, _ ...core.DBExecutor) (finance.FeeStructure, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if fs, ok := repo.db.feeStructures[id]; ok {
		return *fs, nil
	}
	return finance.FeeStructure{}, finance.ErrFeeStructureNotFound
}

func (repo *financeRepository) QueryFeeStructures(_ context.Context, classID, termID string, _ ...core.DBExecutor) ([]finance.FeeStructure, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	structs := make([]finance.FeeStructure, 0)
	for _, fs := range repo.db.feeStructures {
		if classID != "" && fs.ClassID != classID {
			continue
		}
		if termID != "" && fs.TermID != termID {
			continue
		}
		structs = append(structs, *fs)
	}
	return structs, nil
}

func (repo *financeRepository) UpdateFeeStructure(_ context.Context, fs finance.FeeStructure, _ ...core.DBExecutor) (finance.FeeStructure, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.feeStructures[fs.ID]; !ok {
		return finance.FeeStructure{}, finance.ErrFeeStructureNotFound
	}
	repo.db.feeStructures[fs.ID] = &fs
	return fs, nil
}

func (repo *financeRepository) DeleteFeeStructure(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.feeStructures[id]; !ok {
		return finance.ErrFeeStructureNotFound
	}
	delete(repo.db.feeStructures, id)
	return nil
}

func (repo *financeRepository) CreateObligation(_ context.Context, ob finance.Obligation, _ ...core.DBExecutor) (finance.Obligation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	ob.ID = uuid.New().String()
	repo.db.obligations[ob.ID] = &ob
	repo.db.obOrder = append(repo.db.obOrder, ob.ID)
	return ob, nil
}

func (repo *financeRepository) GetObligation(_ context.Context, id string, _ ...core.DBExecutor) (finance.Obligation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if ob, ok := repo.db.obligations[id]; ok {
		return *ob, nil
	}
	return finance.Obligation{}, finance.ErrObligationNotFound
}

func (repo *financeRepository) QueryObligationsByStudent(_ context.Context, studentID string, _ ...core.DBExecutor) ([]finance.Obligation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	obs := make([]finance.Obligation, 0)
	for _, id := range repo.db.obOrder {
		ob := repo.db.obligations[id]
		if ob.StudentID == studentID {
			obs = append(obs, *ob)
		}
	}
	return obs, nil
}

func (repo *financeRepository) UpdateObligation(_ context.Context, ob finance.Obligation, _ ...core.DBExecutor) (finance.Obligation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.obligations[ob.ID]; !ok {
		return finance.Obligation{}, finance.ErrObligationNotFound
	}
	repo.db.obligations[ob.ID] = &ob
	return ob, nil
}

func (repo *financeRepository) CreateEntry(_ context.Context, entry finance.LedgerEntry, _ ...core.DBExecutor) (finance.LedgerEntry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.requestKeys[entry.RequestKey] {
		return finance.LedgerEntry{}, finance.ErrDuplicatePayment
	}
	entry.ID = uuid.New().String()
	repo.db.entries[entry.ID] = &entry
	repo.db.entryOrder = append(repo.db.entryOrder, entry.ID)
	repo.db.requestKeys[entry.RequestKey] = true
	return entry, nil
}

func (repo *financeRepository) QueryEntriesByStudent(_ context.Context, studentID string, _ ...core.DBExecutor) ([]finance.LedgerEntry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	entries := make([]finance.LedgerEntry, 0)
	for _, id := range repo.db.entryOrder {
		entry := repo.db.entries[id]
		if entry.StudentID == studentID {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}
