package inmemdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/exam"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
)

func Test_examRepository_UpdateTotals(t *testing.T) {
	ctx := context.Background()
	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := inmemdb.NewExamRepository(db)

	rec1, err := repo.CreateRecord(ctx, exam.MarkRecord{StudentID: "std1", ClassID: "cls", TermID: "term", CreatedBy: "teacher"})
	require.NoError(t, err)
	rec2, err := repo.CreateRecord(ctx, exam.MarkRecord{StudentID: "std2", ClassID: "cls", TermID: "term", CreatedBy: "teacher"})
	require.NoError(t, err)

	now := time.Now().UTC()

	t.Run("a batch with an unknown record changes nothing", func(t *testing.T) {
		batch := []exam.MarkRecord{
			{ID: rec1.ID, TotalMarks: 90, Position: 1, UpdatedAt: now},
			{ID: "nope", TotalMarks: 70, Position: 2, UpdatedAt: now},
		}
		assert.Equal(t, exam.ErrNotFound, repo.UpdateTotals(ctx, batch))

		// every record is untouched, including the valid one listed first
		for _, id := range []string{rec1.ID, rec2.ID} {
			rec, err := repo.GetRecord(ctx, id)
			require.NoError(t, err)
			assert.Zero(t, rec.TotalMarks)
			assert.Zero(t, rec.Position)
		}
	})

	t.Run("a valid batch persists every record", func(t *testing.T) {
		batch := []exam.MarkRecord{
			{ID: rec1.ID, TotalMarks: 90, Position: 1, UpdatedAt: now},
			{ID: rec2.ID, TotalMarks: 70, Position: 2, UpdatedAt: now},
		}
		require.NoError(t, repo.UpdateTotals(ctx, batch))

		rec, err := repo.GetRecord(ctx, rec1.ID)
		require.NoError(t, err)
		assert.Equal(t, 90, rec.TotalMarks)
		assert.Equal(t, 1, rec.Position)

		rec, err = repo.GetRecord(ctx, rec2.ID)
		require.NoError(t, err)
		assert.Equal(t, 70, rec.TotalMarks)
		assert.Equal(t, 2, rec.Position)
	})
}
