package exam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"
)

func record(studentID string, marks ...interface{}) MarkRecord {
	rec := MarkRecord{StudentID: studentID}
	sm := SubjectMarks{Subject: "Mathematics"}
	for i, m := range marks {
		dm := DistributionMark{DistributionID: string(rune('a' + i))}
		if v, ok := m.(int); ok {
			dm.Mark = null.IntFrom(v)
		}
		sm.Distributions = append(sm.Distributions, dm)
	}
	rec.Subjects = []SubjectMarks{sm}
	return rec
}

func TestMarkRecord_ComputeTotals(t *testing.T) {
	rec := MarkRecord{
		Subjects: []SubjectMarks{
			{Subject: "Mathematics", Distributions: []DistributionMark{
				{DistributionID: "mid", Mark: null.IntFrom(20)},
				{DistributionID: "end", Mark: null.Int{}}, // not entered
			}},
			{Subject: "English", Distributions: []DistributionMark{
				{DistributionID: "mid", Mark: null.IntFrom(30)},
			}},
		},
	}
	rec.ComputeTotals()

	assert.Equal(t, 50, rec.TotalMarks)
	assert.Equal(t, 20, rec.Subjects[0].TotalMark)
	assert.Equal(t, 30, rec.Subjects[1].TotalMark)

	// sum invariant: TotalMarks equals the sum over all subjects
	sum := 0
	for _, sm := range rec.Subjects {
		sum += sm.TotalMark
	}
	assert.Equal(t, sum, rec.TotalMarks)
}

func TestRankRecords(t *testing.T) {
	recs := []MarkRecord{
		record("std1", 20, 30),  // 50
		record("std2", 80),      // 80
		record("std3", nil),     // 0 -> unranked
		record("std4", 50),      // 50: ties with std1, keeps load order after it
		record("std5", 100, 20), // 120
		record("std6"),          // no marks -> unranked
	}

	RankRecords(recs)

	// highest total first with position 1
	assert.Equal(t, "std5", recs[0].StudentID)
	assert.Equal(t, 1, recs[0].Position)
	assert.Equal(t, 120, recs[0].TotalMarks)

	// positions monotonically non-decreasing as totals decrease
	for i := 1; i < len(recs); i++ {
		if recs[i].Position == 0 {
			continue
		}
		assert.True(t, recs[i-1].TotalMarks >= recs[i].TotalMarks)
		assert.True(t, recs[i].Position > recs[i-1].Position)
	}

	// ties among positive totals keep their load order
	assert.Equal(t, "std2", recs[1].StudentID)
	assert.Equal(t, "std1", recs[2].StudentID)
	assert.Equal(t, "std4", recs[3].StudentID)
	assert.Equal(t, 3, recs[2].Position)
	assert.Equal(t, 4, recs[3].Position)

	// zero totals sort last and are unranked
	for _, rec := range recs[4:] {
		assert.Equal(t, 0, rec.TotalMarks)
		assert.Equal(t, 0, rec.Position)
	}
}

func TestRankRecords_allUnranked(t *testing.T) {
	recs := []MarkRecord{record("std1"), record("std2", nil)}
	RankRecords(recs)
	for _, rec := range recs {
		assert.Equal(t, 0, rec.Position)
	}
}

func TestEntryUpdate_Validate(t *testing.T) {
	valid := EntryUpdate{
		Subjects: []SubjectEntry{
			{Subject: "Mathematics", Distributions: []DistributionEntry{
				{DistributionID: "mid", Mark: null.IntFrom(45)},
				{DistributionID: "end"},
			}},
		},
	}
	assert.NoError(t, valid.Validate())

	negative := EntryUpdate{
		Subjects: []SubjectEntry{
			{Subject: "Mathematics", Distributions: []DistributionEntry{
				{DistributionID: "mid", Mark: null.IntFrom(-1)},
			}},
		},
	}
	assert.Error(t, negative.Validate())

	empty := EntryUpdate{}
	assert.Error(t, empty.Validate())
}
