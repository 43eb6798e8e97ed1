package exam

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
)

type (
	// DistributionMark holds the mark a student scored on one grading
	// component of a subject. A null Mark means "not entered yet" and counts
	// as 0 when totals are computed.
	DistributionMark struct {
		DistributionID string   `json:"distribution_id"`
		Mark           null.Int `json:"mark"`
	}

	SubjectMarks struct {
		Subject       string             `json:"subject"`
		TotalMark     int                `json:"total_mark"`
		Distributions []DistributionMark `json:"distributions"`
	}

	// MarkRecord is the per-student, per-term record holding all subject and
	// distribution marks together with the derived class rank.
	//
	// TotalMarks and Position are only recomputed by Service.GeneratePosition;
	// they may be stale relative to individually edited marks until then.
	MarkRecord struct {
		ID         string         `json:"id"`
		StudentID  string         `json:"student_id"`
		ClassID    string         `json:"class_id"`
		TermID     string         `json:"term_id"`
		Subjects   []SubjectMarks `json:"subjects"`
		TotalMarks int            `json:"total_marks"`
		// Position is the 1-based class rank; 0 means unranked (no positive total).
		Position  int       `json:"position"`
		Publish   bool      `json:"publish"`
		CreatedBy string    `json:"created_by"`
		CreatedAt time.Time `json:"created_at"` // UTC
		UpdatedAt time.Time `json:"updated_at"` // UTC
	}
)

// ComputeTotals recomputes every subject's TotalMark and the record's
// TotalMarks from the distribution marks, treating null marks as 0.
func (rec *MarkRecord) ComputeTotals() {
	total := 0
	for i := range rec.Subjects {
		subTotal := 0
		for _, d := range rec.Subjects[i].Distributions {
			if d.Mark.Valid {
				subTotal += int(d.Mark.Int)
			}
		}
		rec.Subjects[i].TotalMark = subTotal
		total += subTotal
	}
	rec.TotalMarks = total
}

// DistributionEntry is one mark value submitted by a teacher.
type DistributionEntry struct {
	DistributionID string   `json:"distribution_id" validate:"required"`
	Mark           null.Int `json:"mark"`
}

type SubjectEntry struct {
	Subject       string              `json:"subject" validate:"required"`
	Distributions []DistributionEntry `json:"distributions" validate:"required,min=1,dive"`
}

// EntryUpdate is the nested subject→distribution→mark payload a teacher
// submits for one student's MarkRecord.
type EntryUpdate struct {
	Subjects []SubjectEntry `json:"subjects" validate:"required,min=1,dive"`
	Publish  *bool          `json:"publish"`
}

func (eu *EntryUpdate) Validate() error {
	for i := range eu.Subjects {
		eu.Subjects[i].Subject = core.CleanString(eu.Subjects[i].Subject)
	}
	if err := core.Validate.Struct(eu); err != nil {
		return err
	}
	for _, se := range eu.Subjects {
		for _, de := range se.Distributions {
			if de.Mark.Valid && de.Mark.Int < 0 {
				return core.NewValidationError(nil, core.FieldError{Field: "mark", Error: "marks cannot be negative"})
			}
		}
	}
	return nil
}
