package exam

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/school"
)

var (
	// errors
	ErrNotFound = errors.New("mark record not found")
)

type (
	// SchoolDirectory is the subset of the school repository the exam service
	// needs; school.Repository satisfies it.
	SchoolDirectory interface {
		QueryStudentsByClass(ctx context.Context, classID string, exec ...core.DBExecutor) ([]school.Student, error)
		QuerySubjectsByClass(ctx context.Context, classID string, exec ...core.DBExecutor) ([]school.Subject, error)
	}

	Repository interface {
		CreateRecord(ctx context.Context, rec MarkRecord, exec ...core.DBExecutor) (MarkRecord, error)
		GetRecord(ctx context.Context, id string, exec ...core.DBExecutor) (MarkRecord, error)
		// QueryRecords returns all mark records for a class+term ordered by
		// creation time. An empty result is not an error.
		QueryRecords(ctx context.Context, classID, termID string, exec ...core.DBExecutor) ([]MarkRecord, error)
		UpdateRecord(ctx context.Context, rec MarkRecord, exec ...core.DBExecutor) (MarkRecord, error)
		// UpdateTotals persists TotalMarks and Position of all given records
		// atomically: either every record is updated or none is.
		UpdateTotals(ctx context.Context, recs []MarkRecord) error
		SetPublished(ctx context.Context, classID, termID string, publish bool, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		QueryByClass(ctx context.Context, classID, termID string) ([]MarkRecord, error)
		GetByID(ctx context.Context, id string) (MarkRecord, error)
		InitTerm(ctx context.Context, classID, termID, createdBy string) ([]MarkRecord, error)
		SaveEntries(ctx context.Context, id string, eu EntryUpdate) (MarkRecord, error)
		GeneratePosition(ctx context.Context, classID, termID string) error
		Publish(ctx context.Context, classID, termID string, publish bool) error
	}

	service struct {
		repo    Repository
		dir     SchoolDirectory
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, dir SchoolDirectory, mailSvc core.EmailService) Service {
	return &service{
		repo:    repo,
		dir:     dir,
		mailSvc: mailSvc,
	}
}

func (svc *service) QueryByClass(ctx context.Context, classID, termID string) ([]MarkRecord, error) {
	return svc.repo.QueryRecords(ctx, classID, termID)
}

func (svc *service) GetByID(ctx context.Context, id string) (MarkRecord, error) {
	return svc.repo.GetRecord(ctx, id)
}

// InitTerm creates one blank MarkRecord per enrolled student, pre-filled with
// the class subjects and null distribution marks. Students that already have a
// record for the term are skipped.
func (svc *service) InitTerm(ctx context.Context, classID, termID, createdBy string) ([]MarkRecord, error) {
	students, err := svc.dir.QueryStudentsByClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	subjects, err := svc.dir.QuerySubjectsByClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	existing, err := svc.repo.QueryRecords(ctx, classID, termID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	for _, rec := range existing {
		seen[rec.StudentID] = true
	}

	now := time.Now().UTC()
	created := make([]MarkRecord, 0, len(students))
	for _, std := range students {
		if seen[std.ID] {
			continue
		}
		rec := MarkRecord{
			StudentID: std.ID,
			ClassID:   classID,
			TermID:    termID,
			Subjects:  blankSubjects(subjects),
			CreatedBy: createdBy,
			CreatedAt: now,
			UpdatedAt: now,
		}
		rec, err = svc.repo.CreateRecord(ctx, rec)
		if err != nil {
			return created, err
		}
		created = append(created, rec)
	}
	return created, nil
}

func blankSubjects(subjects []school.Subject) []SubjectMarks {
	marks := make([]SubjectMarks, 0, len(subjects))
	for _, sub := range subjects {
		sm := SubjectMarks{Subject: sub.Name}
		for _, d := range sub.Distributions {
			sm.Distributions = append(sm.Distributions, DistributionMark{DistributionID: d.ID})
		}
		marks = append(marks, sm)
	}
	return marks
}

// SaveEntries merges a teacher's submitted marks into one student's record.
// TotalMarks and Position are NOT recomputed here; ranking stays an explicit
// batch action (GeneratePosition) so a half-entered class is never ranked.
func (svc *service) SaveEntries(ctx context.Context, id string, eu EntryUpdate) (MarkRecord, error) {
	rec, err := svc.repo.GetRecord(ctx, id)
	if err != nil {
		return MarkRecord{}, err
	}

	for _, se := range eu.Subjects {
		sm := findSubject(&rec, se.Subject)
		for _, de := range se.Distributions {
			dm := findDistribution(sm, de.DistributionID)
			dm.Mark = de.Mark
		}
	}
	if eu.Publish != nil {
		rec.Publish = *eu.Publish
	}
	rec.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateRecord(ctx, rec)
}

func findSubject(rec *MarkRecord, name string) *SubjectMarks {
	for i := range rec.Subjects {
		if rec.Subjects[i].Subject == name {
			return &rec.Subjects[i]
		}
	}
	rec.Subjects = append(rec.Subjects, SubjectMarks{Subject: name})
	return &rec.Subjects[len(rec.Subjects)-1]
}

func findDistribution(sm *SubjectMarks, distributionID string) *DistributionMark {
	for i := range sm.Distributions {
		if sm.Distributions[i].DistributionID == distributionID {
			return &sm.Distributions[i]
		}
	}
	sm.Distributions = append(sm.Distributions, DistributionMark{DistributionID: distributionID})
	return &sm.Distributions[len(sm.Distributions)-1]
}

// GeneratePosition recomputes TotalMarks for every record of the class+term
// and assigns 1-based positions by descending total. Records with a total of
// zero or less are not ranked (Position 0) and sort last; ties among positive
// totals keep their load order. All records are persisted in one transaction.
func (svc *service) GeneratePosition(ctx context.Context, classID, termID string) error {
	recs, err := svc.repo.QueryRecords(ctx, classID, termID)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}

	RankRecords(recs)

	now := time.Now().UTC()
	for i := range recs {
		recs[i].UpdatedAt = now
	}
	return svc.repo.UpdateTotals(ctx, recs)
}

// RankRecords computes totals and assigns positions in place.
func RankRecords(recs []MarkRecord) {
	for i := range recs {
		recs[i].ComputeTotals()
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].TotalMarks <= 0 {
			return false
		}
		if recs[j].TotalMarks <= 0 {
			return true
		}
		return recs[i].TotalMarks > recs[j].TotalMarks
	})
	for i := range recs {
		if recs[i].TotalMarks > 0 {
			recs[i].Position = i + 1
		} else {
			recs[i].Position = 0
		}
	}
}

// Publish flips the visibility gate on all records of the class+term and
// notifies enrolled students when results become visible.
func (svc *service) Publish(ctx context.Context, classID, termID string, publish bool) error {
	if _, err := svc.repo.SetPublished(ctx, classID, termID, publish); err != nil {
		return err
	}
	if !publish {
		return nil
	}

	students, err := svc.dir.QueryStudentsByClass(ctx, classID)
	if err != nil {
		return err
	}
	msgs := make([]*core.EmailMessage, 0, len(students))
	for _, std := range students {
		if std.Email == "" {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:      []mail.Address{{Name: std.Name, Address: std.Email}},
			Subject: "Exam Results Published",
			BodyStr: fmt.Sprintf(
				"Hello %s,\n\nYour exam results have been published. Log in to %s to view them.",
				std.Name, core.Conf.FrontendBaseURL,
			),
		})
	}
	svc.mailSvc.SendMessages(msgs...)
	return nil
}
