package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/school"
)

type (
	classRow struct {
		ID        string       `db:"id"`
		Name      string       `db:"name"`
		Level     int          `db:"level"`
		CreatedAt sql.NullTime `db:"created_at"`
		UpdatedAt sql.NullTime `db:"updated_at"`
	}

	termRow struct {
		ID        string       `db:"id"`
		Name      string       `db:"name"`
		Session   string       `db:"session"`
		StartDate sql.NullTime `db:"start_date"`
		EndDate   sql.NullTime `db:"end_date"`
		CreatedAt sql.NullTime `db:"created_at"`
		UpdatedAt sql.NullTime `db:"updated_at"`
	}

	subjectRow struct {
		ID            string       `db:"id"`
		ClassID       string       `db:"class_id"`
		Name          string       `db:"name"`
		Distributions []byte       `db:"distributions"`
		CreatedAt     sql.NullTime `db:"created_at"`
		UpdatedAt     sql.NullTime `db:"updated_at"`
	}

	mealPlanRow struct {
		ID        string          `db:"id"`
		Name      string          `db:"name"`
		Price     decimal.Decimal `db:"price"`
		CreatedAt sql.NullTime    `db:"created_at"`
		UpdatedAt sql.NullTime    `db:"updated_at"`
	}

	studentRow struct {
		ID          string       `db:"id"`
		Name        string       `db:"name"`
		AdmissionNo string       `db:"admission_no"`
		Email       string       `db:"email"`
		ClassID     string       `db:"class_id"`
		MealPlanID  null.String  `db:"meal_plan_id"`
		CreatedAt   sql.NullTime `db:"created_at"`
		UpdatedAt   sql.NullTime `db:"updated_at"`
	}
)

func (row classRow) unpack() school.Class {
	return school.Class{
		ID:        row.ID,
		Name:      row.Name,
		Level:     row.Level,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}

func (row termRow) unpack() school.Term {
	return school.Term{
		ID:        row.ID,
		Name:      row.Name,
		Session:   row.Session,
		StartDate: row.StartDate.Time,
		EndDate:   row.EndDate.Time,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}

func (row subjectRow) unpack() (school.Subject, error) {
	sub := school.Subject{
		ID:        row.ID,
		ClassID:   row.ClassID,
		Name:      row.Name,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
	if err := json.Unmarshal(row.Distributions, &sub.Distributions); err != nil {
		return school.Subject{}, errors.Wrap(err, "unpacking subject distributions")
	}
	return sub, nil
}

func (row mealPlanRow) unpack() school.MealPlan {
	return school.MealPlan{
		ID:        row.ID,
		Name:      row.Name,
		Price:     row.Price,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}

func (row studentRow) unpack() school.Student {
	return school.Student{
		ID:          row.ID,
		Name:        row.Name,
		AdmissionNo: row.AdmissionNo,
		Email:       row.Email,
		ClassID:     row.ClassID,
		MealPlanID:  row.MealPlanID,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

type schoolRepository struct {
	exec core.DBExecutor
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(exec core.DBExecutor) *schoolRepository {
	return &schoolRepository{exec: exec}
}

func (repo schoolRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func trapNoRowsErr(err, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo schoolRepository) CreateClass(ctx context.Context, cls school.Class, exec ...core.DBExecutor) (school.Class, error) {
	db := repo.getExec(exec)

	cls.ID = uuid.New().String()
	q := db.Rebind(`INSERT INTO class (id, name, level, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`)
	if _, err := db.ExecContext(ctx, q, cls.ID, cls.Name, cls.Level, cls.CreatedAt, cls.UpdatedAt); err != nil {
		return school.Class{}, errors.Wrap(err, "inserting class")
	}
	return cls, nil
}

func (repo schoolRepository) QueryClasses(ctx context.Context, exec ...core.DBExecutor) ([]school.Class, error) {
	db := repo.getExec(exec)

	var rows []classRow
	if err := db.SelectContext(ctx, &rows, `SELECT * FROM class ORDER BY level, name`); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]school.Class, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.unpack())
	}
	return classes, nil
}

func (repo schoolRepository) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (school.Class, error) {
	db := repo.getExec(exec)

	var row classRow
	if err := db.GetContext(ctx, &row, db.Rebind(`SELECT * FROM class WHERE id = ?`), id); err != nil {
		return school.Class{}, trapNoRowsErr(err, school.ErrClassNotFound, "getting class")
	}
	return row.unpack(), nil
}

func (repo schoolRepository) CreateTerm(ctx context.Context, term school.Term, exec ...core.DBExecutor) (school.Term, error) {
	db := repo.getExec(exec)

	term.ID = uuid.New().String()
	q := db.Rebind(`
		INSERT INTO term (id, name, session, start_date, end_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := db.ExecContext(ctx, q, term.ID, term.Name, term.Session, term.StartDate, term.EndDate, term.CreatedAt, term.UpdatedAt)
	if err != nil {
		return school.Term{}, errors.Wrap(err, "inserting term")
	}
	return term, nil
}

func (repo schoolRepository) QueryTerms(ctx context.Context, session string, exec ...core.DBExecutor) ([]school.Term, error) {
	db := repo.getExec(exec)

	q := `SELECT * FROM term`
	var args []interface{}
	if session != "" {
		q += ` WHERE session = ?`
		args = append(args, session)
	}
	q += ` ORDER BY start_date`

	var rows []termRow
	if err := db.SelectContext(ctx, &rows, db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying terms")
	}
	terms := make([]school.Term, 0, len(rows))
	for _, row := range rows {
		terms = append(terms, row.unpack())
	}
	return terms, nil
}

func (repo schoolRepository) GetTerm(ctx context.Context, id string, exec ...core.DBExecutor) (school.Term, error) {
	db := repo.getExec(exec)

	var row termRow
	if err := db.GetContext(ctx, &row, db.Rebind(`SELECT * FROM term WHERE id = ?`), id); err != nil {
		return school.Term{}, trapNoRowsErr(err, school.ErrTermNotFound, "getting term")
	}
	return row.unpack(), nil
}

func (repo schoolRepository) CreateSubject(ctx context.Context, sub school.Subject, exec ...core.DBExecutor) (school.Subject, error) {
	db := repo.getExec(exec)

	sub.ID = uuid.New().String()
	for i := range sub.Distributions {
		sub.Distributions[i].ID = uuid.New().String()
	}
	dists, err := json.Marshal(sub.Distributions)
	if err != nil {
		return school.Subject{}, errors.Wrap(err, "packing subject distributions")
	}

	q := db.Rebind(`
		INSERT INTO subject (id, class_id, name, distributions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err = db.ExecContext(ctx, q, sub.ID, sub.ClassID, sub.Name, dists, sub.CreatedAt, sub.UpdatedAt); err != nil {
		return school.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return sub, nil
}

func (repo schoolRepository) QuerySubjectsByClass(ctx context.Context, classID string, exec ...core.DBExecutor) ([]school.Subject, error) {
	db := repo.getExec(exec)

	var rows []subjectRow
	q := db.Rebind(`SELECT * FROM subject WHERE class_id = ? ORDER BY name`)
	if err := db.SelectContext(ctx, &rows, q, classID); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	subjects := make([]school.Subject, 0, len(rows))
	for _, row := range rows {
		sub, err := row.unpack()
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, sub)
	}
	return subjects, nil
}

func (repo schoolRepository) GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (school.Subject, error) {
	db := repo.getExec(exec)

	var row subjectRow
	if err := db.GetContext(ctx, &row, db.Rebind(`SELECT * FROM subject WHERE id = ?`), id); err != nil {
		return school.Subject{}, trapNoRowsErr(err, school.ErrSubjectNotFound, "getting subject")
	}
	return row.unpack()
}

func (repo schoolRepository) CreateMealPlan(ctx context.Context, plan school.MealPlan, exec ...core.DBExecutor) (school.MealPlan, error) {
	db := repo.getExec(exec)

	plan.ID = uuid.New().String()
	q := db.Rebind(`INSERT INTO meal_plan (id, name, price, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`)
	if _, err := db.ExecContext(ctx, q, plan.ID, plan.Name, plan.Price, plan.CreatedAt, plan.UpdatedAt); err != nil {
		return school.MealPlan{}, errors.Wrap(err, "inserting meal plan")
	}
	return plan, nil
}

func (repo schoolRepository) QueryMealPlans(ctx context.Context, exec ...core.DBExecutor) ([]school.MealPlan, error) {
	db := repo.getExec(exec)

	var rows []mealPlanRow
	if err := db.SelectContext(ctx, &rows, `SELECT * FROM meal_plan ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "querying meal plans")
	}
	plans := make([]school.MealPlan, 0, len(rows))
	for _, row := range rows {
		plans = append(plans, row.unpack())
	}
	return plans, nil
}

func (repo schoolRepository) GetMealPlan(ctx context.Context, id string, exec ...core.DBExecutor) (school.MealPlan, error) {
	db := repo.getExec(exec)

	var row mealPlanRow
	if err := db.GetContext(ctx, &row, db.Rebind(`SELECT * FROM meal_plan WHERE id = ?`), id); err != nil {
		return school.MealPlan{}, trapNoRowsErr(err, school.ErrMealPlanNotFound, "getting meal plan")
	}
	return row.unpack(), nil
}

func (repo schoolRepository) CheckAdmissionNoUniqueness(ctx context.Context, admissionNo string, exec ...core.DBExecutor) error {
	db := repo.getExec(exec)

	var exists bool
	q := db.Rebind(`SELECT EXISTS (SELECT 1 FROM student WHERE admission_no = ?)`)
	if err := db.GetContext(ctx, &exists, q, admissionNo); err != nil {
		return errors.Wrap(err, "checking admission number uniqueness")
	}
	if exists {
		return school.ErrAdmissionNoExists
	}
	return nil
}

func (repo schoolRepository) CreateStudent(ctx context.Context, std school.Student, exec ...core.DBExecutor) (school.Student, error) {
	db := repo.getExec(exec)

	std.ID = uuid.New().String()
	q := db.Rebind(`
		INSERT INTO student (id, name, admission_no, email, class_id, meal_plan_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := db.ExecContext(ctx, q, std.ID, std.Name, std.AdmissionNo, std.Email, std.ClassID, std.MealPlanID, std.CreatedAt, std.UpdatedAt)
	if err != nil {
		return school.Student{}, errors.Wrap(err, "inserting student")
	}
	return std, nil
}

func (repo schoolRepository) QueryStudentsByClass(ctx context.Context, classID string, exec ...core.DBExecutor) ([]school.Student, error) {
	db := repo.getExec(exec)

	var rows []studentRow
	q := db.Rebind(`SELECT * FROM student WHERE class_id = ? ORDER BY admission_no`)
	if err := db.SelectContext(ctx, &rows, q, classID); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]school.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.unpack())
	}
	return students, nil
}

func (repo schoolRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (school.Student, error) {
	db := repo.getExec(exec)

	var row studentRow
	if err := db.GetContext(ctx, &row, db.Rebind(`SELECT * FROM student WHERE id = ?`), id); err != nil {
		return school.Student{}, trapNoRowsErr(err, school.ErrStudentNotFound, "getting student")
	}
	return row.unpack(), nil
}

func (repo schoolRepository) UpdateStudent(ctx context.Context, std school.Student, exec ...core.DBExecutor) (school.Student, error) {
	db := repo.getExec(exec)

	var row studentRow
	q := db.Rebind(`
		UPDATE student SET name = ?, admission_no = ?, email = ?, class_id = ?, meal_plan_id = ?, updated_at = ?
		WHERE id = ? RETURNING *`)
	err := db.GetContext(ctx, &row, q, std.Name, std.AdmissionNo, std.Email, std.ClassID, std.MealPlanID, std.UpdatedAt, std.ID)
	if err != nil {
		return school.Student{}, trapNoRowsErr(err, school.ErrStudentNotFound, "updating student")
	}
	return row.unpack(), nil
}
