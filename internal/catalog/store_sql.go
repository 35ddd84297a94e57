package catalog

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/examdesk/examdesk/internal/db"
)

type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// ---- class levels ----

func (s *SQLStore) CreateClassLevel(ctx context.Context, c ClassLevel) (ClassLevel, error) {
	c.ID = uuid.NewString()
	c.Name = strings.TrimSpace(c.Name)
	c.CreatedAt = time.Now().Unix()
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO class_levels (id,name,ordinal,created_at) VALUES (:id,:name,:ordinal,:created_at)`, c)
	if err != nil {
		return ClassLevel{}, mapErr(err, "create class level")
	}
	return c, nil
}

func (s *SQLStore) GetClassLevel(ctx context.Context, id string) (ClassLevel, error) {
	var c ClassLevel
	err := s.db.GetContext(ctx, &c, `SELECT id,name,ordinal,created_at FROM class_levels WHERE id=$1`, id)
	return c, mapErr(err, "get class level")
}

func (s *SQLStore) ListClassLevels(ctx context.Context, opts ListOpts) ([]ClassLevel, error) {
	var args db.Args
	q := `SELECT id,name,ordinal,created_at FROM class_levels WHERE 1=1`
	q += nameFilter(&args, opts.Q)
	q += " ORDER BY ordinal, name" + page(&args, opts)
	out := []ClassLevel{}
	err := s.db.SelectContext(ctx, &out, q, args...)
	return out, mapErr(err, "list class levels")
}

func (s *SQLStore) UpdateClassLevel(ctx context.Context, c ClassLevel) (ClassLevel, error) {
	c.Name = strings.TrimSpace(c.Name)
	res, err := s.db.NamedExecContext(ctx,
		`UPDATE class_levels SET name=:name, ordinal=:ordinal WHERE id=:id`, c)
	if err := affected(res, err, "update class level"); err != nil {
		return ClassLevel{}, err
	}
	return s.GetClassLevel(ctx, c.ID)
}

func (s *SQLStore) DeleteClassLevel(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM class_levels WHERE id=$1`, id)
	return affected(res, err, "delete class level")
}

// ---- subjects ----

const subjectCols = `id,name,code,class_level_id,question_table,created_at`

func (s *SQLStore) CreateSubject(ctx context.Context, sub Subject) (Subject, error) {
	sub.ID = uuid.NewString()
	sub.Name = strings.TrimSpace(sub.Name)
	sub.CreatedAt = time.Now().Unix()
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO subjects (`+subjectCols+`)
		 VALUES (:id,:name,:code,:class_level_id,:question_table,:created_at)`, sub)
	if err != nil {
		return Subject{}, mapErr(err, "create subject")
	}
	return sub, nil
}

func (s *SQLStore) GetSubject(ctx context.Context, id string) (Subject, error) {
	var sub Subject
	err := s.db.GetContext(ctx, &sub, `SELECT `+subjectCols+` FROM subjects WHERE id=$1`, id)
	return sub, mapErr(err, "get subject")
}

func (s *SQLStore) ListSubjects(ctx context.Context, opts ListOpts) ([]Subject, error) {
	var args db.Args
	q := `SELECT ` + subjectCols + ` FROM subjects WHERE 1=1`
	q += nameFilter(&args, opts.Q)
	if opts.ClassLevelID != "" {
		q += " AND class_level_id=" + args.Add(opts.ClassLevelID)
	}
	q += " ORDER BY name" + page(&args, opts)
	out := []Subject{}
	err := s.db.SelectContext(ctx, &out, q, args...)
	return out, mapErr(err, "list subjects")
}

func (s *SQLStore) UpdateSubject(ctx context.Context, sub Subject) (Subject, error) {
	sub.Name = strings.TrimSpace(sub.Name)
	res, err := s.db.NamedExecContext(ctx,
		`UPDATE subjects SET name=:name, code=:code, class_level_id=:class_level_id,
		 question_table=:question_table WHERE id=:id`, sub)
	if err := affected(res, err, "update subject"); err != nil {
		return Subject{}, err
	}
	return s.GetSubject(ctx, sub.ID)
}

func (s *SQLStore) DeleteSubject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subjects WHERE id=$1`, id)
	return affected(res, err, "delete subject")
}

// ---- chapters ----

func (s *SQLStore) CreateChapter(ctx context.Context, c Chapter) (Chapter, error) {
	c.ID = uuid.NewString()
	c.Name = strings.TrimSpace(c.Name)
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO chapters (id,subject_id,name,ordinal) VALUES (:id,:subject_id,:name,:ordinal)`, c)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return Chapter{}, errors.Wrap(ErrNotFound, "create chapter: subject")
		}
		return Chapter{}, mapErr(err, "create chapter")
	}
	return c, nil
}

func (s *SQLStore) ListChapters(ctx context.Context, subjectID string) ([]Chapter, error) {
	out := []Chapter{}
	err := s.db.SelectContext(ctx, &out,
		`SELECT id,subject_id,name,ordinal FROM chapters WHERE subject_id=$1 ORDER BY ordinal, name`, subjectID)
	return out, mapErr(err, "list chapters")
}

func (s *SQLStore) DeleteChapter(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chapters WHERE id=$1`, id)
	return affected(res, err, "delete chapter")
}

// ---- schools ----

const schoolCols = `id,name,code,address,city,phone,email,is_active,created_at`

func (s *SQLStore) CreateSchool(ctx context.Context, sc School) (School, error) {
	sc.ID = uuid.NewString()
	sc.Name = strings.TrimSpace(sc.Name)
	sc.Code = strings.ToUpper(strings.TrimSpace(sc.Code))
	sc.CreatedAt = time.Now().Unix()
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO schools (`+schoolCols+`)
		 VALUES (:id,:name,:code,:address,:city,:phone,:email,:is_active,:created_at)`, sc)
	if err != nil {
		return School{}, mapErr(err, "create school")
	}
	return sc, nil
}

func (s *SQLStore) GetSchool(ctx context.Context, id string) (School, error) {
	var sc School
	err := s.db.GetContext(ctx, &sc, `SELECT `+schoolCols+` FROM schools WHERE id=$1`, id)
	return sc, mapErr(err, "get school")
}

func (s *SQLStore) ListSchools(ctx context.Context, opts ListOpts) ([]School, error) {
	var args db.Args
	q := `SELECT ` + schoolCols + ` FROM schools WHERE 1=1`
	q += nameFilter(&args, opts.Q)
	q += " ORDER BY name" + page(&args, opts)
	out := []School{}
	err := s.db.SelectContext(ctx, &out, q, args...)
	return out, mapErr(err, "list schools")
}

func (s *SQLStore) UpdateSchool(ctx context.Context, sc School) (School, error) {
	sc.Name = strings.TrimSpace(sc.Name)
	sc.Code = strings.ToUpper(strings.TrimSpace(sc.Code))
	res, err := s.db.NamedExecContext(ctx,
		`UPDATE schools SET name=:name, code=:code, address=:address, city=:city,
		 phone=:phone, email=:email, is_active=:is_active WHERE id=:id`, sc)
	if err := affected(res, err, "update school"); err != nil {
		return School{}, err
	}
	return s.GetSchool(ctx, sc.ID)
}

func (s *SQLStore) DeleteSchool(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schools WHERE id=$1`, id)
	return affected(res, err, "delete school")
}

// ---- helpers ----

func nameFilter(args *db.Args, q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return ""
	}
	return " AND LOWER(name) " + args.Contains(q)
}

func page(args *db.Args, opts ListOpts) string {
	limit, offset := db.Page(opts.Limit, opts.Offset, 50, 200)
	return " LIMIT " + args.Add(limit) + " OFFSET " + args.Add(offset)
}

func mapErr(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return errors.Wrap(ErrNotFound, op)
	case db.IsUniqueViolation(err), db.IsForeignKeyViolation(err):
		return errors.Wrap(ErrConflict, op)
	default:
		return errors.Wrap(err, op)
	}
}

func affected(res sql.Result, err error, op string) error {
	if err != nil {
		return mapErr(err, op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, op)
	}
	if n == 0 {
		return errors.Wrap(ErrNotFound, op)
	}
	return nil
}
