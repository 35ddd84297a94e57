package exam

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/examdesk/examdesk/internal/audit"
	"github.com/examdesk/examdesk/internal/db"
	"github.com/examdesk/examdesk/internal/validate"
)

const (
	structureCols = `id,name,subject_id,class_level_id,duration_minutes,instructions,created_at,updated_at`
	sectionCols   = `id,structure_id,position,name,question_type,question_count,marks_per_question,
		chapter_configs_json,chapter_ids_json`
	scheduledCols = `id,title,exam_structure_id,school_id,class_level_id,scheduled_at,duration_minutes,
		status,notes,created_by,created_at,updated_at`
)

// boardLimit bounds how many exams one board request loads.
const boardLimit = 1000

// txRecorder appends audit events inside the caller's transaction.
type txRecorder interface {
	RecordTx(ctx context.Context, ex sqlx.ExecerContext, typ, key string, data any) error
}

type SQLStore struct {
	db     *sqlx.DB
	events txRecorder
}

// NewSQLStore returns a store that audits every mutation to events. events
// may be nil.
func NewSQLStore(db *sqlx.DB, events *audit.EventRepo) *SQLStore {
	s := &SQLStore{db: db}
	if events != nil {
		s.events = events
	}
	return s
}

func (s *SQLStore) record(ctx context.Context, tx *sqlx.Tx, typ, key string, data any) error {
	if s.events == nil {
		return nil
	}
	return s.events.RecordTx(ctx, tx, typ, key, data)
}

// ---- exam structures ----

func (s *SQLStore) CreateStructure(ctx context.Context, in Structure) (Structure, error) {
	if err := normalize(&in); err != nil {
		return Structure{}, err
	}
	now := time.Now().Unix()
	in.ID = uuid.NewString()
	in.CreatedAt, in.UpdatedAt = now, now

	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `INSERT INTO exam_structures (`+structureCols+`) VALUES (
			:id,:name,:subject_id,:class_level_id,:duration_minutes,:instructions,:created_at,:updated_at)`, in)
		if err != nil {
			return mapErr(err, "insert structure")
		}
		if err := insertSections(ctx, tx, &in); err != nil {
			return err
		}
		return s.record(ctx, tx, audit.TypeStructureSaved, in.ID, in)
	})
	if err != nil {
		return Structure{}, err
	}
	return in, nil
}

// UpdateStructure rewrites a blueprint. Sections are replaced as a whole.
func (s *SQLStore) UpdateStructure(ctx context.Context, in Structure) (Structure, error) {
	if err := normalize(&in); err != nil {
		return Structure{}, err
	}
	in.UpdatedAt = time.Now().Unix()

	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, `UPDATE exam_structures SET name=:name, subject_id=:subject_id,
			class_level_id=:class_level_id, duration_minutes=:duration_minutes,
			instructions=:instructions, updated_at=:updated_at WHERE id=:id`, in)
		if err != nil {
			return mapErr(err, "update structure")
		}
		if err := affected(res, ErrNoStructure, in.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM exam_sections WHERE structure_id=$1`, in.ID); err != nil {
			return errors.Wrap(err, "clear sections")
		}
		if err := insertSections(ctx, tx, &in); err != nil {
			return err
		}
		return s.record(ctx, tx, audit.TypeStructureSaved, in.ID, in)
	})
	if err != nil {
		return Structure{}, err
	}
	return s.GetStructure(ctx, in.ID)
}

func insertSections(ctx context.Context, tx *sqlx.Tx, st *Structure) error {
	for i := range st.Sections {
		sec := &st.Sections[i]
		sec.ID = uuid.NewString()
		sec.StructureID = st.ID
		_, err := tx.NamedExecContext(ctx, `INSERT INTO exam_sections (`+sectionCols+`) VALUES (
			:id,:structure_id,:position,:name,:question_type,:question_count,:marks_per_question,
			:chapter_configs_json,:chapter_ids_json)`, sec)
		if err != nil {
			return errors.Wrapf(err, "insert section %d", i)
		}
	}
	return nil
}

func (s *SQLStore) GetStructure(ctx context.Context, id string) (Structure, error) {
	var st Structure
	err := s.db.GetContext(ctx, &st, `SELECT `+structureCols+` FROM exam_structures WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Structure{}, errors.Wrap(ErrNoStructure, id)
	}
	if err != nil {
		return Structure{}, errors.Wrap(err, "get structure")
	}
	st.Sections = []Section{}
	err = s.db.SelectContext(ctx, &st.Sections,
		`SELECT `+sectionCols+` FROM exam_sections WHERE structure_id=$1 ORDER BY position`, id)
	if err != nil {
		return Structure{}, errors.Wrap(err, "get sections")
	}
	totals(&st)
	return st, nil
}

func (s *SQLStore) ListStructures(ctx context.Context, opts StructureListOpts) ([]Structure, error) {
	var args db.Args
	q := `SELECT ` + structureCols + ` FROM exam_structures WHERE 1=1`
	if t := strings.TrimSpace(opts.Q); t != "" {
		q += ` AND LOWER(name) ` + args.Contains(t)
	}
	if opts.SubjectID != "" {
		q += ` AND subject_id=` + args.Add(opts.SubjectID)
	}
	if opts.ClassLevelID != "" {
		q += ` AND class_level_id=` + args.Add(opts.ClassLevelID)
	}
	limit, offset := db.Page(opts.Limit, opts.Offset, 50, 200)
	q += ` ORDER BY name, id LIMIT ` + args.Add(limit) + ` OFFSET ` + args.Add(offset)

	out := []Structure{}
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, errors.Wrap(err, "list structures")
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, len(out))
	byID := make(map[string]*Structure, len(out))
	for i := range out {
		ids[i] = out[i].ID
		out[i].Sections = []Section{}
		byID[out[i].ID] = &out[i]
	}
	sq, sargs, err := sqlx.In(`SELECT `+sectionCols+` FROM exam_sections
		WHERE structure_id IN (?) ORDER BY structure_id, position`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "list sections")
	}
	var secs []Section
	if err := s.db.SelectContext(ctx, &secs, s.db.Rebind(sq), sargs...); err != nil {
		return nil, errors.Wrap(err, "list sections")
	}
	for _, sec := range secs {
		if st := byID[sec.StructureID]; st != nil {
			st.Sections = append(st.Sections, sec)
		}
	}
	for i := range out {
		totals(&out[i])
	}
	return out, nil
}

// DeleteStructure removes a blueprint and its sections. Scheduled exams that
// used it keep their row but lose the reference.
func (s *SQLStore) DeleteStructure(ctx context.Context, id string) error {
	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM exam_structures WHERE id=$1`, id)
		if err != nil {
			return mapErr(err, "delete structure")
		}
		if err := affected(res, ErrNoStructure, id); err != nil {
			return err
		}
		return s.record(ctx, tx, audit.TypeStructureDeleted, id, map[string]string{"id": id})
	})
}

// SubjectBank returns the question table configured for a subject.
// An empty result means the subject exists but has no bank.
func (s *SQLStore) SubjectBank(ctx context.Context, subjectID string) (string, error) {
	var bank string
	err := s.db.GetContext(ctx, &bank, `SELECT question_table FROM subjects WHERE id=$1`, subjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.Wrap(ErrNoSubject, subjectID)
	}
	return bank, errors.Wrap(err, "subject bank")
}

// ---- scheduled exams ----

func (s *SQLStore) CreateScheduled(ctx context.Context, in ScheduledExam) (ScheduledExam, error) {
	if in.Status == "" {
		in.Status = StatusScheduled
	}
	if in.Status != StatusScheduled {
		return ScheduledExam{}, validate.New("new exams start as scheduled",
			validate.FieldError{Field: "status", Error: "must be " + StatusScheduled})
	}
	if err := validate.Struct(in); err != nil {
		return ScheduledExam{}, err
	}
	now := time.Now().Unix()
	in.ID = uuid.NewString()
	in.CreatedAt, in.UpdatedAt = now, now

	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := inheritFromStructure(ctx, tx, &in); err != nil {
			return err
		}
		_, err := tx.NamedExecContext(ctx, `INSERT INTO scheduled_exams (`+scheduledCols+`) VALUES (
			:id,:title,:exam_structure_id,:school_id,:class_level_id,:scheduled_at,:duration_minutes,
			:status,:notes,:created_by,:created_at,:updated_at)`, in)
		if err != nil {
			return mapErr(err, "insert scheduled exam")
		}
		return s.record(ctx, tx, audit.TypeScheduledExamCreated, in.ID, in)
	})
	if err != nil {
		return ScheduledExam{}, err
	}
	return in, nil
}

// inheritFromStructure checks the blueprint exists and copies its duration
// and class level where the exam leaves them unset.
func inheritFromStructure(ctx context.Context, tx *sqlx.Tx, e *ScheduledExam) error {
	var st struct {
		Duration     int     `db:"duration_minutes"`
		ClassLevelID *string `db:"class_level_id"`
	}
	err := tx.GetContext(ctx, &st,
		`SELECT duration_minutes, class_level_id FROM exam_structures WHERE id=$1`, *e.ExamStructureID)
	if errors.Is(err, sql.ErrNoRows) {
		return validate.New("unknown exam structure",
			validate.FieldError{Field: "exam_structure_id", Error: "exam structure does not exist"})
	}
	if err != nil {
		return errors.Wrap(err, "load structure")
	}
	if e.DurationMinutes == 0 {
		e.DurationMinutes = st.Duration
	}
	if e.ClassLevelID == nil {
		e.ClassLevelID = st.ClassLevelID
	}
	return nil
}

// UpdateScheduled edits an exam's details. Status only changes through
// SetStatus.
func (s *SQLStore) UpdateScheduled(ctx context.Context, in ScheduledExam) (ScheduledExam, error) {
	if err := validate.Struct(in); err != nil {
		return ScheduledExam{}, err
	}
	in.UpdatedAt = time.Now().Unix()

	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := inheritFromStructure(ctx, tx, &in); err != nil {
			return err
		}
		res, err := tx.NamedExecContext(ctx, `UPDATE scheduled_exams SET title=:title,
			exam_structure_id=:exam_structure_id, school_id=:school_id, class_level_id=:class_level_id,
			scheduled_at=:scheduled_at, duration_minutes=:duration_minutes, notes=:notes,
			updated_at=:updated_at WHERE id=:id`, in)
		if err != nil {
			return mapErr(err, "update scheduled exam")
		}
		if err := affected(res, ErrNotFound, in.ID); err != nil {
			return err
		}
		return s.record(ctx, tx, audit.TypeScheduledExamUpdated, in.ID, in)
	})
	if err != nil {
		return ScheduledExam{}, err
	}
	return s.GetScheduled(ctx, in.ID)
}

func (s *SQLStore) GetScheduled(ctx context.Context, id string) (ScheduledExam, error) {
	var e ScheduledExam
	err := s.db.GetContext(ctx, &e, `SELECT `+scheduledCols+` FROM scheduled_exams WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ScheduledExam{}, errors.Wrap(ErrNotFound, id)
	}
	return e, errors.Wrap(err, "get scheduled exam")
}

func (s *SQLStore) ListScheduled(ctx context.Context, opts ScheduledListOpts) ([]ScheduledExam, error) {
	limit, offset := db.Page(opts.Limit, opts.Offset, 50, 200)
	return s.listScheduled(ctx, opts, limit, offset)
}

func (s *SQLStore) listScheduled(ctx context.Context, opts ScheduledListOpts, limit, offset int) ([]ScheduledExam, error) {
	var args db.Args
	q := `SELECT ` + scheduledCols + ` FROM scheduled_exams WHERE 1=1`
	if opts.SchoolID != "" {
		q += ` AND school_id=` + args.Add(opts.SchoolID)
	}
	if opts.Status != "" {
		q += ` AND status=` + args.Add(opts.Status)
	}
	if opts.From > 0 {
		q += ` AND scheduled_at >= ` + args.Add(opts.From)
	}
	if opts.To > 0 {
		q += ` AND scheduled_at <= ` + args.Add(opts.To)
	}
	q += ` ORDER BY scheduled_at, id LIMIT ` + args.Add(limit) + ` OFFSET ` + args.Add(offset)

	out := []ScheduledExam{}
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, errors.Wrap(err, "list scheduled exams")
	}
	return out, nil
}

// Board returns every status column, empty ones included.
func (s *SQLStore) Board(ctx context.Context, opts ScheduledListOpts) (Board, error) {
	opts.Status = ""
	list, err := s.listScheduled(ctx, opts, boardLimit, 0)
	if err != nil {
		return nil, err
	}
	b := make(Board, len(Statuses))
	for _, st := range Statuses {
		b[st] = []ScheduledExam{}
	}
	for _, e := range list {
		b[e.Status] = append(b[e.Status], e)
	}
	return b, nil
}

func (s *SQLStore) DeleteScheduled(ctx context.Context, id string) error {
	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM scheduled_exams WHERE id=$1`, id)
		if err != nil {
			return errors.Wrap(err, "delete scheduled exam")
		}
		if err := affected(res, ErrNotFound, id); err != nil {
			return err
		}
		return s.record(ctx, tx, audit.TypeScheduledExamDeleted, id, map[string]string{"id": id})
	})
}

// SetStatus moves an exam along its lifecycle. Disallowed moves are
// validation errors.
func (s *SQLStore) SetStatus(ctx context.Context, id, status string) (ScheduledExam, error) {
	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var from string
		err := tx.GetContext(ctx, &from, `SELECT status FROM scheduled_exams WHERE id=$1`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrap(ErrNotFound, id)
		}
		if err != nil {
			return errors.Wrap(err, "load status")
		}
		if !CanTransition(from, status) {
			return validate.New("invalid status transition",
				validate.FieldError{Field: "status", Error: "cannot move from " + from + " to " + status})
		}
		_, err = tx.ExecContext(ctx, `UPDATE scheduled_exams SET status=$1, updated_at=$2 WHERE id=$3`,
			status, time.Now().Unix(), id)
		if err != nil {
			return errors.Wrap(err, "set status")
		}
		return s.record(ctx, tx, audit.TypeScheduledExamStatus, id, map[string]string{"from": from, "to": status})
	})
	if err != nil {
		return ScheduledExam{}, err
	}
	return s.GetScheduled(ctx, id)
}

// ---- helpers ----

func mapErr(err error, op string) error {
	switch {
	case db.IsUniqueViolation(err):
		return errors.Wrap(ErrConflict, op)
	case db.IsForeignKeyViolation(err):
		return errors.Wrap(ErrConflict, op+": unknown or still-referenced record")
	}
	return errors.Wrap(err, op)
}

func affected(res sql.Result, missing error, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Wrap(missing, id)
	}
	return nil
}
