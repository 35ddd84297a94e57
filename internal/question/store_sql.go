package question

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/examdesk/examdesk/internal/db"
	"github.com/examdesk/examdesk/internal/validate"
)

// ErrNoBank means the subject has no question table configured.
var ErrNoBank = errors.New("question: no question table")

const cols = `id,bank,subject_id,chapter_id,type,text,options_json,correct_answer,
	blanks_json,pairs_json,marks,difficulty,is_active,created_at`

type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Candidates returns active questions matching f. Without a limit rows come
// oldest first; with one the window is drawn in random order so newer
// questions in a large bank are reachable.
func (s *SQLStore) Candidates(ctx context.Context, f Filter) ([]Question, error) {
	var args db.Args
	q := `SELECT ` + cols + ` FROM questions WHERE is_active = TRUE` +
		` AND bank=` + args.Add(f.Bank) +
		` AND subject_id=` + args.Add(f.SubjectID)
	if f.Type != "" {
		q += ` AND type=` + args.Add(f.Type)
	}
	if len(f.ChapterIDs) > 0 {
		ph := make([]string, len(f.ChapterIDs))
		for i, id := range f.ChapterIDs {
			ph[i] = args.Add(id)
		}
		q += ` AND chapter_id IN (` + strings.Join(ph, ",") + `)`
	}
	if f.Limit > 0 {
		q += ` ORDER BY RANDOM() LIMIT ` + args.Add(f.Limit)
	} else {
		q += ` ORDER BY created_at, id`
	}
	out := []Question{}
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, errors.Wrap(err, "question candidates")
	}
	return out, nil
}

func (s *SQLStore) Create(ctx context.Context, in Question) (Question, error) {
	if err := s.prepare(ctx, s.db, &in); err != nil {
		return Question{}, err
	}
	if err := insert(ctx, s.db, in); err != nil {
		return Question{}, err
	}
	return in, nil
}

// Import inserts qs in one transaction; any invalid row aborts the batch.
func (s *SQLStore) Import(ctx context.Context, qs []Question) (int, error) {
	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for i := range qs {
			if err := s.prepare(ctx, tx, &qs[i]); err != nil {
				return errors.Wrapf(err, "row %d", i)
			}
			if err := insert(ctx, tx, qs[i]); err != nil {
				return errors.Wrapf(err, "row %d", i)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(qs), nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Question, error) {
	var q Question
	err := s.db.GetContext(ctx, &q, `SELECT `+cols+` FROM questions WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, errors.Wrap(ErrNotFound, id)
	}
	return q, errors.Wrap(err, "get question")
}

// Update rewrites the content of a question. Subject and bank are fixed
// at creation.
func (s *SQLStore) Update(ctx context.Context, in Question) (Question, error) {
	cur, err := s.Get(ctx, in.ID)
	if err != nil {
		return Question{}, err
	}
	in.SubjectID = cur.SubjectID
	in.Bank = cur.Bank
	if err := validate.Struct(in); err != nil {
		return Question{}, err
	}
	if err := checkShape(in); err != nil {
		return Question{}, err
	}
	if err := checkChapter(ctx, s.db, in); err != nil {
		return Question{}, err
	}
	_, err = s.db.NamedExecContext(ctx, `UPDATE questions SET chapter_id=:chapter_id, type=:type,
		text=:text, options_json=:options_json, correct_answer=:correct_answer,
		blanks_json=:blanks_json, pairs_json=:pairs_json, marks=:marks,
		difficulty=:difficulty, is_active=:is_active WHERE id=:id`, in)
	if err != nil {
		return Question{}, errors.Wrap(err, "update question")
	}
	return s.Get(ctx, in.ID)
}

// Deactivate hides the question from sampling without deleting it.
func (s *SQLStore) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE questions SET is_active = FALSE WHERE id=$1`, id)
	if err != nil {
		return errors.Wrap(err, "deactivate question")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrap(ErrNotFound, id)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]Question, error) {
	var args db.Args
	q := `SELECT ` + cols + ` FROM questions WHERE 1=1`
	if !opts.IncludeInactive {
		q += ` AND is_active = TRUE`
	}
	if opts.Bank != "" {
		q += ` AND bank=` + args.Add(opts.Bank)
	}
	if opts.SubjectID != "" {
		q += ` AND subject_id=` + args.Add(opts.SubjectID)
	}
	if opts.ChapterID != "" {
		q += ` AND chapter_id=` + args.Add(opts.ChapterID)
	}
	if opts.Type != "" {
		q += ` AND type=` + args.Add(opts.Type)
	}
	if t := strings.TrimSpace(opts.Q); t != "" {
		q += ` AND LOWER(text) ` + args.Contains(t)
	}
	limit, offset := db.Page(opts.Limit, opts.Offset, 50, 200)
	q += ` ORDER BY created_at DESC, id LIMIT ` + args.Add(limit) + ` OFFSET ` + args.Add(offset)

	out := []Question{}
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, errors.Wrap(err, "list questions")
	}
	return out, nil
}

// prepare fills server-side fields and resolves the bank from the subject.
func (s *SQLStore) prepare(ctx context.Context, ex sqlx.QueryerContext, q *Question) error {
	if err := validate.Struct(q); err != nil {
		return err
	}
	if err := checkShape(*q); err != nil {
		return err
	}
	var bank string
	err := sqlx.GetContext(ctx, ex, &bank, `SELECT question_table FROM subjects WHERE id=$1`, q.SubjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrap(ErrNotFound, "subject "+q.SubjectID)
	}
	if err != nil {
		return errors.Wrap(err, "resolve bank")
	}
	if bank == "" {
		return errors.Wrap(ErrNoBank, "subject "+q.SubjectID)
	}
	if err := checkChapter(ctx, ex, *q); err != nil {
		return err
	}
	q.ID = uuid.NewString()
	q.Bank = bank
	q.IsActive = true
	q.CreatedAt = time.Now().Unix()
	return nil
}

// checkShape makes sure a question carries the parts its type is graded on.
func checkShape(q Question) error {
	var fe *validate.FieldError
	switch q.Type {
	case TypeMCQSingle, TypeMCQMulti:
		if len(q.Options) < 2 {
			fe = &validate.FieldError{Field: "options", Error: "at least two options are required"}
		}
	case TypeFillBlank:
		if len(q.Blanks) == 0 {
			fe = &validate.FieldError{Field: "blanks", Error: "at least one blank is required"}
		}
	case TypeMatching:
		if len(q.Pairs) < 2 {
			fe = &validate.FieldError{Field: "pairs", Error: "at least two pairs are required"}
		}
	}
	if fe != nil {
		return validate.New("validation failed", *fe)
	}
	return nil
}

func checkChapter(ctx context.Context, ex sqlx.QueryerContext, q Question) error {
	if q.ChapterID == nil {
		return nil
	}
	var ok int
	err := sqlx.GetContext(ctx, ex, &ok,
		`SELECT 1 FROM chapters WHERE id=$1 AND subject_id=$2`, *q.ChapterID, q.SubjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return validate.New("chapter does not belong to subject",
			validate.FieldError{Field: "chapter_id", Error: "chapter does not belong to subject"})
	}
	return errors.Wrap(err, "check chapter")
}

func insert(ctx context.Context, ex sqlx.ExtContext, q Question) error {
	_, err := sqlx.NamedExecContext(ctx, ex, `INSERT INTO questions (`+cols+`) VALUES (
		:id,:bank,:subject_id,:chapter_id,:type,:text,:options_json,:correct_answer,
		:blanks_json,:pairs_json,:marks,:difficulty,:is_active,:created_at)`, q)
	return errors.Wrap(err, "insert question")
}
