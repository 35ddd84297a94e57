package question

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examdesk/examdesk/internal/db/dbtest"
	"github.com/examdesk/examdesk/internal/validate"
)

func seedSubject(t *testing.T, dbh *sqlx.DB) {
	t.Helper()
	dbh.MustExec(`INSERT INTO class_levels (id,name,ordinal,created_at) VALUES ('cl-1','Grade 9',9,1)`)
	dbh.MustExec(`INSERT INTO subjects (id,name,class_level_id,question_table,created_at) VALUES
		('sub-1','Maths','cl-1','maths_g9',1), ('sub-2','Art','cl-1','',1)`)
	dbh.MustExec(`INSERT INTO chapters (id,subject_id,name,ordinal) VALUES
		('ch-1','sub-1','Algebra',1), ('ch-2','sub-1','Geometry',2)`)
}

func strp(s string) *string { return &s }

func TestCreateResolvesBank(t *testing.T) {
	dbh := dbtest.New(t)
	seedSubject(t, dbh)
	s := NewSQLStore(dbh)
	ctx := context.Background()

	q, err := s.Create(ctx, Question{
		SubjectID: "sub-1", ChapterID: strp("ch-1"), Type: TypeMatching, Text: "Match",
		Pairs: PairList{{Left: "a", Right: "1"}, {Left: "b", Right: "2"}}, Marks: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "maths_g9", q.Bank)
	assert.True(t, q.IsActive)

	got, err := s.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, q.Pairs, got.Pairs)
	assert.Equal(t, "ch-1", *got.ChapterID)

	_, err = s.Create(ctx, Question{SubjectID: "sub-2", Type: TypeShortAnswer, Text: "Draw"})
	assert.True(t, errors.Is(err, ErrNoBank), "%v", err)

	_, err = s.Create(ctx, Question{SubjectID: "nope", Type: TypeShortAnswer, Text: "?"})
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.Create(ctx, Question{SubjectID: "sub-1", Type: "essay", Text: "?"})
	_, isValidation := validate.As(err)
	assert.True(t, isValidation, "unknown type: %v", err)

	_, err = s.Create(ctx, Question{SubjectID: "sub-1", Type: TypeMCQSingle, Text: "?", Options: StringList{"only"}})
	_, isValidation = validate.As(err)
	assert.True(t, isValidation, "one option: %v", err)
}

func TestCandidatesFilters(t *testing.T) {
	dbh := dbtest.New(t)
	seedSubject(t, dbh)
	s := NewSQLStore(dbh)
	ctx := context.Background()

	mk := func(ch string, typ string) Question {
		q := Question{SubjectID: "sub-1", Type: typ, Text: "t", Options: StringList{"x", "y"}, CorrectAnswer: "x"}
		if ch != "" {
			q.ChapterID = strp(ch)
		}
		return q
	}
	batch := []Question{
		mk("ch-1", TypeMCQSingle), mk("ch-1", TypeMCQSingle), mk("ch-1", TypeMCQSingle),
		mk("ch-2", TypeMCQSingle), mk("", TypeMCQSingle), mk("ch-2", TypeTrueFalse),
	}
	n, err := s.Import(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 6, n)

	all, err := s.Candidates(ctx, Filter{Bank: "maths_g9", SubjectID: "sub-1", Type: TypeMCQSingle})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	lim, err := s.Candidates(ctx, Filter{Bank: "maths_g9", SubjectID: "sub-1", Type: TypeMCQSingle, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, lim, 2)

	// a limited window is not pinned to the oldest rows
	reached := map[string]bool{}
	for i := 0; i < 40; i++ {
		lim, err = s.Candidates(ctx, Filter{Bank: "maths_g9", SubjectID: "sub-1", Type: TypeMCQSingle, Limit: 2})
		require.NoError(t, err)
		for _, q := range lim {
			reached[q.ID] = true
		}
	}
	assert.Greater(t, len(reached), 2)

	chs, err := s.Candidates(ctx, Filter{Bank: "maths_g9", SubjectID: "sub-1", Type: TypeMCQSingle, ChapterIDs: []string{"ch-1", "ch-2"}})
	require.NoError(t, err)
	assert.Len(t, chs, 4)

	require.NoError(t, s.Deactivate(ctx, chs[0].ID))
	chs, err = s.Candidates(ctx, Filter{Bank: "maths_g9", SubjectID: "sub-1", Type: TypeMCQSingle, ChapterIDs: []string{"ch-1"}})
	require.NoError(t, err)
	assert.Len(t, chs, 2, "inactive questions are never candidates")

	other, err := s.Candidates(ctx, Filter{Bank: "history", SubjectID: "sub-1", Type: TypeMCQSingle})
	require.NoError(t, err)
	assert.Empty(t, other)

	listed, err := s.List(ctx, ListOpts{SubjectID: "sub-1", IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, listed, 6)
}

func TestImportIsAtomic(t *testing.T) {
	dbh := dbtest.New(t)
	seedSubject(t, dbh)
	s := NewSQLStore(dbh)
	ctx := context.Background()

	_, err := s.Import(ctx, []Question{
		{SubjectID: "sub-1", Type: TypeShortAnswer, Text: "ok"},
		{SubjectID: "sub-1", Type: TypeShortAnswer, Text: "bad chapter", ChapterID: strp("ch-x")},
	})
	require.Error(t, err)

	list, err := s.List(ctx, ListOpts{SubjectID: "sub-1"})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateKeepsSubject(t *testing.T) {
	dbh := dbtest.New(t)
	seedSubject(t, dbh)
	s := NewSQLStore(dbh)
	ctx := context.Background()

	q, err := s.Create(ctx, Question{SubjectID: "sub-1", Type: TypeShortAnswer, Text: "v1", CorrectAnswer: "a"})
	require.NoError(t, err)

	q.Text = "v2"
	q.SubjectID = "sub-2"
	q.ChapterID = strp("ch-2")
	got, err := s.Update(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Text)
	assert.Equal(t, "sub-1", got.SubjectID)
	assert.Equal(t, "maths_g9", got.Bank)

	_, err = s.Update(ctx, Question{ID: "missing", Type: TypeShortAnswer, Text: "x"})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.Deactivate(ctx, "missing"), ErrNotFound))
}
