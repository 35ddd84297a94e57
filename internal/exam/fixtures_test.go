package exam

import (
	"context"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/examdesk/examdesk/internal/audit"
	"github.com/examdesk/examdesk/internal/db/dbtest"
	"github.com/examdesk/examdesk/internal/question"
)

// fixture is a database with one class level, a maths subject backed by the
// "maths_g9" bank (chapters ch-1..ch-3) and an art subject with no bank.
type fixture struct {
	db        *sqlx.DB
	store     *SQLStore
	questions *question.SQLStore
	events    *audit.EventRepo
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dbh := dbtest.New(t)
	dbh.MustExec(`INSERT INTO class_levels (id,name,ordinal,created_at) VALUES ('cl-1','Grade 9',9,1)`)
	dbh.MustExec(`INSERT INTO subjects (id,name,class_level_id,question_table,created_at) VALUES
		('sub-1','Maths','cl-1','maths_g9',1), ('sub-2','Art','cl-1','',1), ('sub-3','Music','cl-1','music',1)`)
	dbh.MustExec(`INSERT INTO chapters (id,subject_id,name,ordinal) VALUES
		('ch-1','sub-1','Algebra',1), ('ch-2','sub-1','Geometry',2), ('ch-3','sub-1','Calculus',3)`)
	dbh.MustExec(`INSERT INTO schools (id,name,code,is_active,created_at) VALUES ('sc-1','Lakeview','LV',TRUE,1)`)

	events := audit.NewEventRepo(dbh, "test")
	return fixture{
		db:        dbh,
		store:     NewSQLStore(dbh, events),
		questions: question.NewSQLStore(dbh),
		events:    events,
	}
}

func strp(s string) *string { return &s }

// addMCQs imports n single-answer questions into chapter (or the bare
// subject when chapter is empty).
func (f fixture) addMCQs(t *testing.T, n int, chapter string) {
	t.Helper()
	qs := make([]question.Question, n)
	for i := range qs {
		qs[i] = question.Question{
			SubjectID:     "sub-1",
			Type:          question.TypeMCQSingle,
			Text:          fmt.Sprintf("%s question %d", chapter, i),
			Options:       question.StringList{"a", "b", "c", "d"},
			CorrectAnswer: "b",
			Marks:         1,
		}
		if chapter != "" {
			qs[i].ChapterID = strp(chapter)
		}
	}
	_, err := f.questions.Import(context.Background(), qs)
	require.NoError(t, err)
}

func (f fixture) addMatching(t *testing.T, n, pairs int) {
	t.Helper()
	qs := make([]question.Question, n)
	for i := range qs {
		var ps question.PairList
		for j := 0; j < pairs; j++ {
			ps = append(ps, question.Pair{Left: fmt.Sprintf("L%d", j), Right: fmt.Sprintf("R%d", j)})
		}
		qs[i] = question.Question{SubjectID: "sub-1", Type: question.TypeMatching, Text: "Match", Pairs: ps, Marks: 4}
	}
	_, err := f.questions.Import(context.Background(), qs)
	require.NoError(t, err)
}

func (f fixture) structure(t *testing.T, subject string, sections ...Section) Structure {
	t.Helper()
	st, err := f.store.CreateStructure(context.Background(), Structure{
		Name:      "Term paper",
		SubjectID: strp(subject),
		Sections:  sections,
	})
	require.NoError(t, err)
	return st
}

func (f fixture) schedule(t *testing.T, structureID string) ScheduledExam {
	t.Helper()
	e, err := f.store.CreateScheduled(context.Background(), ScheduledExam{
		Title:           "Midterm",
		ExamStructureID: strp(structureID),
		SchoolID:        strp("sc-1"),
		ScheduledAt:     1_900_000_000,
	})
	require.NoError(t, err)
	return e
}
