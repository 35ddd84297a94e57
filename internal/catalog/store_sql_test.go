package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examdesk/examdesk/internal/db/dbtest"
)

func TestClassLevelsAndSubjects(t *testing.T) {
	s := NewSQLStore(dbtest.New(t))
	ctx := context.Background()

	g9, err := s.CreateClassLevel(ctx, ClassLevel{Name: " Grade 9 ", Ordinal: 9})
	require.NoError(t, err)
	assert.Equal(t, "Grade 9", g9.Name)
	_, err = s.CreateClassLevel(ctx, ClassLevel{Name: "Grade 10", Ordinal: 10})
	require.NoError(t, err)

	_, err = s.CreateClassLevel(ctx, ClassLevel{Name: "Grade 9"})
	assert.True(t, errors.Is(err, ErrConflict), "duplicate name: %v", err)

	levels, err := s.ListClassLevels(ctx, ListOpts{})
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, "Grade 9", levels[0].Name, "ordered by ordinal")

	maths, err := s.CreateSubject(ctx, Subject{Name: "Maths", ClassLevelID: g9.ID, QuestionTable: "maths_g9"})
	require.NoError(t, err)

	_, err = s.CreateSubject(ctx, Subject{Name: "Physics", ClassLevelID: "missing"})
	assert.True(t, errors.Is(err, ErrConflict), "dangling class level: %v", err)

	subs, err := s.ListSubjects(ctx, ListOpts{ClassLevelID: g9.ID, Q: "MAT"})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "maths_g9", subs[0].QuestionTable)

	err = s.DeleteClassLevel(ctx, g9.ID)
	assert.True(t, errors.Is(err, ErrConflict), "class level in use: %v", err)

	maths.Name = "Mathematics"
	maths, err = s.UpdateSubject(ctx, maths)
	require.NoError(t, err)
	assert.Equal(t, "Mathematics", maths.Name)

	ch, err := s.CreateChapter(ctx, Chapter{SubjectID: maths.ID, Name: "Algebra", Ordinal: 1})
	require.NoError(t, err)
	chs, err := s.ListChapters(ctx, maths.ID)
	require.NoError(t, err)
	require.Len(t, chs, 1)
	assert.Equal(t, ch.ID, chs[0].ID)

	_, err = s.CreateChapter(ctx, Chapter{SubjectID: "missing", Name: "X"})
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.DeleteSubject(ctx, maths.ID))
	chs, err = s.ListChapters(ctx, maths.ID)
	require.NoError(t, err)
	assert.Empty(t, chs, "chapters cascade")
	require.NoError(t, s.DeleteClassLevel(ctx, g9.ID))
}

func TestSchools(t *testing.T) {
	s := NewSQLStore(dbtest.New(t))
	ctx := context.Background()

	sc, err := s.CreateSchool(ctx, School{Name: "Hillside High", Code: " hs-01 ", IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, "HS-01", sc.Code)

	got, err := s.GetSchool(ctx, sc.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	_, err = s.CreateSchool(ctx, School{Name: "Other", Code: "HS-01"})
	assert.True(t, errors.Is(err, ErrConflict))

	got.IsActive = false
	got.City = "Nairobi"
	got, err = s.UpdateSchool(ctx, got)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, "Nairobi", got.City)

	_, err = s.GetSchool(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.DeleteSchool(ctx, "nope"), ErrNotFound))

	list, err := s.ListSchools(ctx, ListOpts{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
