package question

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBank filters an in-memory pool the way SQLStore.Candidates does.
type fakeBank struct {
	pool  []Question
	calls []Filter
	err   error
}

func (b *fakeBank) Candidates(_ context.Context, f Filter) ([]Question, error) {
	b.calls = append(b.calls, f)
	if b.err != nil {
		return nil, b.err
	}
	chapters := map[string]bool{}
	for _, id := range f.ChapterIDs {
		chapters[id] = true
	}
	out := []Question{}
	for _, q := range b.pool {
		if !q.IsActive || q.Bank != f.Bank || q.SubjectID != f.SubjectID || q.Type != f.Type {
			continue
		}
		if len(chapters) > 0 && (q.ChapterID == nil || !chapters[*q.ChapterID]) {
			continue
		}
		out = append(out, q)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func seeded() *rand.Rand { return rand.New(rand.NewPCG(7, 11)) }

func mcqPool(n int, chapter string) []Question {
	out := make([]Question, n)
	for i := range out {
		ch := chapter
		out[i] = Question{
			ID:            fmt.Sprintf("%s-q%02d", chapter, i),
			Bank:          "maths",
			SubjectID:     "sub-1",
			ChapterID:     &ch,
			Type:          TypeMCQSingle,
			Text:          "2+2?",
			Options:       StringList{"3", "4"},
			CorrectAnswer: "4",
			IsActive:      true,
		}
	}
	return out
}

func ids(qs []Question) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

func TestShuffleIsPermutation(t *testing.T) {
	xs := []int{1, 2, 3, 4, 5, 6, 7, 8}
	Shuffle(xs, seeded())
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, xs)

	var empty []int
	Shuffle(empty, seeded())
	one := []int{9}
	Shuffle(one, seeded())
	assert.Equal(t, []int{9}, one)
}

func TestSampleDistinctAndBounded(t *testing.T) {
	pool := mcqPool(12, "ch1")
	pool = append(pool, pool[0], pool[1]) // duplicates must not double up

	got := Sample(pool, 5, seeded())
	require.Len(t, got, 5)
	assert.Len(t, uniq(ids(got)), 5)

	all := Sample(pool, 50, seeded())
	assert.Len(t, all, 12, "under-fill returns every distinct candidate")

	assert.Empty(t, Sample(pool, 0, seeded()))
	assert.Empty(t, Sample(nil, 3, seeded()))
	assert.Len(t, pool, 14, "pool untouched")
}

func TestSampleIsRandomised(t *testing.T) {
	pool := mcqPool(20, "ch1")
	rng := rand.New(rand.NewPCG(1, 2))
	first := ids(Sample(pool, 5, rng))
	differs := false
	for i := 0; i < 20 && !differs; i++ {
		differs = fmt.Sprint(first) != fmt.Sprint(ids(Sample(pool, 5, rng)))
	}
	assert.True(t, differs)
}

func TestPickNoChapterConstraint(t *testing.T) {
	bank := &fakeBank{pool: mcqPool(12, "ch1")}
	s := NewSampler(bank, seeded())

	got, err := s.Pick(context.Background(), SectionSpec{Bank: "maths", SubjectID: "sub-1", Type: TypeMCQSingle, Count: 3})
	require.NoError(t, err)
	assert.Len(t, got, 3)
	require.Len(t, bank.calls, 1)
	assert.Equal(t, 9, bank.calls[0].Limit, "over-fetch 3x")
	assert.Empty(t, bank.calls[0].ChapterIDs)
}

func TestPickChapterQuotas(t *testing.T) {
	pool := append(mcqPool(10, "ch1"), mcqPool(2, "ch2")...)
	bank := &fakeBank{pool: pool}
	s := NewSampler(bank, seeded())

	got, err := s.Pick(context.Background(), SectionSpec{
		Bank: "maths", SubjectID: "sub-1", Type: TypeMCQSingle,
		Quotas: []ChapterQuota{
			{ChapterID: "ch1", Count: 4},
			{ChapterID: "ch2", Count: 5}, // only 2 exist
			{ChapterID: "ch3", Count: 3}, // none exist
			{ChapterID: "ch1", Count: 0}, // skipped
		},
	})
	require.NoError(t, err)

	perChapter := map[string]int{}
	for _, q := range got {
		perChapter[*q.ChapterID]++
	}
	assert.Equal(t, map[string]int{"ch1": 4, "ch2": 2}, perChapter)
	require.Len(t, bank.calls, 3, "zero quotas never hit the bank")
	assert.Equal(t, 12, bank.calls[0].Limit)
	assert.Equal(t, []string{"ch2"}, bank.calls[1].ChapterIDs)

	// concatenated in quota order
	for i := 0; i < 4; i++ {
		assert.Equal(t, "ch1", *got[i].ChapterID)
	}
}

func TestPickRepeatedChapterNeverRepeatsQuestions(t *testing.T) {
	for i := 0; i < 50; i++ {
		bank := &fakeBank{pool: mcqPool(4, "ch-a")}
		got, err := NewSampler(bank, rand.New(rand.NewPCG(uint64(i), 3))).Pick(context.Background(), SectionSpec{
			Bank: "maths", SubjectID: "sub-1", Type: TypeMCQSingle,
			Quotas: []ChapterQuota{{ChapterID: "ch-a", Count: 3}, {ChapterID: "ch-a", Count: 3}},
		})
		require.NoError(t, err)
		ids := make([]string, len(got))
		for j, q := range got {
			ids[j] = q.ID
		}
		require.Len(t, uniq(ids), len(ids), "run %d: %v", i, ids)
		assert.Len(t, got, 4, "the pool is exhausted, not repeated")
		assert.Equal(t, 12, bank.calls[1].Limit, "second draw reaches past the 3 already picked")
	}
}

func TestPickLegacyChapterList(t *testing.T) {
	pool := append(mcqPool(3, "ch1"), mcqPool(3, "ch2")...)
	pool = append(pool, mcqPool(3, "ch3")...)
	bank := &fakeBank{pool: pool}
	s := NewSampler(bank, seeded())

	got, err := s.Pick(context.Background(), SectionSpec{
		Bank: "maths", SubjectID: "sub-1", Type: TypeMCQSingle,
		Count: 4, ChapterIDs: []string{"ch1", "ch2"},
	})
	require.NoError(t, err)
	require.Len(t, got, 4)
	for _, q := range got {
		assert.NotEqual(t, "ch3", *q.ChapterID)
	}
	require.Len(t, bank.calls, 1)
	assert.Zero(t, bank.calls[0].Limit, "pooled draw reads every listed chapter")
}

func TestPickZeroCountAndErrors(t *testing.T) {
	bank := &fakeBank{pool: mcqPool(5, "ch1")}
	got, err := NewSampler(bank, nil).Pick(context.Background(), SectionSpec{Bank: "maths", SubjectID: "sub-1", Type: TypeMCQSingle})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, bank.calls)

	boom := errors.New("db down")
	_, err = NewSampler(&fakeBank{err: boom}, nil).Pick(context.Background(), SectionSpec{Count: 2})
	assert.ErrorIs(t, err, boom)
}

func uniq(xs []string) map[string]bool {
	m := map[string]bool{}
	for _, x := range xs {
		m[x] = true
	}
	return m
}
