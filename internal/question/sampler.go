package question

import (
	"context"
	"math/rand/v2"

	"github.com/pkg/errors"
)

// OverFetch is how many candidates are pulled per requested question before
// shuffling and truncating. It approximates a uniform sample without
// reservoir sampling; pools smaller than OverFetch×n are used whole.
const OverFetch = 3

// Source yields uniform ints in [0, n). *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// GlobalSource is the unseeded process-wide source, safe for concurrent use.
var GlobalSource Source = globalSource{}

// Shuffle permutes xs in place (Fisher–Yates).
func Shuffle[T any](xs []T, rng Source) {
	for i := len(xs) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		xs[i], xs[j] = xs[j], xs[i]
	}
}

// Sample returns up to n distinct questions from pool in random order.
// pool is not modified. Fewer than n candidates yields all of them.
func Sample(pool []Question, n int, rng Source) []Question {
	if n <= 0 || len(pool) == 0 {
		return []Question{}
	}
	seen := make(map[string]bool, len(pool))
	uniq := make([]Question, 0, len(pool))
	for _, q := range pool {
		if seen[q.ID] {
			continue
		}
		seen[q.ID] = true
		uniq = append(uniq, q)
	}
	Shuffle(uniq, rng)
	if len(uniq) > n {
		uniq = uniq[:n]
	}
	return uniq
}

// ChapterQuota asks for Count questions from one chapter.
type ChapterQuota struct {
	ChapterID string `json:"chapter_id" validate:"required"`
	Count     int    `json:"question_count" validate:"gte=0"`
}

// SectionSpec is what the sampler needs from an exam section.
type SectionSpec struct {
	Bank      string
	SubjectID string
	Type      string
	Count     int
	// Quotas, when present, replace Count: each chapter is sampled on its own.
	Quotas []ChapterQuota
	// ChapterIDs is the older form: one pooled draw across these chapters.
	ChapterIDs []string
}

type Sampler struct {
	bank Bank
	rng  Source
}

func NewSampler(bank Bank, rng Source) *Sampler {
	if rng == nil {
		rng = GlobalSource
	}
	return &Sampler{bank: bank, rng: rng}
}

// Pick selects the questions for one section. Under-filled quotas are not
// an error; the caller sees fewer questions than asked for.
func (s *Sampler) Pick(ctx context.Context, spec SectionSpec) ([]Question, error) {
	base := Filter{Bank: spec.Bank, SubjectID: spec.SubjectID, Type: spec.Type}

	switch {
	case len(spec.Quotas) > 0:
		out := []Question{}
		// a chapter listed twice must not hand out the same question twice
		seen := map[string]bool{}
		for _, cq := range spec.Quotas {
			if cq.Count <= 0 {
				continue
			}
			f := base
			f.ChapterIDs = []string{cq.ChapterID}
			f.Limit = OverFetch*cq.Count + countIn(out, cq.ChapterID)
			pool, err := s.bank.Candidates(ctx, f)
			if err != nil {
				return nil, errors.Wrapf(err, "sample chapter %s", cq.ChapterID)
			}
			fresh := pool[:0:0]
			for _, q := range pool {
				if !seen[q.ID] {
					fresh = append(fresh, q)
				}
			}
			for _, q := range Sample(fresh, cq.Count, s.rng) {
				seen[q.ID] = true
				out = append(out, q)
			}
		}
		return out, nil

	case len(spec.ChapterIDs) > 0:
		if spec.Count <= 0 {
			return []Question{}, nil
		}
		f := base
		f.ChapterIDs = spec.ChapterIDs
		pool, err := s.bank.Candidates(ctx, f)
		if err != nil {
			return nil, errors.Wrap(err, "sample chapters")
		}
		return Sample(pool, spec.Count, s.rng), nil

	default:
		if spec.Count <= 0 {
			return []Question{}, nil
		}
		f := base
		f.Limit = OverFetch * spec.Count
		pool, err := s.bank.Candidates(ctx, f)
		if err != nil {
			return nil, errors.Wrap(err, "sample subject")
		}
		return Sample(pool, spec.Count, s.rng), nil
	}
}

// countIn is how many picked questions belong to chapter. A repeated
// chapter widens its fetch past them.
func countIn(picked []Question, chapter string) int {
	n := 0
	for _, q := range picked {
		if q.ChapterID != nil && *q.ChapterID == chapter {
			n++
		}
	}
	return n
}
