package question

// Preview is the answer-free view of a question shown in exam previews.
// It has no field that can carry the answer key.
type Preview struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Text       string   `json:"text"`
	ChapterID  *string  `json:"chapter_id,omitempty"`
	Marks      float64  `json:"marks"`
	Difficulty string   `json:"difficulty,omitempty"`
	Options    []string `json:"options,omitempty"`
	BlankCount *int     `json:"blank_count,omitempty"`
	Pairs      *Columns `json:"pairs,omitempty"`
}

// Columns is a matching question split into its two sides. Right is
// shuffled independently of Left so the pairing is not given away.
type Columns struct {
	Left  []string `json:"left"`
	Right []string `json:"right"`
}

// Redact strips answer-revealing fields from q. The first matching shape wins:
// options (MCQ), true/false, blanks, pairs (matching), then free-text.
func Redact(q Question, rng Source) Preview {
	p := Preview{
		ID:         q.ID,
		Type:       q.Type,
		Text:       q.Text,
		ChapterID:  q.ChapterID,
		Marks:      q.Marks,
		Difficulty: q.Difficulty,
	}
	switch {
	case len(q.Options) > 0:
		p.Options = append([]string(nil), q.Options...)
	case q.Type == TypeTrueFalse:
		// type marker only
	case len(q.Blanks) > 0:
		n := len(q.Blanks)
		p.BlankCount = &n
	case len(q.Pairs) > 0:
		cols := &Columns{
			Left:  make([]string, len(q.Pairs)),
			Right: make([]string, len(q.Pairs)),
		}
		for i, pr := range q.Pairs {
			cols.Left[i] = pr.Left
			cols.Right[i] = pr.Right
		}
		Shuffle(cols.Right, rng)
		p.Pairs = cols
	}
	return p
}

// RedactAll redacts qs in order.
func RedactAll(qs []Question, rng Source) []Preview {
	out := make([]Preview, 0, len(qs))
	for _, q := range qs {
		out = append(out, Redact(q, rng))
	}
	return out
}
