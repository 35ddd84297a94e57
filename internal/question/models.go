package question

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/examdesk/examdesk/internal/validate"
)

var ErrNotFound = errors.New("question: not found")

// Question types understood by sections and the bank.
const (
	TypeMCQSingle   = "mcq_single"
	TypeMCQMulti    = "mcq_multi"
	TypeTrueFalse   = "true_false"
	TypeFillBlank   = "fill_blank"
	TypeMatching    = "matching"
	TypeShortAnswer = "short_answer"
	TypeLongAnswer  = "long_answer"
	TypeProgramming = "programming"
)

var knownTypes = map[string]bool{
	TypeMCQSingle: true, TypeMCQMulti: true, TypeTrueFalse: true, TypeFillBlank: true,
	TypeMatching: true, TypeShortAnswer: true, TypeLongAnswer: true, TypeProgramming: true,
}

func ValidType(t string) bool { return knownTypes[t] }

func init() {
	validate.RegisterTag("question_type", func(fl validator.FieldLevel) bool {
		return ValidType(fl.Field().String())
	}, "{0} must be a known question type")
}

type Pair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Question is a full bank row, answer key included. Never send it to a
// preview; use Redact.
type Question struct {
	ID            string     `json:"id" db:"id"`
	Bank          string     `json:"bank" db:"bank"`
	SubjectID     string     `json:"subject_id" db:"subject_id" validate:"required"`
	ChapterID     *string    `json:"chapter_id,omitempty" db:"chapter_id"`
	Type          string     `json:"type" db:"type" validate:"required,question_type"`
	Text          string     `json:"text" db:"text" validate:"required"`
	Options       StringList `json:"options,omitempty" db:"options_json"`
	CorrectAnswer string     `json:"correct_answer,omitempty" db:"correct_answer"`
	Blanks        StringList `json:"blanks,omitempty" db:"blanks_json"`
	Pairs         PairList   `json:"pairs,omitempty" db:"pairs_json" validate:"dive"`
	Marks         float64    `json:"marks" db:"marks" validate:"gte=0"`
	Difficulty    string     `json:"difficulty,omitempty" db:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	CreatedAt     int64      `json:"created_at" db:"created_at"`
}

// Filter narrows a candidate fetch. Only active questions are returned.
type Filter struct {
	Bank       string
	SubjectID  string
	Type       string
	ChapterIDs []string // empty = whole subject
	Limit      int      // <= 0 = no limit
}

type ListOpts struct {
	Bank      string
	SubjectID string
	ChapterID string
	Type      string
	Q         string
	// IncludeInactive lists deactivated questions too.
	IncludeInactive bool
	Limit           int
	Offset          int
}

// Bank is the candidate source the sampler draws from.
type Bank interface {
	Candidates(ctx context.Context, f Filter) ([]Question, error)
}

type Store interface {
	Bank
	Create(ctx context.Context, q Question) (Question, error)
	Import(ctx context.Context, qs []Question) (int, error)
	Get(ctx context.Context, id string) (Question, error)
	Update(ctx context.Context, q Question) (Question, error)
	Deactivate(ctx context.Context, id string) error
	List(ctx context.Context, opts ListOpts) ([]Question, error)
}

// ---- JSON columns ----

type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	return string(b), err
}

func (l *StringList) Scan(src any) error {
	return scanJSON(src, (*[]string)(l))
}

type PairList []Pair

func (l PairList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]Pair(l))
	return string(b), err
}

func (l *PairList) Scan(src any) error {
	return scanJSON(src, (*[]Pair)(l))
}

func scanJSON(src any, dst any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return fmt.Errorf("question: cannot scan %T into JSON column", src)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}
