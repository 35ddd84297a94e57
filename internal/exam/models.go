package exam

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/examdesk/examdesk/internal/question"
)

var (
	ErrNotFound = errors.New("exam not found")
	// ErrNoStructure means the scheduled exam has no blueprint attached,
	// usually because the structure was deleted after scheduling.
	ErrNoStructure = errors.New("no exam structure")
	ErrNoSubject   = errors.New("no subject")
	ErrConflict    = errors.New("exam: conflicts with existing data")
)

// Section is one slice of a blueprint: a question type, how many and how
// they are spread across chapters.
type Section struct {
	ID               string     `json:"id" db:"id"`
	StructureID      string     `json:"structure_id" db:"structure_id"`
	Position         int        `json:"position" db:"position"`
	Name             string     `json:"name" db:"name" validate:"required,max=200"`
	QuestionType     string     `json:"question_type" db:"question_type" validate:"required,question_type"`
	QuestionCount    int        `json:"question_count" db:"question_count" validate:"gte=0"`
	MarksPerQuestion float64    `json:"marks_per_question" db:"marks_per_question" validate:"gte=0"`
	ChapterConfigs   QuotaList  `json:"chapter_configs" db:"chapter_configs_json" validate:"dive"`
	ChapterIDs       StringList `json:"chapter_ids" db:"chapter_ids_json"`
}

// Spec turns the section into a sampler request against bank.
func (s Section) Spec(bank, subjectID string) question.SectionSpec {
	return question.SectionSpec{
		Bank:       bank,
		SubjectID:  subjectID,
		Type:       s.QuestionType,
		Count:      s.QuestionCount,
		Quotas:     s.ChapterConfigs,
		ChapterIDs: s.ChapterIDs,
	}
}

// Structure is an exam blueprint.
type Structure struct {
	ID              string    `json:"id" db:"id"`
	Name            string    `json:"name" db:"name" validate:"required,max=200"`
	SubjectID       *string   `json:"subject_id" db:"subject_id" validate:"required"`
	ClassLevelID    *string   `json:"class_level_id,omitempty" db:"class_level_id"`
	DurationMinutes int       `json:"duration_minutes" db:"duration_minutes" validate:"gte=0"`
	Instructions    string    `json:"instructions" db:"instructions"`
	CreatedAt       int64     `json:"created_at" db:"created_at"`
	UpdatedAt       int64     `json:"updated_at" db:"updated_at"`
	Sections        []Section `json:"sections" db:"-" validate:"required,min=1,dive"`

	TotalQuestions int     `json:"total_questions" db:"-"`
	TotalMarks     float64 `json:"total_marks" db:"-"`
}

type StructureListOpts struct {
	Q            string
	SubjectID    string
	ClassLevelID string
	Limit        int
	Offset       int
}

// Scheduled exam statuses.
const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Statuses in board column order.
var Statuses = []string{StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled}

var transitions = map[string][]string{
	StatusScheduled:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCancelled:  {StatusScheduled},
}

// CanTransition reports whether a scheduled exam may move from one status to
// another. Completed exams are final.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type ScheduledExam struct {
	ID              string  `json:"id" db:"id"`
	Title           string  `json:"title" db:"title" validate:"required,max=200"`
	ExamStructureID *string `json:"exam_structure_id" db:"exam_structure_id" validate:"required"`
	SchoolID        *string `json:"school_id,omitempty" db:"school_id"`
	ClassLevelID    *string `json:"class_level_id,omitempty" db:"class_level_id"`
	ScheduledAt     int64   `json:"scheduled_at" db:"scheduled_at" validate:"required,gt=0"`
	DurationMinutes int     `json:"duration_minutes" db:"duration_minutes" validate:"gte=0"`
	Status          string  `json:"status" db:"status"`
	Notes           string  `json:"notes" db:"notes"`
	CreatedBy       string  `json:"created_by" db:"created_by"`
	CreatedAt       int64   `json:"created_at" db:"created_at"`
	UpdatedAt       int64   `json:"updated_at" db:"updated_at"`
}

type ScheduledListOpts struct {
	SchoolID string
	Status   string
	// From and To bound scheduled_at (unix seconds, inclusive); 0 = open.
	From   int64
	To     int64
	Limit  int
	Offset int
}

// Board groups scheduled exams by status, one column per status.
type Board map[string][]ScheduledExam

type StructureStore interface {
	CreateStructure(ctx context.Context, s Structure) (Structure, error)
	UpdateStructure(ctx context.Context, s Structure) (Structure, error)
	GetStructure(ctx context.Context, id string) (Structure, error)
	ListStructures(ctx context.Context, opts StructureListOpts) ([]Structure, error)
	DeleteStructure(ctx context.Context, id string) error
}

type ScheduleStore interface {
	CreateScheduled(ctx context.Context, e ScheduledExam) (ScheduledExam, error)
	UpdateScheduled(ctx context.Context, e ScheduledExam) (ScheduledExam, error)
	GetScheduled(ctx context.Context, id string) (ScheduledExam, error)
	ListScheduled(ctx context.Context, opts ScheduledListOpts) ([]ScheduledExam, error)
	DeleteScheduled(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id, status string) (ScheduledExam, error)
	Board(ctx context.Context, opts ScheduledListOpts) (Board, error)
}

type Store interface {
	StructureStore
	ScheduleStore
}

// ---- JSON columns ----

type QuotaList []question.ChapterQuota

func (l QuotaList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]question.ChapterQuota(l))
	return string(b), err
}

func (l *QuotaList) Scan(src any) error {
	return scanJSON(src, (*[]question.ChapterQuota)(l))
}

// Sum is the total number of questions the quotas ask for.
func (l QuotaList) Sum() int {
	n := 0
	for _, q := range l {
		n += q.Count
	}
	return n
}

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
		return fmt.Errorf("exam: cannot scan %T into JSON column", src)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}
