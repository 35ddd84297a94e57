package catalog

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("catalog: not found")
	// ErrConflict covers duplicate names/codes and deletes of rows still in use.
	ErrConflict = errors.New("catalog: conflict")
)

type ClassLevel struct {
	ID        string `json:"id" db:"id"`
	Name      string `json:"name" db:"name" validate:"required,max=100"`
	Ordinal   int    `json:"ordinal" db:"ordinal" validate:"gte=0"`
	CreatedAt int64  `json:"created_at" db:"created_at"`
}

type Subject struct {
	ID           string `json:"id" db:"id"`
	Name         string `json:"name" db:"name" validate:"required,max=150"`
	Code         string `json:"code" db:"code" validate:"max=32"`
	ClassLevelID string `json:"class_level_id" db:"class_level_id" validate:"required"`
	// QuestionTable names the question bank this subject draws from.
	// Empty means no bank has been set up yet.
	QuestionTable string `json:"question_table" db:"question_table" validate:"omitempty,max=64,alphanum_"`
	CreatedAt     int64  `json:"created_at" db:"created_at"`
}

type Chapter struct {
	ID        string `json:"id" db:"id"`
	SubjectID string `json:"subject_id" db:"subject_id"`
	Name      string `json:"name" db:"name" validate:"required,max=200"`
	Ordinal   int    `json:"ordinal" db:"ordinal" validate:"gte=0"`
}

type School struct {
	ID        string `json:"id" db:"id"`
	Name      string `json:"name" db:"name" validate:"required,max=200"`
	Code      string `json:"code" db:"code" validate:"required,max=32"`
	Address   string `json:"address" db:"address"`
	City      string `json:"city" db:"city"`
	Phone     string `json:"phone" db:"phone" validate:"max=32"`
	Email     string `json:"email" db:"email" validate:"omitempty,email"`
	IsActive  bool   `json:"is_active" db:"is_active"`
	CreatedAt int64  `json:"created_at" db:"created_at"`
}

type ListOpts struct {
	Q            string // case-insensitive name substring
	ClassLevelID string // subjects only
	Limit        int
	Offset       int
}

type Store interface {
	CreateClassLevel(ctx context.Context, c ClassLevel) (ClassLevel, error)
	GetClassLevel(ctx context.Context, id string) (ClassLevel, error)
	ListClassLevels(ctx context.Context, opts ListOpts) ([]ClassLevel, error)
	UpdateClassLevel(ctx context.Context, c ClassLevel) (ClassLevel, error)
	DeleteClassLevel(ctx context.Context, id string) error

	CreateSubject(ctx context.Context, s Subject) (Subject, error)
	GetSubject(ctx context.Context, id string) (Subject, error)
	ListSubjects(ctx context.Context, opts ListOpts) ([]Subject, error)
	UpdateSubject(ctx context.Context, s Subject) (Subject, error)
	DeleteSubject(ctx context.Context, id string) error

	CreateChapter(ctx context.Context, c Chapter) (Chapter, error)
	ListChapters(ctx context.Context, subjectID string) ([]Chapter, error)
	DeleteChapter(ctx context.Context, id string) error

	CreateSchool(ctx context.Context, s School) (School, error)
	GetSchool(ctx context.Context, id string) (School, error)
	ListSchools(ctx context.Context, opts ListOpts) ([]School, error)
	UpdateSchool(ctx context.Context, s School) (School, error)
	DeleteSchool(ctx context.Context, id string) error
}
