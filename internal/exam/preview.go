package exam

import (
	"context"
	"errors"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/examdesk/examdesk/internal/metrics"
	"github.com/examdesk/examdesk/internal/question"
)

// ErrInvalidID is returned for identifiers that are not UUIDs.
var ErrInvalidID = errors.New("invalid id")

// PreviewSection is a section's configuration plus the questions drawn for it.
type PreviewSection struct {
	Section
	Questions []question.Preview `json:"questions"`
}

// PreviewResult is a sample paper with answer keys removed.
type PreviewResult struct {
	ExamID      string           `json:"exam_id,omitempty"`
	StructureID string           `json:"structure_id"`
	Title       string           `json:"title"`
	SubjectID   string           `json:"subject_id"`
	Sections    []PreviewSection `json:"sections"`
}

type previewSource interface {
	GetScheduled(ctx context.Context, id string) (ScheduledExam, error)
	GetStructure(ctx context.Context, id string) (Structure, error)
	SubjectBank(ctx context.Context, subjectID string) (string, error)
}

// Previewer draws sample papers. Each call samples afresh, so two previews
// of one exam have the same shape but usually different questions.
type Previewer struct {
	src     previewSource
	sampler *question.Sampler
	rng     question.Source
	metrics *metrics.Metrics
}

// NewPreviewer wires a previewer. rng must be safe for concurrent use when
// the previewer is shared between requests; nil selects question.GlobalSource.
// m may be nil.
func NewPreviewer(src previewSource, bank question.Bank, rng question.Source, m *metrics.Metrics) *Previewer {
	if rng == nil {
		rng = question.GlobalSource
	}
	return &Previewer{
		src:     src,
		sampler: question.NewSampler(bank, rng),
		rng:     rng,
		metrics: m,
	}
}

// Preview samples the paper for a scheduled exam.
func (p *Previewer) Preview(ctx context.Context, examID string) (res PreviewResult, err error) {
	defer func() { p.metrics.PreviewDone(outcome(err)) }()

	if _, err := uuid.Parse(examID); err != nil {
		return PreviewResult{}, pkgerrors.Wrap(ErrInvalidID, examID)
	}
	ex, err := p.src.GetScheduled(ctx, examID)
	if err != nil {
		return PreviewResult{}, err
	}
	if ex.ExamStructureID == nil {
		return PreviewResult{}, pkgerrors.Wrap(ErrNoStructure, examID)
	}
	st, err := p.src.GetStructure(ctx, *ex.ExamStructureID)
	if err != nil {
		return PreviewResult{}, err
	}
	res, err = p.build(ctx, st)
	if err != nil {
		return PreviewResult{}, err
	}
	res.ExamID = ex.ID
	res.Title = ex.Title
	return res, nil
}

// PreviewStructure samples a paper straight from a blueprint.
func (p *Previewer) PreviewStructure(ctx context.Context, structureID string) (res PreviewResult, err error) {
	defer func() { p.metrics.PreviewDone(outcome(err)) }()

	if _, err := uuid.Parse(structureID); err != nil {
		return PreviewResult{}, pkgerrors.Wrap(ErrInvalidID, structureID)
	}
	st, err := p.src.GetStructure(ctx, structureID)
	if err != nil {
		return PreviewResult{}, err
	}
	return p.build(ctx, st)
}

func (p *Previewer) build(ctx context.Context, st Structure) (PreviewResult, error) {
	if st.SubjectID == nil {
		return PreviewResult{}, pkgerrors.Wrap(ErrNoSubject, st.ID)
	}
	bank, err := p.src.SubjectBank(ctx, *st.SubjectID)
	if err != nil {
		return PreviewResult{}, err
	}
	if bank == "" {
		return PreviewResult{}, pkgerrors.Wrap(question.ErrNoBank, *st.SubjectID)
	}

	res := PreviewResult{
		StructureID: st.ID,
		Title:       st.Name,
		SubjectID:   *st.SubjectID,
		Sections:    make([]PreviewSection, 0, len(st.Sections)),
	}
	for _, sec := range st.Sections {
		qs, err := p.sampler.Pick(ctx, sec.Spec(bank, *st.SubjectID))
		if err != nil {
			return PreviewResult{}, pkgerrors.Wrapf(err, "section %q", sec.Name)
		}
		p.metrics.PreviewSection(sec.QuestionCount, len(qs))
		res.Sections = append(res.Sections, PreviewSection{
			Section:   sec,
			Questions: question.RedactAll(qs, p.rng),
		})
	}
	return res, nil
}

// IsClientError reports whether err is the caller's fault: a malformed id or
// a missing prerequisite.
func IsClientError(err error) bool {
	for _, target := range []error{ErrInvalidID, ErrNotFound, ErrNoStructure, ErrNoSubject, question.ErrNoBank} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsClientError(err):
		return "client_error"
	default:
		return "error"
	}
}
