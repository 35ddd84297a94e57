package exam

import (
	"fmt"

	"github.com/examdesk/examdesk/internal/validate"
)

// normalize validates a blueprint and fills the derived fields: section
// positions, counts implied by chapter quotas and the totals.
func normalize(s *Structure) error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	var fields []validate.FieldError
	for i := range s.Sections {
		sec := &s.Sections[i]
		sec.Position = i
		chapters := map[string]bool{}
		for j, cq := range sec.ChapterConfigs {
			if chapters[cq.ChapterID] {
				fields = append(fields, validate.FieldError{
					Field: fmt.Sprintf("sections[%d].chapter_configs[%d].chapter_id", i, j),
					Error: "chapter " + cq.ChapterID + " is listed more than once",
				})
			}
			chapters[cq.ChapterID] = true
		}
		if len(sec.ChapterConfigs) > 0 {
			sum := sec.ChapterConfigs.Sum()
			switch {
			case sec.QuestionCount == 0:
				sec.QuestionCount = sum
			case sec.QuestionCount != sum:
				fields = append(fields, validate.FieldError{
					Field: fmt.Sprintf("sections[%d].question_count", i),
					Error: fmt.Sprintf("question_count %d does not match chapter quotas (%d)", sec.QuestionCount, sum),
				})
			}
		}
	}
	if len(fields) > 0 {
		return validate.New("validation failed", fields...)
	}
	totals(s)
	return nil
}

// totals recomputes the derived fields of a structure read from storage.
func totals(s *Structure) {
	s.TotalQuestions, s.TotalMarks = 0, 0
	for _, sec := range s.Sections {
		s.TotalQuestions += sec.QuestionCount
		s.TotalMarks += float64(sec.QuestionCount) * sec.MarksPerQuestion
	}
}
