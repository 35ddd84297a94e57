package validate

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sectionReq struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"question_count" validate:"gte=0"`
}

type structureReq struct {
	Name     string       `json:"name" validate:"required"`
	Email    string       `json:"email" validate:"omitempty,email"`
	Sections []sectionReq `json:"sections" validate:"required,min=1,dive"`
}

func TestStructReportsJSONPaths(t *testing.T) {
	err := Struct(structureReq{
		Email:    "nope",
		Sections: []sectionReq{{Name: "A"}, {Count: -1}},
	})
	ve, ok := As(err)
	require.True(t, ok, "%v", err)

	got := map[string]string{}
	for _, f := range ve.Fields {
		got[f.Field] = f.Error
	}
	assert.Equal(t, "this field is required", got["name"])
	assert.Contains(t, got, "email")
	assert.Contains(t, got, "sections[1].name")
	assert.Contains(t, got, "sections[1].question_count")
}

func TestStructOK(t *testing.T) {
	assert.NoError(t, Struct(structureReq{Name: "Term 1", Sections: []sectionReq{{Name: "A"}}}))
}

func TestRegisterTag(t *testing.T) {
	RegisterTag("even", func(fl validator.FieldLevel) bool { return fl.Field().Int()%2 == 0 }, "{0} must be even")
	err := Var("count", 3, "even")
	ve, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "count", ve.Fields[0].Field)
	assert.Equal(t, "validation failed", ve.Error())
	assert.NoError(t, Var("count", 4, "even"))
}
