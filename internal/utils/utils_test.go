package utils

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

type row struct {
	ID       string `db:"id"`
	Name     string `db:"name"`
	URL      string `db:"-"`
	Computed int
	hidden   string `db:"hidden"`
}

func TestStructTagValues(t *testing.T) {
	assert.Equal(t, []string{"id", "name"}, StructTagValues(row{}))
	assert.Equal(t, []string{"id", "name"}, StructTagValues(&row{}))
	assert.Panics(t, func() { StructTagValues("not a struct") })
}

func TestStructToMap(t *testing.T) {
	in := &row{ID: "a", Name: "b", URL: "c", Computed: 1, hidden: "d"}
	assert.Equal(t, map[string]any{"id": "a", "name": "b"}, StructToMap(in))
}

func TestErrorWrapOrNil(t *testing.T) {
	assert.NoError(t, ErrorWrapOrNil(nil, "ignored"))

	cause := errors.New("boom")
	assert.Same(t, cause, ErrorWrapOrNil(cause, ""))

	err := ErrorWrapOrNil(cause, "failed to do thing")
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "failed to do thing: boom")
}

func TestNanoID(t *testing.T) {
	id := NanoID()
	assert.Len(t, id, NanoidSize)
	assert.Empty(t, strings.Trim(id, nanoidAlphabet))
	assert.NotEqual(t, id, NanoID())

	assert.Len(t, NanoIDSize(8), 8)
	assert.Len(t, NanoIDSize(0), NanoidSize)
}

func TestPointers(t *testing.T) {
	assert.Equal(t, 7, *IntPtr(7))
	assert.Equal(t, "x", *StringPtr("x"))
}

func TestNewValidator_UsesJSONNames(t *testing.T) {
	type input struct {
		Description string `json:"description,omitempty" validate:"required"`
		Internal    string `json:"-" validate:"required"`
	}

	err := NewValidator().Struct(input{})

	var verrs validator.ValidationErrors
	assert.True(t, errors.As(err, &verrs))
	if assert.Len(t, verrs, 2) {
		assert.Equal(t, "description", verrs[0].Field())
		assert.Equal(t, "Internal", verrs[1].Field())
	}
}
