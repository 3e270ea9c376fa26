package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	pkgerrors "devconsole/pkg/errors"
)

type sample struct {
	Text string `validate:"required,max=5"`
	Kind string `validate:"omitempty,oneof=code image"`
}

func TestValidateStruct(t *testing.T) {
	assert.NoError(t, ValidateStruct(sample{Text: "hi", Kind: "code"}))

	err := ValidateStruct(sample{Kind: "video"})

	assert.True(t, pkgerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "text is required")
	assert.Contains(t, err.Error(), "kind must be one of: code image")
}
