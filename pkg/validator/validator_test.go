package validator

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type publishPayload struct {
	Title    string `json:"title" validate:"required,max=200"`
	Priority string `json:"priority" validate:"oneof=LOW NORMAL HIGH CRITICAL"`
	Channel  string `json:"channel" validate:"required"`
}

func TestValidateStructSuccess(t *testing.T) {
	err := ValidateStruct(publishPayload{Title: "Lab results", Priority: "HIGH", Channel: "user:7"})
	require.NoError(t, err)
}

func TestValidateStructFailures(t *testing.T) {
	err := ValidateStruct(publishPayload{Priority: "URGENT"})
	require.Error(t, err)

	var vErrs ValidationErrors
	require.ErrorAs(t, err, &vErrs)
	require.Len(t, vErrs, 3)
	require.Equal(t, []string{"title", "priority", "channel"}, vErrs.Fields())
	require.Contains(t, err.Error(), "priority failed on oneof=LOW NORMAL HIGH CRITICAL")
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("branchref", func(fl validator.FieldLevel) bool {
		return strings.HasPrefix(fl.Field().String(), "br-")
	})
	require.NoError(t, err)

	type custom struct {
		Branch string `validate:"branchref"`
	}

	require.NoError(t, ValidateStruct(custom{Branch: "br-1"}))
	require.Error(t, ValidateStruct(custom{Branch: "main"}))
}
