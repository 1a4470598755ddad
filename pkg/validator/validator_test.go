package validator_test

import (
	"testing"

	"github.com/marcodd23/go-serialtx/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type request struct {
	Op   string `validate:"required,oneof=exec run get all each map"`
	SQL  string `validate:"required"`
	Rows int    `validate:"gte=0"`
}

func TestValidateStruct(t *testing.T) {
	v := validator.NewValidator()
	require.Same(t, v, validator.NewValidator())

	assert.Empty(t, v.ValidateStruct(request{Op: "run", SQL: "SELECT 1"}))

	errs := v.ValidateStruct(request{Op: "drop", Rows: -1})
	require.Len(t, errs, 3)
	assert.Equal(t, "request.Op", errs[0].FailedField)
	assert.Equal(t, "oneof", errs[0].Tag)
	assert.Equal(t, "request.SQL", errs[1].FailedField)
	assert.Equal(t, "required", errs[1].Tag)
	assert.Equal(t, "gte", errs[2].Tag)
	assert.Equal(t, "0", errs[2].Value)
}

func TestValidate(t *testing.T) {
	v := validator.NewValidator()

	require.NoError(t, v.Validate(request{Op: "exec", SQL: "BEGIN;"}))

	err := v.Validate(request{Op: "exec"})
	var valErr *validator.ValidationError
	require.ErrorAs(t, err, &valErr)
	require.Len(t, valErr.GetErrorsDetails(), 1)
	assert.JSONEq(t, `[{"failedField":"request.SQL","tag":"required"}]`, err.Error())
}
