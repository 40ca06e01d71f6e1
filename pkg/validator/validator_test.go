package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/odontogram-api/pkg/errors"
)

type toothForm struct {
	FDI     int    `json:"numero_fdi" validate:"fdi"`
	Estado  string `json:"estado" validate:"required,tooth_status"`
	Surface string `json:"superficie" validate:"omitempty,surface"`
	Tipo    string `json:"tipo" validate:"odonto_type"`
}

func TestValidateAcceptsValidForm(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(toothForm{FDI: 16, Estado: "caries", Surface: "P", Tipo: "temporal"}))
	assert.NoError(t, v.Validate(toothForm{FDI: 85, Estado: "SANO"}))
}

func TestValidateReportsJSONFieldNames(t *testing.T) {
	v := New()
	err := v.Validate(toothForm{FDI: 19, Estado: "ROTO", Surface: "X", Tipo: "ADULTO"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	fields := Fields(err)
	require.Len(t, fields, 4)
	names := []string{fields[0].Field, fields[1].Field, fields[2].Field, fields[3].Field}
	assert.ElementsMatch(t, []string{"numero_fdi", "estado", "superficie", "tipo"}, names)
	assert.Contains(t, err.Error(), "numero_fdi is not a valid FDI tooth number")
}

func TestTranslatePassesOtherErrorsThrough(t *testing.T) {
	other := apperrors.NewConflict("already exists")
	assert.Same(t, other, Translate(other))
	assert.Nil(t, Translate(nil))
}
