package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	odontovalidator "github.com/jwalitptl/odontogram-api/pkg/validator"
)

// RegisterBindingValidators installs the odontogram tags (fdi, surface,
// tooth_status, odonto_type) on gin's binding engine so ShouldBindJSON
// enforces them.
func RegisterBindingValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
	}
	return odontovalidator.Register(v)
}
