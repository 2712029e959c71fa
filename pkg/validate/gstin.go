package validate

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// GSTIN format: 2-digit state code, 5-letter PAN prefix, 4 digits, one
// letter, one entity code, literal 'Z', one check character.
var gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][A-Z0-9]Z[A-Z0-9]$`)

// GSTIN reports whether s is a well-formed tax registration id. The
// empty string is accepted as "not provided".
func GSTIN(s string) bool {
	if s == "" {
		return true
	}
	return gstinPattern.MatchString(s)
}

// Register installs the custom binding validations on gin's validator
// engine. Call once at startup.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("gstin", func(fl validator.FieldLevel) bool {
			return GSTIN(fl.Field().String())
		})
	}
}
