package handler

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// kenyanPhone accepts the shapes payers type: 07.., 2547.., +2547.. or a bare 7...
var kenyanPhone = regexp.MustCompile(`^(254|\+254|0)?[7-9]\d{8}$`)

// RegisterValidators adds the kephone tag to gin's binding validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("kephone", func(fl validator.FieldLevel) bool {
		return kenyanPhone.MatchString(fl.Field().String())
	})
}
