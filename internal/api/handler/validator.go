package handler

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/service"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding tags used by the request DTOs.
// Must run before the first request is bound.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("referral_code", func(fl validator.FieldLevel) bool {
			return service.CodePattern.MatchString(service.NormalizeCode(fl.Field().String()))
		})
	})
}
