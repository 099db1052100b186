package api

import (
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/jcastroba/red-simpatizantes/internal/models"
	"github.com/jcastroba/red-simpatizantes/internal/services"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding rules used by the request models
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("sexo", func(fl validator.FieldLevel) bool {
			return models.ValidateSexo(fl.Field().String())
		})
		// codes are matched case-insensitively, same as the referrer lookup
		_ = v.RegisterValidation("referralcode", func(fl validator.FieldLevel) bool {
			return services.ValidReferralCode(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
		})
	})
}
