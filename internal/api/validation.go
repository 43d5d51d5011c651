package api

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/huangsam/exprora/schema"
)

var registerOnce sync.Once

// registerValidators adds the enum validations used by the request structs
// to gin's validator and makes field errors report JSON names.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("experiment_type", enumValidator(schema.ValidExperimentTypes))
		_ = v.RegisterValidation("experiment_status", enumValidator(schema.ValidExperimentStatuses))
		_ = v.RegisterValidation("event_type", enumValidator(schema.ValidEventTypes))
		_ = v.RegisterValidation("targeting_type", enumValidator(schema.ValidTargetingTypes))
		_ = v.RegisterValidation("targeting_condition", enumValidator(schema.ValidTargetingConditions))
	})
}

func enumValidator[T ~string](valid map[T]struct{}) validator.Func {
	return func(fl validator.FieldLevel) bool {
		_, ok := valid[T(fl.Field().String())]
		return ok
	}
}
