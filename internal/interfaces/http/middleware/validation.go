package middleware

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var setupOnce sync.Once

// SetupValidator configures gin's validator once per process: field names
// come from the json, form or uri tag, and the barcode tag checks batch barcodes.
func SetupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(wireName)
		_ = v.RegisterValidation("barcode", func(fl validator.FieldLevel) bool {
			return inventory.IsValidBarcode(fl.Field().String())
		})
	})
}

func wireName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form", "uri"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		}
		return name
	}
	return ""
}

// ValidationDetails flattens validator errors into response details keyed by
// the path below the request struct, e.g. "lines[1].product_id". Any other
// error yields nil.
func ValidationDetails(err error) []dto.ValidationDetail {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	details := make([]dto.ValidationDetail, len(fieldErrs))
	for i, fe := range fieldErrs {
		details[i] = dto.ValidationDetail{Field: fieldPath(fe), Message: describe(fe)}
	}
	return details
}

func fieldPath(fe validator.FieldError) string {
	if _, below, ok := strings.Cut(fe.Namespace(), "."); ok {
		return below
	}
	return fe.Field()
}

var messages = map[string]func(fe validator.FieldError) string{
	"required": func(validator.FieldError) string { return "This field is required" },
	"uuid":     func(validator.FieldError) string { return "Invalid UUID format" },
	"numeric":  func(validator.FieldError) string { return "Must be numeric" },
	"barcode":  func(validator.FieldError) string { return "Must be a 13-digit batch barcode" },
	"oneof":    func(fe validator.FieldError) string { return "Must be one of: " + fe.Param() },
	"len":      func(fe validator.FieldError) string { return "Must be exactly " + fe.Param() + " characters" },
	"min": func(fe validator.FieldError) string {
		switch fe.Kind() {
		case reflect.String:
			return "Must be at least " + fe.Param() + " characters"
		case reflect.Slice:
			return "Must contain at least " + fe.Param() + " item(s)"
		}
		return "Must be at least " + fe.Param()
	},
	"max": func(fe validator.FieldError) string {
		if fe.Kind() == reflect.String {
			return "Must be at most " + fe.Param() + " characters"
		}
		return "Must be at most " + fe.Param()
	},
}

func describe(fe validator.FieldError) string {
	if msg, ok := messages[fe.Tag()]; ok {
		return msg(fe)
	}
	return "Invalid value"
}
