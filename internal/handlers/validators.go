package handlers

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"tasklist/backend/internal/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators installs the task validation tags on gin's validator.
// Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})

		v.RegisterCustomTypeFunc(optionalValue[string], models.Optional[string]{})
		v.RegisterCustomTypeFunc(optionalValue[models.Status], models.Optional[models.Status]{})
		v.RegisterCustomTypeFunc(optionalValue[models.Priority], models.Optional[models.Priority]{})

		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = v.RegisterValidation("taskstatus", func(fl validator.FieldLevel) bool {
			return models.Status(fl.Field().String()).IsValid()
		})
		_ = v.RegisterValidation("taskpriority", func(fl validator.FieldLevel) bool {
			return models.Priority(fl.Field().String()).IsValid()
		})
		// Blank due dates are left to the handlers: they clear the date on
		// update and are rejected on create.
		_ = v.RegisterValidation("duedate", func(fl validator.FieldLevel) bool {
			value := fl.Field().String()
			if strings.TrimSpace(value) == "" {
				return true
			}
			_, err := parseDueDate(value)
			return err == nil
		})
	})
}

// optionalValue exposes the value of a present, non-null Optional to the
// validator. Absent and null fields validate as nil and are skipped by omitempty.
func optionalValue[T any](field reflect.Value) interface{} {
	o, ok := field.Interface().(models.Optional[T])
	if !ok || !o.Valid {
		return nil
	}
	return o.Value
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank", "required":
		return fmt.Sprintf("%s is required", capitalize(fe.Field()))
	case "taskstatus":
		return "Status must be one of pending, in-progress, completed"
	case "taskpriority":
		return "Priority must be one of low, medium, high"
	case "duedate":
		return dueDateMessage
	default:
		return fmt.Sprintf("%s is invalid", capitalize(fe.Field()))
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

const dueDateMessage = "Due date must be an RFC 3339 timestamp or a YYYY-MM-DD date"

var dueDateLayouts = []string{time.RFC3339Nano, "2006-01-02"}

func parseDueDate(value string) (time.Time, error) {
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid due date %q", value)
}
