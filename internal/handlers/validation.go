package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/zenebedagim/dental-clinic-sub002/internal/realtime"
	appErrors "github.com/zenebedagim/dental-clinic-sub002/pkg/errors"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/response"
	appValidator "github.com/zenebedagim/dental-clinic-sub002/pkg/validator"
)

var registerRules sync.Once

// registerValidationRules installs the handler specific tags once per process.
func registerValidationRules() {
	registerRules.Do(func() {
		_ = appValidator.RegisterValidation("channel", func(fl validator.FieldLevel) bool {
			_, err := realtime.ParseChannel(fl.Field().String())
			return err == nil
		})
	})
}

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// When validation fails, an error response is automatically written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		var ve appValidator.ValidationErrors
		if errors.As(err, &ve) {
			response.ErrorWithDetails(c, appErrors.NewBadRequest(formatValidationError(ve)), ve)
			return false
		}
		response.Error(c, appErrors.NewBadRequest("invalid request payload"))
		return false
	}

	return true
}

func formatValidationError(ve appValidator.ValidationErrors) string {
	if len(ve) == 0 {
		return "invalid request payload"
	}

	messages := make([]string, 0, len(ve))
	for _, failure := range ve {
		field := failure.Field
		switch failure.Tag {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters", field, failure.Param))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of %s", field, failure.Param))
		case "channel":
			messages = append(messages, fmt.Sprintf("%s must be a channel such as user:{id} or role:{ROLE}:branch:{id}", field))
		case "url":
			messages = append(messages, fmt.Sprintf("%s must be a valid URL", field))
		default:
			if failure.Param != "" {
				messages = append(messages, fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param))
			} else {
				messages = append(messages, fmt.Sprintf("%s failed validation: %s", field, failure.Tag))
			}
		}
	}
	return strings.Join(messages, "; ")
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
