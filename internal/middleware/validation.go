package middleware

import (
	stderrors "errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/renova-api/internal/model"
	"github.com/jwalitptl/renova-api/pkg/errors"
	"github.com/jwalitptl/renova-api/pkg/httputil"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var errorMessages = map[string]string{
	"required":   "Field is required",
	"email":      "Invalid email format",
	"min":        "Value is too short",
	"max":        "Value is too long",
	"oneof":      "Value is not allowed",
	"gtfield":    "Value must be after the start",
	"blood_type": "Unknown blood type",
}

// RegisterValidators installs the custom tags on gin's validator and
// makes error fields use their json names.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return stderrors.New("unexpected binding validator engine")
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return v.RegisterValidation("blood_type", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		for _, bt := range model.BloodTypes {
			if bt == value {
				return true
			}
		}
		return false
	})
}

// BindJSON binds the request body into obj and writes a 400 listing the
// invalid fields on failure.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		RespondWithValidationError(c, err)
		return false
	}
	return true
}

func RespondWithValidationError(c *gin.Context, err error) {
	var errs validator.ValidationErrors
	_ = c.Error(errors.BadRequest("invalid request body", err))
	if !stderrors.As(err, &errs) {
		c.AbortWithStatusJSON(http.StatusBadRequest, httputil.Response{
			Status:  httputil.StatusError,
			Message: "invalid request body",
		})
		return
	}

	details := make([]ValidationError, 0, len(errs))
	for _, e := range errs {
		msg := errorMessages[e.Tag()]
		if msg == "" {
			msg = e.Error()
		}
		details = append(details, ValidationError{Field: e.Field(), Message: msg})
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, httputil.Response{
		Status:  httputil.StatusError,
		Message: "validation failed",
		Data:    details,
	})
}
