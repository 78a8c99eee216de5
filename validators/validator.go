package validators

import (
	"net/http"

	"github.com/anonto42/nano-midea/notifications/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// New returns a validator with the struct-level rules for interaction events
func New() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateReceivers, models.Event{})
	return v
}

func validateReceivers(sl validator.StructLevel) {
	event := sl.Current().Interface().(models.Event)
	if !event.HasReceivers() {
		sl.ReportError(event.ReceiverID, "receiverId", "ReceiverID", "receivers", "")
	}
}

// CustomValidator plugs the validator into echo's Context.Validate
type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator() *CustomValidator {
	return &CustomValidator{validator: New()}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
