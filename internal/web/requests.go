package web

import (
	"github.com/go-playground/validator/v10"
)

// CustomValidator adapts go-playground/validator to echo.Validator.
type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

func (cv *CustomValidator) Validate(i any) error {
	return cv.validator.Struct(i)
}

// SendMessageRequest is the composer form.
type SendMessageRequest struct {
	ChatID  string `form:"chat_id" validate:"required,max=64"`
	Content string `form:"content" validate:"max=4000"`
}
