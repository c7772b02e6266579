package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/benvon/smart-forms/internal/password"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("password", validatePassword); err != nil {
		panic(fmt.Sprintf("failed to register password validator: %v", err))
	}
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

// SignupRequest is the body of POST /api/auth/signup
type SignupRequest struct {
	Email    string  `json:"email" validate:"required,email,max=254"`
	Password string  `json:"password" validate:"required,password"`
	Name     *string `json:"name,omitempty" validate:"omitempty,max=200"`
}

// ProfileUpdate carries optional profile fields changed through the admin CLI
type ProfileUpdate struct {
	Name     *string `validate:"omitempty,max=200"`
	ImageURL *string `validate:"omitempty,max=2048,url"`
}

// validatePassword enforces length bounds only; composition rules are left to the user
func validatePassword(fl validator.FieldLevel) bool {
	n := len([]rune(fl.Field().String()))
	return n >= password.MinLength && n <= 1024
}

// Normalize trims the request and sanitizes the display name
func (r *SignupRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
	if r.Name != nil {
		name := SanitizeText(*r.Name)
		if name == "" {
			r.Name = nil
		} else {
			r.Name = &name
		}
	}
}

// Normalize trims the login email
func (r *LoginRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

// Describe turns a validation error into a message safe to return to clients
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "email must be a valid email address"
	case "password":
		return fmt.Sprintf("password must be at least %d characters", password.MinLength)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "max":
		return fmt.Sprintf("%s is too long", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}
