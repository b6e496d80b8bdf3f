package auth

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/Kasis11/budgetly/errors"
)

const (
	MAX_LENGTH_USERNAME = 150
	MAX_LENGTH_EMAIL    = 254
	MAX_PASSWORD_LENGTH = 72
)

var usernameRegex = regexp.MustCompile(`^[\w.@+-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRegex.MatchString(fl.Field().String())
	})
	// bcrypt rejects input longer than 72 bytes, not runes.
	_ = v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MAX_PASSWORD_LENGTH
	})
	return v
}

type User struct {
	ID             string
	UserName       string
	PasswordHashed string
	Email          string
	JoinedAt       time.Time
}

type NewUser struct {
	UserName      string `validate:"required,max=150,username"`
	Email         string `validate:"required,max=254,email"`
	PasswordPlain string `validate:"required,max=72,bcryptlen"`
}

type UserCredentialsPure struct {
	UserName      string `validate:"required"`
	PasswordPlain string `validate:"required"`
}

func (newUser NewUser) ValidateUserFields() error {
	return validationError(validate.Struct(newUser))
}

func (c UserCredentialsPure) Validate() error {
	return validationError(validate.Struct(c))
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return appErrors.Invalid("invalid input: %v", err)
	}

	messages := make([]string, 0, len(errs))
	for _, fe := range errs {
		messages = append(messages, fieldMessage(fe))
	}
	return appErrors.ErrorResponse{
		Code:    appErrors.ErrInvalidInput,
		Message: strings.Join(messages, " "),
	}
}

func fieldMessage(fe validator.FieldError) string {
	name := fieldNames[fe.Field()]
	if name == "" {
		name = strings.ToLower(fe.Field())
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: This field is required.", name)
	case "max":
		return fmt.Sprintf("%s: Ensure this field has no more than %s characters.", name, fe.Param())
	case "email":
		return fmt.Sprintf("%s: Enter a valid email address.", name)
	case "bcryptlen":
		return fmt.Sprintf("%s: Ensure this field has no more than %d bytes.", name, MAX_PASSWORD_LENGTH)
	case "username":
		return fmt.Sprintf("%s: Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.", name)
	default:
		return fmt.Sprintf("%s: invalid value.", name)
	}
}

var fieldNames = map[string]string{
	"UserName":      "username",
	"Email":         "email",
	"PasswordPlain": "password",
}
