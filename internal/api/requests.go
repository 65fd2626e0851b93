package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"example.com/gymassistant/internal/domain"
)

var validate = newValidator()

// phonePattern accepts international numbers with a leading + as well as national
// formats such as 09121234567.
var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

// normalizePhone drops the separators people type into phone numbers.
func normalizePhone(raw string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
}

// validateStruct runs the struct tags and reports the first failure as a validation error.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Errorf("%w: %s failed on %s", domain.ErrValidation, strings.ToLower(fe.Field()), fe.Tag())
	}
	return fmt.Errorf("%w: %v", domain.ErrValidation, err)
}

// decodeBody decodes an optional JSON body. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: unable to parse body", domain.ErrValidation)
}

// VerificationRequest is the payload for POST /api/auth/request-verification.
type VerificationRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,phone"`
}

// Validate ensures request correctness.
func (r VerificationRequest) Validate() error {
	return validateStruct(r)
}

// VerifyRequest is the payload for POST /api/auth/verify.
type VerifyRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,phone"`
	Code        string `json:"code" validate:"required,numeric,len=6"`
	Gym         string `json:"gym" validate:"omitempty,hostname_rfc1123"`
}

// Validate ensures request correctness.
func (r VerifyRequest) Validate() error {
	return validateStruct(r)
}

// RecordEntryRequest is the payload for POST /api/entries.
type RecordEntryRequest struct {
	EntryTime *time.Time `json:"entry_time"`
}

// RecordExitRequest is the payload for POST /api/entries/{id}/exit.
type RecordExitRequest struct {
	ExitTime *time.Time `json:"exit_time"`
}

// CreateProgramRequest is the payload for POST /api/training-programs.
type CreateProgramRequest struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	Date        time.Time       `json:"date" validate:"required"`
	Exercises   json.RawMessage `json:"exercises"`
	PDFURL      *string         `json:"pdf_url" validate:"omitempty,url"`
	ImageURL    *string         `json:"image_url" validate:"omitempty,url"`
}

// Validate ensures request correctness. Exercises may be a JSON document or a JSON string.
func (r CreateProgramRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if len(r.Exercises) > 0 && !json.Valid(r.Exercises) {
		return fmt.Errorf("%w: exercises must be valid JSON", domain.ErrValidation)
	}
	return nil
}

func (r CreateProgramRequest) exercises() string {
	if len(r.Exercises) == 0 {
		return "[]"
	}
	var asString string
	if err := json.Unmarshal(r.Exercises, &asString); err == nil {
		return asString
	}
	return string(r.Exercises)
}

// SendMessageRequest is the payload for POST /api/chat.
type SendMessageRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
	Type    string `json:"type" validate:"omitempty,oneof=text image system broadcast"`
}

// Validate ensures request correctness.
func (r SendMessageRequest) Validate() error {
	return validateStruct(r)
}

// CreateSupplementRequest is the payload for POST /api/supplements.
type CreateSupplementRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=5000"`
	Price       int     `json:"price" validate:"gte=0"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
}

// Validate ensures request correctness.
func (r CreateSupplementRequest) Validate() error {
	return validateStruct(r)
}
