/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package contact validates contact-form submissions before they are relayed by mail.
package contact

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Rejection reasons returned to the caller, in rule order.
const (
	ReasonRequired        = "Name, email & message are required"
	ReasonInvalidEmail    = "Invalid email format"
	ReasonPhoneTooShort   = "Phone must be at least 10 digits"
	ReasonMessageTooShort = "Message must be at least 16 characters"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Submission is the JSON body accepted by POST /send-mail.
type Submission struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,looseemail"`
	Phone   string `json:"phone" validate:"omitempty,min=10"`
	Message string `json:"message" validate:"required,min=16"`
}

// NormalizedSubmission is a submission that passed every rule. Phone is empty when absent.
type NormalizedSubmission struct {
	Name    string
	Email   string
	Phone   string
	Message string
}

// HasPhone reports whether the submitter provided a phone number.
func (n NormalizedSubmission) HasPhone() bool {
	return n.Phone != ""
}

// ValidationError is returned by Validate when a rule fails. Reason is safe to show to the caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid submission: %s", e.Reason)
}

// IsValidationError reports whether err carries a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("looseemail", validateLooseEmail); err != nil {
		panic(fmt.Sprintf("register looseemail validator: %v", err))
	}
	return v
}

// validateLooseEmail accepts the local@domain.tld shape without internal whitespace.
func validateLooseEmail(fl validator.FieldLevel) bool {
	return emailPattern.MatchString(fl.Field().String())
}

// ValidEmail reports whether email has the local@domain.tld shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// Validate checks s against the contact rules. Only the first failing rule is reported.
func Validate(s Submission) (NormalizedSubmission, error) {
	if err := validate.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return NormalizedSubmission{}, fmt.Errorf("validate submission: %w", err)
		}
		return NormalizedSubmission{}, firstFailure(fieldErrs)
	}

	return NormalizedSubmission{
		Name:    s.Name,
		Email:   s.Email,
		Phone:   s.Phone,
		Message: s.Message,
	}, nil
}

// firstFailure picks the failure with the highest rule precedence, so callers see
// the same reason regardless of how many fields are wrong.
func firstFailure(errs validator.ValidationErrors) *ValidationError {
	var (
		best     *ValidationError
		bestRank = rankUnknown
	)
	for _, fe := range errs {
		rank, reason := classify(fe)
		if rank < bestRank {
			bestRank = rank
			best = &ValidationError{Field: fe.Field(), Reason: reason}
		}
	}
	if best == nil {
		// a tag we do not classify; report it as a missing field
		return &ValidationError{Field: errs[0].Field(), Reason: ReasonRequired}
	}
	return best
}

const rankUnknown = 4

func classify(fe validator.FieldError) (int, string) {
	switch {
	case fe.Tag() == "required":
		return 0, ReasonRequired
	case fe.Tag() == "looseemail":
		return 1, ReasonInvalidEmail
	case fe.Field() == "Phone" && fe.Tag() == "min":
		return 2, ReasonPhoneTooShort
	case fe.Field() == "Message" && fe.Tag() == "min":
		return 3, ReasonMessageTooShort
	default:
		return rankUnknown, ""
	}
}
