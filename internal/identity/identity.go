package identity

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

var (
	// ErrMissingContact indicates neither an email nor a phone number was supplied.
	ErrMissingContact = errors.New("an email address or phone number is required")
	// ErrInvalidEmail indicates the supplied email address does not parse.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidPhone indicates the supplied phone number is malformed.
	ErrInvalidPhone = errors.New("invalid phone number")
)

// Contact is the email-or-phone value used as a login handle. Exactly one of
// the two fields is set. Construct it with Resolve; the zero value is not a
// valid contact.
type Contact struct {
	email string
	phone string
}

// Resolve normalizes the raw form inputs into a Contact. Email wins whenever
// both fields are non-empty; phone is used only as a fallback.
func Resolve(email, phone string) (Contact, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	phone = strings.TrimSpace(phone)

	switch {
	case email != "":
		if _, err := mail.ParseAddress(email); err != nil {
			return Contact{}, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
		}
		return Contact{email: email}, nil
	case phone != "":
		if !validPhone(phone) {
			return Contact{}, fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
		}
		return Contact{phone: phone}, nil
	default:
		return Contact{}, ErrMissingContact
	}
}

// Email returns the email handle, empty when the contact is phone-based.
func (c Contact) Email() string { return c.email }

// Phone returns the phone handle, empty when the contact is email-based.
func (c Contact) Phone() string { return c.phone }

// IsZero reports whether the contact carries neither handle.
func (c Contact) IsZero() bool { return c.email == "" && c.phone == "" }

// String renders the handle for logs and messages.
func (c Contact) String() string {
	if c.email != "" {
		return c.email
	}
	return c.phone
}

func validPhone(phone string) bool {
	digits := 0
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 5
}
