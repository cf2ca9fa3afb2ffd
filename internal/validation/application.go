// Package validation provides input validation for membership applications and
// evidence uploads. Validators run before any data is persisted so invalid
// submissions are rejected early without consuming storage.
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

const (
	// MaxNameLength bounds the full name field
	MaxNameLength = 200
	// MaxFieldLength bounds free-text profile fields (city, organization)
	MaxFieldLength = 200
)

// quicklookIDPattern matches a corporate quicklook id: two uppercase letters
// followed by six digits, e.g. AB123456.
var quicklookIDPattern = regexp.MustCompile(`^[A-Z]{2}\d{6}$`)

// Application is the set of applicant-supplied fields checked at intake.
type Application struct {
	FullName     string
	Email        string
	QuicklookID  string
	City         string
	Organization string
	JoinConsent  bool
	GDPRConsent  bool
}

// ValidateApplication checks all intake fields and returns the first problem found.
func ValidateApplication(app *Application) error {
	if err := ValidateFullName(app.FullName); err != nil {
		return err
	}
	if err := ValidateEmail(app.Email); err != nil {
		return err
	}
	if err := ValidateQuicklookID(app.QuicklookID); err != nil {
		return err
	}
	if err := validateTextField("city", app.City); err != nil {
		return err
	}
	if err := validateTextField("organization", app.Organization); err != nil {
		return err
	}
	if !app.JoinConsent {
		return fmt.Errorf("membership consent is required")
	}
	if !app.GDPRConsent {
		return fmt.Errorf("data processing consent is required")
	}
	return nil
}

// ValidateQuicklookID validates the quicklook id format
func ValidateQuicklookID(id string) error {
	if id == "" {
		return fmt.Errorf("quicklook id cannot be empty")
	}
	if !quicklookIDPattern.MatchString(id) {
		return fmt.Errorf("invalid quicklook id format: %s (expected two uppercase letters followed by six digits)", id)
	}
	return nil
}

// ValidateFullName validates the applicant's full name
func ValidateFullName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("full name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("full name exceeds maximum length of %d characters", MaxNameLength)
	}
	return nil
}

// ValidateEmail validates that the address parses as a single RFC 5322 address
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email address: %s", email)
	}
	// Reject display-name forms like "John <j@x.com>"; the field must be bare.
	if addr.Address != email {
		return fmt.Errorf("invalid email address: %s", email)
	}
	return nil
}

func validateTextField(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if len(value) > MaxFieldLength {
		return fmt.Errorf("%s exceeds maximum length of %d characters", field, MaxFieldLength)
	}
	return nil
}
