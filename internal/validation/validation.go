package validation

import (
	"errors"
	"net/mail"
	"strings"
)

var (
	// ErrNameRequired is returned when a name is blank after trimming
	ErrNameRequired = errors.New("name is required")

	// ErrListNameTooShort is returned when a list name is shorter than two characters
	ErrListNameTooShort = errors.New("list name must be at least 2 characters")

	// ErrNameTooLong is returned when a name exceeds MaxNameLength
	ErrNameTooLong = errors.New("name must be at most 200 characters")

	// ErrCategoryRequired is returned when no category was chosen
	ErrCategoryRequired = errors.New("category is required")

	// ErrUnknownCategory is returned for categories outside Categories
	ErrUnknownCategory = errors.New("unknown category")

	ErrEmailRequired = errors.New("email is required")
	ErrEmailTooLong  = errors.New("email is too long")
	ErrEmailInvalid  = errors.New("invalid email address")
)

const MaxNameLength = 200

// Categories lists the display names of the supported list categories.
var Categories = []string{
	"Groceries",
	"Hardware",
	"Pharmacy",
	"Electronics",
	"Clothing",
	"Home & Garden",
	"Sports",
	"Books",
	"Other",
}

// NormalizeName trims a name and checks it is present and bounded.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameRequired
	}
	if len(name) > MaxNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}

// NormalizeListName applies NormalizeName plus the two character minimum.
func NormalizeListName(name string) (string, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return "", err
	}
	if len([]rune(name)) < 2 {
		return "", ErrListNameTooShort
	}
	return name, nil
}

// NormalizeCategory lower-cases the category and checks it is known.
func NormalizeCategory(category string) (string, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return "", ErrCategoryRequired
	}
	for _, c := range Categories {
		if strings.ToLower(c) == category {
			return category, nil
		}
	}
	return "", ErrUnknownCategory
}

// NormalizeEmail trims, validates and lower-cases an email address.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrEmailRequired
	}
	if len(email) > 320 {
		return "", ErrEmailTooLong
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrEmailInvalid
	}
	return strings.ToLower(email), nil
}

// OptionalText trims s and returns nil when the result is blank.
func OptionalText(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// Quantity returns q when it is a positive count and 1 otherwise.
func Quantity(q *int) int {
	if q == nil || *q < 1 {
		return 1
	}
	return *q
}

// NonBlank trims every entry and drops the blank ones.
func NonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
