package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// CustomFields is the free-form key/value bag stored alongside a patient (jsonb).
type CustomFields map[string]any

func (c CustomFields) Value() (driver.Value, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c)
}

func (c *CustomFields) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = CustomFields{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("custom_fields: unsupported source type")
	}
	out := CustomFields{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*c = out
	return nil
}

// NullString returns nil for blank input and a pointer to the trimmed value otherwise.
func NullString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var nonDigits = regexp.MustCompile(`\D`)

// NormalizePhone keeps only the digits.
func NormalizePhone(phone string) string {
	return nonDigits.ReplaceAllString(phone, "")
}

// NormalizeEmail trims and lower-cases.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
