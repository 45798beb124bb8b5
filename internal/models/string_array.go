package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// StringArray represents a PostgreSQL text[] type
type StringArray []string

// Scan implements the sql.Scanner interface
func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = StringArray{}
		return nil
	}

	switch v := value.(type) {
	case string:
		// Handle PostgreSQL array format: {value1,value2,value3}
		if v == "{}" || v == "" {
			*s = StringArray{}
			return nil
		}

		trimmed := strings.Trim(v, "{}")
		if trimmed == "" {
			*s = StringArray{}
			return nil
		}

		parts := strings.Split(trimmed, ",")
		result := make([]string, len(parts))
		for i, part := range parts {
			result[i] = strings.Trim(strings.TrimSpace(part), "\"")
		}
		*s = result
		return nil
	case []byte:
		// Try to parse as JSON first
		var arr []string
		if err := json.Unmarshal(v, &arr); err == nil {
			*s = arr
			return nil
		}
		// Fallback to string parsing
		return s.Scan(string(v))
	default:
		return errors.New(fmt.Sprintf("cannot scan %T into StringArray", value))
	}
}

// Value implements the driver.Valuer interface
func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "{}", nil
	}

	quoted := make([]string, len(s))
	for i, v := range s {
		quoted[i] = "\"" + strings.ReplaceAll(v, "\"", "\\\"") + "\""
	}
	return "{" + strings.Join(quoted, ",") + "}", nil
}
