package dto

import (
	"bytes"
	"fmt"
	"strconv"
)

// FlexBool tolerates upstream payloads that encode booleans as the strings
// "true"/"false" (or "1"/"0"). It normalises at the API boundary so core
// logic only ever sees plain bools.
type FlexBool bool

// UnmarshalJSON accepts JSON booleans, numbers, and quoted strings.
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = false
		return nil
	}
	if data[0] == '"' {
		unquoted, err := strconv.Unquote(string(data))
		if err != nil {
			return fmt.Errorf("invalid boolean string: %s", data)
		}
		if unquoted == "" {
			*b = false
			return nil
		}
		parsed, err := strconv.ParseBool(unquoted)
		if err != nil {
			return fmt.Errorf("invalid boolean string: %q", unquoted)
		}
		*b = FlexBool(parsed)
		return nil
	}
	parsed, err := strconv.ParseBool(string(data))
	if err != nil {
		// Numeric forms other than 0/1 are rejected by ParseBool.
		return fmt.Errorf("invalid boolean value: %s", data)
	}
	*b = FlexBool(parsed)
	return nil
}

// MarshalJSON renders a plain JSON boolean.
func (b FlexBool) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatBool(bool(b))), nil
}

// Bool returns the native value.
func (b FlexBool) Bool() bool {
	return bool(b)
}
