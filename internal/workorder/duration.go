package workorder

import (
	"strconv"
	"strings"

	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
)

// ParseMinutes parses a countdown duration written as "mm" or "hh:mm".
// Empty input means zero. Negative or malformed input is a validation error.
func ParseMinutes(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}

	hours, mins := "0", text
	if h, m, ok := strings.Cut(text, ":"); ok {
		hours, mins = h, m
	}
	h, herr := strconv.Atoi(strings.TrimSpace(hours))
	m, merr := strconv.Atoi(strings.TrimSpace(mins))
	if herr != nil || merr != nil {
		return 0, errors.ValidationError("duration must be minutes or hh:mm").
			WithContext("duration", text).Build()
	}
	if h < 0 || m < 0 {
		return 0, errors.ValidationError("duration must not be negative").
			WithContext("duration", text).Build()
	}
	if strings.Contains(text, ":") && m >= 60 {
		return 0, errors.ValidationError("minutes part of hh:mm must be below 60").
			WithContext("duration", text).Build()
	}
	return h*60 + m, nil
}
