package mwemail

import (
	"regexp"
	"strings"

	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
)

// Notice is a maintenance-window announcement extracted from a work log note.
type Notice struct {
	RFC       string
	Status    string
	StartDate string
	EndDate   string
	Details   string // markdown
}

// keyLine matches "key: value" at the start of a line. Values run until the
// next key line, so details may span several lines.
var keyLine = regexp.MustCompile(`(?i)^\s*(rfc|status|start_date|end_date|details)\s*:\s*(.*)$`)

// Parse reads a note of the form
//
//	rfc: RFC15265
//	status: confirmed
//	start_date: 2024-08-10 14:30
//	end_date: 2024-08-11 18:45
//	details: free text,
//	possibly over several lines
//
// Keys are case-insensitive and may appear in any order. rfc is required.
func Parse(note string) (Notice, error) {
	fields := map[string]*strings.Builder{}
	var current *strings.Builder

	for _, line := range strings.Split(strings.ReplaceAll(note, "\r\n", "\n"), "\n") {
		if m := keyLine.FindStringSubmatch(line); m != nil {
			current = &strings.Builder{}
			fields[strings.ToLower(m[1])] = current
			current.WriteString(m[2])
			continue
		}
		if current != nil {
			current.WriteByte('\n')
			current.WriteString(line)
		}
	}

	get := func(key string) string {
		if b, ok := fields[key]; ok {
			return strings.TrimSpace(b.String())
		}
		return ""
	}
	n := Notice{
		RFC:       get("rfc"),
		Status:    get("status"),
		StartDate: get("start_date"),
		EndDate:   get("end_date"),
		Details:   get("details"),
	}
	if n.RFC == "" {
		return n, errors.ValidationError("maintenance window note has no rfc").Build()
	}
	return n, nil
}
