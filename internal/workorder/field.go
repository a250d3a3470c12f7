package workorder

import (
	"strconv"
)

// Field names a work order column as exposed to the presentation layer.
type Field string

const (
	FieldID          Field = "wo_id"
	FieldDealCode    Field = "dc"
	FieldDescription Field = "description"
	FieldState       Field = "state"
	FieldLastUpdate  Field = "last_update"
	FieldCIDCount    Field = "cid_count"
	FieldProjectInfo Field = "project_info"
	FieldPM          Field = "pm"
	FieldTimeMin     Field = "time_min"
)

// Fields lists every column in display order.
var Fields = []Field{
	FieldID, FieldDealCode, FieldDescription, FieldState, FieldLastUpdate,
	FieldCIDCount, FieldProjectInfo, FieldPM, FieldTimeMin,
}

// ParseField validates a column name.
func ParseField(raw string) (Field, bool) {
	for _, f := range Fields {
		if string(f) == raw {
			return f, true
		}
	}
	return "", false
}

// Numeric reports whether the column sorts by number.
func (f Field) Numeric() bool {
	return f == FieldCIDCount || f == FieldTimeMin
}

// Value renders a column of w as display text.
func (w *WorkOrder) Value(f Field) string {
	switch f {
	case FieldID:
		return w.ID
	case FieldDealCode:
		return w.DealCode
	case FieldDescription:
		return w.Description
	case FieldState:
		return string(w.State)
	case FieldLastUpdate:
		return w.LastUpdate
	case FieldCIDCount:
		return strconv.Itoa(len(w.ConfigItems))
	case FieldProjectInfo:
		return w.ProjectInfo
	case FieldPM:
		return w.PM
	case FieldTimeMin:
		return strconv.Itoa(w.RemainingMinutes)
	default:
		return ""
	}
}

// Set assigns a writable column from display text. The identifier and the
// derived CI count cannot be set; time_min must be a non-negative integer.
func (w *WorkOrder) Set(f Field, value string) bool {
	switch f {
	case FieldDealCode:
		w.DealCode = value
	case FieldDescription:
		w.Description = value
	case FieldState:
		w.State = State(value)
	case FieldLastUpdate:
		w.LastUpdate = value
	case FieldProjectInfo:
		w.ProjectInfo = value
	case FieldPM:
		w.PM = value
	case FieldTimeMin:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return false
		}
		w.RemainingMinutes = n
	default:
		return false
	}
	return true
}
