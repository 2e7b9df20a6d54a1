package models

import "strings"

// Canonical attendance statuses. The source data this system replaces mixed
// casings and spellings of the same states; everything in the database uses
// these lower-case values and display labels come from DisplayStatus only.
const (
	StatusPresent = "present"
	StatusLate    = "late"
	StatusLeave   = "leave"
	StatusSick    = "sick"
	StatusAbsent  = "absent"
)

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

var statusLabels = map[string]string{
	StatusPresent: "Hadir",
	StatusLate:    "Terlambat",
	StatusLeave:   "Izin",
	StatusSick:    "Sakit",
	StatusAbsent:  "Alfa",
}

var statusAliases = map[string]string{
	"hadir":     StatusPresent,
	"terlambat": StatusLate,
	"izin":      StatusLeave,
	"sakit":     StatusSick,
	"alfa":      StatusAbsent,
	"alpha":     StatusAbsent,
}

// CanonicalStatus maps user or legacy input to a canonical status value.
// The second return is false when the input matches nothing.
func CanonicalStatus(s string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	if _, ok := statusLabels[v]; ok {
		return v, true
	}
	if c, ok := statusAliases[v]; ok {
		return c, true
	}
	return "", false
}

// DisplayStatus returns the label shown to users for a canonical status.
// Unknown values pass through unchanged.
func DisplayStatus(s string) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return s
}

// ValidLeaveStatus reports whether s is a status a student may submit as a
// leave request.
func ValidLeaveStatus(s string) bool {
	return s == StatusLeave || s == StatusSick
}
