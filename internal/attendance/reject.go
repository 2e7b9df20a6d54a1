package attendance

import "fmt"

// RejectCode identifies why a scan was refused. Every code is an expected,
// user-facing outcome, not a system fault.
type RejectCode string

const (
	RejectCodeNotFound    RejectCode = "code_not_found"
	RejectWrongClass      RejectCode = "wrong_class"
	RejectSessionInactive RejectCode = "session_inactive"
	RejectOutsideWindow   RejectCode = "outside_window"
	RejectGeoRequired     RejectCode = "geo_required"
	RejectOutOfRange      RejectCode = "out_of_range"
	RejectAlreadyRecorded RejectCode = "already_recorded"
)

// Rejection is a refused scan. It satisfies error so the evaluator can
// return it through the normal error path, and carries enough structured
// context for the caller to render a precise message.
type Rejection struct {
	Code    RejectCode     `json:"code"`
	Message string         `json:"message"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func (r *Rejection) Error() string { return r.Message }

func reject(code RejectCode, msg string) *Rejection {
	return &Rejection{Code: code, Message: msg}
}

func rejectWrongClass(sessionClass, userClass string) *Rejection {
	return &Rejection{
		Code:    RejectWrongClass,
		Message: fmt.Sprintf("this session is for class %s, not your class (%s)", sessionClass, userClass),
		Meta:    map[string]any{"sessionClass": sessionClass, "userClass": userClass},
	}
}

func rejectOutOfRange(distance, radius float64) *Rejection {
	return &Rejection{
		Code:    RejectOutOfRange,
		Message: fmt.Sprintf("you are outside the attendance radius (%.0fm > %.0fm)", distance, radius),
		Meta:    map[string]any{"distanceMeters": distance, "radiusMeters": radius},
	}
}
