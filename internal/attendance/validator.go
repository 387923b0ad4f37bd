package attendance

import (
	"time"

	"github.com/example/geo-attendance/internal/geo"
)

// Decision is the outcome of validating a submission against a session.
type Decision struct {
	Reason Reason
	// Distance is the raw Haversine distance in meters; zero when the
	// location check was not reached.
	Distance float64
	// EffectiveDistance is Distance minus both accuracy radii.
	EffectiveDistance float64
}

// Accepted reports whether every check passed.
func (d Decision) Accepted() bool {
	return d.Reason == ReasonNone
}

// Err returns nil for accepted decisions and a *RejectionError otherwise.
func (d Decision) Err() error {
	if d.Accepted() {
		return nil
	}
	rejection := &RejectionError{Reason: d.Reason}
	if d.Reason == ReasonOutOfRange {
		rejection.DistanceMeters = roundMeters(d.EffectiveDistance)
	}
	return rejection
}

// Validate applies the acceptance policy in order, the first failing check wins:
// session identity, expiry, device reuse, then effective distance.
func Validate(session *Session, sub Submission, now time.Time) Decision {
	if session == nil || sub.SessionID != session.ID {
		return Decision{Reason: ReasonInvalidSession}
	}
	if session.IsExpired(now) {
		return Decision{Reason: ReasonExpired}
	}
	if session.HasDevice(sub.DeviceID) {
		return Decision{Reason: ReasonDuplicateDevice}
	}

	distance := geo.Distance(sub.Location.Point(), session.Origin.Point())
	effective := EffectiveDistance(distance, sub.Location.Accuracy, session.Origin.Accuracy)
	decision := Decision{Distance: distance, EffectiveDistance: effective}
	if !WithinRange(effective) {
		decision.Reason = ReasonOutOfRange
	}
	return decision
}

// EffectiveDistance subtracts both reported accuracy radii from distance.
func EffectiveDistance(distance, submitterAccuracy, originAccuracy float64) float64 {
	return distance - submitterAccuracy - originAccuracy
}

// WithinRange reports whether effective is inside the inclusive radius.
// NaN is never within range.
func WithinRange(effective float64) bool {
	return effective <= MaxEffectiveDistance
}
