package timex

import "time"

// Precision is the resolution of every timestamp the server stores or compares.
// It matches PostgreSQL timestamptz.
const Precision = time.Microsecond

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time in UTC at storage precision.
type RealClock struct{}

func (RealClock) Now() time.Time { return Normalize(time.Now()) }

// Normalize converts t to UTC and truncates it to Precision. Truncate also
// strips the monotonic reading, so normalized values compare with ==.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(Precision)
}

// Max returns the later of a and b.
func Max(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
