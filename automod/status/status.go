// Three-valued condition outcomes.
//
// A condition which references data that isn't available for an event (a field missing on the event variant, a word list which can't be resolved) evaluates to Unknown, which is distinct from NotMet. The combinators let Unknown propagate as a missing-data signal instead of collapsing to false.
package status

import (
	"encoding/json"
	"fmt"
)

type Status uint8

const (
	NotMet Status = iota
	Met
	Unknown
)

func (s Status) String() string {
	switch s {
	case Met:
		return "met"
	case NotMet:
		return "not_met"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// FromBool maps a definite predicate result.
func FromBool(b bool) Status {
	if b {
		return Met
	}
	return NotMet
}

// NotMet dominates, then Unknown; Met otherwise. The empty conjunction is Met.
func And(statuses ...Status) Status {
	out := Met
	for _, s := range statuses {
		switch s {
		case NotMet:
			return NotMet
		case Unknown:
			out = Unknown
		}
	}
	return out
}

// Met dominates, then Unknown; NotMet otherwise. The empty disjunction is NotMet.
func Or(statuses ...Status) Status {
	out := NotMet
	for _, s := range statuses {
		switch s {
		case Met:
			return Met
		case Unknown:
			out = Unknown
		}
	}
	return out
}

func Not(s Status) Status {
	switch s {
	case Met:
		return NotMet
	case NotMet:
		return Met
	default:
		return Unknown
	}
}

// AtLeast is Met when at least n statuses are Met, and NotMet when that can't happen even if every Unknown turned out Met.
func AtLeast(n int, statuses ...Status) Status {
	met, unknown := 0, 0
	for _, s := range statuses {
		switch s {
		case Met:
			met++
		case Unknown:
			unknown++
		}
	}
	if met >= n {
		return Met
	}
	if met+unknown >= n {
		return Unknown
	}
	return NotMet
}

func (s Status) And(o Status) Status { return And(s, o) }
func (s Status) Or(o Status) Status  { return Or(s, o) }
func (s Status) Not() Status         { return Not(s) }
