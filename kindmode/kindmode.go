// Package kindmode defines the two small closed enumerations shared by
// every other package in this module: the set of scalar value kinds a
// parameter leaf may hold, and the activity-mode filter bulk tree
// operations are parameterized by.
package kindmode

import "fmt"

// Kind is the fixed, closed set of scalar value kinds a parameter leaf
// may hold. No other scalar kind exists anywhere in this module.
type Kind int

const (
	Double Kind = iota
	Float
	Int32
	Bool
)

func (k Kind) String() string {
	switch k {
	case Double:
		return "double"
	case Float:
		return "float"
	case Int32:
		return "int32"
	case Bool:
		return "bool"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Activity filters which parameter leaves a bulk operation visits.
type Activity int

const (
	// ActiveOnly visits leaves with AdaptionsActive set.
	ActiveOnly Activity = iota
	// InactiveOnly visits leaves with AdaptionsActive cleared.
	InactiveOnly
	// All visits every leaf regardless of adaption state.
	All
	// ActiveIfModifiable visits leaves that are active and not blocked
	// from random initialization.
	ActiveIfModifiable
)

func (a Activity) String() string {
	switch a {
	case ActiveOnly:
		return "ACTIVE_ONLY"
	case InactiveOnly:
		return "INACTIVE_ONLY"
	case All:
		return "ALL"
	case ActiveIfModifiable:
		return "ACTIVE_IF_MODIFIABLE"
	default:
		return fmt.Sprintf("Activity(%d)", int(a))
	}
}

// Matches reports whether a leaf with the given active/blocked flags
// participates in a bulk operation run under mode a.
func (a Activity) Matches(active, randomInitBlocked bool) bool {
	switch a {
	case ActiveOnly:
		return active
	case InactiveOnly:
		return !active
	case All:
		return true
	case ActiveIfModifiable:
		return active && !randomInitBlocked
	default:
		return false
	}
}
