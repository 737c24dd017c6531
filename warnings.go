package pta

import "fmt"

// WarningKind classifies the places where the analysis deliberately
// under-approximates.
type WarningKind uint8

const (
	// No concrete method implements a virtual call for a receiver type.
	UnresolvedDispatch WarningKind = iota
	// Objects were dropped by a cast or array store type filter.
	FilteredObject
	// A plugin could not model a call.
	UnmodeledCall
)

func (k WarningKind) String() string {
	switch k {
	case UnresolvedDispatch:
		return "unresolved-dispatch"
	case FilteredObject:
		return "filtered-object"
	case UnmodeledCall:
		return "unmodeled-call"
	}
	return fmt.Sprintf("WarningKind(%d)", k)
}

// Warning is a non-fatal analysis gap. Each distinct warning is reported
// once per run.
type Warning struct {
	Kind WarningKind
	// Source position, e.g. a call site.
	Site    string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Site, w.Message)
}
