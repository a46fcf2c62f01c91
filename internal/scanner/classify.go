package scanner

import "strings"

// Class is the spec.md §4.5 outcome bucket for a single tile fetch.
type Class string

const (
	ClassSuccess   Class = "success"
	ClassPermanent Class = "permanent_error"
	ClassTransient Class = "transient_error"
	ClassCritical  Class = "critical_error"
)

var criticalStatuses = map[int]bool{401: true, 403: true}
var permanentStatuses = map[int]bool{204: true, 400: true, 404: true}
var transientStatuses = map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true}

// Classify buckets a scanner fetch outcome by HTTP status or network
// error text, per spec.md §4.5's exact tables.
func Classify(status int, netErr error) Class {
	if status != 0 {
		switch {
		case criticalStatuses[status]:
			return ClassCritical
		case transientStatuses[status]:
			return ClassTransient
		case permanentStatuses[status]:
			return ClassPermanent
		default:
			return ClassPermanent
		}
	}
	if netErr != nil && isTransientNetError(netErr) {
		return ClassTransient
	}
	return ClassPermanent
}

func isTransientNetError(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "network") || strings.Contains(s, "timeout") || strings.Contains(s, "refused")
}
