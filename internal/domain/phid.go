package domain

import "regexp"

// Kind is the object class encoded in a Phabricator identifier.
type Kind string

const (
	KindUser     Kind = "USER"
	KindProject  Kind = "PROJ"
	KindTask     Kind = "TASK"
	KindRevision Kind = "DREV"
	// KindNone classifies empty or unparseable identifiers. No resolution is
	// attempted for it.
	KindNone Kind = ""
)

var phidPattern = regexp.MustCompile(`^PHID-(\w+)-\w+$`)

// ClassifyPHID extracts the kind token from an opaque PHID string.
// Pure structural match, no remote calls; malformed input is KindNone.
func ClassifyPHID(phid string) Kind {
	m := phidPattern.FindStringSubmatch(phid)
	if m == nil {
		return KindNone
	}
	return Kind(m[1])
}
