package domain

// Entity is the request-scoped view of one tracker object. Identity is
// (Kind, PHID); every other field is only valid once Resolved is true.
type Entity struct {
	Kind     Kind
	PHID     string
	Resolved bool

	// Filled from the remote record for every kind.
	ID  string
	URI string

	// USER
	Username string
	RealName string

	// TASK and DREV: reviewers and watchers, already merged at fill time.
	SubscriberPHIDs []string

	// PROJ
	MemberPHIDs []string
}

// SubscriberRefs returns the raw subscriber identifier list and whether this
// entity kind carries subscribers at all. Only tasks and revisions do; the
// capability is keyed off the kind, not a type hierarchy.
func (e *Entity) SubscriberRefs() ([]string, bool) {
	switch e.Kind {
	case KindTask, KindRevision:
		return e.SubscriberPHIDs, true
	default:
		return nil, false
	}
}
