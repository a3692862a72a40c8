package domain

// Story is one inbound feed event from the tracker webhook.
type Story struct {
	ID         string
	AuthorPHID string
	ObjectPHID string
	Text       string
}
