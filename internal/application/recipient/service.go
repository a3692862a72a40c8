package recipient

import (
	"fmt"

	"github.com/phab-relay/internal/domain"
	"github.com/phab-relay/internal/metrics"
	"github.com/rs/zerolog"
)

// Service maps resolved users to deliverable chat handles and fronts the
// enable/disable switch over the persisted disable list.
type Service interface {
	// Handles returns the chat handles for users, optionally excluding the
	// user identified by excludePHID (the author of the triggering change).
	// Output order follows input order, so it is deterministic for a fixed
	// input. Users without a directory mapping are skipped, not an error.
	Handles(users []*domain.Entity, excludePHID string) ([]string, error)
	Enable(handle string) error
	Disable(handle string) error
	Disabled() ([]string, error)
}

type directoryLookup interface {
	Lookup(email string) (string, bool)
}

type disabledStore interface {
	List() ([]string, error)
	Enable(handle string) error
	Disable(handle string) error
}

type service struct {
	directory   directoryLookup
	store       disabledStore
	emailDomain string
	log         zerolog.Logger
	metrics     *metrics.Metrics
}

func NewService(directory directoryLookup, store disabledStore, emailDomain string, log zerolog.Logger, m *metrics.Metrics) Service {
	return &service{
		directory:   directory,
		store:       store,
		emailDomain: emailDomain,
		log:         log.With().Str("component", "recipient").Logger(),
		metrics:     m,
	}
}

func (s *service) Handles(users []*domain.Entity, excludePHID string) ([]string, error) {
	// Always re-read the disable list so a disable takes effect immediately,
	// never a cached copy.
	disabled, err := s.store.List()
	if err != nil {
		return nil, fmt.Errorf("read disable list: %w", err)
	}
	disabledSet := make(map[string]struct{}, len(disabled))
	for _, h := range disabled {
		disabledSet[h] = struct{}{}
	}

	var handles []string
	for _, u := range users {
		if excludePHID != "" && u.PHID == excludePHID {
			continue
		}
		if u.Username == "" {
			// Unresolved or recordless user; nothing to address.
			s.log.Info().Str("phid", u.PHID).Msg("user has no username, skipping")
			s.metrics.IncRecipientsSkipped()
			continue
		}
		email := u.Username + "@" + s.emailDomain
		handle, ok := s.directory.Lookup(email)
		if !ok {
			s.log.Info().Str("email", email).Msg("address not in chat directory, skipping")
			s.metrics.IncRecipientsSkipped()
			continue
		}
		if _, off := disabledSet[handle]; off {
			s.log.Info().Str("handle", handle).Msg("notifications disabled for handle, skipping")
			s.metrics.IncRecipientsSkipped()
			continue
		}
		handles = append(handles, handle)
	}
	return handles, nil
}

func (s *service) Enable(handle string) error {
	if err := s.store.Enable(handle); err != nil {
		return err
	}
	s.log.Info().Str("handle", handle).Msg("notifications enabled")
	return nil
}

func (s *service) Disable(handle string) error {
	if err := s.store.Disable(handle); err != nil {
		return err
	}
	s.log.Info().Str("handle", handle).Msg("notifications disabled")
	return nil
}

func (s *service) Disabled() ([]string, error) {
	return s.store.List()
}
