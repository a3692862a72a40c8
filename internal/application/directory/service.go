package directory

import (
	"context"
	"sync"
	"time"

	"github.com/phab-relay/internal/infrastructure/slack"
	"github.com/phab-relay/internal/metrics"
	"github.com/rs/zerolog"
)

// MemberLister is the one chat-platform call the directory needs.
type MemberLister interface {
	ListMembers(ctx context.Context) ([]slack.Member, error)
}

// Service holds the process-wide email-to-handle map. The map is replaced
// wholesale on refresh: readers concurrent with a refresh see either the
// fully-old or fully-new map, never a mix. Stale entries between refreshes
// are acceptable; staleness is bounded by the configured interval.
type Service struct {
	lister   MemberLister
	interval time.Duration
	log      zerolog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu            sync.RWMutex
	emailToHandle map[string]string
	lastRefresh   time.Time
}

func NewService(lister MemberLister, interval time.Duration, log zerolog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		lister:        lister,
		interval:      interval,
		log:           log.With().Str("component", "directory").Logger(),
		metrics:       m,
		now:           time.Now,
		emailToHandle: make(map[string]string),
	}
}

// RefreshIfStale refreshes the map when the interval has elapsed since the
// last successful refresh. Two concurrent callers may both refresh; the
// operation is idempotent so that only costs a duplicate remote call.
func (s *Service) RefreshIfStale(ctx context.Context) error {
	s.mu.RLock()
	last := s.lastRefresh
	s.mu.RUnlock()

	if s.now().Sub(last) < s.interval {
		return nil
	}
	return s.Refresh(ctx)
}

// Refresh replaces the whole map from one members listing. On failure the
// old map and timestamp stay untouched; the next interval retries.
func (s *Service) Refresh(ctx context.Context) error {
	members, err := s.lister.ListMembers(ctx)
	if err != nil {
		s.metrics.IncDirectoryRefresh(false)
		s.log.Warn().Err(err).Msg("directory refresh failed, keeping stale map")
		return err
	}

	next := make(map[string]string, len(members))
	for _, m := range members {
		next[m.Email] = m.Name
	}

	s.mu.Lock()
	s.emailToHandle = next
	s.lastRefresh = s.now()
	s.mu.Unlock()

	s.metrics.IncDirectoryRefresh(true)
	s.log.Info().Int("members", len(next)).Msg("directory map refreshed")
	return nil
}

// Lookup returns the chat handle for a delivery address.
func (s *Service) Lookup(email string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	handle, ok := s.emailToHandle[email]
	return handle, ok
}
