package dispatch

import (
	"context"
	"fmt"

	"github.com/phab-relay/internal/application/directory"
	"github.com/phab-relay/internal/application/recipient"
	"github.com/phab-relay/internal/application/resolver"
	"github.com/phab-relay/internal/domain"
	"github.com/phab-relay/internal/metrics"
	"github.com/phab-relay/internal/pkg/id"
	"github.com/rs/zerolog"
)

// Status is the disposition of one handled story.
type Status string

const (
	// StatusUnsupportedStory: the story carries no classifiable object PHID.
	StatusUnsupportedStory Status = "unsupported story"
	// StatusUnsupportedObject: the object kind has no subscribers to notify.
	StatusUnsupportedObject Status = "unsupported object"
	StatusSent              Status = "sent"
)

// Result reports what happened to one story.
type Result struct {
	Status Status
	SentTo []string
}

// MessagePoster is the one chat-platform call the dispatcher needs.
type MessagePoster interface {
	PostMessage(ctx context.Context, channel, text string) error
}

// Service orchestrates one notification event end to end: refresh the
// directory if stale, classify the object, resolve its subscribers, filter
// them to deliverable handles and send one direct message per handle.
type Service interface {
	Handle(ctx context.Context, story domain.Story) (*Result, error)
}

type service struct {
	conduit    resolver.Querier
	directory  *directory.Service
	recipients recipient.Service
	poster     MessagePoster
	log        zerolog.Logger
	metrics    *metrics.Metrics
}

func NewService(q resolver.Querier, dir *directory.Service, rec recipient.Service, poster MessagePoster, log zerolog.Logger, m *metrics.Metrics) Service {
	return &service{
		conduit:    q,
		directory:  dir,
		recipients: rec,
		poster:     poster,
		log:        log.With().Str("component", "dispatch").Logger(),
		metrics:    m,
	}
}

func (s *service) Handle(ctx context.Context, story domain.Story) (*Result, error) {
	log := s.log.With().
		Str("delivery_id", id.New()).
		Str("story_id", story.ID).
		Str("object_phid", story.ObjectPHID).
		Logger()
	s.metrics.IncStoriesReceived()
	log.Info().Str("text", story.Text).Msg("story received")

	// A refresh failure is recoverable: the request proceeds on the stale map.
	if err := s.directory.RefreshIfStale(ctx); err != nil {
		log.Warn().Err(err).Msg("directory refresh failed, proceeding with stale map")
	}

	if domain.ClassifyPHID(story.ObjectPHID) == domain.KindNone {
		log.Info().Msg("story has no classifiable object")
		return &Result{Status: StatusUnsupportedStory}, nil
	}

	// Entities live exactly as long as this request.
	cache := resolver.NewCache(s.conduit, log)
	obj := cache.Get(story.ObjectPHID)
	if _, ok := obj.SubscriberRefs(); !ok {
		log.Info().Str("kind", string(obj.Kind)).Msg("object kind has no subscribers")
		return &Result{Status: StatusUnsupportedObject}, nil
	}

	subscribers, err := resolver.NewGraph(cache, log, s.metrics).SubscribersOf(ctx, obj)
	if err != nil {
		return nil, fmt.Errorf("resolve subscribers: %w", err)
	}

	handles, err := s.recipients.Handles(subscribers, story.AuthorPHID)
	if err != nil {
		return nil, fmt.Errorf("filter recipients: %w", err)
	}

	sent := make([]string, 0, len(handles))
	for _, handle := range handles {
		if err := s.poster.PostMessage(ctx, "@"+handle, story.Text); err != nil {
			// A failed DM skips only that recipient.
			log.Warn().Err(err).Str("handle", handle).Msg("direct message failed")
			continue
		}
		sent = append(sent, handle)
		s.metrics.IncMessagesSent()
	}

	log.Info().Strs("sent_to", sent).Msg("story handled")
	return &Result{Status: StatusSent, SentTo: sent}, nil
}
