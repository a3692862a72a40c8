package http

import (
	"context"

	"github.com/phab-relay/internal/application/resolver"
	"github.com/phab-relay/internal/infrastructure/disabled"
	"github.com/phab-relay/internal/infrastructure/jwtauth"
	"github.com/phab-relay/internal/infrastructure/slack"
	"github.com/phab-relay/internal/metrics"
	"github.com/rs/zerolog"
)

// ChatClient is the minimal interface the router requires from the chat
// platform: directory listing for the refresh path and direct-message posting
// for delivery.
type ChatClient interface {
	ListMembers(ctx context.Context) ([]slack.Member, error)
	PostMessage(ctx context.Context, channel, text string) error
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Conduit resolver.Querier
	Chat    ChatClient
	Store   *disabled.Store
	// JWTProvider is optional; when nil the admin routes are not mounted.
	JWTProvider *jwtauth.Provider
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
}
