package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/phab-relay/internal/domain"
	"github.com/phab-relay/internal/metrics"
	"github.com/rs/zerolog"
)

// Graph expands one subscribable entity into its concrete set of users. Like
// the Cache it wraps, a Graph lives for a single notification event.
type Graph struct {
	cache   *Cache
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewGraph(cache *Cache, log zerolog.Logger, m *metrics.Metrics) *Graph {
	return &Graph{cache: cache, log: log, metrics: m}
}

// SubscribersOf returns the deduplicated users subscribed to e, either
// directly or through project membership. Projects are expanded one level
// deep: a project listed inside another project's members is skipped, not
// recursed into. The result preserves first-occurrence order, which makes
// the output deterministic for a fixed input.
//
// Remote cost: one fetch for e itself (if unresolved), one batch fetch for
// all projects, one batch fetch for all users.
func (g *Graph) SubscribersOf(ctx context.Context, e *domain.Entity) ([]*domain.Entity, error) {
	defer g.metrics.ObserveResolve(time.Now())

	if _, err := g.cache.Resolve(ctx, e); err != nil {
		return nil, fmt.Errorf("resolve %s: %w", e.PHID, err)
	}
	refs, ok := e.SubscriberRefs()
	if !ok {
		return nil, fmt.Errorf("subscribers of %s: %w", e.PHID, domain.ErrUnsupported)
	}

	var direct, projects []*domain.Entity
	for _, phid := range refs {
		switch domain.ClassifyPHID(phid) {
		case domain.KindUser:
			direct = append(direct, g.cache.Get(phid))
		case domain.KindProject:
			projects = append(projects, g.cache.Get(phid))
		default:
			g.log.Warn().Str("phid", phid).Msg("unrecognized subscriber reference, skipping")
		}
	}

	if err := g.cache.ResolveAll(ctx, projects); err != nil {
		return nil, fmt.Errorf("resolve projects: %w", err)
	}

	seen := make(map[string]struct{})
	var users []*domain.Entity
	add := func(u *domain.Entity) {
		if _, dup := seen[u.PHID]; dup {
			return
		}
		seen[u.PHID] = struct{}{}
		users = append(users, u)
	}

	for _, u := range direct {
		add(u)
	}
	for _, p := range projects {
		for _, phid := range p.MemberPHIDs {
			if domain.ClassifyPHID(phid) != domain.KindUser {
				g.log.Warn().Str("phid", phid).Str("project", p.PHID).Msg("non-user project member, skipping")
				continue
			}
			add(g.cache.Get(phid))
		}
	}

	if err := g.cache.ResolveAll(ctx, users); err != nil {
		return nil, fmt.Errorf("resolve users: %w", err)
	}
	return users, nil
}
