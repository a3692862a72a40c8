package resolver

import (
	"context"
	"fmt"

	"github.com/phab-relay/internal/domain"
	"github.com/phab-relay/internal/infrastructure/conduit"
	"github.com/rs/zerolog"
)

// Querier is the batch query surface the resolver needs from the tracker.
// The backing service only supports bulk lookups, so each method must cost
// exactly one remote call.
type Querier interface {
	QueryTasks(ctx context.Context, phids []string) (map[string]conduit.Record, error)
	QueryRevisions(ctx context.Context, phids []string) (map[string]conduit.Record, error)
	QueryProjects(ctx context.Context, phids []string) (map[string]conduit.Record, error)
	QueryUsers(ctx context.Context, phids []string) (map[string]conduit.Record, error)
}

// Cache exclusively owns every Entity created while handling one notification
// event. It memoises instances by PHID and tracks which have been resolved,
// so a PHID is fetched at most once per request. Not safe for concurrent use;
// each request builds its own Cache and discards it with the response.
type Cache struct {
	conduit  Querier
	log      zerolog.Logger
	entities map[string]*domain.Entity
}

func NewCache(q Querier, log zerolog.Logger) *Cache {
	return &Cache{
		conduit:  q,
		log:      log,
		entities: make(map[string]*domain.Entity),
	}
}

// Get returns the cache's entity for phid, creating it unresolved on first
// reference. The kind comes from structural classification alone.
func (c *Cache) Get(phid string) *domain.Entity {
	if e, ok := c.entities[phid]; ok {
		return e
	}
	e := &domain.Entity{Kind: domain.ClassifyPHID(phid), PHID: phid}
	c.entities[phid] = e
	return e
}

// fetchMany performs one batch fetch for phids of a single kind. Zero phids
// returns an empty map without touching the remote. PHIDs the tracker does
// not know map to nil so callers can tell "not found" from "not yet tried".
func (c *Cache) fetchMany(ctx context.Context, kind domain.Kind, phids []string) (map[string]*conduit.Record, error) {
	result := make(map[string]*conduit.Record, len(phids))
	if len(phids) == 0 {
		return result, nil
	}
	for _, phid := range phids {
		result[phid] = nil
	}

	var (
		records map[string]conduit.Record
		err     error
	)
	switch kind {
	case domain.KindTask:
		records, err = c.conduit.QueryTasks(ctx, phids)
	case domain.KindRevision:
		records, err = c.conduit.QueryRevisions(ctx, phids)
	case domain.KindProject:
		records, err = c.conduit.QueryProjects(ctx, phids)
	case domain.KindUser:
		records, err = c.conduit.QueryUsers(ctx, phids)
	default:
		return nil, fmt.Errorf("fetch kind %q: %w", kind, domain.ErrUnsupported)
	}
	if err != nil {
		return nil, err
	}
	for phid := range records {
		rec := records[phid]
		result[phid] = &rec
	}
	return result, nil
}

// Resolve populates e from the tracker if it has not been tried yet. Returns
// true when a record was found and filled; a second call is a no-op returning
// false. An entity the tracker does not know is still marked resolved so the
// same dead PHID is never fetched twice within a request.
func (c *Cache) Resolve(ctx context.Context, e *domain.Entity) (bool, error) {
	if e.Resolved {
		return false, nil
	}
	records, err := c.fetchMany(ctx, e.Kind, []string{e.PHID})
	if err != nil {
		return false, err
	}
	rec := records[e.PHID]
	fill(e, rec)
	e.Resolved = true
	return rec != nil, nil
}

// ResolveAll resolves a mixed-kind entity list with one batch fetch per kind.
// Already-resolved entities are skipped.
func (c *Cache) ResolveAll(ctx context.Context, entities []*domain.Entity) error {
	byKind := make(map[domain.Kind][]*domain.Entity)
	for _, e := range entities {
		if !e.Resolved {
			byKind[e.Kind] = append(byKind[e.Kind], e)
		}
	}
	for kind, group := range byKind {
		phids := make([]string, 0, len(group))
		for _, e := range group {
			phids = append(phids, e.PHID)
		}
		records, err := c.fetchMany(ctx, kind, phids)
		if err != nil {
			return err
		}
		for _, e := range group {
			fill(e, records[e.PHID])
			e.Resolved = true
		}
	}
	return nil
}

func fill(e *domain.Entity, rec *conduit.Record) {
	if rec == nil {
		return
	}
	e.ID = rec.ID
	e.URI = rec.URI
	switch e.Kind {
	case domain.KindUser:
		e.Username = rec.Username
		e.RealName = rec.RealName
	case domain.KindTask, domain.KindRevision:
		e.SubscriberPHIDs = rec.CCPHIDs
	case domain.KindProject:
		e.MemberPHIDs = rec.Members
	}
}
