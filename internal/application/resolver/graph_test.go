package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/phab-relay/internal/domain"
	"github.com/phab-relay/internal/infrastructure/conduit"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestGraph(q Querier) (*Graph, *Cache) {
	cache := NewCache(q, zerolog.Nop())
	return NewGraph(cache, zerolog.Nop(), nil), cache
}

func usernames(users []*domain.Entity) []string {
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Username
	}
	return names
}

func TestSubscribersOf_ExpandsProjectMembers(t *testing.T) {
	q := &mockQuerier{}
	q.On("QueryTasks", mock.Anything, []string{"PHID-TASK-t"}).
		Return(map[string]conduit.Record{
			"PHID-TASK-t": {PHID: "PHID-TASK-t", CCPHIDs: []string{"PHID-USER-u1", "PHID-PROJ-p1"}},
		}, nil).Once()
	q.On("QueryProjects", mock.Anything, []string{"PHID-PROJ-p1"}).
		Return(map[string]conduit.Record{
			"PHID-PROJ-p1": {PHID: "PHID-PROJ-p1", Members: []string{"PHID-USER-u2", "PHID-USER-u3"}},
		}, nil).Once()
	q.On("QueryUsers", mock.Anything, []string{"PHID-USER-u1", "PHID-USER-u2", "PHID-USER-u3"}).
		Return(map[string]conduit.Record{
			"PHID-USER-u1": {PHID: "PHID-USER-u1", Username: "u1"},
			"PHID-USER-u2": {PHID: "PHID-USER-u2", Username: "u2"},
			"PHID-USER-u3": {PHID: "PHID-USER-u3", Username: "u3"},
		}, nil).Once()
	g, cache := newTestGraph(q)

	users, err := g.SubscribersOf(context.Background(), cache.Get("PHID-TASK-t"))

	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u3"}, usernames(users))
	// One batch for projects and one for all users, never per-member calls.
	q.AssertNumberOfCalls(t, "QueryProjects", 1)
	q.AssertNumberOfCalls(t, "QueryUsers", 1)
}

func TestSubscribersOf_DeduplicatesDirectAndProjectUser(t *testing.T) {
	q := &mockQuerier{}
	q.On("QueryTasks", mock.Anything, mock.Anything).
		Return(map[string]conduit.Record{
			"PHID-TASK-t": {PHID: "PHID-TASK-t", CCPHIDs: []string{"PHID-USER-u1", "PHID-PROJ-p1"}},
		}, nil).Once()
	q.On("QueryProjects", mock.Anything, mock.Anything).
		Return(map[string]conduit.Record{
			// u1 subscribes directly and is also a project member.
			"PHID-PROJ-p1": {PHID: "PHID-PROJ-p1", Members: []string{"PHID-USER-u1", "PHID-USER-u2"}},
		}, nil).Once()
	q.On("QueryUsers", mock.Anything, []string{"PHID-USER-u1", "PHID-USER-u2"}).
		Return(map[string]conduit.Record{
			"PHID-USER-u1": {PHID: "PHID-USER-u1", Username: "u1"},
			"PHID-USER-u2": {PHID: "PHID-USER-u2", Username: "u2"},
		}, nil).Once()
	g, cache := newTestGraph(q)

	users, err := g.SubscribersOf(context.Background(), cache.Get("PHID-TASK-t"))

	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, usernames(users))
}

func TestSubscribersOf_EmptySubscriberList(t *testing.T) {
	q := &mockQuerier{}
	q.On("QueryRevisions", mock.Anything, mock.Anything).
		Return(map[string]conduit.Record{
			"PHID-DREV-d": {PHID: "PHID-DREV-d"},
		}, nil).Once()
	g, cache := newTestGraph(q)

	users, err := g.SubscribersOf(context.Background(), cache.Get("PHID-DREV-d"))

	require.NoError(t, err)
	assert.Empty(t, users)
	q.AssertNotCalled(t, "QueryProjects")
	q.AssertNotCalled(t, "QueryUsers")
}

func TestSubscribersOf_SkipsUnrecognizedRefs(t *testing.T) {
	q := &mockQuerier{}
	q.On("QueryTasks", mock.Anything, mock.Anything).
		Return(map[string]conduit.Record{
			"PHID-TASK-t": {PHID: "PHID-TASK-t", CCPHIDs: []string{"PHID-CMIT-x", "garbage", "PHID-USER-u1"}},
		}, nil).Once()
	q.On("QueryUsers", mock.Anything, []string{"PHID-USER-u1"}).
		Return(map[string]conduit.Record{
			"PHID-USER-u1": {PHID: "PHID-USER-u1", Username: "u1"},
		}, nil).Once()
	g, cache := newTestGraph(q)

	users, err := g.SubscribersOf(context.Background(), cache.Get("PHID-TASK-t"))

	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, usernames(users))
}

func TestSubscribersOf_AbsentProjectContributesNothing(t *testing.T) {
	q := &mockQuerier{}
	q.On("QueryTasks", mock.Anything, mock.Anything).
		Return(map[string]conduit.Record{
			"PHID-TASK-t": {PHID: "PHID-TASK-t", CCPHIDs: []string{"PHID-PROJ-gone"}},
		}, nil).Once()
	q.On("QueryProjects", mock.Anything, []string{"PHID-PROJ-gone"}).
		Return(map[string]conduit.Record{}, nil).Once()
	g, cache := newTestGraph(q)

	users, err := g.SubscribersOf(context.Background(), cache.Get("PHID-TASK-t"))

	require.NoError(t, err)
	assert.Empty(t, users)
	q.AssertNotCalled(t, "QueryUsers")
}

func TestSubscribersOf_NotSubscribable(t *testing.T) {
	q := &mockQuerier{}
	q.On("QueryUsers", mock.Anything, mock.Anything).
		Return(map[string]conduit.Record{}, nil).Once()
	g, cache := newTestGraph(q)

	_, err := g.SubscribersOf(context.Background(), cache.Get("PHID-USER-u1"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnsupported))
}
