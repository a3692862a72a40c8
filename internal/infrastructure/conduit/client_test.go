package conduit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phab-relay/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := &config.Config{
		PhabricatorHost: srv.URL,
		PhabricatorUser: "relay-bot",
		PhabricatorCert: "cert123",
	}
	return NewClient(cfg, zerolog.Nop(), nil)
}

func TestQueryTasks_DecodesRecords(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/maniphest.query", r.URL.Path)

		var params map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(r.PostFormValue("params")), &params))
		assert.Equal(t, []interface{}{"PHID-TASK-a"}, params["phids"])
		auth, ok := params["__conduit__"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "relay-bot", auth["user"])

		w.Write([]byte(`{"result":{"PHID-TASK-a":{"id":"12","uri":"http://ph/T12","ccPHIDs":["PHID-USER-b","PHID-PROJ-c"]}},"error_code":null,"error_info":null}`))
	})

	records, err := client.QueryTasks(context.Background(), []string{"PHID-TASK-a"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records["PHID-TASK-a"]
	assert.Equal(t, "12", rec.ID)
	assert.Equal(t, "http://ph/T12", rec.URI)
	assert.Equal(t, []string{"PHID-USER-b", "PHID-PROJ-c"}, rec.CCPHIDs)
}

func TestQueryRevisions_MergesReviewersAndCCs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"result":[{"phid":"PHID-DREV-x","id":"7","uri":"http://ph/D7","reviewers":["PHID-USER-a"],"ccs":["PHID-USER-b"]}],"error_code":null,"error_info":null}`))
	})

	records, err := client.QueryRevisions(context.Background(), []string{"PHID-DREV-x"})
	require.NoError(t, err)
	rec := records["PHID-DREV-x"]
	assert.Equal(t, []string{"PHID-USER-a", "PHID-USER-b"}, rec.CCPHIDs)
}

func TestQueryTasks_EmptyResultArray(t *testing.T) {
	// Conduit serialises an empty result set for map-shaped methods as [].
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"result":[],"error_code":null,"error_info":null}`))
	})

	records, err := client.QueryTasks(context.Background(), []string{"PHID-TASK-missing"})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestQueryUsers_DecodesProfiles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"result":[{"phid":"PHID-USER-a","userName":"alice","realName":"Alice Smith"}],"error_code":null,"error_info":null}`))
	})

	records, err := client.QueryUsers(context.Background(), []string{"PHID-USER-a"})
	require.NoError(t, err)
	rec := records["PHID-USER-a"]
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, "Alice Smith", rec.RealName)
}

func TestCall_ErrorEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"result":null,"error_code":"ERR-INVALID-AUTH","error_info":"session expired"}`))
	})

	_, err := client.QueryProjects(context.Background(), []string{"PHID-PROJ-a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR-INVALID-AUTH")
	assert.Contains(t, err.Error(), "session expired")
}
