package conduit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phab-relay/internal/config"
	"github.com/phab-relay/internal/metrics"
	"github.com/rs/zerolog"
)

// Record is one raw Conduit object payload, normalised across the four query
// methods so the resolver can treat all kinds uniformly.
type Record struct {
	PHID     string
	ID       string
	URI      string
	Username string
	RealName string
	// Task/revision subscribers. For revisions this is reviewers followed by
	// watchers, merged at decode time.
	CCPHIDs []string
	// Project members.
	Members []string
}

// Client speaks the Phabricator Conduit API. All four query methods are
// batch calls: one HTTP round trip regardless of how many PHIDs are asked for.
type Client struct {
	host    string
	user    string
	cert    string
	http    *http.Client
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewClient(cfg *config.Config, log zerolog.Logger, m *metrics.Metrics) *Client {
	return &Client{
		host:    strings.TrimRight(cfg.PhabricatorHost, "/"),
		user:    cfg.PhabricatorUser,
		cert:    cfg.PhabricatorCert,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log.With().Str("component", "conduit").Logger(),
		metrics: m,
	}
}

type taskPayload struct {
	ID      json.Number `json:"id"`
	URI     string      `json:"uri"`
	CCPHIDs []string    `json:"ccPHIDs"`
}

type revisionPayload struct {
	PHID      string      `json:"phid"`
	ID        json.Number `json:"id"`
	URI       string      `json:"uri"`
	Reviewers []string    `json:"reviewers"`
	CCs       []string    `json:"ccs"`
}

type projectPayload struct {
	ID      json.Number `json:"id"`
	Members []string    `json:"members"`
}

type userPayload struct {
	PHID     string `json:"phid"`
	UserName string `json:"userName"`
	RealName string `json:"realName"`
}

// QueryTasks fetches maniphest tasks by PHID. Absent PHIDs are simply not in
// the returned map.
func (c *Client) QueryTasks(ctx context.Context, phids []string) (map[string]Record, error) {
	var payload map[string]taskPayload
	if err := c.call(ctx, "maniphest.query", map[string]interface{}{"phids": phids}, &payload); err != nil {
		return nil, err
	}
	out := make(map[string]Record, len(payload))
	for phid, t := range payload {
		out[phid] = Record{PHID: phid, ID: t.ID.String(), URI: t.URI, CCPHIDs: t.CCPHIDs}
	}
	return out, nil
}

// QueryRevisions fetches differential revisions by PHID. Subscribers are the
// union of reviewers and ccs, reviewers first.
func (c *Client) QueryRevisions(ctx context.Context, phids []string) (map[string]Record, error) {
	var payload []revisionPayload
	if err := c.call(ctx, "differential.query", map[string]interface{}{"phids": phids}, &payload); err != nil {
		return nil, err
	}
	out := make(map[string]Record, len(payload))
	for _, rev := range payload {
		out[rev.PHID] = Record{
			PHID:    rev.PHID,
			ID:      rev.ID.String(),
			URI:     rev.URI,
			CCPHIDs: append(append([]string{}, rev.Reviewers...), rev.CCs...),
		}
	}
	return out, nil
}

// QueryProjects fetches projects by PHID.
func (c *Client) QueryProjects(ctx context.Context, phids []string) (map[string]Record, error) {
	var payload struct {
		Data map[string]projectPayload `json:"data"`
	}
	if err := c.call(ctx, "project.query", map[string]interface{}{"phids": phids}, &payload); err != nil {
		return nil, err
	}
	out := make(map[string]Record, len(payload.Data))
	for phid, p := range payload.Data {
		out[phid] = Record{PHID: phid, ID: p.ID.String(), Members: p.Members}
	}
	return out, nil
}

// QueryUsers fetches user profiles by PHID.
func (c *Client) QueryUsers(ctx context.Context, phids []string) (map[string]Record, error) {
	var payload []userPayload
	if err := c.call(ctx, "user.query", map[string]interface{}{"phids": phids}, &payload); err != nil {
		return nil, err
	}
	out := make(map[string]Record, len(payload))
	for _, u := range payload {
		out[u.PHID] = Record{PHID: u.PHID, Username: u.UserName, RealName: u.RealName}
	}
	return out, nil
}

// call posts one Conduit method. Credentials ride inside the params JSON as
// the __conduit__ block; the response envelope's error fields surface as a
// Go error.
func (c *Client) call(ctx context.Context, method string, args map[string]interface{}, out interface{}) error {
	if c.user != "" || c.cert != "" {
		args["__conduit__"] = map[string]string{"user": c.user, "cert": c.cert}
	}
	paramsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("conduit %s: marshal params: %w", method, err)
	}
	form := url.Values{
		"params": {string(paramsJSON)},
		"output": {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("conduit %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.metrics.IncConduitCall(method)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("conduit %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("conduit %s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("conduit %s: unexpected status %d", method, resp.StatusCode)
	}

	var envelope struct {
		Result    json.RawMessage `json:"result"`
		ErrorCode *string         `json:"error_code"`
		ErrorInfo string          `json:"error_info"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("conduit %s: decode envelope: %w", method, err)
	}
	if envelope.ErrorCode != nil && *envelope.ErrorCode != "" {
		return fmt.Errorf("conduit %s: %s: %s", method, *envelope.ErrorCode, envelope.ErrorInfo)
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	// Conduit encodes an empty result set as a JSON array even for map-shaped
	// methods; treat both [] and null as "no records".
	trimmed := bytes.TrimSpace(envelope.Result)
	if bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("[]")) {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("conduit %s: decode result: %w", method, err)
	}
	return nil
}
