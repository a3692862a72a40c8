package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phab-relay/internal/config"
	"github.com/rs/zerolog"
)

// Member is one workspace member with the profile email used as the
// directory map key.
type Member struct {
	Name  string
	Email string
}

// Client speaks the Slack Web API with legacy token form auth, matching the
// two calls the relay needs: users.list and chat.postMessage.
type Client struct {
	apiBase   string
	token     string
	botName   string
	avatarURL string
	http      *http.Client
	log       zerolog.Logger
}

func NewClient(cfg *config.Config, log zerolog.Logger) *Client {
	return &Client{
		apiBase:   strings.TrimRight(cfg.SlackAPIBase, "/"),
		token:     cfg.SlackAuthToken,
		botName:   cfg.BotName,
		avatarURL: cfg.BotAvatarURL,
		http:      &http.Client{Timeout: 15 * time.Second},
		log:       log.With().Str("component", "slack").Logger(),
	}
}

// ListMembers retrieves all workspace members and their profile emails in one
// call. Members without an email are dropped here rather than in the
// directory map.
func (c *Client) ListMembers(ctx context.Context) ([]Member, error) {
	var payload struct {
		Members []struct {
			Name    string `json:"name"`
			Profile struct {
				Email string `json:"email"`
			} `json:"profile"`
		} `json:"members"`
	}
	if err := c.call(ctx, "users.list", url.Values{}, &payload); err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(payload.Members))
	for _, m := range payload.Members {
		if m.Profile.Email == "" {
			continue
		}
		members = append(members, Member{Name: m.Name, Email: m.Profile.Email})
	}
	return members, nil
}

// PostMessage sends one direct message. The channel is the @-prefixed chat
// handle; bot name and avatar come from configuration.
func (c *Client) PostMessage(ctx context.Context, channel, text string) error {
	form := url.Values{
		"channel":  {channel},
		"text":     {text},
		"username": {c.botName},
	}
	if c.avatarURL != "" {
		form.Set("icon_url", c.avatarURL)
	}
	return c.call(ctx, "chat.postMessage", form, nil)
}

func (c *Client) call(ctx context.Context, method string, form url.Values, out interface{}) error {
	form.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("slack %s: read response: %w", method, err)
	}

	var envelope struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("slack %s: decode envelope: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("slack %s: %s", method, envelope.Error)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("slack %s: decode result: %w", method, err)
		}
	}
	return nil
}
