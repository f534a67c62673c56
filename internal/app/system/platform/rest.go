// internal/app/system/platform/rest.go
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RESTClient talks to the bot gateway's resource API. The gateway holds
// the actual chat-platform connection; this process only ever asks it to
// create-or-fetch named resources and move roles around. Every endpoint
// on the gateway side is idempotent on the resource name.
type RESTClient struct {
	baseURL string
	token   string
	http    *http.Client
	log     *zap.Logger
}

// NewRESTClient builds a client for the gateway resource API at baseURL,
// authenticating with token.
func NewRESTClient(baseURL, token string, log *zap.Logger) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

type restHandle struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c *RESTClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		c.log.Warn("gateway permission denied",
			zap.String("method", method), zap.String("path", path))
		return fmt.Errorf("%w: %s %s", ErrPermissionDenied, method, path)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s returned %d", ErrUnavailable, method, path, resp.StatusCode)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway rejected %s %s: %d %s", method, path, resp.StatusCode, msg)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s %s response: %w", method, path, err)
		}
	}
	return nil
}

func (c *RESTClient) EnsureCategory(ctx context.Context, name string) (Handle, error) {
	var h restHandle
	err := c.do(ctx, http.MethodPost, "/categories", map[string]string{"name": name}, &h)
	if err != nil {
		return Handle{}, err
	}
	return Handle{ID: h.ID, Name: h.Name}, nil
}

func (c *RESTClient) EnsureChannel(ctx context.Context, spec ChannelSpec) (Handle, error) {
	var h restHandle
	err := c.do(ctx, http.MethodPost, "/channels", map[string]any{
		"name":               spec.Name,
		"category_id":        spec.CategoryID,
		"topic":              spec.Topic,
		"read_only_role_ids": spec.ReadOnlyRoleIDs,
		"chat_role_ids":      spec.ChatRoleIDs,
	}, &h)
	if err != nil {
		return Handle{}, err
	}
	return Handle{ID: h.ID, Name: h.Name}, nil
}

func (c *RESTClient) EnsureRole(ctx context.Context, name string) (Handle, error) {
	var h restHandle
	err := c.do(ctx, http.MethodPost, "/roles", map[string]string{"name": name}, &h)
	if err != nil {
		return Handle{}, err
	}
	return Handle{ID: h.ID, Name: h.Name}, nil
}

func (c *RESTClient) GrantRole(ctx context.Context, memberID, roleID string) error {
	return c.do(ctx, http.MethodPut, "/members/"+memberID+"/roles/"+roleID, nil, nil)
}

func (c *RESTClient) RevokeRole(ctx context.Context, memberID, roleID string) error {
	return c.do(ctx, http.MethodDelete, "/members/"+memberID+"/roles/"+roleID, nil, nil)
}

func (c *RESTClient) PostMessage(ctx context.Context, channelID, text string) error {
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages",
		map[string]string{"content": text}, nil)
}
