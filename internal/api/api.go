// Package api provides typed wrappers over the backend endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oriys/courier/internal/apiclient"
)

// ErrAuthExpired is returned by wrappers when the backend reports an
// expired login (envelope code 10001).
var ErrAuthExpired = errors.New("api: login expired")

// Endpoint paths, relative to the API base URL.
const (
	PathHome     = ""
	PathUsers    = "users"
	PathRegister = "register"
	PathMenuList = "getMenuList"
)

// Sender is satisfied by *apiclient.Client.
type Sender interface {
	Send(ctx context.Context, d apiclient.Descriptor) (*apiclient.Result, error)
}

// Client wraps a Sender with the backend's endpoints.
type Client struct {
	sender Sender
}

// New returns an API client dispatching through s.
func New(s Sender) *Client {
	return &Client{sender: s}
}

// User is a registered account.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

// RegisterRequest is the body of a registration call.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Users lists users. filter is sent as the request payload.
func (c *Client) Users(ctx context.Context, filter map[string]any) ([]User, error) {
	var users []User
	if err := c.call(ctx, PathUsers, filter, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Home fetches the landing payload.
func (c *Client) Home(ctx context.Context, payload map[string]any) (map[string]any, error) {
	var out map[string]any
	if err := c.call(ctx, PathHome, payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Register creates an account and returns its id.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (int64, error) {
	payload, err := toPayload(req)
	if err != nil {
		return 0, err
	}
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.call(ctx, PathRegister, payload, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// GetMenuList fetches the menu tree for the current session.
func (c *Client) GetMenuList(ctx context.Context, payload map[string]any) ([]Menu, error) {
	var menus []Menu
	if err := c.call(ctx, PathMenuList, payload, &menus); err != nil {
		return nil, err
	}
	return menus, nil
}

func (c *Client) call(ctx context.Context, path string, payload map[string]any, dst any) error {
	res, err := c.sender.Send(ctx, apiclient.Descriptor{
		URL:         path,
		Payload:     payload,
		ShowLoading: true,
	})
	if err != nil {
		return err
	}
	if res.Outcome == apiclient.OutcomeAuthExpired {
		return fmt.Errorf("%w: %s", ErrAuthExpired, res.Envelope.Message)
	}
	if err := res.Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func toPayload(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("payload is not an object: %w", err)
	}
	return m, nil
}
