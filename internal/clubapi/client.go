// Package clubapi is the thin REST client for the club server's CRUD
// surface. The sync core treats these endpoints as opaque services.
package clubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"clubsync/internal/models"
)

// Client talks to the club server. Token is resolved per request so a
// re-login picks up the fresh credential.
type Client struct {
	baseURL string
	http    *http.Client
	token   func() string
}

// New constructs a Client. tokenFn may return "" when logged out.
func New(baseURL string, tokenFn func() string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		token:   tokenFn,
	}
}

// ListRooms returns the rooms visible to the current user.
func (c *Client) ListRooms(ctx context.Context) ([]models.Room, error) {
	var resp struct {
		Rooms []models.Room `json:"rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/rooms", nil, &resp); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return resp.Rooms, nil
}

// ListMessages returns up to limit messages for a room, newest last. A
// non-empty before cursor pages backwards from that message id.
func (c *Client) ListMessages(ctx context.Context, roomID string, limit int, before string) ([]models.Message, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if before != "" {
		q.Set("before", before)
	}

	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	path := "/api/rooms/" + url.PathEscape(roomID) + "/messages?" + q.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return resp.Messages, nil
}

// SendMessage posts a message carrying the client correlation id; the server
// echoes it in the confirmed message.
func (c *Client) SendMessage(ctx context.Context, roomID, clientID, content string) (models.Message, error) {
	body := map[string]string{
		"client_id": clientID,
		"content":   content,
	}
	var resp struct {
		Message models.Message `json:"message"`
	}
	path := "/api/rooms/" + url.PathEscape(roomID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return models.Message{}, fmt.Errorf("send message: %w", err)
	}
	return resp.Message, nil
}

// JoinRoom adds the current user to a room.
func (c *Client) JoinRoom(ctx context.Context, roomID string) error {
	path := "/api/rooms/" + url.PathEscape(roomID) + "/join"
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	return nil
}

// LeaveRoom removes the current user from a room.
func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	path := "/api/rooms/" + url.PathEscape(roomID) + "/leave"
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("leave room: %w", err)
	}
	return nil
}

// MarkRead resets the server-side unread counter for a room.
func (c *Client) MarkRead(ctx context.Context, roomID string) error {
	path := "/api/rooms/" + url.PathEscape(roomID) + "/read"
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// ListPendingPayments returns the current user's unpaid obligations.
func (c *Client) ListPendingPayments(ctx context.Context) ([]models.PendingPayment, error) {
	var resp struct {
		Payments []models.PendingPayment `json:"payments"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/payments/pending", nil, &resp); err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	return resp.Payments, nil
}

// ListActiveEvents returns open polls and open-play events.
func (c *Client) ListActiveEvents(ctx context.Context) ([]models.PollEvent, error) {
	var resp struct {
		Events []models.PollEvent `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/events/active", nil, &resp); err != nil {
		return nil, fmt.Errorf("list active events: %w", err)
	}
	return resp.Events, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
