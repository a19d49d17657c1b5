package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrorBody HTTP 错误响应体
type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

var errKinds = map[string]error{
	"room_not_found": ErrRoomNotFound,
	"duplicate_code": ErrDuplicateCode,
	"player_exists":  ErrPlayerExists,
	"invalid":        ErrInvalid,
}

// KindOf 错误对应的 kind 与 HTTP 状态码
func KindOf(err error) (string, int) {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found", http.StatusNotFound
	case errors.Is(err, ErrDuplicateCode):
		return "duplicate_code", http.StatusConflict
	case errors.Is(err, ErrPlayerExists):
		return "player_exists", http.StatusConflict
	case errors.Is(err, ErrInvalid):
		return "invalid", http.StatusBadRequest
	default:
		return "", http.StatusInternalServerError
	}
}

// Client 通过中继进程的 /rooms 接口访问目录
type Client struct {
	base string
	http *http.Client
}

// NewClient base 形如 http://host:8080
func NewClient(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{base: strings.TrimRight(base, "/"), http: hc}
}

var _ Directory = (*Client)(nil)

// CreateRoom POST /rooms
func (c *Client) CreateRoom(ctx context.Context, code, difficulty, hostID string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	in := map[string]string{"roomCode": code, "difficulty": difficulty, "hostId": hostID}
	if err := c.do(ctx, http.MethodPost, "/rooms", in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// FindRoom GET /rooms?code=
func (c *Client) FindRoom(ctx context.Context, code string) (Room, bool, error) {
	var r Room
	err := c.do(ctx, http.MethodGet, "/rooms?code="+url.QueryEscape(NormalizeCode(code)), nil, &r)
	if errors.Is(err, ErrRoomNotFound) {
		return Room{}, false, nil
	}
	if err != nil {
		return Room{}, false, err
	}
	return r, true, nil
}

// AddPlayer POST /rooms/{id}/players
func (c *Client) AddPlayer(ctx context.Context, roomID string, p PlayerRow) error {
	return c.do(ctx, http.MethodPost, "/rooms/"+url.PathEscape(roomID)+"/players", p, nil)
}

// ListPlayers GET /rooms/{id}/players
func (c *Client) ListPlayers(ctx context.Context, roomID string) ([]PlayerRow, error) {
	var out []PlayerRow
	if err := c.do(ctx, http.MethodGet, "/rooms/"+url.PathEscape(roomID)+"/players", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RemovePlayer DELETE /rooms/{id}/players/{player}
func (c *Client) RemovePlayer(ctx context.Context, roomID, playerID string) error {
	return c.do(ctx, http.MethodDelete, "/rooms/"+url.PathEscape(roomID)+"/players/"+url.PathEscape(playerID), nil, nil)
}

// DeleteRoom DELETE /rooms/{id}
func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodDelete, "/rooms/"+url.PathEscape(roomID), nil, nil)
}

// SetStatus PUT /rooms/{id}/status
func (c *Client) SetStatus(ctx context.Context, roomID string, status Status) error {
	return c.do(ctx, http.MethodPut, "/rooms/"+url.PathEscape(roomID)+"/status", map[string]Status{"status": status}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("directory: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("directory: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("directory: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var eb ErrorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		if known, ok := errKinds[eb.Kind]; ok {
			return fmt.Errorf("%w: %s", known, eb.Error)
		}
		return fmt.Errorf("directory: %s %s: status %d: %s", method, path, resp.StatusCode, eb.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("directory: decode response: %w", err)
	}
	return nil
}
