package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gibridargos/live-suhbat/internal/config"
	"github.com/gibridargos/live-suhbat/internal/core"
	"github.com/gibridargos/live-suhbat/internal/domain"
)

// api is a thin client for the server's HTTP endpoints.
type api struct {
	base   string
	client *http.Client
}

func newAPI(base string) *api {
	return &api{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// signalURL maps http(s)://host to ws(s)://host/api/ws/signal.
func signalURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws/signal"
	return u.String(), nil
}

func (a *api) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (a *api) rooms(ctx context.Context) ([]core.RoomInfo, error) {
	var out []core.RoomInfo
	err := a.getJSON(ctx, "/api/rooms", &out)
	return out, err
}

func (a *api) history(ctx context.Context, room string, limit int) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := a.getJSON(ctx, fmt.Sprintf("/api/rooms/%s/messages?limit=%d", url.PathEscape(room), limit), &out)
	return out, err
}

func (a *api) iceServers(ctx context.Context) ([]config.ICEServer, error) {
	var out struct {
		ICEServers []config.ICEServer `json:"iceServers"`
	}
	err := a.getJSON(ctx, "/api/ice", &out)
	return out.ICEServers, err
}

// login returns the session cookie header to present on the WebSocket.
func (a *api) login(ctx context.Context, user, password string) (http.Header, domain.Account, error) {
	body, err := json.Marshal(map[string]string{"username": user, "password": password})
	if err != nil {
		return nil, domain.Account{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/login", bytes.NewReader(body))
	if err != nil {
		return nil, domain.Account{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, domain.Account{}, err
	}
	defer resp.Body.Close()

	var out struct {
		OK   bool           `json:"ok"`
		Msg  string         `json:"msg"`
		User domain.Account `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.Account{}, fmt.Errorf("login: %w", err)
	}
	if !out.OK {
		return nil, domain.Account{}, errors.New("login: " + out.Msg)
	}
	header := http.Header{}
	for _, c := range resp.Cookies() {
		header.Add("Cookie", c.Name+"="+c.Value)
	}
	return header, out.User, nil
}
