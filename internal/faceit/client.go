package faceit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/config"
)

// ErrPlayerNotFound игрок с таким ником не существует.
// Отличается от временных ошибок API: повторять запрос бессмысленно.
var ErrPlayerNotFound = errors.New("faceit player not found")

// ErrMatchNotFound матч с таким идентификатором не существует.
var ErrMatchNotFound = errors.New("faceit match not found")

// Client клиент FACEIT Data API.
type Client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

// NewClient создаёт новый клиент FACEIT Data API.
func NewClient(cfg config.FaceitAPI) *Client {
	return &Client{
		apiURL:     cfg.FaceitBaseURL,
		apiKey:     cfg.FaceitAPIKey,
		httpClient: &http.Client{Timeout: cfg.FaceitTimeout},
	}
}

func (c *Client) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, notFound error, out any) (json.RawMessage, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, notFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("unexpected status: " + resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, err
	}
	return body, nil
}

// GetPlayerByNickname возвращает профиль игрока по нику.
func (c *Client) GetPlayerByNickname(ctx context.Context, nickname string) (*Player, error) {
	const op = "faceit.GetPlayerByNickname"

	req, err := c.newRequest(ctx, "/players?nickname="+url.QueryEscape(nickname))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var player Player
	raw, err := c.do(req, ErrPlayerNotFound, &player)
	if err != nil {
		if errors.Is(err, ErrPlayerNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	player.Raw = raw
	return &player, nil
}

// GetMatch возвращает данные матча по его идентификатору.
func (c *Client) GetMatch(ctx context.Context, matchID string) (*Match, error) {
	const op = "faceit.GetMatch"

	req, err := c.newRequest(ctx, "/matches/"+url.PathEscape(matchID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var match Match
	raw, err := c.do(req, ErrMatchNotFound, &match)
	if err != nil {
		if errors.Is(err, ErrMatchNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	match.Raw = raw
	return &match, nil
}
