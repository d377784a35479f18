// Package riot implements the tournament provider contract against the
// Riot tournament-v5 API.
package riot

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

	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/services/provider"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/utils"
)

const basePath = "/lol/tournament/v5"

type Config struct {
	BaseURL string `json:"baseUrl" mapstructure:"base_url"`
	APIKey  string `json:"apiKey" mapstructure:"api_key"`
}

// Client is the tournament-v5 HTTP client. Calls run through a circuit
// breaker so a dead provider stops consuming the scheduler's time quickly.
type Client struct {
	// baseURL is the regional routing host, e.g. https://americas.api.riotgames.com.
	baseURL string

	// apiKey is the tournament API key sent as X-Riot-Token.
	apiKey string

	// hc is the http client.
	hc *http.Client

	// cb trips after repeated provider failures.
	cb *utils.CircuitBreaker
}

// New creates a tournament-v5 client.
func New(c *Config) (*Client, error) {
	if c.BaseURL == "" {
		return nil, fmt.Errorf("riot: missing base url")
	}
	if c.APIKey == "" {
		return nil, fmt.Errorf("riot: missing api key")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return nil, fmt.Errorf("riot: parse base url: %w", err)
	}
	return &Client{
		baseURL: c.BaseURL,
		apiKey:  c.APIKey,

		// set http client with timeout; a slow provider delays only the
		// one session being initialized.
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},

		cb: utils.NewCircuitBreaker("riot-tournament"),
	}, nil
}

var _ provider.Provider = (*Client)(nil)

// CreateProvider registers a callback URL for a region and returns the
// provider id.
func (c *Client) CreateProvider(ctx context.Context, region, callbackURL string) (int, error) {
	body := map[string]any{"region": region, "url": callbackURL}
	var id int
	if err := c.post(ctx, basePath+"/providers", body, &id); err != nil {
		return 0, fmt.Errorf("riot: create provider: %w", err)
	}
	return id, nil
}

// CreateTournament creates a named tournament under a provider id.
func (c *Client) CreateTournament(ctx context.Context, name string, providerID int) (int, error) {
	body := map[string]any{"name": name, "providerId": providerID}
	var id int
	if err := c.post(ctx, basePath+"/tournaments", body, &id); err != nil {
		return 0, fmt.Errorf("riot: create tournament: %w", err)
	}
	return id, nil
}

// CreateLobbyCode generates one joinable lobby code for the tournament.
func (c *Client) CreateLobbyCode(ctx context.Context, tournamentID int, params provider.CodeParams) ([]string, error) {
	path := basePath + "/codes?count=1&tournamentId=" + strconv.Itoa(tournamentID)
	var codes []string
	if err := c.post(ctx, path, params, &codes); err != nil {
		return nil, fmt.Errorf("riot: create lobby code: %w", err)
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("riot: create lobby code: empty code list")
	}
	return codes, nil
}

// UpdateLobbyCode restricts a code to the given participants.
func (c *Client) UpdateLobbyCode(ctx context.Context, code string, allowedParticipants []string) error {
	body := map[string]any{"allowedParticipants": allowedParticipants}
	if err := c.send(ctx, http.MethodPut, basePath+"/codes/"+url.PathEscape(code), body, nil); err != nil {
		return fmt.Errorf("riot: update lobby code: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.send(ctx, http.MethodPost, path, body, out)
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	_, err := c.cb.Execute(ctx, func() (any, error) {
		return nil, c.do(ctx, method, path, body, out)
	})
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Riot-Token", c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// APIError is a non-2xx response from the tournament API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tournament api returned %d: %s", e.StatusCode, e.Body)
}
