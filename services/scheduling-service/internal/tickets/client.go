package tickets

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type NewTicket struct {
	Title        string `json:"title"`
	CustomerID   string `json:"customer_id"`
	TechnicianID string `json:"assignee_id"`
	Description  string `json:"description,omitempty"`
}

type Stage struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// HTTPClient talks to the helpdesk REST API.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http: &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *HTTPClient) CreateTicket(ctx context.Context, t NewTicket) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/tickets", t, &out); err != nil {
		return "", fmt.Errorf("create ticket: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("create ticket: helpdesk returned no id")
	}
	return out.ID, nil
}

// SetTicketStage moves the ticket to the first stage whose name matches
// keyword. It reports false, with no error, when no stage matches.
func (c *HTTPClient) SetTicketStage(ctx context.Context, ticketID, keyword string) (bool, error) {
	var stages []Stage
	if err := c.do(ctx, http.MethodGet, "/stages?q="+url.QueryEscape(keyword), nil, &stages); err != nil {
		return false, fmt.Errorf("list stages: %w", err)
	}
	stage, ok := MatchStage(stages, keyword)
	if !ok {
		return false, nil
	}
	body := map[string]string{"stage_id": stage.ID}
	if err := c.do(ctx, http.MethodPatch, "/tickets/"+url.PathEscape(ticketID), body, nil); err != nil {
		return false, fmt.Errorf("update ticket stage: %w", err)
	}
	return true, nil
}

// MatchStage compares names case-insensitively, treating "_" and "-" as spaces.
func MatchStage(stages []Stage, keyword string) (Stage, bool) {
	kw := normalize(keyword)
	if kw == "" {
		return Stage{}, false
	}
	for _, s := range stages {
		if strings.Contains(normalize(s.Name), kw) {
			return s, true
		}
	}
	return Stage{}, false
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", " ", "-", " ").Replace(s)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("helpdesk %s %s returned %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// NoopClient is used when no helpdesk is configured. It never creates a
// ticket and never finds a stage.
type NoopClient struct{}

func (NoopClient) CreateTicket(context.Context, NewTicket) (string, error) {
	return "", nil
}

func (NoopClient) SetTicketStage(context.Context, string, string) (bool, error) {
	return false, nil
}
