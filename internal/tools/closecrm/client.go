// Package closecrm integrates with the Close CRM API for lead, note,
// opportunity, and activity management.
package closecrm

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

	"golang.org/x/time/rate"
)

// Lead is a CRM lead with its primary contact details.
type Lead struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StatusLabel string    `json:"status_label"`
	URL         string    `json:"url"`
	Contacts    []Contact `json:"contacts"`
	CreatedAt   string    `json:"date_created"`
}

// Contact is a person attached to a lead.
type Contact struct {
	Name   string  `json:"name"`
	Title  string  `json:"title"`
	Phones []Phone `json:"phones"`
	Emails []Email `json:"emails"`
}

type Phone struct {
	Phone string `json:"phone"`
	Type  string `json:"type"`
}

type Email struct {
	Email string `json:"email"`
	Type  string `json:"type"`
}

// Opportunity is a sales opportunity on a lead.
type Opportunity struct {
	ID          string  `json:"id"`
	LeadName    string  `json:"lead_name"`
	StatusLabel string  `json:"status_label"`
	Value       float64 `json:"value"`
	ValuePeriod string  `json:"value_period"`
	Note        string  `json:"note"`
}

// Client calls the Close API. Close authenticates with HTTP Basic
// using the API key as the username and an empty password. Without a
// key the client serves a built-in dataset for demos and tests.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	mock    *mockCRM
}

// NewClient creates a Close client. baseURL defaults to the public
// API endpoint.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.close.com/api/v1"
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(rate.Every(150*time.Millisecond), 10),
	}
	if apiKey == "" {
		c.mock = newMockCRM()
	}
	return c
}

// SearchLeads searches leads by name or keyword.
func (c *Client) SearchLeads(ctx context.Context, query string) ([]*Lead, error) {
	if c.mock != nil {
		return c.mock.searchLeads(query), nil
	}
	var payload struct {
		Data []*Lead `json:"data"`
	}
	path := fmt.Sprintf("/lead/?query=%s&_limit=10", url.QueryEscape(query))
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// GetLead fetches a single lead by id.
func (c *Client) GetLead(ctx context.Context, leadID string) (*Lead, error) {
	if c.mock != nil {
		return c.mock.getLead(leadID)
	}
	var lead Lead
	if err := c.do(ctx, http.MethodGet, "/lead/"+url.PathEscape(leadID)+"/", nil, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

// CreateLead creates a new lead with an optional contact.
func (c *Client) CreateLead(ctx context.Context, name, description, contactName, contactPhone, contactEmail string) (*Lead, error) {
	if c.mock != nil {
		return c.mock.createLead(name, description, contactName, contactPhone, contactEmail), nil
	}
	body := map[string]any{
		"name":        name,
		"description": description,
	}
	if contactName != "" || contactPhone != "" || contactEmail != "" {
		contact := map[string]any{"name": contactName}
		if contactPhone != "" {
			contact["phones"] = []map[string]string{{"phone": contactPhone, "type": "office"}}
		}
		if contactEmail != "" {
			contact["emails"] = []map[string]string{{"email": contactEmail, "type": "office"}}
		}
		body["contacts"] = []map[string]any{contact}
	}
	var lead Lead
	if err := c.do(ctx, http.MethodPost, "/lead/", body, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

// AddNote attaches a note activity to a lead.
func (c *Client) AddNote(ctx context.Context, leadID, note string) error {
	if c.mock != nil {
		return c.mock.addNote(leadID, note)
	}
	body := map[string]any{"lead_id": leadID, "note": note}
	return c.do(ctx, http.MethodPost, "/activity/note/", body, nil)
}

// ListOpportunities lists opportunities, optionally scoped to a lead.
func (c *Client) ListOpportunities(ctx context.Context, leadID string) ([]*Opportunity, error) {
	if c.mock != nil {
		return c.mock.listOpportunities(leadID), nil
	}
	path := "/opportunity/"
	if leadID != "" {
		path += "?lead_id=" + url.QueryEscape(leadID)
	}
	var payload struct {
		Data []*Opportunity `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// LogActivity records a call or email activity on a lead.
func (c *Client) LogActivity(ctx context.Context, leadID, kind, summary string) error {
	if c.mock != nil {
		return c.mock.logActivity(leadID, kind, summary)
	}
	var path string
	var body map[string]any
	switch kind {
	case "call":
		path = "/activity/call/"
		body = map[string]any{"lead_id": leadID, "note": summary, "direction": "outbound"}
	case "email":
		path = "/activity/email/"
		body = map[string]any{"lead_id": leadID, "body_text": summary, "status": "sent"}
	default:
		return fmt.Errorf("unsupported activity type: %s", kind)
	}
	return c.do(ctx, http.MethodPost, path, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.apiKey, "")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("Close request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Close returned status %d for %s %s", resp.StatusCode, method, path)
	}
	if out == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read Close response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse Close response: %w", err)
	}
	return nil
}
