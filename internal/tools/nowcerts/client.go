// Package nowcerts integrates with the NowCerts agency management
// system for insured, policy, and prospect records.
package nowcerts

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

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Insured is a client of the agency.
type Insured struct {
	ID            string `json:"id"`
	CommercialName string `json:"commercial_name"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	State         string `json:"state"`
	City          string `json:"city"`
	Type          string `json:"type"`
}

// Policy is an insurance policy on an insured.
type Policy struct {
	ID             string  `json:"id"`
	Number         string  `json:"number"`
	InsuredID      string  `json:"insured_id"`
	LineOfBusiness string  `json:"line_of_business"`
	Carrier        string  `json:"carrier"`
	Premium        float64 `json:"premium"`
	EffectiveDate  string  `json:"effective_date"`
	ExpirationDate string  `json:"expiration_date"`
	Status         string  `json:"status"`
}

// Client calls the NowCerts REST API. NowCerts uses the OAuth2
// resource-owner password grant; the token source refreshes lazily.
// Without credentials the client serves a built-in dataset.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	tokens  oauth2.TokenSource
	mock    *mockAMS
}

// Config holds NowCerts connection settings.
type Config struct {
	BaseURL  string
	TokenURL string
	Username string
	Password string
}

// NewClient creates a NowCerts client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.nowcerts.com/api"
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = "https://api.nowcerts.com/api/token"
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 5),
	}
	if cfg.Username == "" || cfg.Password == "" {
		c.mock = newMockAMS()
		return c
	}

	oc := &oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: cfg.TokenURL}}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.http)
	c.tokens = oauth2.ReuseTokenSource(nil, passwordSource{
		ctx:      ctx,
		config:   oc,
		username: cfg.Username,
		password: cfg.Password,
	})
	return c
}

// passwordSource fetches a fresh token with the password grant each
// time the cached one expires.
type passwordSource struct {
	ctx      context.Context
	config   *oauth2.Config
	username string
	password string
}

func (s passwordSource) Token() (*oauth2.Token, error) {
	return s.config.PasswordCredentialsToken(s.ctx, s.username, s.password)
}

// FindInsured searches insureds by name.
func (c *Client) FindInsured(ctx context.Context, name string) ([]*Insured, error) {
	if c.mock != nil {
		return c.mock.findInsured(name), nil
	}
	var payload struct {
		Value []insuredRecord `json:"value"`
	}
	path := fmt.Sprintf("/InsuredDetailList()?$filter=contains(commercialName,'%s')&$top=10", url.QueryEscape(name))
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, err
	}
	insureds := make([]*Insured, 0, len(payload.Value))
	for _, r := range payload.Value {
		insureds = append(insureds, r.toInsured())
	}
	return insureds, nil
}

// GetPolicies lists policies for an insured.
func (c *Client) GetPolicies(ctx context.Context, insuredID string) ([]*Policy, error) {
	if c.mock != nil {
		return c.mock.getPolicies(insuredID), nil
	}
	var payload struct {
		Value []policyRecord `json:"value"`
	}
	path := fmt.Sprintf("/PolicyList()?$filter=insuredDatabaseId eq %s", url.QueryEscape(insuredID))
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, err
	}
	policies := make([]*Policy, 0, len(payload.Value))
	for _, r := range payload.Value {
		policies = append(policies, r.toPolicy())
	}
	return policies, nil
}

// GetPolicyDetails fetches a single policy by id.
func (c *Client) GetPolicyDetails(ctx context.Context, policyID string) (*Policy, error) {
	if c.mock != nil {
		return c.mock.getPolicy(policyID)
	}
	var payload struct {
		Value []policyRecord `json:"value"`
	}
	path := fmt.Sprintf("/PolicyList()?$filter=databaseId eq %s", url.QueryEscape(policyID))
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, err
	}
	if len(payload.Value) == 0 {
		return nil, fmt.Errorf("policy not found: %s", policyID)
	}
	return payload.Value[0].toPolicy(), nil
}

// CreateProspect inserts a new prospect record.
func (c *Client) CreateProspect(ctx context.Context, commercialName, contactFirst, contactLast, email, phone string) (*Insured, error) {
	if c.mock != nil {
		return c.mock.createProspect(commercialName, contactFirst, contactLast, email, phone), nil
	}
	body := map[string]any{
		"commercialName": commercialName,
		"firstName":      contactFirst,
		"lastName":       contactLast,
		"eMail":          email,
		"phone":          phone,
		"type":           "Prospect",
	}
	var record insuredRecord
	if err := c.post(ctx, "/Zapier/InsertProspect", body, &record); err != nil {
		return nil, err
	}
	return record.toInsured(), nil
}

// ExpiringPolicies returns policies expiring within the window. Used
// by the renewal sweep.
func (c *Client) ExpiringPolicies(ctx context.Context, within time.Duration) ([]*Policy, error) {
	if c.mock != nil {
		return c.mock.expiringPolicies(within), nil
	}
	cutoff := time.Now().Add(within).Format("2006-01-02")
	var payload struct {
		Value []policyRecord `json:"value"`
	}
	path := fmt.Sprintf("/PolicyList()?$filter=expirationDate le %s and active eq true", cutoff)
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, err
	}
	policies := make([]*Policy, 0, len(payload.Value))
	for _, r := range payload.Value {
		policies = append(policies, r.toPolicy())
	}
	return policies, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("NowCerts authentication failed: %w", err)
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
	token.SetAuthHeader(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("NowCerts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("NowCerts returned status %d for %s %s", resp.StatusCode, method, path)
	}
	if out == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read NowCerts response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse NowCerts response: %w", err)
	}
	return nil
}

// insuredRecord mirrors the NowCerts wire shape.
type insuredRecord struct {
	DatabaseID      string `json:"databaseId"`
	CommercialName  string `json:"commercialName"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	EMail           string `json:"eMail"`
	Phone           string `json:"phone"`
	StateNameOrAbbr string `json:"stateNameOrAbbreviation"`
	City            string `json:"city"`
	Type            string `json:"type"`
}

func (r insuredRecord) toInsured() *Insured {
	return &Insured{
		ID:             r.DatabaseID,
		CommercialName: r.CommercialName,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Email:          r.EMail,
		Phone:          r.Phone,
		State:          r.StateNameOrAbbr,
		City:           r.City,
		Type:           r.Type,
	}
}

type policyRecord struct {
	DatabaseID        string  `json:"databaseId"`
	Number            string  `json:"number"`
	InsuredDatabaseID string  `json:"insuredDatabaseId"`
	LineOfBusiness    string  `json:"lineOfBusinessName"`
	CarrierName       string  `json:"carrierName"`
	TotalPremium      float64 `json:"totalPremium"`
	EffectiveDate     string  `json:"effectiveDate"`
	ExpirationDate    string  `json:"expirationDate"`
	Active            bool    `json:"active"`
}

func (r policyRecord) toPolicy() *Policy {
	status := "Inactive"
	if r.Active {
		status = "Active"
	}
	return &Policy{
		ID:             r.DatabaseID,
		Number:         r.Number,
		InsuredID:      r.InsuredDatabaseID,
		LineOfBusiness: r.LineOfBusiness,
		Carrier:        r.CarrierName,
		Premium:        r.TotalPremium,
		EffectiveDate:  r.EffectiveDate,
		ExpirationDate: r.ExpirationDate,
		Status:         status,
	}
}
