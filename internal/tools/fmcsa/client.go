// Package fmcsa queries the FMCSA QCMobile carrier registry for DOT and
// MC number lookups, name search, and safety ratings.
package fmcsa

import (
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

// Carrier is the subset of registry fields the assistant reports.
type Carrier struct {
	DOTNumber       string `json:"dot_number"`
	MCNumber        string `json:"mc_number"`
	LegalName       string `json:"legal_name"`
	DBAName         string `json:"dba_name"`
	PhysicalState   string `json:"physical_state"`
	PhysicalCity    string `json:"physical_city"`
	OperatingStatus string `json:"operating_status"`
	PowerUnits      int    `json:"power_units"`
	Drivers         int    `json:"drivers"`
	SafetyRating    string `json:"safety_rating"`
	RatingDate      string `json:"rating_date"`
}

// Client calls the QCMobile API. When no web key is configured it
// serves a small built-in dataset so the assistant stays usable in
// demos and tests.
type Client struct {
	baseURL string
	webKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an FMCSA client. baseURL defaults to the public
// QCMobile endpoint.
func NewClient(baseURL, webKey string) *Client {
	if baseURL == "" {
		baseURL = "https://mobile.fmcsa.dot.gov/qc/services"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		webKey:  webKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
	}
}

// CarrierByDOT looks up a carrier by its DOT number.
func (c *Client) CarrierByDOT(ctx context.Context, dotNumber string) (*Carrier, error) {
	if c.webKey == "" {
		return mockByDOT(dotNumber)
	}
	var payload struct {
		Content struct {
			Carrier carrierRecord `json:"carrier"`
		} `json:"content"`
	}
	if err := c.get(ctx, fmt.Sprintf("/carriers/%s", url.PathEscape(dotNumber)), &payload); err != nil {
		return nil, err
	}
	if payload.Content.Carrier.DotNumber == 0 {
		return nil, fmt.Errorf("no carrier found for DOT %s", dotNumber)
	}
	return payload.Content.Carrier.toCarrier(), nil
}

// CarrierByMC looks up a carrier by its MC docket number.
func (c *Client) CarrierByMC(ctx context.Context, mcNumber string) (*Carrier, error) {
	if c.webKey == "" {
		return mockByMC(mcNumber)
	}
	var payload struct {
		Content []struct {
			Carrier carrierRecord `json:"carrier"`
		} `json:"content"`
	}
	if err := c.get(ctx, fmt.Sprintf("/carriers/docket-number/%s", url.PathEscape(mcNumber)), &payload); err != nil {
		return nil, err
	}
	if len(payload.Content) == 0 {
		return nil, fmt.Errorf("no carrier found for MC %s", mcNumber)
	}
	return payload.Content[0].Carrier.toCarrier(), nil
}

// SearchByName searches carriers by legal or DBA name.
func (c *Client) SearchByName(ctx context.Context, name string) ([]*Carrier, error) {
	if c.webKey == "" {
		return mockByName(name), nil
	}
	var payload struct {
		Content []struct {
			Carrier carrierRecord `json:"carrier"`
		} `json:"content"`
	}
	if err := c.get(ctx, fmt.Sprintf("/carriers/name/%s", url.PathEscape(name)), &payload); err != nil {
		return nil, err
	}
	carriers := make([]*Carrier, 0, len(payload.Content))
	for _, entry := range payload.Content {
		carriers = append(carriers, entry.Carrier.toCarrier())
	}
	return carriers, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := fmt.Sprintf("%s%s?webKey=%s", c.baseURL, path, url.QueryEscape(c.webKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("FMCSA request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// The web key never goes into errors or logs.
		return fmt.Errorf("FMCSA returned status %d for %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read FMCSA response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse FMCSA response: %w", err)
	}
	return nil
}

// carrierRecord mirrors the QCMobile wire shape.
type carrierRecord struct {
	DotNumber        int    `json:"dotNumber"`
	LegalName        string `json:"legalName"`
	DbaName          string `json:"dbaName"`
	PhyState         string `json:"phyState"`
	PhyCity          string `json:"phyCity"`
	StatusCode       string `json:"statusCode"`
	TotalPowerUnits  int    `json:"totalPowerUnits"`
	TotalDrivers     int    `json:"totalDrivers"`
	SafetyRating     string `json:"safetyRating"`
	SafetyRatingDate string `json:"safetyRatingDate"`
	McNumber         string `json:"mcNumber"`
}

func (r carrierRecord) toCarrier() *Carrier {
	status := "INACTIVE"
	if r.StatusCode == "A" {
		status = "ACTIVE"
	}
	return &Carrier{
		DOTNumber:       fmt.Sprintf("%d", r.DotNumber),
		MCNumber:        r.McNumber,
		LegalName:       r.LegalName,
		DBAName:         r.DbaName,
		PhysicalState:   r.PhyState,
		PhysicalCity:    r.PhyCity,
		OperatingStatus: status,
		PowerUnits:      r.TotalPowerUnits,
		Drivers:         r.TotalDrivers,
		SafetyRating:    r.SafetyRating,
		RatingDate:      r.SafetyRatingDate,
	}
}
