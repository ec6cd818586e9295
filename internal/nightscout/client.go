// Package nightscout provides a client for uploading carb treatments to Nightscout
package nightscout

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // Required for Nightscout API secret hashing (legacy API requirement)
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/mrcode/fpu-scheduler/internal/models"
)

// Client handles communication with the Nightscout API
type Client struct {
	baseURL    string
	apiSecret  string
	apiToken   string
	useToken   bool
	httpClient *http.Client
}

// NewClient creates a new Nightscout client
func NewClient(baseURL, apiSecret, apiToken string, useToken bool) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiSecret: apiSecret,
		apiToken:  apiToken,
		useToken:  useToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// hashSecret generates SHA1 hash of the API secret
// Note: SHA1 is required for Nightscout API compatibility
func hashSecret(secret string) string {
	hasher := sha1.New() //nolint:gosec // Required for Nightscout API
	hasher.Write([]byte(secret))
	return hex.EncodeToString(hasher.Sum(nil))
}

// buildRequest creates an HTTP request with proper authentication
func (c *Client) buildRequest(method, endpoint string, params url.Values, payload []byte) (*http.Request, error) {
	fullURL := c.baseURL + endpoint
	if params != nil {
		fullURL += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, fullURL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	// Add authentication
	if c.useToken && c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	} else if c.apiSecret != "" {
		req.Header.Set("API-SECRET", hashSecret(c.apiSecret))
	}

	return req, nil
}

// doRequest executes an HTTP request and returns the response body
func (c *Client) doRequest(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// GetStatus retrieves the Nightscout server status
func (c *Client) GetStatus() (*models.ServerStatus, error) {
	req, err := c.buildRequest("GET", "/api/v1/status", nil, nil)
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	var status models.ServerStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("parsing status: %w", err)
	}

	return &status, nil
}

// UploadTreatments posts export records as carb corrections in one request.
// Records at the same time are sent as a single treatment.
func (c *Client) UploadTreatments(batchID string, records []models.ExportRecord) ([]models.Treatment, error) {
	if len(records) == 0 {
		return nil, nil
	}

	treatments := models.NewCarbTreatments(records, batchID)

	payload, err := json.Marshal(treatments)
	if err != nil {
		return nil, fmt.Errorf("encoding treatments: %w", err)
	}

	req, err := c.buildRequest("POST", "/api/v1/treatments", nil, payload)
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	// Nightscout echoes the stored documents; older servers answer with an empty body
	var stored []models.Treatment
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &stored); err != nil {
			return nil, fmt.Errorf("parsing treatments: %w", err)
		}
	}
	if len(stored) == 0 {
		stored = treatments
	}

	return stored, nil
}

// GetTreatments retrieves carb treatments for a time range
func (c *Client) GetTreatments(from, to time.Time, count int) ([]models.Treatment, error) {
	params := url.Values{}
	params.Set("find[carbs][$gt]", "0")

	if !from.IsZero() {
		params.Set("find[created_at][$gte]", from.UTC().Format(time.RFC3339))
	}
	if !to.IsZero() {
		params.Set("find[created_at][$lte]", to.UTC().Format(time.RFC3339))
	}
	if count > 0 {
		params.Set("count", fmt.Sprintf("%d", count))
	}

	req, err := c.buildRequest("GET", "/api/v1/treatments", params, nil)
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	var treatments []models.Treatment
	if err := json.Unmarshal(body, &treatments); err != nil {
		return nil, fmt.Errorf("parsing treatments: %w", err)
	}

	return treatments, nil
}

// GetScheduledTreatments retrieves the treatments this application uploaded
// within the last N hours
func (c *Client) GetScheduledTreatments(hours int) ([]models.Treatment, error) {
	from := time.Now().Add(-time.Duration(hours) * time.Hour)
	treatments, err := c.GetTreatments(from, time.Time{}, 0)
	if err != nil {
		return nil, err
	}
	return lo.Filter(treatments, func(t models.Treatment, _ int) bool {
		return t.IsScheduled()
	}), nil
}

// TestConnection tests if the connection to Nightscout works
func (c *Client) TestConnection() error {
	_, err := c.GetStatus()
	return err
}
