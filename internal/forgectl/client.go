package forgectl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"forged/pkg/types"
)

// Client is a thin HTTP client for the forged API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

func (c *Client) get(path string, out any) error {
	resp, err := c.HTTP.Get(c.BaseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// SKU fetches the active profile as raw JSON so new profile fields pass
// through untouched.
func (c *Client) SKU() (map[string]any, error) {
	var out map[string]any
	err := c.get("/v1/sku", &out)
	return out, err
}

func (c *Client) Targets() (types.PerformanceTargets, error) {
	var out types.PerformanceTargets
	err := c.get("/v1/performance/targets", &out)
	return out, err
}

func (c *Client) Status() (types.StatusResponse, error) {
	var out types.StatusResponse
	err := c.get("/status", &out)
	return out, err
}

func (c *Client) Sessions() (types.SessionsResponse, error) {
	var out types.SessionsResponse
	err := c.get("/v1/sessions", &out)
	return out, err
}

// SubmitResult distinguishes the three submit outcomes for display.
type SubmitResult struct {
	SessionID string
	Queued    bool
	Position  int
}

func (c *Client) Submit(req types.SessionRequest) (SubmitResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return SubmitResult{}, err
	}
	resp, err := c.HTTP.Post(c.BaseURL+"/v1/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		return SubmitResult{}, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusCreated:
		var sr types.SessionResponse
		if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
			return SubmitResult{}, err
		}
		return SubmitResult{SessionID: sr.SessionID}, nil
	case http.StatusAccepted:
		var qr types.QueuedResponse
		if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
			return SubmitResult{}, err
		}
		return SubmitResult{SessionID: qr.SessionID, Queued: true, Position: qr.Position}, nil
	default:
		return SubmitResult{}, apiError(resp)
	}
}

func (c *Client) Cancel(id string) error {
	return c.deleteOrPost(http.MethodDelete, "/v1/sessions/"+id)
}

func (c *Client) Complete(id string) error {
	return c.deleteOrPost(http.MethodPost, "/v1/sessions/"+id+"/complete")
}

func (c *Client) deleteOrPost(method, path string) error {
	req, err := http.NewRequest(method, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return apiError(resp)
	}
	return nil
}

func apiError(resp *http.Response) error {
	var er types.ErrorResponse
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(b, &er) == nil && er.Error != "" {
		return fmt.Errorf("%s (HTTP %d)", er.Error, resp.StatusCode)
	}
	return fmt.Errorf("unexpected status %d", resp.StatusCode)
}
