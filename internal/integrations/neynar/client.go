/**
 * @description
 * HTTP client for the Neynar Farcaster API.
 * Resolves Farcaster profiles by wallet address, fid, and username search.
 *
 * @dependencies
 * - net/http
 * - encoding/json
 * - backend/internal/config
 */

package neynar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/savings-circle/backend/internal/config"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultBaseURL = "https://api.neynar.com"

	maxSearchLimit = 10
)

var ErrMissingAPIKey = errors.New("neynar api key is not configured")

type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	baseURL := strings.TrimRight(cfg.Services.NeynarBaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  cfg.Services.NeynarAPIKey,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// UserByAddress returns the Farcaster user that verified or custodies address.
// Returns nil, nil when no user is linked to it.
func (c *Client) UserByAddress(ctx context.Context, address string, viewerFid int64) (*User, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return nil, fmt.Errorf("address cannot be empty")
	}

	q := url.Values{}
	q.Set("addresses", address)
	if viewerFid > 0 {
		q.Set("viewer_fid", strconv.FormatInt(viewerFid, 10))
	}

	// Response is keyed by the lower-cased address
	var byAddress map[string][]User
	found, err := c.get(ctx, "/v2/farcaster/user/bulk-by-address", q, &byAddress)
	if err != nil || !found {
		return nil, err
	}

	for key, users := range byAddress {
		if strings.ToLower(key) == address && len(users) > 0 {
			user := users[0]
			return &user, nil
		}
	}
	return nil, nil
}

// UserByFid returns the user with the given fid, or nil, nil if unknown
func (c *Client) UserByFid(ctx context.Context, fid int64) (*User, error) {
	if fid <= 0 {
		return nil, fmt.Errorf("invalid fid %d", fid)
	}

	q := url.Values{}
	q.Set("fids", strconv.FormatInt(fid, 10))

	var resp bulkUsersResponse
	found, err := c.get(ctx, "/v2/farcaster/user/bulk", q, &resp)
	if err != nil || !found || len(resp.Users) == 0 {
		return nil, err
	}
	user := resp.Users[0]
	return &user, nil
}

// SearchUsers finds users whose username matches query
func (c *Client) SearchUsers(ctx context.Context, query string, limit int) ([]User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if limit <= 0 || limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))

	var resp searchUsersResponse
	if _, err := c.get(ctx, "/v2/farcaster/user/search", q, &resp); err != nil {
		return nil, err
	}
	if resp.Result.Users == nil {
		return []User{}, nil
	}
	return resp.Result.Users, nil
}

// get performs a GET and decodes the body into out. found is false on 404.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) (bool, error) {
	if c.APIKey == "" {
		return false, ErrMissingAPIKey
	}

	u := fmt.Sprintf("%s%s?%s", c.BaseURL, path, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("x-api-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return false, fmt.Errorf("neynar api error: status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return false, fmt.Errorf("neynar api error: status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode neynar response: %w", err)
	}
	return true, nil
}
