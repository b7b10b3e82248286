// Package intranet implements the directory-lookup client used to resolve
// an inviter username to an email address.
package intranet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"huntflow-sync/internal/common/config"
	"huntflow-sync/internal/common/errors"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// User is one directory record. Only the mail field matters here.
type User struct {
	Mail     string `json:"mail"`
	Username string `json:"username"`
}

func NewClient(cfg config.IntranetConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: config.GetDuration(cfg.Timeout),
		},
	}
}

// GetUsers returns the directory records matching the given username.
func (c *Client) GetUsers(ctx context.Context, username string) ([]User, error) {
	reqURL := fmt.Sprintf("%s/users?username=%s", c.baseURL, url.QueryEscape(username))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.NewDirectoryLookupError(username, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewDirectoryLookupError(username, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.NewDirectoryLookupError(username,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)))
	}

	var result struct {
		Users []User `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.NewDirectoryLookupError(username, err)
	}

	return result.Users, nil
}
