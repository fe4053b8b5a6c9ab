// Package directory talks to the identity collaborator. The engine only
// consumes principals; authentication flows live on the directory side.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/inforlary/belkys-sub012/pkg/apperr"
)

// Principal is the resolved caller identity for one session token.
type Principal struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	RoleSlug    string `json:"role_slug"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("directory: http %d: %s", e.StatusCode, msg)
}

func New(baseURL string) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("directory: missing base url")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.New("directory: invalid base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("directory: invalid base url scheme")
	}
	if u.Host == "" {
		return nil, errors.New("directory: invalid base url host")
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// Whoami resolves a session token to a principal. Transport failures and
// timeouts surface as CollaboratorUnavailable so callers never mistake a
// directory outage for an anonymous request.
func (c *Client) Whoami(ctx context.Context, sessionToken string) (Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sessions/whoami", nil)
	if err != nil {
		return Principal{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Session-Token", sessionToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Principal{}, apperr.NewCollaboratorUnavailable("directory", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return Principal{}, readHTTPError(resp)
	}

	var out Principal
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Principal{}, err
	}
	if out.UserID == "" {
		return Principal{}, errors.New("directory: missing user_id")
	}
	return out, nil
}

func readHTTPError(resp *http.Response) error {
	const maxBody = 4096
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Message:    string(b),
	}
}
