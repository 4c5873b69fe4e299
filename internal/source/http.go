package source

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

	"imgcat/internal/catalog"
)

// HTTPAdapter queries a remote catalog service. The service answers
//
//	GET <base>/children?collection=..&patient=..  -> {"children":[{"id":..,"hash":..,"uri":..}]}
//	GET <base>/hash?collection=..&patient=..      -> {"hash":..}  (404 when absent)
//
// with one query parameter per level of the scope path.
type HTTPAdapter struct {
	name    string
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

// HTTPOptions configures an HTTPAdapter.
type HTTPOptions struct {
	Name              string
	URL               string
	Token             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Client            *http.Client
}

// NewHTTPAdapter builds an adapter for a remote catalog service.
func NewHTTPAdapter(opts HTTPOptions) *HTTPAdapter {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &HTTPAdapter{
		name:    opts.Name,
		baseURL: strings.TrimRight(opts.URL, "/"),
		token:   opts.Token,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Name returns the configured source name.
func (a *HTTPAdapter) Name() string { return a.name }

type childPayload struct {
	ID   string `json:"id"`
	Hash string `json:"hash"`
	URI  string `json:"uri,omitempty"`
}

type childrenResponse struct {
	Children []childPayload `json:"children"`
}

type hashResponse struct {
	Hash string `json:"hash"`
}

// ListChildren fetches the children of scope.
func (a *HTTPAdapter) ListChildren(ctx context.Context, scope Scope) ([]Child, error) {
	var payload childrenResponse
	found, err := a.get(ctx, "children", scope, &payload)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	children := make([]Child, 0, len(payload.Children))
	for _, c := range payload.Children {
		children = append(children, Child{Identifier: c.ID, Hash: c.Hash, URI: c.URI})
	}
	return children, nil
}

// FetchHash fetches the service's digest of scope.
func (a *HTTPAdapter) FetchHash(ctx context.Context, scope Scope) (string, bool, error) {
	var payload hashResponse
	found, err := a.get(ctx, "hash", scope, &payload)
	if err != nil || !found {
		return "", false, err
	}
	return payload.Hash, true, nil
}

func (a *HTTPAdapter) get(ctx context.Context, endpoint string, scope Scope, out any) (bool, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/"+endpoint+"?"+scopeQuery(scope).Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		// Connection resets, timeouts, and DNS failures all retry.
		return false, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return false, fmt.Errorf("%w: %s returned %s", ErrTransient, endpoint, resp.Status)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("%s returned %s: %s", endpoint, resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("%w: decode %s response: %v", ErrTransient, endpoint, err)
	}
	return true, nil
}

// scopeQuery encodes the path of scope as one parameter per level.
func scopeQuery(scope Scope) url.Values {
	values := url.Values{}
	level := catalog.LevelCollection
	for _, id := range scope.Path {
		values.Set(string(level), id)
		level = level.Child()
	}
	return values
}
