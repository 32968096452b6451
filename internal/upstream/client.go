// internal/upstream/client.go
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/ipscope/internal/config"
	"github.com/javajoker/ipscope/internal/metrics"
	"github.com/javajoker/ipscope/internal/models"
)

const (
	storyService    = "story-api"
	maxResponseSize = 8 << 20
)

var errRateLimited = errors.New("rate limited")

// Client talks to the Story Protocol assets/transactions API. Lookups that find nothing return
// empty results; upstream outages return empty results plus an error wrapping ErrDegraded.
type Client struct {
	baseURL    string
	apiKey     string
	chain      string
	authMode   string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
	newBackOff func() backoff.BackOff
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBackOff sets the policy used between retries of rate-limited calls.
func WithBackOff(newBackOff func() backoff.BackOff) ClientOption {
	return func(c *Client) {
		c.newBackOff = newBackOff
	}
}

func NewClient(cfg config.StoryAPIConfig, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		chain:      cfg.Chain,
		authMode:   cfg.AuthMode,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{},
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 250 * time.Millisecond
			bo.MaxInterval = 2 * time.Second
			return bo
		},
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type AssetQuery struct {
	OwnerAddress  string
	TokenContract string
	IPIDs         []string
	Limit         int
	Offset        int
}

type TxQuery struct {
	EventTypes []string
	IPIDs      []string
	Limit      int
	Offset     int
}

type queryPagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type queryOptions struct {
	Where          map[string]any  `json:"where,omitempty"`
	Pagination     queryPagination `json:"pagination"`
	OrderBy        string          `json:"orderBy,omitempty"`
	OrderDirection string          `json:"orderDirection,omitempty"`
}

type queryBody struct {
	Options queryOptions `json:"options"`
}

// Assets lists assets matching the query.
func (c *Client) Assets(ctx context.Context, q AssetQuery) (models.AssetPage, error) {
	where := map[string]any{}
	if q.OwnerAddress != "" {
		where["ownerAddress"] = q.OwnerAddress
	}
	if q.TokenContract != "" {
		where["tokenContract"] = q.TokenContract
	}
	if len(q.IPIDs) > 0 {
		where["ipIds"] = q.IPIDs
	}

	body := queryBody{Options: queryOptions{
		Where:          where,
		Pagination:     queryPagination{Limit: q.Limit, Offset: q.Offset},
		OrderBy:        "blockNumber",
		OrderDirection: "desc",
	}}

	payload, err := c.call(ctx, "list assets", http.MethodPost, "/assets", body)
	if err != nil || payload == nil {
		return models.EmptyAssetPage(q.Limit, q.Offset), err
	}
	return NormalizeAssetPage(payload, q.Limit, q.Offset), nil
}

// Asset fetches a single asset. It returns nil, nil when the API has no such asset.
func (c *Client) Asset(ctx context.Context, ipID string) (*models.IPAsset, error) {
	page, err := c.Assets(ctx, AssetQuery{IPIDs: []string{ipID}, Limit: 1})
	if err != nil {
		return nil, err
	}
	for i := range page.Data {
		if strings.EqualFold(page.Data[i].IPID, ipID) {
			return &page.Data[i], nil
		}
	}
	return nil, nil
}

// Children lists direct derivatives of an asset.
func (c *Client) Children(ctx context.Context, ipID string, limit, offset int) (models.AssetPage, error) {
	body := queryBody{Options: queryOptions{
		Where:      map[string]any{"parentIpId": ipID},
		Pagination: queryPagination{Limit: limit, Offset: offset},
	}}

	payload, err := c.call(ctx, "list children", http.MethodPost, "/assets/edges", body)
	if err != nil || payload == nil {
		return models.EmptyAssetPage(limit, offset), err
	}
	return NormalizeChildren(payload, limit, offset), nil
}

// Transactions lists protocol events, for example royalty payments.
func (c *Client) Transactions(ctx context.Context, q TxQuery) (models.EventPage, error) {
	where := map[string]any{}
	if len(q.EventTypes) > 0 {
		where["eventTypes"] = q.EventTypes
	}
	if len(q.IPIDs) > 0 {
		where["ipIds"] = q.IPIDs
	}

	body := queryBody{Options: queryOptions{
		Where:          where,
		Pagination:     queryPagination{Limit: q.Limit, Offset: q.Offset},
		OrderBy:        "blockNumber",
		OrderDirection: "desc",
	}}

	payload, err := c.call(ctx, "list transactions", http.MethodPost, "/transactions", body)
	if err != nil || payload == nil {
		return models.EventPage{Events: []models.RoyaltyEvent{}}, err
	}
	return NormalizeEvents(payload), nil
}

// LicenseTerms lists the license terms attached to an asset, skipping entries without an ID.
func (c *Client) LicenseTerms(ctx context.Context, ipID string) ([]models.LicenseTerms, error) {
	payload, err := c.call(ctx, "list license terms", http.MethodGet, "/licenses/ip/terms/"+url.PathEscape(ipID), nil)
	if err != nil || payload == nil {
		return []models.LicenseTerms{}, err
	}
	return NormalizeLicenseTerms(payload), nil
}

// Disputes lists up to 100 disputes raised against an asset, newest block first.
func (c *Client) Disputes(ctx context.Context, ipID string) ([]models.Dispute, error) {
	body := queryBody{Options: queryOptions{
		Where:          map[string]any{"targetIpId": ipID},
		Pagination:     queryPagination{Limit: 100},
		OrderBy:        "blockNumber",
		OrderDirection: "desc",
	}}

	payload, err := c.call(ctx, "list disputes", http.MethodPost, "/disputes", body)
	if err != nil || payload == nil {
		return []models.Dispute{}, err
	}
	return NormalizeDisputes(payload), nil
}

// call performs one API request. It returns the body on success, nil when the API answered
// that nothing matches, a *DegradedError on outages and a *ClientError on other 4xx answers.
func (c *Client) call(ctx context.Context, op, method, path string, body any) ([]byte, error) {
	var encoded []byte
	if body != nil {
		var err error
		if encoded, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", op, err)
		}
	}

	start := time.Now()
	defer func() {
		metrics.UpstreamLatency.WithLabelValues(storyService).Observe(time.Since(start).Seconds())
	}()

	var (
		payload []byte
		status  int
	)
	attempt := func() error {
		req, err := c.newRequest(ctx, method, path, encoded)
		if err != nil {
			return backoff.Permanent(err)
		}

		var data []byte
		data, status, err = doRequest(c.httpClient, req, c.timeout)
		if err != nil {
			return backoff.Permanent(err)
		}
		if status == http.StatusTooManyRequests {
			metrics.UpstreamRequests.WithLabelValues(storyService, "retried").Inc()
			return errRateLimited
		}
		payload = data
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(max(c.maxRetries, 0))), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		degraded := &DegradedError{Service: storyService, Op: op, Err: err}
		if errors.Is(err, errRateLimited) {
			degraded.Status = http.StatusTooManyRequests
		}
		c.logDegraded(degraded, path)
		return nil, degraded
	}

	switch {
	case status >= 200 && status < 300:
		metrics.UpstreamRequests.WithLabelValues(storyService, "ok").Inc()
		return payload, nil
	case status == http.StatusBadRequest || status == http.StatusNotFound || status == http.StatusUnprocessableEntity:
		metrics.UpstreamRequests.WithLabelValues(storyService, "empty").Inc()
		logrus.WithFields(logrus.Fields{
			"service": storyService,
			"op":      op,
			"status":  status,
		}).Debug("Upstream reported no matching data")
		return nil, nil
	case status >= 500:
		degraded := &DegradedError{Service: storyService, Op: op, Status: status}
		c.logDegraded(degraded, path)
		return nil, degraded
	default:
		metrics.UpstreamRequests.WithLabelValues(storyService, "client_error").Inc()
		return nil, &ClientError{Service: storyService, Status: status, Message: upstreamMessage(payload)}
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.chain != "" {
		req.Header.Set("X-Chain", c.chain)
	}
	if c.authMode == config.AuthModeBearer {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	} else {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	return req, nil
}

func (c *Client) logDegraded(err *DegradedError, path string) {
	metrics.UpstreamRequests.WithLabelValues(err.Service, "degraded").Inc()
	logrus.WithError(err).WithFields(logrus.Fields{
		"service": err.Service,
		"op":      err.Op,
		"path":    path,
		"status":  err.Status,
	}).Warn("Upstream call degraded")
}

// doRequest executes req under its own timeout and returns the (size capped) body.
func doRequest(httpClient *http.Client, req *http.Request, timeout time.Duration) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(req.Context(), timeout)
	defer cancel()

	resp, err := httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return data, resp.StatusCode, nil
}
