// internal/upstream/explorer.go
package upstream

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/ipscope/internal/config"
	"github.com/javajoker/ipscope/internal/metrics"
	"github.com/javajoker/ipscope/internal/models"
)

const explorerService = "storyscan"

// Explorer resolves the payment carried by a transaction through the Storyscan (Blockscout)
// API, rotating API keys per request.
type Explorer struct {
	baseURL    string
	keys       KeyRing
	timeout    time.Duration
	httpClient *http.Client
}

type ExplorerOption func(*Explorer)

func WithExplorerHTTPClient(httpClient *http.Client) ExplorerOption {
	return func(e *Explorer) {
		e.httpClient = httpClient
	}
}

func NewExplorer(cfg config.ExplorerConfig, keys KeyRing, opts ...ExplorerOption) *Explorer {
	e := &Explorer{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		keys:       keys,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
	}
	if e.timeout <= 0 {
		e.timeout = 10 * time.Second
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ResolveTransfer never fails: any error yields the unresolved sentinel for txHash.
func (e *Explorer) ResolveTransfer(ctx context.Context, txHash string) models.ResolvedTransfer {
	start := time.Now()
	defer func() {
		metrics.UpstreamLatency.WithLabelValues(explorerService).Observe(time.Since(start).Seconds())
	}()

	log := logrus.WithFields(logrus.Fields{
		"service": explorerService,
		"tx_hash": txHash,
	})

	endpoint := e.baseURL + "/api/v2/transactions/" + url.PathEscape(txHash)
	if key := e.keys.Next(); key != "" {
		endpoint += "?" + url.Values{"apikey": {key}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		log.WithError(err).Warn("Failed to build explorer request")
		metrics.UpstreamRequests.WithLabelValues(explorerService, "failed").Inc()
		return UnresolvedTransfer(txHash)
	}
	req.Header.Set("Accept", "application/json")

	body, status, err := doRequest(e.httpClient, req, e.timeout)
	if err != nil {
		log.WithError(err).Warn("Explorer lookup failed")
		metrics.UpstreamRequests.WithLabelValues(explorerService, "failed").Inc()
		return UnresolvedTransfer(txHash)
	}
	if status < 200 || status >= 300 {
		log.WithField("status", status).Warn("Explorer lookup returned non-success status")
		metrics.UpstreamRequests.WithLabelValues(explorerService, "failed").Inc()
		return UnresolvedTransfer(txHash)
	}

	transfer := NormalizeTransfer(txHash, body)
	if !transfer.Resolved {
		log.Debug("Explorer payload carried no readable payment")
		metrics.UpstreamRequests.WithLabelValues(explorerService, "unreadable").Inc()
		return transfer
	}
	metrics.UpstreamRequests.WithLabelValues(explorerService, "ok").Inc()
	return transfer
}
