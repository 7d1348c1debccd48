// Package ipfs resolves ipfs:// token URIs through an HTTP gateway.
package ipfs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vbonduro/auctionhouse/internal/domain"
)

type Gateway struct {
	base   string
	client *http.Client
}

// NewGateway builds a resolver against base, e.g. "https://ipfs.io".
func NewGateway(base string) *Gateway {
	return &Gateway{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Resolve fetches the JSON metadata document behind uri and rewrites its
// embedded ipfs:// image pointer to a gateway URL.
func (g *Gateway) Resolve(ctx context.Context, uri string) (*domain.Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.gatewayURL(uri), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata gateway returned status %d", resp.StatusCode)
	}

	var md domain.Metadata
	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}

	if md.Image != "" {
		md.Image = g.gatewayURL(md.Image)
	}
	return &md, nil
}

// gatewayURL maps an ipfs:// URI to its gateway path. Non-ipfs URIs pass
// through unchanged.
func (g *Gateway) gatewayURL(uri string) string {
	payload, ok := strings.CutPrefix(uri, "ipfs://")
	if !ok {
		return uri
	}
	return g.base + "/ipfs/" + payload
}
