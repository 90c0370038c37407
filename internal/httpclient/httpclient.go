// Package httpclient builds the shared outbound HTTP client discovery and
// ingestion use to reach third-party platforms. Grounded on the teacher's
// single-shared-client idiom for fanning out to many remote hosts
// (cmd/pulse/main.go's per-service clients), adapted here to wire
// github.com/rs/dnscache: the scanner's discovery sources poll a
// long-tail of platform and CDN hosts the way the teacher polls a fleet of
// Proxmox nodes, so a caching resolver avoids a DNS round trip per request
// instead of per node.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/dnscache"
)

// New builds an *http.Client with a DNS-cached dialer and the given
// timeout. The resolver is refreshed on a fixed interval in the background
// for the lifetime of the process; callers share one client per logical
// remote service rather than building one per request.
func New(timeout time.Duration) *http.Client {
	resolver := &dnscache.Resolver{}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			resolver.Refresh(true)
		}
	}()

	dialer := &net.Dialer{Timeout: 10 * time.Second}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return dialer.DialContext(ctx, network, addr)
			}

			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return dialer.DialContext(ctx, network, addr)
			}

			var lastErr error
			for _, ip := range ips {
				conn, dialErr := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
				if dialErr == nil {
					return conn, nil
				}
				lastErr = dialErr
			}
			return nil, lastErr
		},
	}

	return &http.Client{Timeout: timeout, Transport: transport}
}
