// Package urlguard vets page URLs before the browser navigates to them.
// Targets arriving over the HTTP API or MCP come from remote callers, so by
// default they may not reach loopback, link-local or private networks.
package urlguard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrScheme is returned for anything but http and https.
	ErrScheme = errors.New("urlguard: only http and https URLs can be captured")
	// ErrPrivate is returned when the host is, or resolves to, a private or
	// loopback address.
	ErrPrivate = errors.New("urlguard: URL targets a private or loopback address")
)

// Resolver looks up host addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Guard checks URLs against a policy.
type Guard struct {
	// AllowPrivate admits private and loopback hosts (local development).
	AllowPrivate bool
	// Resolver resolves host names. Default: net.DefaultResolver.
	Resolver Resolver
}

// Check returns nil when rawURL may be captured.
func (g *Guard) Check(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("urlguard: invalid URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w: %q", ErrScheme, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return errors.New("urlguard: URL has no host")
	}
	if g.AllowPrivate {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if private(ip) {
			return fmt.Errorf("%w: %s", ErrPrivate, host)
		}
		return nil
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return fmt.Errorf("%w: %s", ErrPrivate, host)
	}

	r := g.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	addrs, err := r.LookupHost(ctx, host)
	if err != nil {
		// Unresolvable hosts fail at navigation anyway.
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && private(ip) {
			return fmt.Errorf("%w: %s resolves to %s", ErrPrivate, host, a)
		}
	}
	return nil
}

var privateNets = func() []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "100.64.0.0/10", "fc00::/7"} {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}()

func private(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, n := range privateNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
