package httputil

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/solarpro/erp/pkg/contextkeys"
)

// ClientIPResolver derives the caller address of a request. X-Forwarded-For
// is only followed when the connection comes from a trusted proxy, and then
// the rightmost hop that is not itself a trusted proxy wins.
type ClientIPResolver struct {
	trusted []*net.IPNet
}

// NewClientIPResolver creates a resolver trusting the given proxies, each an
// IP address or a CIDR range. With no proxies only RemoteAddr is used.
func NewClientIPResolver(proxies []string) (*ClientIPResolver, error) {
	c := &ClientIPResolver{}
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.Contains(p, "/") {
			ip := net.ParseIP(p)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", p)
			}
			bits := 8 * net.IPv6len
			if ip.To4() != nil {
				ip, bits = ip.To4(), 8*net.IPv4len
			}
			c.trusted = append(c.trusted, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, cidr, err := net.ParseCIDR(p)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", p, err)
		}
		c.trusted = append(c.trusted, cidr)
	}
	return c, nil
}

// ClientIP returns the caller address for r
func (c *ClientIPResolver) ClientIP(r *http.Request) string {
	remote := RemoteHost(r)
	if !c.isTrusted(remote) {
		return remote
	}

	var hops []string
	for _, header := range r.Header.Values("X-Forwarded-For") {
		for _, hop := range strings.Split(header, ",") {
			hops = append(hops, strings.TrimSpace(hop))
		}
	}

	client := remote
	for i := len(hops) - 1; i >= 0; i-- {
		if net.ParseIP(hops[i]) == nil {
			break
		}
		client = hops[i]
		if !c.isTrusted(client) {
			break
		}
	}
	return client
}

// Middleware stores the resolved caller address in the request context
func (c *ClientIPResolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := contextkeys.WithClientIP(r.Context(), c.ClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c *ClientIPResolver) isTrusted(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, cidr := range c.trusted {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the address resolved by ClientIPResolver.Middleware, or
// the RemoteAddr host when the request did not pass through it
func ClientIP(r *http.Request) string {
	if ip := contextkeys.GetClientIP(r.Context()); ip != "" {
		return ip
	}
	return RemoteHost(r)
}

// RemoteHost returns the host part of r.RemoteAddr
func RemoteHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
