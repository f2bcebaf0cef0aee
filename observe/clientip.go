package observe

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the caller address for rate limiting and audit. It is
// the address resolved by ProxyTrust.Middleware when that ran, otherwise
// the host part of RemoteAddr. X-Forwarded-For is never read here: any
// caller can set it.
func ClientIP(r *http.Request) string {
	if ip := ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return peerHost(r.RemoteAddr)
}

// ProxyTrust resolves the caller address behind known reverse proxies.
// X-Forwarded-For is honoured only when the connecting peer is one of the
// trusted proxies, and only the hops appended by trusted proxies are
// skipped. A nil *ProxyTrust trusts nothing.
type ProxyTrust struct {
	prefixes []netip.Prefix
}

// NewProxyTrust parses trusted proxy addresses. Each entry is an IP or a
// CIDR prefix; blank entries are ignored.
func NewProxyTrust(trusted []string) (*ProxyTrust, error) {
	pt := &ProxyTrust{}
	for _, entry := range trusted {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("observe: trusted proxy %q: %w", entry, err)
			}
			pt.prefixes = append(pt.prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("observe: trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		pt.prefixes = append(pt.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return pt, nil
}

// Trusts reports whether ip belongs to a trusted proxy.
func (pt *ProxyTrust) Trusts(ip string) bool {
	if pt == nil || len(pt.prefixes) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range pt.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP resolves r's caller. The peer address wins unless the peer is
// trusted; then X-Forwarded-For is walked from the right and the first hop
// that is not a trusted proxy is the caller. A malformed hop stops the
// walk at the last address known to be good.
func (pt *ProxyTrust) ClientIP(r *http.Request) string {
	client := peerHost(r.RemoteAddr)
	if !pt.Trusts(client) {
		return client
	}

	hops := forwardedHops(r.Header.Values("X-Forwarded-For"))
	for i := len(hops) - 1; i >= 0; i-- {
		hop := hops[i]
		if _, err := netip.ParseAddr(hop); err != nil {
			return client
		}
		client = hop
		if !pt.Trusts(hop) {
			return client
		}
	}
	return client
}

// Middleware stores the resolved caller address in the request context so
// that ClientIP returns it downstream.
func (pt *ProxyTrust) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithClientIP(r.Context(), pt.ClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func forwardedHops(values []string) []string {
	var hops []string
	for _, v := range values {
		for hop := range strings.SplitSeq(v, ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
	}
	return hops
}

func peerHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
