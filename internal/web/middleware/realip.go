package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/core"
)

// TrustedRealIP resolves the client address and stores it in the request
// context. X-Real-IP and X-Forwarded-For are honoured only when the
// connection comes from one of trustedCIDRs; otherwise the socket address
// is used as is.
func TrustedRealIP(trustedCIDRs []string) func(http.Handler) http.Handler {
	trusted := parseNets(trustedCIDRs)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remote := extractIP(r.RemoteAddr)
			client := r.RemoteAddr
			if remote != nil {
				client = remote.String()
			}

			if isTrusted(remote, trusted) {
				if ip := forwardedIP(r.Header); ip != nil {
					client = ip.String()
				}
			}

			r.RemoteAddr = client
			ctx := core.ContextWithClientIP(r.Context(), client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// forwardedIP prefers X-Real-IP, then the first hop of X-Forwarded-For.
func forwardedIP(h http.Header) net.IP {
	if rip := strings.TrimSpace(h.Get("X-Real-IP")); rip != "" {
		return net.ParseIP(rip)
	}
	xff := h.Get("X-Forwarded-For")
	if xff == "" {
		return nil
	}
	first, _, _ := strings.Cut(xff, ",")
	return net.ParseIP(strings.TrimSpace(first))
}

func parseNets(cidrs []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		if _, n, err := net.ParseCIDR(cidr); err == nil {
			nets = append(nets, n)
			continue
		}
		// a bare address means a single host
		ip := net.ParseIP(cidr)
		if ip == nil {
			slog.Warn("realip: invalid trusted proxy, skipping", "cidr", cidr)
			continue
		}
		bits := 128
		if ip.To4() != nil {
			ip, bits = ip.To4(), 32
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

func extractIP(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}

func isTrusted(ip net.IP, trusted []*net.IPNet) bool {
	if ip == nil {
		return false
	}
	for _, n := range trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
