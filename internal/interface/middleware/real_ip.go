package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// RealIP sets the real client IP into Gin context (key: "real_ip").
// Forwarding headers are honoured only when the socket peer matches one of
// trustedProxies (IPs or CIDRs); any other peer is keyed by its own address.
// Priority behind a trusted proxy:
// 1) CF-Connecting-IP (Cloudflare)
// 2) X-Forwarded-For (right-most hop that is not a trusted proxy)
// 3) X-Real-IP
// 4) the peer address
func RealIP(trustedProxies ...string) gin.HandlerFunc {
	trusted := parseNets(trustedProxies)
	return func(c *gin.Context) {
		c.Set("real_ip", realIP(c, trusted))
		c.Next()
	}
}

func realIP(c *gin.Context, trusted []*net.IPNet) string {
	peer := remoteIP(c)
	if peer == "" {
		return c.ClientIP()
	}
	if !inNets(peer, trusted) {
		return peer
	}
	if ip := parseIP(c.GetHeader("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if ip := forwardedFor(c.GetHeader("X-Forwarded-For"), trusted); ip != "" {
		return ip
	}
	if ip := parseIP(c.GetHeader("X-Real-IP")); ip != "" {
		return ip
	}
	return peer
}

// forwardedFor walks the chain from the nearest hop and returns the first
// address not owned by a trusted proxy. Entries left of it are client-supplied.
func forwardedFor(xff string, trusted []*net.IPNet) string {
	if xff == "" {
		return ""
	}
	hops := strings.Split(xff, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		ip := parseIP(hops[i])
		if ip == "" {
			return ""
		}
		if i == 0 || !inNets(ip, trusted) {
			return ip
		}
	}
	return ""
}

func remoteIP(c *gin.Context) string {
	addr := strings.TrimSpace(c.Request.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return parseIP(addr)
}

// parseNets skips malformed entries; cmd/main validates the same list
// through gin's SetTrustedProxies at startup.
func parseNets(entries []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if !strings.Contains(e, "/") {
			ip := net.ParseIP(e)
			if ip == nil {
				continue
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		if _, n, err := net.ParseCIDR(e); err == nil {
			nets = append(nets, n)
		}
	}
	return nets
}

func inNets(ip string, nets []*net.IPNet) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

func parseIP(s string) string {
	if ip := net.ParseIP(strings.TrimSpace(s)); ip != nil {
		return ip.String()
	}
	return ""
}
