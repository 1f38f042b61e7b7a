// internal/handlers/client_ip.go
package handlers

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

const unknownClientIP = "0.0.0.0"

// CustomerIP resolves the buyer's address for the gateway: the first
// X-Forwarded-For entry, then CF-Connecting-IP, then the peer address.
func CustomerIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if ip := strings.TrimSpace(c.GetHeader("CF-Connecting-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
	if err != nil {
		host = strings.TrimSpace(c.Request.RemoteAddr)
	}
	if host == "" {
		return unknownClientIP
	}
	return host
}
