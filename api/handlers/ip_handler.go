package handlers

import (
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IPHandler reports the address this host uses for outbound traffic
type IPHandler struct {
	lookup func() (string, error)
	logger *zap.Logger
}

// NewIPHandler creates a new IP handler. A nil lookup uses OutboundIP.
func NewIPHandler(lookup func() (string, error), log *zap.Logger) *IPHandler {
	if lookup == nil {
		lookup = OutboundIP
	}
	return &IPHandler{
		lookup: lookup,
		logger: log,
	}
}

// GetIP handles GET /api/v1/ip
func (h *IPHandler) GetIP(c *gin.Context) {
	ip, err := h.lookup()
	if err != nil {
		h.logger.Warn("Failed to determine outbound IP", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "outbound address unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ip": ip})
}

// OutboundIP returns the local address the kernel picks for a route to a public host.
// Dialing UDP sends no packets.
func OutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", fmt.Errorf("failed to open route probe: %w", err)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local address type %T", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}
