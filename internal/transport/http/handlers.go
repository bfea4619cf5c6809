package opshttp

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type handlers struct {
	cfg ServerConfig
}

func (h *handlers) register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	if h.cfg.Monitors != nil {
		group.GET("/monitors", h.handleMonitors)
		group.DELETE("/monitors/:ticker/:kind", h.handleMonitorCancel)
	}
	if h.cfg.Broker != nil {
		group.GET("/positions", h.handlePositions)
		group.GET("/account", h.handleAccount)
	}
	if h.cfg.TradeLog != nil {
		group.GET("/executions", h.handleExecutions)
	}
	if h.cfg.MsgLog != nil {
		group.GET("/messages", h.handleMessages)
	}
	if h.cfg.Registry != nil {
		group.GET("/patterns", h.handlePatterns)
	}
}

func (h *handlers) handleMonitors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"monitors": h.cfg.Monitors.Active()})
}

func (h *handlers) handleMonitorCancel(c *gin.Context) {
	key := strings.ToUpper(c.Param("ticker")) + "/" + strings.ToLower(c.Param("kind"))
	if !h.cfg.Monitors.Cancel(key) {
		c.JSON(http.StatusNotFound, gin.H{"error": "monitor not found", "key": key})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": key})
}

func (h *handlers) handlePositions(c *gin.Context) {
	positions, err := h.cfg.Broker.ListPositions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (h *handlers) handleAccount(c *gin.Context) {
	acct, err := h.cfg.Broker.GetAccount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, acct)
}

func (h *handlers) handleExecutions(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	ticker := strings.TrimSpace(c.Query("ticker"))

	var (
		entries any
		err     error
	)
	if ticker != "" {
		entries, err = h.cfg.TradeLog.ByTicker(c.Request.Context(), ticker, limit)
	} else {
		entries, err = h.cfg.TradeLog.Recent(c.Request.Context(), limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": entries})
}

func (h *handlers) handleMessages(c *gin.Context) {
	limit := queryInt(c, "limit", 100)
	entries, err := h.cfg.MsgLog.Recent(c.Request.Context(), c.Query("channel"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": entries})
}

func (h *handlers) handlePatterns(c *gin.Context) {
	dump, err := h.cfg.Registry.DumpYAML()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.String(http.StatusOK, dump)
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
