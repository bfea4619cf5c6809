// Package opshttp 提供最小化的运维 HTTP 接口:
// 健康检查、监控任务、持仓/账户透传与审计查询。
package opshttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"callout/internal/gateway/broker"
	"callout/internal/logger"
	"callout/internal/signal"
	"callout/internal/store/msglog"
	"callout/internal/store/tradelog"
	"callout/internal/trader"

	"github.com/gin-gonic/gin"
)

// Server 包装 gin 引擎与监听地址。
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig 描述运维 HTTP 服务的依赖。nil 的依赖对应接口不注册。
type ServerConfig struct {
	Addr     string
	Broker   broker.Broker
	Monitors *trader.MonitorRegistry
	Registry *signal.Registry
	TradeLog *tradelog.Store
	MsgLog   *msglog.Store
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = ":9983"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &handlers{cfg: cfg}
	h.register(router.Group("/api/live"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 阻塞运行直到 ctx 取消,随后优雅关闭。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("ops http listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}
