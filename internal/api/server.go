// Package api serves the agent status, health and metrics over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ducminhle1904/crypto-swing-bot/internal/agent"
	"github.com/ducminhle1904/crypto-swing-bot/internal/monitoring"
)

// StatusSource publishes the per-symbol state
type StatusSource interface {
	Statuses() []agent.SymbolStatus
	Status(symbol string) (agent.SymbolStatus, bool)
	Balance() float64
}

// HealthSource reports loop health
type HealthSource interface {
	Status() monitoring.HealthStatus
}

// Server is the status HTTP server
type Server struct {
	engine *gin.Engine
	server *http.Server
	status StatusSource
	health HealthSource
	logger *zap.Logger
}

// NewServer creates a server listening on addr
func NewServer(addr string, status StatusSource, health HealthSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggerMiddleware(logger))

	s := &Server{
		engine: engine,
		status: status,
		health: health,
		logger: logger,
		server: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.getHealth)
	s.engine.GET("/metrics", gin.WrapH(monitoring.Handler()))

	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/params", s.getAllParams)
		v1.GET("/params/:symbol", s.getParams)
		v1.GET("/status", s.getStatus)
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start blocks serving requests until Shutdown
func (s *Server) Start() error {
	s.logger.Info("status server listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting up to five seconds for requests
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) getHealth(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	status := s.health.Status()
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

func (s *Server) getAllParams(c *gin.Context) {
	statuses := s.status.Statuses()
	result := make([]gin.H, 0, len(statuses))
	for _, st := range statuses {
		result = append(result, paramsView(st))
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(result),
		"data":  result,
	})
}

func (s *Server) getParams(c *gin.Context) {
	symbol := c.Param("symbol")
	st, ok := s.status.Status(symbol)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "unknown symbol",
			"symbol": symbol,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": paramsView(st)})
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"balance": s.status.Balance(),
		"symbols": s.status.Statuses(),
	})
}

func paramsView(st agent.SymbolStatus) gin.H {
	return gin.H{
		"symbol":       st.Symbol,
		"params":       st.Params,
		"optimization": st.Optimization,
	}
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
