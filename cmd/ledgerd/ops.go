package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/rxledger/inventory-ledger/internal/consistency"
	"github.com/rxledger/inventory-ledger/pkg/logging"
)

// opsDeps is what the ops router reports on
type opsDeps struct {
	serviceName  string
	logger       *logging.Logger
	mode         func() consistency.Mode
	probeErr     func() error
	catalogState func() gobreaker.State
	ready        func(ctx context.Context) error
	metrics      http.Handler
}

func newOpsRouter(deps opsDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		deps.logger.Panic(c.Request.Context(), recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR"})
	}))
	router.Use(requestLogger(deps.logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": deps.serviceName,
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := deps.ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not ready",
				"service": deps.serviceName,
				"error":   err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ready",
			"service": deps.serviceName,
		})
	})

	router.GET("/mode", func(c *gin.Context) {
		body := gin.H{
			"mode":         deps.mode().String(),
			"catalogState": deps.catalogState().String(),
		}
		if err := deps.probeErr(); err != nil {
			body["probeError"] = err.Error()
		}
		c.JSON(http.StatusOK, body)
	})

	if deps.metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.metrics))
	}

	return router
}

const requestIDHeader = "X-Request-ID"

var quietPaths = map[string]bool{"/health": true, "/ready": true, "/metrics": true}

func requestLogger(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(logging.ContextWithRequestID(c.Request.Context(), requestID))

		c.Next()
		// probes are polled constantly
		if c.Writer.Status() < http.StatusBadRequest && quietPaths[c.Request.URL.Path] {
			return
		}
		logger.HTTPRequest(c.Request.Context(), c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}
