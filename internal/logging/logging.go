package logging

import (
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mchileshe/CourierIQ/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup initializes the global logger based on configuration
func Setup(cfg *config.LoggingConfig, env string) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	zerolog.TimeFieldFormat = time.RFC3339Nano

	var output io.Writer
	if cfg.Format == "json" || env == "production" {
		output = os.Stdout
	} else {
		// Pretty console output for development
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
			NoColor:    false,
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Str("service", "courieriq").
		Logger()
}

// NewLogger creates a new logger with additional context
func NewLogger(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

// RequestLogger is a Gin middleware for structured request logging
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		requestID, _ := c.Get("request_id")
		reqIDStr, _ := requestID.(string)

		event := log.Info()
		if c.Writer.Status() >= 500 {
			event = log.Error()
		} else if c.Writer.Status() >= 400 {
			event = log.Warn()
		}

		event.
			Str("request_id", reqIDStr).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", raw).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Int("body_size", c.Writer.Size()).
			Msg("HTTP request")
	}
}

// LogTagBatch logs the outcome of an auto-tag batch run
func LogTagBatch(onlyUntagged bool, processed, failed int, elapsed time.Duration) {
	event := log.Info()
	if failed > 0 {
		event = log.Warn()
	}
	event.
		Bool("only_untagged", onlyUntagged).
		Int("processed", processed).
		Int("failed", failed).
		Dur("elapsed", elapsed).
		Msg("Auto-tag batch completed")
}
