package main

import (
	"github.com/xiaot623/gogo/streamchat/internal/adapter/llm"
	"github.com/xiaot623/gogo/streamchat/internal/config"
	"github.com/xiaot623/gogo/streamchat/internal/session"
	"github.com/xiaot623/gogo/streamchat/internal/telemetry"
)

// sessionFactory builds session engines that share one chat client and
// telemetry sink.
func sessionFactory(cfg *config.Config, sink telemetry.Sink) func() *session.Session {
	client := llm.NewClient(cfg.ChatURL, cfg.ChatTimeout, cfg.MockMode, logger)
	policy := cfg.RetryPolicy()
	return func() *session.Session {
		return session.New(session.Config{
			Client:          client,
			Policy:          policy,
			Telemetry:       sink,
			Logger:          logger,
			Model:           cfg.DefaultModel,
			VisibilityCap:   cfg.VisibilityCap,
			TrimKeep:        cfg.TrimKeep,
			NotificationTTL: cfg.NotificationTTL,
		})
	}
}

// flushTelemetry waits for queued telemetry posts.
func flushTelemetry(sink telemetry.Sink) {
	if s, ok := sink.(*telemetry.HTTPSink); ok {
		s.Flush()
	}
}
