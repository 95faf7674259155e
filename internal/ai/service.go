// Package ai adds summaries, impact visualizations and a FAQ assistant on
// top of community posts using an OpenAI-compatible text generation API.
// Calls are not retried; repeated failures open a circuit breaker so that a
// broken upstream fails fast.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/emilythestrangee/lokniti/backend/internal/logging"
	"github.com/emilythestrangee/lokniti/backend/internal/metrics"
	"github.com/emilythestrangee/lokniti/backend/internal/models"
)

var (
	// ErrDisabled is returned when no generator is configured.
	ErrDisabled = errors.New("AI features are not configured")
	// ErrUnavailable wraps every upstream failure.
	ErrUnavailable = errors.New("AI service is unavailable")
)

type BreakerSettings struct {
	FailureThreshold uint32
	Cooldown         time.Duration
}

type Service struct {
	gen     Generator
	breaker *gobreaker.CircuitBreaker[string]
	metrics *metrics.Metrics
}

// NewService wraps gen. A nil gen yields a service that always returns
// ErrDisabled.
func NewService(gen Generator, bs BreakerSettings, m *metrics.Metrics) *Service {
	if bs.FailureThreshold == 0 {
		bs.FailureThreshold = 5
	}
	settings := gobreaker.Settings{
		Name:    "ai",
		Timeout: bs.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// A caller hanging up says nothing about upstream health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}
	return &Service{gen: gen, breaker: gobreaker.NewCircuitBreaker[string](settings), metrics: m}
}

func (s *Service) Enabled() bool {
	return s != nil && s.gen != nil
}

func (s *Service) generate(ctx context.Context, op, prompt string) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	text, err := s.breaker.Execute(func() (string, error) {
		return s.gen.Generate(ctx, prompt)
	})
	if err != nil {
		s.metrics.AIRequests.WithLabelValues(op, "error").Inc()
		logging.Ctx(ctx).Error().Err(err).Str("operation", op).Msg("AI request failed")
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.metrics.AIRequests.WithLabelValues(op, "ok").Inc()
	return text, nil
}

// Summarize returns a short spoken-style summary of the post.
func (s *Service) Summarize(ctx context.Context, post *models.Post) (string, error) {
	return s.generate(ctx, "summarize", summaryPrompt(post))
}

// Visualize asks for a structured impact assessment of the post.
func (s *Service) Visualize(ctx context.Context, post *models.Post) (*Visualization, error) {
	text, err := s.generate(ctx, "visualize", visualizationPrompt(post))
	if err != nil {
		return nil, err
	}
	v, err := ParseVisualization(text)
	if err != nil {
		s.metrics.AIRequests.WithLabelValues("visualize", "unparseable").Inc()
		logging.Ctx(ctx).Warn().Err(err).Msg("AI visualization could not be parsed")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v, nil
}

// AnswerFAQ answers a question about how the platform works.
func (s *Service) AnswerFAQ(ctx context.Context, question string) (string, error) {
	return s.generate(ctx, "faq", faqPrompt(question))
}
