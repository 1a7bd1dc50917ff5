package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/KaramelBytes/keiba-ai/internal/apperr"
	"github.com/KaramelBytes/keiba-ai/internal/metrics"
	"github.com/KaramelBytes/keiba-ai/internal/utils"
)

// Gateway turns a prompt plus a data excerpt into narrative text.
// Every error it returns is recoverable (apperr.KindLLM).
type Gateway interface {
	Generate(ctx context.Context, prompt, excerpt string) (string, error)
}

// Call outcomes recorded in metrics.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeRejected = "rejected"
	OutcomeDisabled = "disabled"
)

// GatewayConfig configures a RuntimeGateway.
type GatewayConfig struct {
	Model       string
	System      string
	MaxTokens   int
	Temperature float64
	// Timeout bounds one Generate call including rate-limit waits.
	Timeout time.Duration
	// RatePerMinute caps outbound calls; <= 0 disables the limiter.
	RatePerMinute int
	// FailureThreshold is the consecutive failure count that opens the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

// RuntimeGateway wraps a Runtime with a timeout, a rate limiter and a
// circuit breaker.
type RuntimeGateway struct {
	rt      Runtime
	cfg     GatewayConfig
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     logrus.FieldLogger
}

// NewGateway builds a RuntimeGateway around rt.
func NewGateway(rt Runtime, cfg GatewayConfig, log logrus.FieldLogger) *RuntimeGateway {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerMinute > 0 {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 1)
	}
	g := &RuntimeGateway{rt: rt, cfg: cfg, limiter: lim, log: log}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm-gateway",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"circuit":    name,
				"from_state": from.String(),
				"to_state":   to.String(),
			}).Warn("llm circuit breaker state changed")
		},
	})
	return g
}

// countsAsHealthy reports whether err says nothing about provider health.
// Caller mistakes (bad key, unknown model, bad request) do not trip the breaker.
func countsAsHealthy(err error) bool {
	if err == nil {
		return true
	}
	var (
		auth *AuthError
		nf   *ModelNotFoundError
		bad  *BadRequestError
	)
	return errors.Is(err, ErrMissingAPIKey) || errors.Is(err, context.Canceled) ||
		errors.As(err, &auth) || errors.As(err, &nf) || errors.As(err, &bad)
}

// State exposes the breaker state for health reporting.
func (g *RuntimeGateway) State() gobreaker.State { return g.breaker.State() }

// Generate implements Gateway.
func (g *RuntimeGateway) Generate(ctx context.Context, prompt, excerpt string) (string, error) {
	const op = "llm generate"
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	if err := g.limiter.Wait(ctx); err != nil {
		metrics.RecordLLMCall(OutcomeRejected, time.Since(start).Seconds())
		return "", apperr.New(apperr.KindLLM, op, fmt.Errorf("rate limit: %w", err))
	}

	req := GenerateRequest{
		Model:       g.cfg.Model,
		Messages:    g.messages(prompt, excerpt),
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	}
	estimate := utils.TokenBreakdown(map[string]string{"system": g.cfg.System, "prompt": prompt, "excerpt": excerpt})
	g.log.WithFields(logrus.Fields{"model": g.cfg.Model, "estimated_tokens": estimate}).Debug("llm call")
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.rt.Generate(ctx, req)
	})
	elapsed := time.Since(start).Seconds()
	if err != nil {
		outcome := OutcomeError
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			outcome = OutcomeRejected
		case errors.Is(err, context.DeadlineExceeded):
			outcome = OutcomeTimeout
		}
		metrics.RecordLLMCall(outcome, elapsed)
		g.log.WithError(err).WithFields(logrus.Fields{
			"model":   g.cfg.Model,
			"outcome": outcome,
			"elapsed": elapsed,
		}).Warn("llm call failed")
		return "", apperr.New(apperr.KindLLM, op, err)
	}

	resp := res.(*GenerateResponse)
	text := resp.Text()
	if text == "" {
		metrics.RecordLLMCall(OutcomeError, elapsed)
		return "", apperr.Errorf(apperr.KindLLM, op, "model %s returned an empty answer", g.cfg.Model)
	}
	metrics.RecordLLMCall(OutcomeOK, elapsed)
	fields := logrus.Fields{
		"model":             g.cfg.Model,
		"request_id":        resp.RequestID,
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
		"elapsed":           elapsed,
	}
	if cost, ok := EstimateCostUSD(g.cfg.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens); ok {
		fields["cost_usd"] = cost
	}
	g.log.WithFields(fields).Debug("llm call ok")
	return text, nil
}

func (g *RuntimeGateway) messages(prompt, excerpt string) []Message {
	var msgs []Message
	if s := strings.TrimSpace(g.cfg.System); s != "" {
		msgs = append(msgs, Message{Role: "system", Content: s})
	}
	user := strings.TrimSpace(prompt)
	if ex := strings.TrimSpace(excerpt); ex != "" {
		user += "\n\n## データ\n" + ex
	}
	return append(msgs, Message{Role: "user", Content: user})
}

// DisabledGateway always fails; used when no model backend is configured
// or the caller opted out of LLM calls.
type DisabledGateway struct {
	Reason string
}

// Generate implements Gateway.
func (d DisabledGateway) Generate(context.Context, string, string) (string, error) {
	metrics.RecordLLMCall(OutcomeDisabled, 0)
	reason := d.Reason
	if reason == "" {
		reason = ErrMissingAPIKey.Error()
	}
	return "", apperr.Errorf(apperr.KindLLM, "llm generate", "llm disabled: %s", reason)
}
