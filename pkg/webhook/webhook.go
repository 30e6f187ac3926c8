package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Nativu5/netpulse/pkg/domain"
	"github.com/Nativu5/netpulse/pkg/telemetry"
)

// Payload is what gets delivered after a job finishes.
type Payload struct {
	ID     domain.JobID      `json:"id"`
	Host   string            `json:"host"`
	Status domain.JobStatus  `json:"status"`
	Result *domain.JobResult `json:"result,omitempty"`
}

// Caller delivers job results to user-supplied webhook endpoints.
// Delivery is best effort: failures are logged and counted, never
// retried, and never affect the job's own status.
type Caller struct {
	client         *http.Client
	defaultTimeout time.Duration
	logger         telemetry.Logger
	metrics        telemetry.Metrics
}

func NewCaller(defaultTimeout time.Duration, logger telemetry.Logger, metrics telemetry.Metrics) *Caller {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Caller{
		client:         &http.Client{},
		defaultTimeout: defaultTimeout,
		logger:         logger,
		metrics:        metrics,
	}
}

// Call posts the payload to the job's webhook, if it has one.
func (c *Caller) Call(ctx context.Context, spec *domain.WebhookSpec, payload Payload) error {
	if spec == nil {
		return nil
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	method := string(spec.Method)
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, spec.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.observe(ctx, payload, "error", err)
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("webhook returned status %d", resp.StatusCode)
		c.observe(ctx, payload, "rejected", err)
		return err
	}

	c.observe(ctx, payload, "delivered", nil)
	return nil
}

func (c *Caller) observe(ctx context.Context, payload Payload, outcome string, err error) {
	c.metrics.IncCounter("netpulse_webhook_deliveries_total", 1,
		telemetry.Label{Key: "outcome", Value: outcome})
	if err != nil {
		c.logger.Error(ctx, "webhook delivery failed", map[string]any{
			"job_id": payload.ID, "error": err.Error(),
		})
	}
}
