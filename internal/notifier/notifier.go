package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mmeshcher/link-tracker/internal/models"
)

var ErrNotify = errors.New("notify tenant")

var notifications = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "shortener_notifications_total",
		Help: "Click count notifications sent to tenant endpoints, by result.",
	},
	[]string{"tenant", "result"},
)

func init() {
	prometheus.MustRegister(notifications)
}

type Options struct {
	Timeout time.Duration
	// MaxFailures of zero disables the circuit breaker.
	MaxFailures  int
	ResetTimeout time.Duration
	Client       *http.Client
}

// Notifier pushes updated click counts to the tenant that owns a link.
type Notifier struct {
	client   *http.Client
	tenants  models.Tenants
	timeout  time.Duration
	breakers map[models.LinkType]*CircuitBreaker
	logger   *zap.Logger
}

func New(tenants models.Tenants, opts Options, logger *zap.Logger) *Notifier {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}

	breakers := make(map[models.LinkType]*CircuitBreaker, len(tenants))
	if opts.MaxFailures > 0 {
		for linkType := range tenants {
			breakers[linkType] = NewCircuitBreaker(opts.MaxFailures, opts.ResetTimeout)
		}
	}

	return &Notifier{
		client:   client,
		tenants:  tenants,
		timeout:  opts.Timeout,
		breakers: breakers,
		logger:   logger,
	}
}

// Notify sends count for shortID to the tenant of linkType. Links of an
// unconfigured tenant are not reported and Notify returns nil.
func (n *Notifier) Notify(ctx context.Context, linkType models.LinkType, shortID string, count int64) error {
	tenant, ok := n.tenants.Lookup(linkType)
	if !ok {
		notifications.WithLabelValues("unknown", "skipped").Inc()
		return nil
	}

	send := func() error {
		return n.send(ctx, tenant, shortID, count)
	}

	var err error
	if cb, ok := n.breakers[linkType]; ok {
		err = cb.Call(send)
	} else {
		err = send()
	}

	if err != nil {
		result := "failed"
		if errors.Is(err, ErrCircuitOpen) {
			result = "circuit_open"
		}
		notifications.WithLabelValues(tenantLabel(linkType), result).Inc()
		return fmt.Errorf("%w %s: %w", ErrNotify, tenantLabel(linkType), err)
	}

	notifications.WithLabelValues(tenantLabel(linkType), "ok").Inc()
	n.logger.Debug("Tenant notified",
		zap.String("tenant", tenantLabel(linkType)),
		zap.String("short_id", shortID),
		zap.Int64("count", count))
	return nil
}

func (n *Notifier) send(ctx context.Context, tenant models.Tenant, shortID string, count int64) error {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	body, err := json.Marshal(models.UpdateCountRequest{ShortID: shortID, Count: count})
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, tenant.UpdateCountURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", tenant.Token)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func tenantLabel(linkType models.LinkType) string {
	if linkType == models.LinkTypeDefault {
		return "default"
	}
	return string(linkType)
}
