package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mmeshcher/link-tracker/internal/models"
	"github.com/mmeshcher/link-tracker/internal/repository"
)

const (
	outcomeCounted  = "counted"
	outcomeRepeat   = "repeat"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

var redirects = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "shortener_redirects_total",
		Help: "Redirect requests by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(redirects)
}

// Redirect resolves shortID for visitor and returns the destination URL.
// The first visit of a visitor is recorded and the tenant is told the new
// count; any later visit only redirects.
func (s *ShortenerService) Redirect(ctx context.Context, shortID string, visitor models.Visitor) (string, error) {
	if visitor.ID == "" {
		redirects.WithLabelValues(outcomeNotFound).Inc()
		return "", ErrIdentityMissing
	}

	link, err := s.repo.FindActive(ctx, shortID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			redirects.WithLabelValues(outcomeNotFound).Inc()
			return "", ErrLinkNotFound
		}
		redirects.WithLabelValues(outcomeError).Inc()
		return "", fmt.Errorf("find link: %w", err)
	}

	visited, err := s.repo.HasVisit(ctx, link.ID, visitor.ID)
	if err != nil {
		redirects.WithLabelValues(outcomeError).Inc()
		return "", fmt.Errorf("check visit: %w", err)
	}
	if visited {
		redirects.WithLabelValues(outcomeRepeat).Inc()
		return link.OriginalURL, nil
	}

	_, err = s.repo.RecordVisit(ctx, models.Visit{
		LinkID:    link.ID,
		VisitorID: visitor.ID,
		IPAddress: visitor.IP,
	})
	switch {
	case errors.Is(err, repository.ErrAlreadyCounted):
		// A concurrent request of the same visitor won the insert.
		redirects.WithLabelValues(outcomeRepeat).Inc()
		return link.OriginalURL, nil
	case errors.Is(err, repository.ErrNotFound):
		redirects.WithLabelValues(outcomeNotFound).Inc()
		return "", ErrLinkNotFound
	case err != nil:
		redirects.WithLabelValues(outcomeError).Inc()
		return "", fmt.Errorf("record visit: %w", err)
	}

	redirects.WithLabelValues(outcomeCounted).Inc()

	// The count comes from the read before the transaction, not from the
	// committed counter.
	s.notify(ctx, link, link.Clicks+1)

	return link.OriginalURL, nil
}

func (s *ShortenerService) notify(ctx context.Context, link *models.Link, count int64) {
	if s.notifier == nil {
		return
	}

	// The redirect has already been counted; a client going away must not
	// abort the notification.
	err := s.notifier.Notify(context.WithoutCancel(ctx), link.Type, link.ShortID, count)
	if err != nil {
		s.logger.Warn("Failed to notify tenant",
			zap.String("short_id", link.ShortID),
			zap.String("type", string(link.Type)),
			zap.Int64("count", count),
			zap.Error(err))
	}
}
