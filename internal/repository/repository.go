package repository

import (
	"context"
	"embed"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/link-tracker/internal/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyCounted = errors.New("visit already counted")
)

//go:embed migrations
var migrationsFS embed.FS

const (
	linksTable    = "links"
	visitorsTable = "link_visitors"
)

var linkColumns = []string{"id", "original_url", "short_id", "type", "status", "clicks"}

// Repository is the link store together with the visit ledger.
type Repository interface {
	CreateLink(ctx context.Context, link *models.Link, replaceShortID string) error
	SetStatus(ctx context.Context, shortID string, status models.Status) error
	FindActive(ctx context.Context, shortID string) (*models.Link, error)
	HasVisit(ctx context.Context, linkID int64, visitorID string) (bool, error)
	// RecordVisit inserts the visit and increments the link counter in one
	// transaction and returns the committed counter value.
	RecordVisit(ctx context.Context, visit models.Visit) (int64, error)
	ListLinks(ctx context.Context) ([]models.Link, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open picks the backend from the DSN scheme.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (Repository, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		logger.Info("Using PostgreSQL repository")
		repo, err := NewPostgresRepository(ctx, dsn, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		logger.Info("Using SQLite repository", zap.String("driver", sqliteDriver(dsn)))
		repo, err := NewSQLiteRepository(ctx, dsn, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*models.Link, error) {
	var (
		link     models.Link
		linkType *string
		status   string
	)
	if err := row.Scan(&link.ID, &link.OriginalURL, &link.ShortID, &linkType, &status, &link.Clicks); err != nil {
		return nil, err
	}
	if linkType != nil {
		link.Type = models.LinkType(*linkType)
	}
	link.Status = models.Status(status)
	return &link, nil
}

// nullableType stores the default tenant as NULL.
func nullableType(linkType models.LinkType) any {
	if linkType == models.LinkTypeDefault {
		return nil
	}
	return string(linkType)
}
