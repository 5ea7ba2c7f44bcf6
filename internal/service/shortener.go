package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/link-tracker/internal/models"
)

const shortIDBytes = 9 // 12 base64url characters

// Repository is the storage the service needs; see repository.Repository.
type Repository interface {
	CreateLink(ctx context.Context, link *models.Link, replaceShortID string) error
	SetStatus(ctx context.Context, shortID string, status models.Status) error
	FindActive(ctx context.Context, shortID string) (*models.Link, error)
	HasVisit(ctx context.Context, linkID int64, visitorID string) (bool, error)
	RecordVisit(ctx context.Context, visit models.Visit) (int64, error)
	ListLinks(ctx context.Context) ([]models.Link, error)
	Ping(ctx context.Context) error
}

type Notifier interface {
	Notify(ctx context.Context, linkType models.LinkType, shortID string, count int64) error
}

type ShortenerService struct {
	repo     Repository
	notifier Notifier
	tenants  models.Tenants
	baseURL  string
	logger   *zap.Logger
}

func NewShortenerService(repo Repository, notifier Notifier, tenants models.Tenants, baseURL string, logger *zap.Logger) *ShortenerService {
	return &ShortenerService{
		repo:     repo,
		notifier: notifier,
		tenants:  tenants,
		baseURL:  baseURL,
		logger:   logger,
	}
}

func (s *ShortenerService) GenerateShortID() (string, error) {
	b := make([]byte, shortIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerateID, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// authorize checks apiKey against the tenant named by linkType. Types without
// a configured tenant are not checked at all.
func (s *ShortenerService) authorize(linkType models.LinkType, apiKey string) error {
	tenant, ok := s.tenants.Lookup(linkType)
	if !ok {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(apiKey), []byte(tenant.Token)) != 1 {
		return ErrInvalidAPIKey
	}
	return nil
}

// Create stores a new link under a freshly generated short id. A supplied
// req.ShortID only names an existing link to delete first; it is never reused.
func (s *ShortenerService) Create(ctx context.Context, apiKey string, req models.CreateRequest) (models.CreateResponse, error) {
	if err := s.authorize(req.Type, apiKey); err != nil {
		s.logger.Warn("Rejected create request", zap.String("type", string(req.Type)))
		return models.CreateResponse{}, err
	}

	originalURL := strings.TrimSpace(req.OriginalURL)
	if originalURL == "" {
		return models.CreateResponse{}, ErrEmptyURL
	}

	shortID, err := s.GenerateShortID()
	if err != nil {
		return models.CreateResponse{}, err
	}

	link := &models.Link{
		OriginalURL: originalURL,
		ShortID:     shortID,
		Type:        req.Type,
	}
	if err := s.repo.CreateLink(ctx, link, req.ShortID); err != nil {
		return models.CreateResponse{}, fmt.Errorf("create link: %w", err)
	}

	s.logger.Info("Link created",
		zap.String("short_id", shortID),
		zap.String("type", string(req.Type)),
		zap.String("replaced", req.ShortID))

	fullURL, err := url.JoinPath(s.baseURL, shortID)
	if err != nil {
		return models.CreateResponse{}, fmt.Errorf("build short url: %w", err)
	}

	return models.CreateResponse{ShortID: shortID, URL: fullURL}, nil
}

func (s *ShortenerService) ChangeStatus(ctx context.Context, apiKey string, req models.ChangeStatusRequest) error {
	if err := s.authorize(req.Type, apiKey); err != nil {
		s.logger.Warn("Rejected change-status request", zap.String("type", string(req.Type)))
		return err
	}

	if req.ShortID == "" {
		return ErrEmptyShortID
	}
	if !req.Status.Valid() {
		return ErrInvalidStatus
	}

	if err := s.repo.SetStatus(ctx, req.ShortID, req.Status); err != nil {
		return fmt.Errorf("set status: %w", err)
	}

	s.logger.Info("Link status changed",
		zap.String("short_id", req.ShortID),
		zap.String("status", string(req.Status)))
	return nil
}

func (s *ShortenerService) Stats(ctx context.Context) ([]models.Link, error) {
	links, err := s.repo.ListLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

func (s *ShortenerService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
