package handler

import (
	"go.uber.org/zap"

	"github.com/mmeshcher/link-tracker/internal/service"
)

const apiKeyHeader = "apikey"

type Handler struct {
	service      *service.ShortenerService
	logger       *zap.Logger
	secureCookie bool
}

func NewHandler(service *service.ShortenerService, logger *zap.Logger, secureCookie bool) *Handler {
	return &Handler{
		service:      service,
		logger:       logger,
		secureCookie: secureCookie,
	}
}
