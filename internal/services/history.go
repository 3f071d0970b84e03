package services

import (
	"context"
	"log"

	"github.com/google/uuid"

	"converse-backend/internal/models"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
)

// HistoryService serves paginated history reads, cache first. Cache failures
// degrade to a store read and never fail the request.
type HistoryService struct {
	store chatStore
	cache historyCache
}

func NewHistoryService(store chatStore, cache historyCache) *HistoryService {
	return &HistoryService{store: store, cache: cache}
}

func (s *HistoryService) GetHistory(ctx context.Context, userID uuid.UUID, page, limit int) (*models.HistoryPage, error) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultPageSize
	}

	cached, err := s.cache.GetPage(ctx, userID, page, limit)
	if err != nil {
		log.Printf("WARNING: history cache read failed for user %s, reading store: %v", userID, err)
	} else if cached != nil {
		return cached, nil
	}

	turns, err := s.store.ListByUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if turns == nil {
		turns = []*models.ChatTurn{}
	}

	result := &models.HistoryPage{
		Chats:       turns,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
	}

	if err := s.cache.SetPage(ctx, userID, page, limit, result); err != nil {
		log.Printf("WARNING: history cache write failed for user %s: %v", userID, err)
	}

	return result, nil
}
