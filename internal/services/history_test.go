package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"converse-backend/internal/models"
	"converse-backend/internal/provider"
)

func manyTurns(n int) []*models.ChatTurn {
	turns := make([]*models.ChatTurn, n)
	for i := range turns {
		turns[i] = &models.ChatTurn{ID: uuid.New(), Message: "m", Response: "r"}
	}
	return turns
}

func TestGetHistory_CacheMissPopulatesCache(t *testing.T) {
	store := &fakeStore{turns: manyTurns(45)}
	cache := newFakeCache()
	svc := NewHistoryService(store, cache)
	userID := uuid.New()

	page, err := svc.GetHistory(context.Background(), userID, 1, 20)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}

	if len(page.Chats) != 20 {
		t.Errorf("Expected 20 turns on page 1, got %d", len(page.Chats))
	}
	if page.TotalPages != 3 {
		t.Errorf("Expected ceil(45/20)=3 total pages, got %d", page.TotalPages)
	}
	if page.CurrentPage != 1 {
		t.Errorf("Expected current page 1, got %d", page.CurrentPage)
	}
	if cache.lastSetKey == "" {
		t.Error("Miss must populate the cache")
	}
}

func TestGetHistory_CacheHit(t *testing.T) {
	store := &fakeStore{turns: manyTurns(5)}
	cache := newFakeCache()
	svc := NewHistoryService(store, cache)
	userID := uuid.New()

	cachedPage := &models.HistoryPage{Chats: manyTurns(1), TotalPages: 9, CurrentPage: 2}
	cache.SetPage(context.Background(), userID, 2, 20, cachedPage)

	page, err := svc.GetHistory(context.Background(), userID, 2, 20)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if page != cachedPage {
		t.Error("Cache hit must return the cached page unchanged")
	}
}

func TestGetHistory_LastPartialPage(t *testing.T) {
	store := &fakeStore{turns: manyTurns(45)}
	svc := NewHistoryService(store, newFakeCache())

	page, err := svc.GetHistory(context.Background(), uuid.New(), 3, 20)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(page.Chats) != 5 {
		t.Errorf("Expected 5 turns on the last page, got %d", len(page.Chats))
	}
}

func TestGetHistory_DefaultsApplied(t *testing.T) {
	store := &fakeStore{turns: manyTurns(3)}
	svc := NewHistoryService(store, newFakeCache())

	page, err := svc.GetHistory(context.Background(), uuid.New(), 0, -1)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if page.CurrentPage != 1 {
		t.Errorf("Page should default to 1, got %d", page.CurrentPage)
	}
	if page.TotalPages != 1 {
		t.Errorf("Expected ceil(3/20)=1 total pages, got %d", page.TotalPages)
	}
}

func TestGetHistory_CacheErrorDegradesToStore(t *testing.T) {
	store := &fakeStore{turns: manyTurns(2)}
	cache := newFakeCache()
	cache.getErr = errors.New("redis down")
	cache.setErr = errors.New("redis down")
	svc := NewHistoryService(store, cache)

	page, err := svc.GetHistory(context.Background(), uuid.New(), 1, 20)
	if err != nil {
		t.Fatalf("A cache failure must never fail the request, got %v", err)
	}
	if len(page.Chats) != 2 {
		t.Errorf("Expected the store's 2 turns, got %d", len(page.Chats))
	}
}

func TestGetHistory_EmptyHistory(t *testing.T) {
	store := &fakeStore{}
	svc := NewHistoryService(store, newFakeCache())

	page, err := svc.GetHistory(context.Background(), uuid.New(), 1, 20)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if page.Chats == nil {
		t.Error("Chats must be an empty slice, not nil, so JSON renders []")
	}
	if page.TotalPages != 0 {
		t.Errorf("Expected 0 total pages for an empty history, got %d", page.TotalPages)
	}
}

func TestInvalidationReflectsNewTurn(t *testing.T) {
	store := &fakeStore{turns: manyTurns(1)}
	cache := newFakeCache()
	hist := NewHistoryService(store, cache)
	chat := NewChatService(store, cache, nil, nil, provider.Params{}, 5)
	userID := uuid.New()

	// Prime the cache
	before, err := hist.GetHistory(context.Background(), userID, 1, 20)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(before.Chats) != 1 {
		t.Fatalf("Expected 1 turn before submission, got %d", len(before.Chats))
	}

	// A completed submission appends to the store and invalidates the cache
	sink := &recordingSink{t: t}
	chat.Relay(context.Background(), streamOf(nil, "new answer"), sink, userID, "new question")
	store.turns = append([]*models.ChatTurn{store.inserted[0]}, store.turns...)

	after, err := hist.GetHistory(context.Background(), userID, 1, 20)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(after.Chats) != 2 {
		t.Errorf("History after submission must reflect the new turn, got %d turns", len(after.Chats))
	}
	if after.Chats[0].Response != "new answer" {
		t.Errorf("Newest turn must come first, got %q", after.Chats[0].Response)
	}
}
