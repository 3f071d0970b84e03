package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"converse-backend/internal/models"
	"converse-backend/internal/provider"
)

type chatStore interface {
	Insert(ctx context.Context, turn *models.ChatTurn) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.ChatTurn, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
}

type historyCache interface {
	GetPage(ctx context.Context, userID uuid.UUID, page, limit int) (*models.HistoryPage, error)
	SetPage(ctx context.Context, userID uuid.UUID, page, limit int, p *models.HistoryPage) error
	InvalidateUser(ctx context.Context, userID uuid.UUID) error
}

// Sink is the outbound channel back to the original caller. Implementations
// must tolerate exactly one terminal call (Fail or Done) and ignore any
// writes after it.
type Sink interface {
	Delta(content string) error
	Fail(message string) error
	Done() error
}

// ChatService runs the chat submission pipeline: assemble the conversation
// window, open the provider stream, relay fragments to the caller, persist
// the finished turn and invalidate the user's cached history.
type ChatService struct {
	store         chatStore
	cache         historyCache
	llm           provider.Provider
	redis         *redis.Client
	params        provider.Params
	historyWindow int
}

func NewChatService(store chatStore, cache historyCache, llm provider.Provider, redisClient *redis.Client, params provider.Params, historyWindow int) *ChatService {
	return &ChatService{
		store:         store,
		cache:         cache,
		llm:           llm,
		redis:         redisClient,
		params:        params,
		historyWindow: historyWindow,
	}
}

// Start assembles the prompt from recent history and opens the provider
// stream. Any error returned here happened before streaming began, so the
// handler can still answer with a JSON status.
func (s *ChatService) Start(ctx context.Context, userID uuid.UUID, message string) (*provider.Stream, error) {
	turns, err := s.store.ListByUser(ctx, userID, s.historyWindow, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation window: %w", err)
	}

	prompt := BuildPrompt(turns, message)
	return s.llm.Generate(ctx, prompt, s.params)
}

// Relay consumes the stream, forwarding each fragment to the sink as it
// arrives while accumulating the full response. On a clean end-of-stream the
// turn is persisted, the user's cached history pages are invalidated and the
// terminal sentinel is emitted. On an upstream error one in-band error event
// is emitted instead. A caller disconnect ends the relay with no
// persistence. At most one terminal sink call happens, and every path that
// can still reach the caller makes exactly one.
func (s *ChatService) Relay(ctx context.Context, st *provider.Stream, sink Sink, userID uuid.UUID, message string) {
	var full strings.Builder

	for {
		select {
		case <-ctx.Done():
			sink.Fail("client disconnected")
			return

		case frag, ok := <-st.Fragments():
			if !ok {
				if err := st.Err(); err != nil {
					sink.Fail(err.Error())
					return
				}
				if ctx.Err() != nil {
					// Disconnected between the last fragment and
					// end-of-stream: the turn is dropped.
					sink.Fail("client disconnected")
					return
				}
				s.complete(ctx, userID, message, full.String())
				sink.Done()
				return
			}

			full.WriteString(frag)
			if err := sink.Delta(frag); err != nil {
				// Write failed, the caller is gone. No persistence.
				return
			}
		}
	}
}

func (s *ChatService) complete(ctx context.Context, userID uuid.UUID, message, response string) {
	turn := &models.ChatTurn{
		UserID:   userID,
		Message:  message,
		Response: response,
	}

	if err := s.store.Insert(ctx, turn); err != nil {
		// The content was already streamed; the turn is lost.
		log.Printf("ERROR: chat turn for user %s lost, insert failed: %v", userID, err)
		return
	}

	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		log.Printf("WARNING: failed to invalidate history cache for user %s: %v", userID, err)
	}

	s.publishCompleted(ctx, userID, turn)
}

// publishCompleted lets the user's other connected sessions know a new turn
// exists, via the websocket hub's pub/sub channel.
func (s *ChatService) publishCompleted(ctx context.Context, userID uuid.UUID, turn *models.ChatTurn) {
	if s.redis == nil {
		return
	}

	preview := turn.Response
	if len(preview) > 120 {
		preview = preview[:120]
	}

	data, _ := json.Marshal(models.WSMessage{
		Type:    "chat_completed",
		Payload: models.ChatCompleted{ChatID: turn.ID.String(), Preview: preview},
	})
	s.redis.Publish(ctx, "user_updates:"+userID.String(), string(data))
}
