package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/playgroundai/playground-api/internal/auth"
	"github.com/playgroundai/playground-api/internal/store"
)

// Engine is the external turn-completion and title-synthesis collaborator.
type Engine interface {
	Complete(ctx context.Context, history []*genai.Content, message string) (string, error)
	GenerateTitle(ctx context.Context, text string) (string, error)
}

// Notifier dispatches best-effort notifications; implementations never block
// and never surface failures.
type Notifier interface {
	Dispatch(token, userAgent string)
}

// ChatService orchestrates a conversation turn: identity resolution, history
// replay, the engine call, and the transactional append of the new turn.
type ChatService struct {
	registry    *auth.Registry
	history     *store.HistoryStore
	engine      Engine
	notifier    Notifier
	serviceName string
}

func NewChatService(registry *auth.Registry, history *store.HistoryStore, engine Engine, notifier Notifier, serviceName string) *ChatService {
	return &ChatService{
		registry:    registry,
		history:     history,
		engine:      engine,
		notifier:    notifier,
		serviceName: serviceName,
	}
}

func (s *ChatService) Register(username string) (string, error) {
	return s.registry.Register(username)
}

func (s *ChatService) ResolveUsername(token string) (string, error) {
	return s.registry.Resolve(token)
}

// Converse runs one conversation turn. With useHistory the prior transcript
// for (token, section) is replayed into the engine and the resulting turn is
// appended; without it the engine sees a fresh conversation and nothing is
// persisted. The engine call happens before any store lock is taken; only the
// final append is a critical section. Either the whole turn is persisted or,
// on engine failure, nothing is.
func (s *ChatService) Converse(ctx context.Context, token string, section int, message, userAgent string, useHistory bool) (string, error) {
	if _, err := s.registry.Resolve(token); err != nil {
		return "", err
	}

	var transcript store.Transcript
	if useHistory {
		var err error
		transcript, _, err = s.history.Load(token, section)
		if err != nil {
			return "", fmt.Errorf("failed to load transcript: %w", err)
		}
	}

	reply, err := s.engine.Complete(ctx, engineHistory(transcript.History), message)
	if err != nil {
		return "", fmt.Errorf("failed to get completion: %w", err)
	}

	if useHistory {
		titleIfNew := s.synthesizeTitle(ctx, transcript, message)
		turn := store.Turn{User: message, Bot: reply}
		if err := s.history.Append(token, section, turn, titleIfNew); err != nil {
			return "", fmt.Errorf("failed to append turn: %w", err)
		}
	}

	if s.notifier != nil {
		s.notifier.Dispatch(token, userAgent)
	}

	return reply, nil
}

// synthesizeTitle asks the engine for a title when the transcript has none
// yet. The title is derived from the first user message of the section. A
// synthesis failure is logged and the transcript is saved untitled; a later
// append retries.
func (s *ChatService) synthesizeTitle(ctx context.Context, transcript store.Transcript, message string) *string {
	if transcript.Title != nil {
		return nil
	}

	basis := message
	if len(transcript.History) > 0 {
		basis = transcript.History[0].User
	}

	title, err := s.engine.GenerateTitle(ctx, basis)
	if err != nil {
		log.Printf("Failed to generate title: %v", err)
		return nil
	}
	return &title
}

// History returns the transcript for (token, section) after resolving the
// token. found is false when the section has never been written.
func (s *ChatService) History(token string, section int) (store.Transcript, bool, error) {
	if _, err := s.registry.Resolve(token); err != nil {
		return store.Transcript{}, false, err
	}
	return s.history.Load(token, section)
}

// DeleteHistory removes the transcript entirely and reports whether one
// existed.
func (s *ChatService) DeleteHistory(token string, section int) (bool, error) {
	if _, err := s.registry.Resolve(token); err != nil {
		return false, err
	}
	return s.history.Delete(token, section)
}

// RenderConversation formats the transcript as alternating
// "username: text" / "service: text" lines in conversation order.
func (s *ChatService) RenderConversation(token string, section int) (conversation string, title *string, found bool, err error) {
	username, err := s.registry.Resolve(token)
	if err != nil {
		return "", nil, false, err
	}

	transcript, found, err := s.history.Load(token, section)
	if err != nil || !found {
		return "", nil, found, err
	}

	var sb strings.Builder
	for _, turn := range transcript.History {
		sb.WriteString(fmt.Sprintf("%s: %s\n", username, turn.User))
		sb.WriteString(fmt.Sprintf("%s: %s\n", s.serviceName, turn.Bot))
	}
	return sb.String(), transcript.Title, true, nil
}

// engineHistory flattens a transcript into the engine's replay format: one
// "user" record followed by one "model" record per turn, in transcript order.
func engineHistory(turns []store.Turn) []*genai.Content {
	history := make([]*genai.Content, 0, len(turns)*2)
	for _, turn := range turns {
		history = append(history,
			&genai.Content{Role: "user", Parts: []genai.Part{genai.Text(turn.User)}},
			&genai.Content{Role: "model", Parts: []genai.Part{genai.Text(turn.Bot)}},
		)
	}
	return history
}
