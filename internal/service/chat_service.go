package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/isntboxs/b3s-chat/internal/domain"
)

// ChatService owns the per-session turn controllers and fronts the history
// store for session management. Controllers are created lazily, one per
// session, with the transcript preloaded from history for persisted
// sessions. Ephemeral (unsaved) sessions work identically minus
// persistence.
type ChatService struct {
	defaultModel string
	history      HistoryStore // nil when history persistence is disabled
	opener       StreamOpener
	catalog      *ModelCatalog
	logger       *zap.Logger

	mu          sync.Mutex
	controllers map[string]*TurnController
}

// NewChatService creates a new chat service. history may be nil.
func NewChatService(history HistoryStore, opener StreamOpener, catalog *ModelCatalog, logger *zap.Logger) *ChatService {
	return &ChatService{
		defaultModel: catalog.Default().ID,
		history:      history,
		opener:       opener,
		catalog:      catalog,
		logger:       logger,
		controllers:  make(map[string]*TurnController),
	}
}

// HistoryEnabled reports whether a history backend is attached.
func (s *ChatService) HistoryEnabled() bool {
	return s.history != nil
}

// Models returns the selectable model catalog.
func (s *ChatService) Models() []domain.Model {
	return s.catalog.List()
}

// Controller returns the turn controller for a session, creating it on
// first use. For persisted sessions the session must exist and its
// transcript is loaded wholesale before first use.
func (s *ChatService) Controller(ctx context.Context, sessionID string) (*TurnController, error) {
	s.mu.Lock()
	if ctrl, ok := s.controllers[sessionID]; ok {
		s.mu.Unlock()
		return ctrl, nil
	}
	s.mu.Unlock()

	if s.history != nil {
		session, err := s.history.GetSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, domain.ErrNotFound
		}
	}

	ctrl := NewTurnController(sessionID, s.defaultModel, s.opener, s.history, s.logger)
	if err := ctrl.LoadHistory(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another request may have won the race; keep the first controller so
	// the one-turn-in-flight guard stays per session.
	if existing, ok := s.controllers[sessionID]; ok {
		return existing, nil
	}
	s.controllers[sessionID] = ctrl
	return ctrl, nil
}

// SubmitStream starts a turn on the session's controller.
func (s *ChatService) SubmitStream(ctx context.Context, sessionID string, req SubmitRequest) (<-chan domain.StreamEvent, error) {
	ctrl, err := s.Controller(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, ok := s.catalog.Get(req.Model); !ok {
		req.Model = ""
	}
	return ctrl.SubmitStream(ctx, req)
}

// RegenerateStream replays the last exchange on the session's controller.
func (s *ChatService) RegenerateStream(ctx context.Context, sessionID, model string) (<-chan domain.StreamEvent, error) {
	ctrl, err := s.Controller(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, ok := s.catalog.Get(model); !ok {
		model = ""
	}
	return ctrl.Regenerate(ctx, model)
}

// Cancel aborts the session's in-flight turn, if any.
func (s *ChatService) Cancel(sessionID string) {
	s.mu.Lock()
	ctrl, ok := s.controllers[sessionID]
	s.mu.Unlock()
	if ok {
		ctrl.Cancel()
	}
}

// CreateSession creates a persisted session for the user.
func (s *ChatService) CreateSession(ctx context.Context, userID string) (*domain.Session, error) {
	if s.history == nil {
		return nil, domain.ErrNotFound
	}
	return s.history.CreateSession(ctx, userID)
}

// ListSessions lists the user's sessions, pinned first, then most recently
// updated.
func (s *ChatService) ListSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.ListSessions(ctx, userID)
}

// ListMessages returns the persisted turns of a session in creation order.
func (s *ChatService) ListMessages(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	if s.history == nil {
		return nil, nil
	}
	session, err := s.history.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	return s.history.ListMessages(ctx, sessionID)
}

// UpdateTitle renames a session.
func (s *ChatService) UpdateTitle(ctx context.Context, sessionID, title string) error {
	if s.history == nil {
		return domain.ErrNotFound
	}
	return s.history.UpdateTitle(ctx, sessionID, title)
}

// TogglePin flips a session's pinned flag.
func (s *ChatService) TogglePin(ctx context.Context, sessionID string) error {
	if s.history == nil {
		return domain.ErrNotFound
	}
	return s.history.TogglePin(ctx, sessionID)
}

// DeleteSession removes a session and its messages, cancelling and dropping
// any live controller.
func (s *ChatService) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	if ctrl, ok := s.controllers[sessionID]; ok {
		ctrl.Cancel()
		delete(s.controllers, sessionID)
	}
	s.mu.Unlock()

	if s.history == nil {
		return domain.ErrNotFound
	}
	return s.history.DeleteSession(ctx, sessionID)
}

// Stats returns aggregate history counts.
func (s *ChatService) Stats(ctx context.Context) (*domain.Stats, error) {
	if s.history == nil {
		return &domain.Stats{}, nil
	}
	return s.history.Stats(ctx)
}
