package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isntboxs/b3s-chat/internal/domain"
	"github.com/isntboxs/b3s-chat/internal/stream"
	"github.com/isntboxs/b3s-chat/internal/transcript"
)

// HistoryStore is the persistence collaborator for sessions and messages.
// *repository.HistoryRepository implements it; tests substitute fakes.
type HistoryStore interface {
	CreateSession(ctx context.Context, userID string) (*domain.Session, error)
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	ListSessions(ctx context.Context, userID string) ([]*domain.Session, error)
	ListMessages(ctx context.Context, sessionID string) ([]domain.Turn, error)
	SaveMessage(ctx context.Context, sessionID string, msg domain.NewMessage) (*domain.Turn, error)
	UpdateTitle(ctx context.Context, sessionID, title string) error
	TogglePin(ctx context.Context, sessionID string) error
	DeleteSession(ctx context.Context, sessionID string) error
	Stats(ctx context.Context) (*domain.Stats, error)
}

// StreamOpener opens the streaming chat request against the inference
// endpoint. *upstream.Client implements it.
type StreamOpener interface {
	OpenStream(ctx context.Context, req domain.ChatRequest) (io.ReadCloser, error)
}

// controllerState tracks where the controller is in the turn lifecycle.
// Terminal outcomes live on the turn itself; the controller returns to idle
// between turns.
type controllerState int

const (
	stateIdle controllerState = iota
	statePending
	stateStreaming
)

// SubmitRequest carries one user submission. Attachments are opaque
// references already expanded by the presentation layer; they only matter
// for submit validation, the wire request carries text messages.
type SubmitRequest struct {
	Text        string
	Model       string
	Attachments []string
}

// TurnController owns the lifecycle of one request/response turn for a
// single session: submit, stream, finalize, cancel, regenerate. Only one
// turn may be in flight at a time; a submit while busy is rejected.
type TurnController struct {
	sessionID    string
	defaultModel string
	transcript   *transcript.Store
	opener       StreamOpener
	history      HistoryStore // nil disables persistence
	logger       *zap.Logger

	mu        sync.Mutex
	state     controllerState
	cancelled bool
	cancel    context.CancelFunc
	titled    bool
}

// NewTurnController creates a controller for one session. history may be
// nil, in which case nothing is persisted.
func NewTurnController(sessionID, defaultModel string, opener StreamOpener, history HistoryStore, logger *zap.Logger) *TurnController {
	return &TurnController{
		sessionID:    sessionID,
		defaultModel: defaultModel,
		transcript:   transcript.NewStore(),
		opener:       opener,
		history:      history,
		logger:       logger,
	}
}

// Transcript exposes the in-memory turn list, read-only by convention for
// the presentation layer.
func (c *TurnController) Transcript() *transcript.Store {
	return c.transcript
}

// LoadHistory rebuilds the transcript wholesale from the history store.
func (c *TurnController) LoadHistory(ctx context.Context) error {
	if c.history == nil {
		return nil
	}
	turns, err := c.history.ListMessages(ctx, c.sessionID)
	if err != nil {
		return err
	}
	c.transcript.Load(turns)

	c.mu.Lock()
	c.titled = len(turns) > 0
	c.mu.Unlock()
	return nil
}

// Busy reports whether a turn is currently in flight.
func (c *TurnController) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != stateIdle
}

// SubmitStream starts a new turn. It appends the user turn to the
// transcript, opens the upstream request and streams events until the turn
// reaches a terminal state, at which point the channel is closed. Returns
// domain.ErrTurnInFlight unless idle and domain.ErrEmptySubmission for a
// blank submit with no attachments.
func (c *TurnController) SubmitStream(ctx context.Context, req SubmitRequest) (<-chan domain.StreamEvent, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" && len(req.Attachments) == 0 {
		return nil, domain.ErrEmptySubmission
	}

	userTurn := domain.Turn{
		ID:        uuid.New().String(),
		SessionID: c.sessionID,
		Role:      domain.RoleUser,
		Content:   text,
		Status:    domain.TurnComplete,
		CreatedAt: time.Now(),
	}

	streamCtx, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	return c.launch(streamCtx, userTurn, req.Model, true), nil
}

// Submit runs a full turn synchronously and returns the final assistant
// turn from the transcript.
func (c *TurnController) Submit(ctx context.Context, req SubmitRequest) (domain.Turn, error) {
	ch, err := c.SubmitStream(ctx, req)
	if err != nil {
		return domain.Turn{}, err
	}
	for range ch {
	}
	last, _ := c.transcript.Last()
	return last, nil
}

// Cancel aborts the in-flight request. Further frames are discarded even if
// already buffered; partial content stays visible but is never persisted.
// A no-op when idle.
func (c *TurnController) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateIdle {
		return
	}
	c.cancelled = true
	if c.cancel != nil {
		c.cancel()
	}
}

// Regenerate removes the most recent assistant turn and replays the
// preceding user turn without duplicating it. Valid only when idle with a
// completed exchange at the tail of the transcript.
func (c *TurnController) Regenerate(ctx context.Context, model string) (<-chan domain.StreamEvent, error) {
	streamCtx, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}

	// The turn slot is claimed, so nothing else mutates the transcript
	// between this check and the DropLast in launch.
	turns := c.transcript.Turns()
	n := len(turns)
	if n < 2 || turns[n-1].Role != domain.RoleAssistant || turns[n-2].Role != domain.RoleUser {
		c.setIdle()
		return nil, domain.ErrInvalidRegenerate
	}

	return c.launch(streamCtx, turns[n-2], model, false), nil
}

// begin claims the turn slot, transitioning idle to pending. The returned
// context is cancelled by Cancel and released again by setIdle.
func (c *TurnController) begin(ctx context.Context) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateIdle {
		return nil, domain.ErrTurnInFlight
	}
	c.state = statePending
	c.cancelled = false
	streamCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	return streamCtx, nil
}

// launch starts the streaming goroutine for a claimed turn slot.
// appendUser is false when replaying an existing user turn (regenerate),
// which must not be re-appended or re-persisted; that path drops the
// trailing assistant turn instead.
func (c *TurnController) launch(ctx context.Context, userTurn domain.Turn, model string, appendUser bool) <-chan domain.StreamEvent {
	if model == "" {
		model = c.defaultModel
	}

	if appendUser {
		c.transcript.AppendFinalized(userTurn)
	} else {
		c.transcript.DropLast()
	}

	req := domain.ChatRequest{Model: model, Messages: c.requestMessages()}

	ch := make(chan domain.StreamEvent, 16)
	go c.run(ctx, ch, req, userTurn, appendUser)
	return ch
}

// requestMessages maps the completed transcript prefix onto the upstream
// request body. Errored and cancelled turns are not replayed.
func (c *TurnController) requestMessages() []domain.ChatMessage {
	turns := c.transcript.Turns()
	messages := make([]domain.ChatMessage, 0, len(turns))
	for _, t := range turns {
		if t.Status != domain.TurnComplete {
			continue
		}
		messages = append(messages, domain.ChatMessage{Role: t.Role, Content: t.Content})
	}
	return messages
}

// run drives one turn from request open to terminal state. Frames are
// applied strictly in arrival order; the cancelled guard is checked before
// every application.
func (c *TurnController) run(ctx context.Context, ch chan<- domain.StreamEvent, req domain.ChatRequest, userTurn domain.Turn, persistUser bool) {
	defer close(ch)

	if persistUser {
		c.persistMessage(userTurn)
	}

	assistant := domain.Turn{
		ID:        uuid.New().String(),
		SessionID: c.sessionID,
		Role:      domain.RoleAssistant,
		Status:    domain.TurnPending,
		CreatedAt: time.Now(),
	}
	reducer := stream.NewReducer()

	body, err := c.opener.OpenStream(ctx, req)
	if err != nil {
		if c.isCancelled() {
			c.finishCancelled(assistant, reducer)
			return
		}
		c.finishErrored(ctx, assistant, reducer, err.Error(), ch)
		return
	}
	defer body.Close()

	decoder := stream.NewDecoder(body)
	for {
		frame, err := decoder.Next()
		if err != nil {
			if c.isCancelled() {
				c.finishCancelled(assistant, reducer)
				return
			}
			if err == io.EOF && reducer.Terminal() {
				break
			}
			// The transport gave up before a done frame; treated
			// identically to an explicit error frame.
			msg := "stream closed before completion"
			if err != io.EOF {
				msg = err.Error()
			}
			reducer.Apply(domain.Frame{Kind: domain.FrameError, Payload: msg})
			break
		}

		if c.isCancelled() {
			c.finishCancelled(assistant, reducer)
			return
		}

		// First byte of the response is the authoritative
		// pending -> streaming transition.
		c.setStreaming()

		reducer.Apply(frame)

		assistant.Content = reducer.Content()
		assistant.Thinking = reducer.Thinking()
		assistant.Status = domain.TurnStreaming
		c.transcript.PublishPartial(assistant)

		var delivered bool
		switch frame.Kind {
		case domain.FrameContentDelta:
			delivered = emit(ctx, ch, domain.StreamEvent{Content: frame.Payload})
		case domain.FrameThinkingDelta:
			delivered = emit(ctx, ch, domain.StreamEvent{Thinking: frame.Payload})
		default:
			delivered = true
		}
		if !delivered {
			c.finishCancelled(assistant, reducer)
			return
		}

		if reducer.Terminal() {
			break
		}
	}

	if reducer.Failed() {
		c.finishErrored(ctx, assistant, reducer, reducer.ErrMessage(), ch)
		return
	}

	assistant.Content = reducer.Content()
	assistant.Thinking = reducer.Thinking()
	assistant.Status = domain.TurnComplete
	c.transcript.AppendFinalized(assistant)
	emit(ctx, ch, domain.StreamEvent{Done: true})
	c.setIdle()

	if c.persistMessage(assistant) {
		c.maybeTitle(userTurn.Content)
	}
}

// emit delivers one event unless the stream context is already cancelled,
// which is the only way the consumer can be gone with the channel full.
// Reports whether the event was delivered.
func emit(ctx context.Context, ch chan<- domain.StreamEvent, event domain.StreamEvent) bool {
	select {
	case ch <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// finishErrored finalizes the turn in the errored state. With no content
// accumulated, a single synthetic assistant turn carrying the error text is
// appended so the failure is visible; otherwise the partial content is kept
// and marked errored. Errored turns are never persisted.
func (c *TurnController) finishErrored(ctx context.Context, assistant domain.Turn, reducer *stream.Reducer, msg string, ch chan<- domain.StreamEvent) {
	assistant.Content = reducer.Content()
	assistant.Thinking = reducer.Thinking()
	if assistant.Content == "" && assistant.Thinking == "" {
		assistant.Content = msg
	}
	assistant.Status = domain.TurnErrored
	c.transcript.AppendFinalized(assistant)
	emit(ctx, ch, domain.StreamEvent{Error: msg})
	c.setIdle()
}

// finishCancelled freezes whatever partial content was already rendered.
// Nothing is appended when the turn never produced output, and nothing is
// persisted either way.
func (c *TurnController) finishCancelled(assistant domain.Turn, reducer *stream.Reducer) {
	if content, thinking := reducer.Content(), reducer.Thinking(); content != "" || thinking != "" {
		assistant.Content = content
		assistant.Thinking = thinking
		assistant.Status = domain.TurnCancelled
		c.transcript.AppendFinalized(assistant)
	}
	c.setIdle()
}

// persistMessage mirrors a finalized turn to the history store. Failures
// are logged and swallowed: the live conversation takes priority over
// durability. Reports whether the save succeeded.
func (c *TurnController) persistMessage(turn domain.Turn) bool {
	if c.history == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := c.history.SaveMessage(ctx, c.sessionID, domain.NewMessage{
		Role:     turn.Role,
		Content:  turn.Content,
		Thinking: turn.Thinking,
	})
	if err != nil {
		c.logger.Warn("failed to save message",
			zap.String("session_id", c.sessionID),
			zap.String("role", string(turn.Role)),
			zap.Error(err),
		)
		return false
	}
	return true
}

// maybeTitle derives and persists the session title from the first user
// message, exactly once per session and only after a successful save.
func (c *TurnController) maybeTitle(firstUserMessage string) {
	c.mu.Lock()
	if c.titled || c.history == nil {
		c.mu.Unlock()
		return
	}
	c.titled = true
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	title := domain.SessionTitle(firstUserMessage)
	if err := c.history.UpdateTitle(ctx, c.sessionID, title); err != nil {
		c.logger.Warn("failed to update session title",
			zap.String("session_id", c.sessionID),
			zap.Error(err),
		)
	}
}

func (c *TurnController) isCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

func (c *TurnController) setStreaming() {
	c.mu.Lock()
	if c.state == statePending {
		c.state = stateStreaming
	}
	c.mu.Unlock()
}

func (c *TurnController) setIdle() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = stateIdle
	c.mu.Unlock()
}
