// Package session implements the streaming chat session engine: one
// conversation, at most one in-flight exchange, bounded retries and
// progress metrics.
//
// All state changes go through the session mutex. Every public operation
// and every streamed event commits once and then notifies observers once,
// outside the lock and in commit order.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/streamchat/internal/adapter/llm"
	"github.com/xiaot623/gogo/streamchat/internal/domain"
	"github.com/xiaot623/gogo/streamchat/internal/messagestore"
	"github.com/xiaot623/gogo/streamchat/internal/metrics"
	"github.com/xiaot623/gogo/streamchat/internal/notify"
	"github.com/xiaot623/gogo/streamchat/internal/retry"
	"github.com/xiaot623/gogo/streamchat/internal/telemetry"
)

const (
	onlineMessage  = "Back online"
	offlineMessage = "You appear to be offline"
)

// Config holds the collaborators of a session.
type Config struct {
	Client    llm.Client
	Policy    retry.Policy
	Telemetry telemetry.Sink
	Logger    *zap.Logger

	Model           string
	VisibilityCap   int
	TrimKeep        int
	NotificationTTL time.Duration

	// Now and NewID are replaceable for tests.
	Now   func() time.Time
	NewID func() string
}

// Snapshot is an immutable view of the session handed to observers.
type Snapshot struct {
	Messages      []domain.Message     `json:"messages"`
	ArchivedCount int                  `json:"archived_count"`
	Status        domain.Status        `json:"status"`
	Model         string               `json:"model"`
	Stats         *domain.StreamStats  `json:"stats,omitempty"`
	Throughput    float64              `json:"throughput"`
	Notification  *domain.Notification `json:"notification,omitempty"`
	RetryArmed    bool                 `json:"retry_armed"`
}

// Observer receives a snapshot after each commit, in commit order. No
// session lock is held during delivery, so observers may call Snapshot,
// Messages and Model. Mutating methods called synchronously from an
// observer deadlock.
type Observer func(Snapshot)

// exchange is one send, including its retries.
type exchange struct {
	gen         uint64
	userID      string
	model       string
	assistantID string
	// merged is set once content from the current attempt reached the store.
	merged bool
	cancel context.CancelFunc
}

// Session is the engine for one conversation.
type Session struct {
	cfg      Config
	logger   *zap.Logger
	sink     telemetry.Sink
	notifier *notify.Notifier

	mu        sync.Mutex
	store     *messagestore.Store
	collector *metrics.Collector
	status    domain.Status
	model     string
	active    *exchange
	gen       uint64
	closed    bool
	observers map[int]Observer
	nextObs   int

	// Deliveries take turns by commit sequence. seq is guarded by mu; turn
	// by emitMu.
	seq      uint64
	turn     uint64
	emitMu   sync.Mutex
	emitCond *sync.Cond
	wg       sync.WaitGroup
}

// New creates an idle session with an empty conversation.
func New(cfg Config) *Session {
	if cfg.Client == nil {
		cfg.Client = llm.NewMockClient()
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = retry.DefaultPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Telemetry == nil {
		cfg.Telemetry = telemetry.Nop{}
	}
	if cfg.Model == "" {
		cfg.Model = domain.DefaultModelID
	}
	if cfg.VisibilityCap <= 0 {
		cfg.VisibilityCap = messagestore.DefaultVisibilityCap
	}
	if cfg.TrimKeep <= 0 {
		cfg.TrimKeep = messagestore.DefaultTrimKeep
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}

	s := &Session{
		cfg:       cfg,
		logger:    cfg.Logger,
		sink:      cfg.Telemetry,
		store:     messagestore.New().WithClock(cfg.Now),
		collector: metrics.NewCollector(cfg.Now),
		status:    domain.StatusIdle,
		model:     cfg.Model,
		observers: make(map[int]Observer),
	}
	s.emitCond = sync.NewCond(&s.emitMu)
	s.notifier = notify.New(cfg.NotificationTTL, s.emit)
	return s
}

// Subscribe registers obs and returns a function that removes it.
func (s *Session) Subscribe(obs Observer) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = obs
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Model returns the model used for the next exchange.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetModel selects the model for subsequent exchanges. The in-flight
// exchange keeps the model it started with.
func (s *Session) SetModel(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	s.mu.Lock()
	if s.model == id {
		s.mu.Unlock()
		return
	}
	s.model = id
	s.commit()
}

// SendMessage appends a user message and starts an exchange. It returns
// false without changing anything when text is blank or an exchange is
// already in flight.
func (s *Session) SendMessage(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	s.mu.Lock()
	if s.closed || s.status.Active() {
		s.mu.Unlock()
		return false
	}
	user := domain.Message{
		ID:      s.cfg.NewID(),
		Role:    domain.RoleUser,
		Content: text,
	}
	s.store.Append(user)
	s.startLocked(user.ID)
	s.commit()
	return true
}

// Regenerate requests a new reply to the user message preceding the most
// recent assistant message. The user message is not duplicated; the reply
// is appended at the end. Without an assistant message the last user
// message is used.
func (s *Session) Regenerate() bool {
	s.mu.Lock()
	if s.closed || s.status.Active() || !s.regenerateLocked() {
		s.mu.Unlock()
		return false
	}
	s.commit()
	return true
}

func (s *Session) regenerateLocked() bool {
	msgs := s.store.Snapshot()
	from := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleAssistant {
			from = i
			break
		}
	}
	userID, ok := precedingUser(msgs, from)
	if !ok {
		return false
	}
	s.startLocked(userID)
	return true
}

// RegenerateFrom is Regenerate for a specific assistant message.
func (s *Session) RegenerateFrom(assistantID string) bool {
	s.mu.Lock()
	if s.closed || s.status.Active() {
		s.mu.Unlock()
		return false
	}
	msgs := s.store.Snapshot()
	from := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ID == assistantID && msgs[i].Role == domain.RoleAssistant {
			from = i
			break
		}
	}
	userID, ok := precedingUser(msgs, from)
	if from < 0 || !ok {
		s.mu.Unlock()
		return false
	}
	s.startLocked(userID)
	s.commit()
	return true
}

// RetryLast runs the armed retry action, or regenerates the last exchange
// when nothing is armed. The check and the restart happen under one lock
// acquisition, so a concurrent send either wins outright or is rejected.
func (s *Session) RetryLast() bool {
	s.mu.Lock()
	if s.closed || s.status.Active() {
		s.mu.Unlock()
		return false
	}
	fn := s.notifier.TakeRetry()
	started := fn != nil && fn()
	if !started {
		started = s.regenerateLocked()
	}
	if !started && fn == nil {
		s.mu.Unlock()
		return false
	}
	s.commit()
	return started
}

// Stop cancels the in-flight exchange. The partial reply is kept without
// an error and the session returns to idle.
func (s *Session) Stop() bool {
	s.mu.Lock()
	if !s.stopLocked() {
		s.mu.Unlock()
		return false
	}
	s.status = domain.StatusIdle
	s.commit()
	return true
}

// Reset stops any exchange and starts an empty conversation.
func (s *Session) Reset() {
	s.mu.Lock()
	s.stopLocked()
	s.store.Reset()
	s.collector.Clear()
	s.notifier.Clear()
	s.status = domain.StatusIdle
	s.commit()
}

// Load stops any exchange and replaces the conversation with messages.
func (s *Session) Load(messages []domain.Message) {
	s.mu.Lock()
	s.stopLocked()
	s.store.Load(messages)
	s.collector.Clear()
	s.notifier.Clear()
	s.status = domain.StatusIdle
	s.commit()
}

// Trim replaces older history with a summary message, keeping the last keep
// messages (the configured default when keep <= 0). It is refused while an
// exchange is in flight.
func (s *Session) Trim(keep int) bool {
	if keep <= 0 {
		keep = s.cfg.TrimKeep
	}
	s.mu.Lock()
	if s.closed || s.status.Active() || !s.store.Trim(keep) {
		s.mu.Unlock()
		return false
	}
	s.collector.Clear()
	s.commit()
	return true
}

// Messages returns the full conversation, archived messages included.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshot()
}

// Dismiss clears the current notification. An armed retry stays available.
func (s *Session) Dismiss() {
	s.mu.Lock()
	s.notifier.Dismiss()
	s.commit()
}

// Notify shows an informational or warning notification.
func (s *Session) Notify(message string, level domain.NotificationLevel) {
	s.mu.Lock()
	s.notifier.Show(message, level)
	s.commit()
}

// SetOnline reports a connectivity change.
func (s *Session) SetOnline(online bool) {
	if online {
		s.Notify(onlineMessage, domain.LevelInfo)
		return
	}
	s.Notify(offlineMessage, domain.LevelWarning)
}

// Wait blocks until the in-flight exchange goroutine, if any, has returned.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close stops the session and waits for background work to finish.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.wg.Wait()
		return
	}
	s.closed = true
	s.stopLocked()
	s.status = domain.StatusIdle
	s.mu.Unlock()

	s.notifier.Close()
	s.wg.Wait()
}

func (s *Session) startLocked(userID string) {
	s.gen++
	ctx, cancel := context.WithCancel(context.Background())
	ex := &exchange{
		gen:    s.gen,
		userID: userID,
		model:  s.model,
		cancel: cancel,
	}
	s.active = ex
	s.status = domain.StatusSubmitted
	s.collector.Begin(ex.model)

	s.wg.Add(1)
	go s.run(ctx, ex)
}

// stopLocked cancels the active exchange and clears its streaming flag. It
// reports whether there was one.
func (s *Session) stopLocked() bool {
	ex := s.active
	if ex == nil {
		return false
	}
	s.active = nil
	s.gen++
	ex.cancel()
	if ex.assistantID != "" {
		s.store.SetStreaming(ex.assistantID, false)
		if msg, ok := s.store.Find(ex.assistantID); ok {
			s.collector.Finish(msg.TextContent())
		}
	}
	return true
}

func (s *Session) current(ex *exchange) bool {
	return s.active == ex && ex.gen == s.gen
}

func (s *Session) run(ctx context.Context, ex *exchange) {
	defer s.wg.Done()

	err := s.cfg.Policy.Do(ctx, func(ctx context.Context, attempt int) error {
		s.mu.Lock()
		if !s.current(ex) {
			s.mu.Unlock()
			return context.Canceled
		}
		ex.merged = false
		history := s.store.PrefixThrough(ex.userID)
		s.mu.Unlock()

		req := &domain.ChatRequest{Messages: domain.ToWire(history), Model: ex.model}
		return s.cfg.Client.StreamChat(ctx, req, func(event *domain.StreamEvent) error {
			return s.handleEvent(ex, event)
		})
	}, retry.Hooks{
		OnFailure: func(err error, class retry.Class, attempt int) {
			s.logger.Warn("exchange attempt failed",
				zap.String("model", ex.model),
				zap.Int("attempt", attempt),
				zap.Stringer("class", class),
				zap.Error(err))
			s.sink.Emit(domain.TelemetrySendError, map[string]any{
				"err":       err.Error(),
				"transient": class == retry.Transient,
				"attempt":   attempt,
			})
		},
		Retryable: func(error) bool {
			s.mu.Lock()
			defer s.mu.Unlock()
			return !ex.merged
		},
	})

	s.finish(ex, err)
}

func (s *Session) handleEvent(ex *exchange, event *domain.StreamEvent) error {
	s.mu.Lock()
	if !s.current(ex) {
		s.mu.Unlock()
		return context.Canceled
	}

	switch event.Type {
	case domain.StreamEventTextDelta:
		if event.Delta == "" {
			s.mu.Unlock()
			return nil
		}
		if ex.assistantID == "" {
			ex.assistantID = s.cfg.NewID()
			s.store.Append(domain.Message{
				ID:   ex.assistantID,
				Role: domain.RoleAssistant,
			})
		}
		s.store.SetStreaming(ex.assistantID, true)
		if !s.store.MergeStreamingDelta(ex.assistantID, event.Delta) {
			s.mu.Unlock()
			return nil
		}
		ex.merged = true
		s.status = domain.StatusStreaming
		if msg, ok := s.store.Last(); ok {
			s.collector.Observe(msg.TextContent())
		}

	case domain.StreamEventNotification:
		var n domain.Notification
		if err := json.Unmarshal(event.Data, &n); err != nil || n.Message == "" {
			s.mu.Unlock()
			return nil
		}
		if n.Level == "" {
			n.Level = domain.LevelInfo
		}
		s.notifier.Show(n.Message, n.Level)
		if ex.assistantID != "" {
			s.store.AppendPart(ex.assistantID, domain.Part{Type: domain.PartTypeNotification, Data: event.Data})
		}

	default:
		s.mu.Unlock()
		return nil
	}

	s.commit()
	return nil
}

func (s *Session) finish(ex *exchange, err error) {
	s.mu.Lock()
	if !s.current(ex) {
		s.mu.Unlock()
		return
	}
	s.active = nil
	ex.cancel()

	var content string
	if ex.assistantID != "" {
		s.store.SetStreaming(ex.assistantID, false)
		if msg, ok := s.store.Find(ex.assistantID); ok {
			content = msg.TextContent()
		}
	}
	s.collector.Finish(content)

	switch {
	case err == nil:
		s.status = domain.StatusDone
		s.notifier.Succeeded()
		stats := s.collector.Stats()
		fields := map[string]any{"model": ex.model, "tokens": stats.Tokens}
		if stats.DurationMs != nil {
			fields["durationMs"] = *stats.DurationMs
		}
		s.sink.Emit(domain.TelemetryStreamFinish, fields)

	case errors.Is(err, context.Canceled):
		s.status = domain.StatusIdle

	default:
		text := displayError(err)
		s.status = domain.StatusErrored
		if ex.assistantID != "" {
			s.store.SetError(ex.assistantID, text)
		}
		userID := ex.userID
		retryText := ""
		if msg, ok := s.store.Find(userID); ok {
			retryText = msg.TextContent()
		}
		s.notifier.Fail(text, func() bool { return s.resendLocked(userID, retryText) })
		s.logger.Error("exchange failed", zap.String("model", ex.model), zap.Error(err))
		s.sink.Emit(domain.TelemetryError, map[string]any{"error": err.Error()})
	}

	s.commit()
}

// resendLocked restarts the exchange for userID. A message that is no
// longer in the conversation is appended again with the same text. It runs
// as the armed retry action, with s.mu held by RetryLast.
func (s *Session) resendLocked(userID, text string) bool {
	if _, ok := s.store.Find(userID); !ok {
		if text == "" {
			return false
		}
		userID = s.cfg.NewID()
		s.store.Append(domain.Message{ID: userID, Role: domain.RoleUser, Content: text})
	}
	s.startLocked(userID)
	return true
}

// emit publishes the current state without a state change of its own.
func (s *Session) emit() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.commit()
}

// commit must be called with s.mu held. It releases s.mu and delivers one
// snapshot to every observer. Each commit draws a sequence number under
// s.mu and waits for its turn before delivering, so deliveries stay in
// commit order without holding any lock the session methods need.
func (s *Session) commit() {
	snap := s.snapshotLocked()
	observers := make([]Observer, 0, len(s.observers))
	for i := 0; i < s.nextObs; i++ {
		if obs, ok := s.observers[i]; ok {
			observers = append(observers, obs)
		}
	}
	seq := s.seq
	s.seq++
	s.mu.Unlock()

	s.emitMu.Lock()
	for s.turn != seq {
		s.emitCond.Wait()
	}
	s.emitMu.Unlock()

	for _, obs := range observers {
		obs(snap)
	}

	s.emitMu.Lock()
	s.turn++
	s.emitCond.Broadcast()
	s.emitMu.Unlock()
}

func (s *Session) snapshotLocked() Snapshot {
	window := s.store.VisibleWindow(s.cfg.VisibilityCap)
	stats := s.collector.Stats()
	return Snapshot{
		Messages:      window.Messages,
		ArchivedCount: window.ArchivedCount,
		Status:        s.status,
		Model:         s.model,
		Stats:         stats,
		Throughput:    metrics.Throughput(stats),
		Notification:  s.notifier.Current(),
		RetryArmed:    s.notifier.Armed(),
	}
}

func precedingUser(msgs []domain.Message, before int) (string, bool) {
	if before > len(msgs) {
		before = len(msgs)
	}
	for i := before - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleUser {
			return msgs[i].ID, true
		}
	}
	return "", false
}

func displayError(err error) string {
	var se *llm.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	var streamErr *llm.StreamError
	if errors.As(err, &streamErr) {
		return streamErr.Text
	}
	return err.Error()
}
