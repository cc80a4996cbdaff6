package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultHistoryLimit = 200
)

// MessageStore is the server-side source of truth for room history.
type MessageStore interface {
	// FetchMessages returns the room tail, newest first.
	FetchMessages(ctx context.Context, roomID uuid.UUID) ([]Message, error)
	PostMessage(ctx context.Context, roomID uuid.UUID, content string, upload *Upload) (*Message, error)
}

// Ticker is the scheduled-task handle the polling loop owns.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker { return timeTicker{t: time.NewTicker(d)} }

type State int

const (
	StateIdle State = iota
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type EngineOption func(*Engine)

func WithPollInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

func WithHistoryLimit(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.historyLimit = n
		}
	}
}

func WithLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

func WithTicker(newTicker func(time.Duration) Ticker) EngineOption {
	return func(e *Engine) { e.newTicker = newTicker }
}

// Engine keeps at most one room session polling at a time.
type Engine struct {
	store     MessageStore
	directory *Directory

	interval     time.Duration
	historyLimit int
	newTicker    func(time.Duration) Ticker
	log          zerolog.Logger

	mu     sync.Mutex
	active *RoomSession
}

func NewEngine(store MessageStore, directory *Directory, opts ...EngineOption) *Engine {
	e := &Engine{
		store:        store,
		directory:    directory,
		interval:     DefaultPollInterval,
		historyLimit: DefaultHistoryLimit,
		newTicker:    newTimeTicker,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With().Str("module", "chat.sync").Logger()
	return e
}

// Start opens a polling session for roomID, stopping whichever session was
// active before. The caller must be a member of the room; otherwise an
// AuthorizationError is returned and nothing is fetched. Cancelling ctx aborts
// the first fetch and Start returns ctx.Err().
func (e *Engine) Start(ctx context.Context, roomID uuid.UUID) (*RoomSession, error) {
	room, err := e.directory.Room(ctx, roomID)
	if err != nil {
		return nil, err
	}
	user := e.directory.session.User()
	if !e.directory.CanRead(user.ID, room) {
		return nil, &AuthorizationError{UserID: user.ID, RoomID: roomID, Action: "read"}
	}

	s := newRoomSession(e, room, user)

	e.mu.Lock()
	prev := e.active
	e.active = s
	e.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}

	if err := s.start(ctx); err != nil {
		e.mu.Lock()
		if e.active == s {
			e.active = nil
		}
		e.mu.Unlock()
		return nil, err
	}
	return s, nil
}

// Active returns the session currently polling, or nil.
func (e *Engine) Active() *RoomSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil && e.active.State() == StateStopped {
		return nil
	}
	return e.active
}

func (e *Engine) Stop() {
	e.mu.Lock()
	s := e.active
	e.active = nil
	e.mu.Unlock()
	if s != nil {
		s.Stop()
	}
}

// RoomSession owns the visible sequence of one room. All fetches run on the
// session goroutine, so results are applied in the order they were requested.
type RoomSession struct {
	store     MessageStore
	newTicker func(time.Duration) Ticker
	interval  time.Duration
	limit     int
	log       zerolog.Logger

	room Room
	user User

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	refresh chan struct{}
	updates chan struct{}

	mu            sync.Mutex
	state         State
	window        []Message
	pending       []*PendingEntry
	nextLocalID   int64
	lastFetchErr  error
	lastFetchedAt time.Time
}

func newRoomSession(e *Engine, room Room, user User) *RoomSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &RoomSession{
		store:     e.store,
		newTicker: e.newTicker,
		interval:  e.interval,
		limit:     e.historyLimit,
		log:       e.log.With().Str("room", room.ID.String()).Logger(),
		room:      room,
		user:      user,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		refresh:   make(chan struct{}, 1),
		updates:   make(chan struct{}, 1),
	}
}

// start runs the first fetch under ctx, so a caller that gives up cancels it,
// then hands the session over to the polling goroutine.
func (s *RoomSession) start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil
	}
	s.state = StatePolling
	s.mu.Unlock()

	s.log.Debug().Msg("session started")
	fctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	s.fetch(fctx)
	stop()
	cancel()
	if err := ctx.Err(); err != nil {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		s.cancel()
		close(s.done)
		return err
	}

	ticker := s.newTicker(s.interval)
	go s.run(ticker)
	return nil
}

func (s *RoomSession) run(ticker Ticker) {
	defer close(s.done)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C():
			s.fetch(s.ctx)
		case <-s.refresh:
			s.fetch(s.ctx)
		}
	}
}

func (s *RoomSession) fetch(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	msgs, err := s.store.FetchMessages(ctx, s.room.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		return
	}
	if err != nil {
		s.lastFetchErr = err
		if !errors.Is(err, context.Canceled) {
			s.log.Warn().Err(err).Msg("fetch failed, keeping previous messages")
		}
		return
	}
	s.lastFetchErr = nil
	s.lastFetchedAt = time.Now()
	s.window = normalizeFetch(msgs, s.limit)
	s.pending = prunePending(s.window, s.pending, s.limit)
	s.notifyLocked()
}

// Refresh asks the session goroutine for an out-of-schedule fetch.
func (s *RoomSession) Refresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

// Stop cancels the scheduled fetches and any fetch in flight. A result that
// arrives after Stop is discarded. Safe to call more than once.
func (s *RoomSession) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	wasPolling := s.state == StatePolling
	s.state = StateStopped
	s.mu.Unlock()

	s.cancel()
	if !wasPolling {
		close(s.done)
	}
	s.log.Debug().Msg("session stopped")
}

// Done is closed once the polling goroutine has exited.
func (s *RoomSession) Done() <-chan struct{} { return s.done }

// Updates receives a signal whenever the visible sequence changes.
func (s *RoomSession) Updates() <-chan struct{} { return s.updates }

func (s *RoomSession) Room() Room { return s.room }

func (s *RoomSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Visible returns the merged, ordered, deduplicated sequence.
func (s *RoomSession) Visible() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return mergeVisible(s.window, s.pending)
}

// Pending returns a copy of the pending entries in submission order.
func (s *RoomSession) Pending() []PendingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PendingEntry, len(s.pending))
	for i, p := range s.pending {
		out[i] = *p
	}
	return out
}

// LastFetchedAt is the time of the last successful fetch.
func (s *RoomSession) LastFetchedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFetchedAt
}

// LastFetchError is the error of the most recent fetch, nil if it succeeded.
func (s *RoomSession) LastFetchError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFetchErr
}

func (s *RoomSession) notifyLocked() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

func (s *RoomSession) addPending(content string, upload *Upload) (PendingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePolling {
		return PendingEntry{}, ErrSessionStopped
	}
	s.nextLocalID--
	p := &PendingEntry{
		Message: Message{
			ID:        s.nextLocalID,
			RoomID:    s.room.ID,
			Sender:    s.user,
			Content:   content,
			CreatedAt: time.Now(),
		},
		Status: StatusSubmitting,
	}
	if upload != nil {
		p.AttachmentName = upload.Name
		p.Message.AttachmentType = upload.ContentType
	}
	s.pending = append(s.pending, p)
	s.notifyLocked()
	return *p, nil
}

func (s *RoomSession) resolvePending(localID int64, msg *Message) (PendingEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.pending {
		if p.Message.ID != localID {
			continue
		}
		p.Status = StatusResolved
		p.ServerID = msg.ID
		out := *p
		for _, m := range s.window {
			if m.ID == msg.ID {
				s.pending = append(s.pending[:i], s.pending[i+1:]...)
				break
			}
		}
		s.notifyLocked()
		return out, true
	}
	return PendingEntry{}, false
}

func (s *RoomSession) failPending(localID int64, err error) (PendingEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pending {
		if p.Message.ID == localID {
			p.Status = StatusFailed
			p.Err = err
			s.notifyLocked()
			return *p, true
		}
	}
	return PendingEntry{}, false
}

// DismissFailed removes a failed entry from the visible sequence.
func (s *RoomSession) DismissFailed(localID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.pending {
		if p.Message.ID == localID && p.Status == StatusFailed {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			s.notifyLocked()
			return true
		}
	}
	return false
}
