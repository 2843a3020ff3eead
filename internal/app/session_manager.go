package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/clock"

	"github.com/MrWong99/parley/internal/auth"
	"github.com/MrWong99/parley/internal/history"
	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/internal/session"
	"github.com/MrWong99/parley/internal/turn"
	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/audio/pcm"
	"github.com/MrWong99/parley/pkg/audio/playback"
	"github.com/MrWong99/parley/pkg/provider/s2s"
	"github.com/MrWong99/parley/pkg/provider/stt"
	"github.com/MrWong99/parley/pkg/provider/vad"
	"github.com/MrWong99/parley/pkg/provider/vad/energy"
)

// historySaveTimeout bounds the history write at the end of Stop.
const historySaveTimeout = 5 * time.Second

// State is the lifecycle state of the [SessionManager].
type State int

const (
	NotStarted State = iota
	Starting
	Active
	Stopping
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Starting:
		return "starting"
	case Active:
		return "active"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// EventKind identifies an [Event].
type EventKind int

const (
	// EventState reports a lifecycle transition. Event.State is the new state
	// and Event.Reason says why a session ended.
	EventState EventKind = iota

	// EventTranscript carries an assistant transcript delta or a final user
	// caption in Event.Speaker and Event.Text.
	EventTranscript

	// EventTick carries the clock display in Event.Clock once per second.
	EventTick

	// EventServiceError carries a service-reported error in Event.Text.
	EventServiceError
)

// Event is a notification for the presentation layer.
type Event struct {
	Kind    EventKind
	State   State
	Speaker session.Speaker
	Text    string
	Clock   string
	Reason  string
}

// StartOptions configures one session.
type StartOptions struct {
	// Mode is practice or test. Empty means practice.
	Mode session.Mode

	// UserID overrides the manager's default user.
	UserID string

	// Context is optional scenario text forwarded to the service.
	Context string
}

// Status is a snapshot of the manager.
type Status struct {
	State     State         `json:"-"`
	StateName string        `json:"state"`
	Mode      session.Mode  `json:"mode,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
	Clock     string        `json:"clock,omitempty"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Remaining time.Duration `json:"remaining_ns"`
	Playback  string        `json:"playback,omitempty"`
	Queued    int           `json:"queued"`
	Captions  bool          `json:"captions"`
}

// SessionManagerConfig holds all dependencies for a [SessionManager].
// Dialer, Credentials, Microphone and Speaker are required.
type SessionManagerConfig struct {
	Dialer      s2s.Dialer
	Credentials auth.Source
	Microphone  audio.Microphone
	Speaker     audio.Speaker

	// Captioner provides live captions of the user's speech. Nil means
	// [stt.Unsupported].
	Captioner stt.Captioner

	// Detector classifies each frame. Nil means an energy detector at
	// [vad.DefaultThreshold].
	Detector vad.Detector

	// History receives a record of every session that reached Active. Nil
	// disables history.
	History history.Store

	// Clock drives the session clock and display ticks. Nil uses the real
	// clock.
	Clock clock.WithTickerAndDelayedExecution

	Metrics *observe.Metrics
	Logger  *slog.Logger

	// OnEvent receives presentation events. It is called from pipeline
	// goroutines and must not block.
	OnEvent func(Event)

	CaptureRate  int
	PlaybackRate int
	FrameSize    int
	TestDuration time.Duration

	// UserID and Context are defaults for [StartOptions].
	UserID  string
	Context string

	// NewID generates client session identifiers. Nil uses uuid.NewString.
	NewID func() string
}

// SessionManager runs at most one practice or test session at a time.
//
// It owns the session's microphone, speaker, transport connection and
// playback scheduler, and tears all of them down on Stop, on test-mode
// expiry and when the connection drops. All exported methods are safe for
// concurrent use.
type SessionManager struct {
	cfg    SessionManagerConfig
	logger *slog.Logger
	met    *observe.Metrics

	// handle is read by the frame loop on every frame without taking mu.
	handle session.Handle

	// startMu serializes Start calls so two sessions never overlap.
	startMu sync.Mutex

	mu    sync.Mutex
	state State
	gen   uint64
	live  *liveSession
}

// liveSession holds the resources of one session.
type liveSession struct {
	gen      uint64
	mode     session.Mode
	userID   string
	clientID string
	started  time.Time

	startCancel context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc

	conn       s2s.Conn
	capture    audio.CaptureStream
	sched      *playback.Scheduler
	turn       *turn.Controller
	captions   stt.Stream
	clock      *session.Clock
	transcript *session.Transcript

	mu       sync.Mutex
	serverID string

	wg   sync.WaitGroup
	done chan struct{}
}

// NewSessionManager creates a SessionManager with the given dependencies.
// Zero-valued numeric settings take the pipeline defaults.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	if cfg.Captioner == nil {
		cfg.Captioner = stt.Unsupported{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.CaptureRate <= 0 {
		cfg.CaptureRate = audio.CaptureRate
	}
	if cfg.PlaybackRate <= 0 {
		cfg.PlaybackRate = audio.PlaybackRate
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = audio.FrameSize
	}
	if cfg.TestDuration <= 0 {
		cfg.TestDuration = session.DefaultTestDuration
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Detector == nil {
		cfg.Detector = newEnergyDetector(vad.DefaultThreshold, cfg.FrameSize, cfg.CaptureRate)
	}
	return &SessionManager{
		cfg:    cfg,
		logger: cfg.Logger,
		met:    cfg.Metrics,
	}
}

// SessionID returns the identifier outbound audio is sent under, or "" when
// no session is live.
func (sm *SessionManager) SessionID() string {
	return sm.handle.ID()
}

// State returns the current lifecycle state.
func (sm *SessionManager) State() State {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state
}

// Status returns a snapshot of the manager.
func (sm *SessionManager) Status() Status {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	st := Status{State: sm.state, StateName: sm.state.String(), SessionID: sm.handle.ID()}
	ls := sm.live
	if ls == nil {
		return st
	}
	st.Mode = ls.mode
	if ls.clock != nil {
		st.Clock = ls.clock.Display()
		st.Elapsed = ls.clock.Elapsed()
		st.Remaining = ls.clock.Remaining()
	}
	if ls.sched != nil {
		st.Playback = ls.sched.State().String()
		st.Queued = ls.sched.Pending()
	}
	st.Captions = ls.captions != nil
	return st
}

// Transcript returns the lines of the live session, or nil when none is
// live.
func (sm *SessionManager) Transcript() []session.Line {
	sm.mu.Lock()
	ls := sm.live
	sm.mu.Unlock()
	if ls == nil || ls.transcript == nil {
		return nil
	}
	return ls.transcript.Lines()
}

// ─── Start ───────────────────────────────────────────────────────────────────

// Start opens a session: it obtains a credential, dials the service and sends
// session-start, opens the microphone and the speaker, wires the frame and
// event loops, and starts the session clock.
//
// A live session is stopped first. A failing step releases everything
// opened before it. Stop during Start makes Start release its resources and
// return [ErrStartAborted].
func (sm *SessionManager) Start(ctx context.Context, opts StartOptions) (err error) {
	sm.startMu.Lock()
	defer sm.startMu.Unlock()

	if sm.State() != NotStarted {
		sm.logger.Info("session: stopping previous session before start")
		sm.stop("superseded")
	}

	if opts.Mode == "" {
		opts.Mode = session.ModePractice
	}
	if opts.UserID == "" {
		opts.UserID = sm.cfg.UserID
	}
	if opts.Context == "" {
		opts.Context = sm.cfg.Context
	}

	begin := sm.cfg.Clock.Now()
	ctx, span := observe.StartSpan(ctx, observe.SpanSessionStart,
		trace.WithAttributes(observe.AttrSessionMode.String(opts.Mode.String())))
	defer func() {
		sm.met.RecordSessionStart(context.Background(), startStatus(err), sm.cfg.Clock.Since(begin).Seconds())
		observe.EndSpan(span, err)
	}()
	logger := observe.Logger(ctx, sm.logger)

	startCtx, startCancel := context.WithCancel(ctx)
	defer startCancel()

	ls := &liveSession{
		mode:        opts.Mode,
		userID:      opts.UserID,
		startCancel: startCancel,
		done:        make(chan struct{}),
	}

	sm.mu.Lock()
	sm.gen++
	ls.gen = sm.gen
	sm.live = ls
	sm.setStateLocked(Starting)
	sm.mu.Unlock()
	sm.emit(Event{Kind: EventState, State: Starting})

	var p partial
	fail := func(err error) error {
		p.release(sm.logger)
		sm.mu.Lock()
		aborted := sm.gen != ls.gen
		if !aborted {
			sm.live = nil
			sm.setStateLocked(NotStarted)
		}
		sm.mu.Unlock()
		close(ls.done)
		if aborted {
			logger.Info("session: start aborted by stop")
			return ErrStartAborted
		}
		sm.emit(Event{Kind: EventState, State: NotStarted, Reason: "start failed"})
		logger.Warn("session: start failed", "err", err)
		return err
	}

	// 1. Credential.
	cred, err := sm.cfg.Credentials.Credential(startCtx)
	if !sm.starting(ls.gen) {
		return fail(ErrStartAborted)
	}
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrAuth, err))
	}

	// 2. Transport and session-start.
	conn, err := sm.cfg.Dialer.Dial(startCtx, cred)
	if err == nil {
		p.conn = conn
	}
	if !sm.starting(ls.gen) {
		return fail(ErrStartAborted)
	}
	if err != nil {
		return fail(asConnectionError("dial", err))
	}

	ls.clientID = sm.cfg.NewID()
	err = conn.StartSession(startCtx, s2s.StartParams{
		UserID:    opts.UserID,
		SessionID: ls.clientID,
		Mode:      opts.Mode.String(),
		Context:   opts.Context,
	})
	if !sm.starting(ls.gen) {
		return fail(ErrStartAborted)
	}
	if err != nil {
		return fail(asConnectionError("start session", err))
	}

	// 3. Microphone.
	capture, err := sm.cfg.Microphone.Open(startCtx, sm.cfg.CaptureRate)
	if err == nil {
		p.capture = capture
	}
	if !sm.starting(ls.gen) {
		return fail(ErrStartAborted)
	}
	if err != nil {
		return fail(asDeviceError("open microphone", err))
	}

	// 4. Speaker and scheduler.
	sink, err := sm.cfg.Speaker.Open(startCtx, sm.cfg.PlaybackRate)
	if err == nil {
		p.sched = sm.newScheduler(sink)
	}
	if !sm.starting(ls.gen) {
		return fail(ErrStartAborted)
	}
	if err != nil {
		return fail(asDeviceError("open speaker", err))
	}

	// Captions are optional and never block the session.
	if stt.Supported(sm.cfg.Captioner) {
		stream, err := sm.cfg.Captioner.StartStream(startCtx, stt.StreamConfig{
			SampleRate: sm.cfg.CaptureRate,
			Channels:   1,
		})
		if err != nil {
			logger.Warn("session: live captions unavailable", "err", err)
		} else {
			p.captions = stream
		}
	}

	// 5-7. Commit: wire loops, reveal the id, start the clock.
	sm.mu.Lock()
	if sm.gen != ls.gen || sm.state != Starting {
		sm.mu.Unlock()
		return fail(ErrStartAborted)
	}
	ls.ctx, ls.cancel = context.WithCancel(context.Background())
	ls.conn = p.conn
	ls.capture = p.capture
	ls.sched = p.sched
	ls.captions = p.captions
	ls.turn = turn.New(ls.sched, sm.logger)
	ls.clock = session.NewClock(sm.cfg.Clock, ls.mode, sm.cfg.TestDuration)
	ls.transcript = session.NewTranscript(sm.cfg.Clock.Now)
	ls.started = sm.cfg.Clock.Now()

	sm.handle.Reset(ls.clientID)

	ls.wg.Add(2)
	go sm.frameLoop(ls)
	go sm.eventLoop(ls)
	if ls.captions != nil {
		ls.wg.Add(1)
		go sm.captionLoop(ls)
	}
	ls.wg.Add(1)
	go sm.tickLoop(ls)

	gen := ls.gen
	ls.clock.Start(func() { sm.stopGen(gen, "time limit reached") })
	sm.setStateLocked(Active)
	sm.mu.Unlock()

	span.SetAttributes(observe.AttrSessionID.String(ls.clientID))
	sm.met.ActiveSessions.Add(context.Background(), 1)
	sm.emit(Event{Kind: EventState, State: Active})
	logger.Info("session started",
		"session_id", ls.clientID,
		"mode", ls.mode,
		"user_id", ls.userID,
		"captions", ls.captions != nil,
	)
	return nil
}

// starting reports whether gen is still the session being started.
func (sm *SessionManager) starting(gen uint64) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.gen == gen && sm.state == Starting
}

func (sm *SessionManager) newScheduler(sink audio.Sink) *playback.Scheduler {
	logger := sm.logger.With("component", "playback")
	return playback.New(sink,
		playback.WithLogger(logger),
		playback.WithOnScheduleError(func(error) {
			sm.met.ScheduleErrors.Add(context.Background(), 1)
		}),
		playback.WithOnStateChange(func(from, to playback.State) {
			logger.Debug("playback state", "from", from, "to", to)
		}),
	)
}

// newEnergyDetector returns the default frame classifier. An out-of-range
// threshold falls back to [vad.DefaultThreshold].
func newEnergyDetector(threshold float64, frameSize, rate int) *energy.Detector {
	d, err := energy.New(vad.Config{Threshold: threshold, FrameSize: frameSize, SampleRate: rate})
	if err != nil {
		d, _ = energy.New(vad.Config{Threshold: vad.DefaultThreshold, FrameSize: frameSize, SampleRate: rate})
	}
	return d
}

// partial tracks what a failing Start must release.
type partial struct {
	conn     s2s.Conn
	capture  audio.CaptureStream
	sched    *playback.Scheduler
	captions stt.Stream
}

func (p *partial) release(logger *slog.Logger) {
	if p.captions != nil {
		if err := p.captions.Close(); err != nil {
			logger.Warn("session: rollback: close captions", "err", err)
		}
	}
	if p.sched != nil {
		if err := p.sched.Close(); err != nil {
			logger.Warn("session: rollback: close speaker", "err", err)
		}
	}
	if p.capture != nil {
		if err := p.capture.Close(); err != nil {
			logger.Warn("session: rollback: release microphone", "err", err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			logger.Warn("session: rollback: disconnect", "err", err)
		}
	}
}

func asConnectionError(step string, err error) error {
	if errors.Is(err, s2s.ErrConnection) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", s2s.ErrConnection, step, err)
}

func asDeviceError(step string, err error) error {
	if errors.Is(err, audio.ErrDevice) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", audio.ErrDevice, step, err)
}

// ─── Stop ────────────────────────────────────────────────────────────────────

// Stop ends the live session. It is idempotent and safe from any state.
//
// The session identifier is cleared before anything else, so no frame
// captured after Stop begins is sent. A Start in progress is aborted. Stop
// returns once every resource is released.
func (sm *SessionManager) Stop() {
	sm.stop("stopped")
}

// stopGen stops the session only if gen is still live. Used by asynchronous
// triggers (expiry, disconnect) that may fire after a newer session started.
func (sm *SessionManager) stopGen(gen uint64, reason string) {
	sm.mu.Lock()
	current := sm.live != nil && sm.live.gen == gen && sm.state == Active
	sm.mu.Unlock()
	if !current {
		return
	}
	sm.stop(reason)
}

func (sm *SessionManager) stop(reason string) {
	sm.mu.Lock()
	prev := sm.handle.Invalidate()
	ls := sm.live

	switch sm.state {
	case NotStarted:
		sm.mu.Unlock()
		return

	case Stopping:
		sm.mu.Unlock()
		if ls != nil {
			<-ls.done
		}
		return

	case Starting:
		sm.gen++
		sm.live = nil
		sm.setStateLocked(NotStarted)
		sm.mu.Unlock()
		ls.startCancel()
		sm.logger.Info("session: stop during start")
		sm.emit(Event{Kind: EventState, State: NotStarted, Reason: reason})
		// Start releases what it opened once its pending step returns.
		<-ls.done
		return
	}

	sm.gen++
	sm.setStateLocked(Stopping)
	sm.mu.Unlock()
	sm.emit(Event{Kind: EventState, State: Stopping, Reason: reason})

	_, span := observe.StartSpan(context.Background(), observe.SpanSessionStop,
		trace.WithAttributes(observe.AttrSessionID.String(prev), observe.AttrStopReason.String(reason)))
	sm.teardown(ls, prev, reason)
	span.End()

	sm.mu.Lock()
	if sm.live == ls {
		sm.live = nil
	}
	sm.setStateLocked(NotStarted)
	sm.mu.Unlock()
	close(ls.done)

	sm.met.ActiveSessions.Add(context.Background(), -1)
	sm.emit(Event{Kind: EventState, State: NotStarted, Reason: reason})
}

// teardown releases every resource of ls. Each step is independent: a
// failure is logged and the next step still runs.
func (sm *SessionManager) teardown(ls *liveSession, sessionID, reason string) {
	logger := sm.logger.With("session_id", sessionID)

	ls.cancel()

	ls.sched.Reset()
	if err := ls.sched.Close(); err != nil {
		logger.Warn("session: close speaker", "err", err)
	}

	if err := ls.capture.Close(); err != nil {
		logger.Warn("session: release microphone", "err", err)
	}

	if ls.captions != nil {
		if err := ls.captions.Close(); err != nil {
			logger.Warn("session: close captions", "err", err)
		}
	}

	if err := ls.conn.Close(); err != nil {
		logger.Warn("session: disconnect", "err", err)
	}

	ls.wg.Wait()
	ls.clock.Stop()

	logger.Info("session stopped",
		"reason", reason,
		"mode", ls.mode,
		"elapsed", ls.clock.Elapsed(),
	)

	sm.saveHistory(ls, sessionID)
}

func (sm *SessionManager) saveHistory(ls *liveSession, sessionID string) {
	if sm.cfg.History == nil {
		return
	}
	if sessionID == "" {
		sessionID = ls.sessionID()
	}
	rec := history.Record{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		UserID:     ls.userID,
		Mode:       ls.mode,
		StartedAt:  ls.started,
		EndedAt:    sm.cfg.Clock.Now(),
		Transcript: ls.transcript.Lines(),
	}
	if rec.UserID == "" {
		rec.UserID = "anonymous"
	}

	ctx, cancel := context.WithTimeout(context.Background(), historySaveTimeout)
	defer cancel()
	if err := sm.cfg.History.Save(ctx, rec); err != nil {
		sm.logger.Warn("session: save history", "session_id", sessionID, "err", err)
	}
}

func (sm *SessionManager) setStateLocked(s State) {
	if sm.state != s {
		sm.logger.Debug("session state", "from", sm.state, "to", s)
	}
	sm.state = s
}

func (sm *SessionManager) emit(e Event) {
	if sm.cfg.OnEvent != nil {
		sm.cfg.OnEvent(e)
	}
}

// sessionID returns the service-assigned id, falling back to the client id.
func (ls *liveSession) sessionID() string {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.serverID != "" {
		return ls.serverID
	}
	return ls.clientID
}

// ─── Loops ───────────────────────────────────────────────────────────────────

// frameLoop frames captured audio, sends each frame under the current session
// id and feeds it to the turn-taking policy.
func (sm *SessionManager) frameLoop(ls *liveSession) {
	defer ls.wg.Done()

	ctx := ls.ctx
	frames := audio.Frames(ctx, ls.capture.Samples(), sm.cfg.FrameSize, sm.cfg.CaptureRate)
	for f := range frames {
		sm.met.FramesCaptured.Add(ctx, 1)

		// Read the cell on every frame: Stop clears it before teardown.
		if id := sm.handle.ID(); id != "" {
			sent := ls.conn.SendAudioChunk(id, pcm.Encode(f.Samples))
			sm.met.RecordSend(ctx, sent)
		} else {
			sm.met.RecordSend(ctx, false)
			sm.logger.Debug("session: send suppressed, no live session", "seq", f.Seq)
		}

		if ls.captions != nil {
			if err := ls.captions.SendAudio(pcm.Bytes(f.Samples)); err != nil {
				sm.logger.Debug("session: caption audio dropped", "err", err)
			}
		}

		switch ls.turn.Evaluate(sm.cfg.Detector.Detect(f.Samples)) {
		case turn.DecisionSuspend:
			sm.met.BargeIns.Add(ctx, 1)
		case turn.DecisionResume:
			sm.met.Resumes.Add(ctx, 1)
		}
	}
}

// eventLoop consumes inbound service events.
func (sm *SessionManager) eventLoop(ls *liveSession) {
	defer ls.wg.Done()

	ctx := ls.ctx
	events := ls.conn.Events()
	for {
		var ev s2s.Event
		var ok bool
		select {
		case <-ctx.Done():
			return
		case ev, ok = <-events:
		}
		if !ok {
			go sm.stopGen(ls.gen, "connection closed")
			return
		}

		switch e := ev.(type) {
		case s2s.SessionReady:
			if e.SessionID == "" {
				continue
			}
			if sm.handle.Set(e.SessionID) {
				ls.mu.Lock()
				ls.serverID = e.SessionID
				ls.mu.Unlock()
				sm.logger.Info("session: ready", "session_id", e.SessionID, "client_id", ls.clientID)
			}

		case s2s.AudioChunk:
			sm.met.ChunksReceived.Add(ctx, 1)
			buf, ok := pcm.DecodeOrSkip(e.Audio, sm.cfg.PlaybackRate, sm.logger)
			if !ok {
				sm.met.DecodeErrors.Add(ctx, 1)
				continue
			}
			ls.sched.Enqueue(buf)

		case s2s.TranscriptDelta:
			ls.transcript.AppendAssistant(e.Text)
			sm.emit(Event{Kind: EventTranscript, Speaker: session.SpeakerAssistant, Text: e.Text})

		case s2s.ServiceError:
			sm.logger.Warn("session: service error", "message", e.Message)
			sm.emit(Event{Kind: EventServiceError, Text: e.Message})

		case s2s.Disconnected:
			sm.logger.Warn("session: connection lost", "err", e.Err)
			go sm.stopGen(ls.gen, "connection lost")
			return
		}
	}
}

// captionLoop appends final captions of the user's speech to the transcript.
func (sm *SessionManager) captionLoop(ls *liveSession) {
	defer ls.wg.Done()

	captions := ls.captions.Captions()
	for {
		select {
		case <-ls.ctx.Done():
			return
		case c, ok := <-captions:
			if !ok {
				return
			}
			if !c.IsFinal {
				continue
			}
			ls.transcript.AppendUser(c.Text)
			sm.emit(Event{Kind: EventTranscript, Speaker: session.SpeakerUser, Text: c.Text})
		}
	}
}

// tickLoop emits the clock display once per second.
func (sm *SessionManager) tickLoop(ls *liveSession) {
	defer ls.wg.Done()

	ticker := ls.clock.Ticker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ls.ctx.Done():
			return
		case <-ticker.C():
			sm.emit(Event{Kind: EventTick, Clock: ls.clock.Display()})
		}
	}
}
