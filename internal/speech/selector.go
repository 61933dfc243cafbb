// Package speech selects among text-to-speech engines, plays at most one
// utterance at a time, and degrades through a configured failover chain down
// to a diagnostic beep.
package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leeway/agentlee/internal/config"
	"github.com/leeway/agentlee/internal/sanitize"
)

// Engine names. These appear in config, the HTTP API, and the prefs store.
const (
	EngineNative  = "native"
	EngineAzure   = "azure"
	EngineGemini  = "gemini"
	EngineOrpheus = "orpheus"
)

// ErrNotArmed is returned when the native engine is asked to speak before
// audio output has been explicitly enabled.
var ErrNotArmed = errors.New("speech: audio output not armed")

// ErrEngineLocked is returned by SetEngine when the engine is pinned.
var ErrEngineLocked = errors.New("speech: engine is locked")

// ErrUnknownEngine is returned for engine names outside the known set.
var ErrUnknownEngine = errors.New("speech: unknown engine")

// Engine renders one utterance, blocking until playback finishes or ctx is
// cancelled.
type Engine interface {
	Name() string
	Speak(ctx context.Context, text string) error
}

// Provider is a cloud TTS backend returning encoded audio for one chunk.
type Provider interface {
	Name() string
	Available() bool
	MaxChunk() int
	Synthesize(ctx context.Context, text string) ([]byte, Format, int, error)
}

// ProviderEngine adapts a cloud Provider plus a local Sink into an Engine.
type ProviderEngine struct {
	provider Provider
	sink     Sink
}

func NewProviderEngine(p Provider, sink Sink) *ProviderEngine {
	return &ProviderEngine{provider: p, sink: sink}
}

func (e *ProviderEngine) Name() string { return e.provider.Name() }

// Available reports whether the backing provider has credentials configured.
func (e *ProviderEngine) Available() bool { return e.provider.Available() }

func (e *ProviderEngine) Speak(ctx context.Context, text string) error {
	if !e.provider.Available() {
		return fmt.Errorf("%s: not configured", e.provider.Name())
	}
	for _, chunk := range SplitChunks(text, e.provider.MaxChunk()) {
		data, format, rate, err := e.provider.Synthesize(ctx, chunk)
		if err != nil {
			return err
		}
		if err := e.sink.Play(ctx, data, format, rate); err != nil {
			return err
		}
	}
	return nil
}

// Callbacks observe a playback session. All are optional and fire from the
// playback goroutine.
type Callbacks struct {
	// OnEnded fires after an utterance finishes normally.
	OnEnded func()
	// OnError fires for each engine failure before a fallback attempt.
	OnError func(engine string, err error)
	// OnFailure fires once when every engine in the chain has failed and
	// the diagnostic beep has been played.
	OnFailure func()
}

type session struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Selector owns engine choice and playback. At most one utterance plays at a
// time: Speak cancels whatever is in flight before starting. Engine switching
// honors the lock flag, and failures walk the provider order when fallback is
// enabled, ending in a short beep so silence is never ambiguous.
type Selector struct {
	engines  map[string]Engine
	sink     Sink
	order    []string
	fallback bool
	logger   *zap.Logger
	cb       Callbacks

	mu      sync.Mutex
	current string
	locked  bool
	armed   bool
	active  *session
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithCallbacks sets session observers.
func WithCallbacks(cb Callbacks) SelectorOption {
	return func(s *Selector) { s.cb = cb }
}

// WithSelectorLogger sets the logger.
func WithSelectorLogger(logger *zap.Logger) SelectorOption {
	return func(s *Selector) { s.logger = logger }
}

// NewSelector builds a Selector from configuration, registering the given
// engines. Unknown names in the provider order are ignored at speak time.
func NewSelector(cfg config.SpeechConfig, engines []Engine, sink Sink, opts ...SelectorOption) *Selector {
	m := make(map[string]Engine, len(engines))
	for _, e := range engines {
		m[e.Name()] = e
	}
	s := &Selector{
		engines:  m,
		sink:     sink,
		order:    cfg.ProviderOrder,
		fallback: cfg.FallbackOnFailure,
		logger:   zap.NewNop(),
		current:  cfg.DefaultEngine,
		locked:   cfg.EngineLock,
	}
	if s.current == "" {
		s.current = EngineNative
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OnSessionEnd registers fn to run when an utterance finishes, whether it
// completed or exhausted every engine. It replaces any previous OnEnded and
// OnFailure callbacks.
func (s *Selector) OnSessionEnd(fn func()) {
	s.mu.Lock()
	s.cb.OnEnded = fn
	s.cb.OnFailure = fn
	s.mu.Unlock()
}

// Arm enables audio output. The native engine refuses to speak until this is
// called once, mirroring the explicit user action required before a machine
// starts talking.
func (s *Selector) Arm() {
	s.mu.Lock()
	s.armed = true
	s.mu.Unlock()
}

// Engine returns the currently selected engine name.
func (s *Selector) Engine() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SetEngine switches the active engine. It fails when the engine is locked
// to its current value or the name is not registered.
func (s *Selector) SetEngine(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == s.current {
		return nil
	}
	if s.locked {
		return ErrEngineLocked
	}
	if _, ok := s.engines[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEngine, name)
	}
	s.current = name
	return nil
}

// Status is a point-in-time snapshot of the selector.
type Status struct {
	Engine   string `json:"engine"`
	Locked   bool   `json:"locked"`
	Fallback bool   `json:"fallback_on_failure"`
	Armed    bool   `json:"armed"`
	Speaking bool   `json:"speaking"`
}

func (s *Selector) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Engine:   s.current,
		Locked:   s.locked,
		Fallback: s.fallback,
		Armed:    s.armed,
		Speaking: s.active != nil,
	}
}

// Speak starts an utterance and returns immediately. Any in-flight utterance
// is cancelled first. Text is sanitized for speech; if nothing remains the
// call is a silent no-op.
func (s *Selector) Speak(text string) error {
	text = sanitize.ForSpeech(text)
	if text == "" {
		return nil
	}
	s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.active = sess
	engine := s.current
	s.mu.Unlock()

	go s.run(ctx, sess, engine, text)
	return nil
}

// Stop cancels the active utterance, if any, and waits for its goroutine to
// drain. Calling Stop with nothing playing is a no-op.
func (s *Selector) Stop() {
	s.mu.Lock()
	sess := s.active
	s.mu.Unlock()
	if sess == nil {
		return
	}
	sess.cancel()
	<-sess.done
}

func (s *Selector) run(ctx context.Context, sess *session, engine, text string) {
	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()

	defer func() {
		sess.cancel()
		s.mu.Lock()
		if s.active == sess {
			s.active = nil
		}
		s.mu.Unlock()
		close(sess.done)
	}()

	for i, name := range s.attemptOrder(engine) {
		eng, ok := s.engines[name]
		if !ok {
			continue
		}
		if i > 0 {
			// Fallback probing: skip providers with no credentials instead
			// of burning an attempt on a guaranteed failure.
			if av, ok := eng.(interface{ Available() bool }); ok && !av.Available() {
				s.logger.Debug("skipping unconfigured engine", zap.String("engine", name))
				continue
			}
			s.switchTo(name)
		}
		err := s.speakWith(ctx, eng, text)
		if err == nil {
			if cb.OnEnded != nil {
				cb.OnEnded()
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("speech engine failed",
			zap.String("engine", name),
			zap.Error(err))
		if cb.OnError != nil {
			cb.OnError(name, err)
		}
		if !s.fallback {
			break
		}
	}

	// Everything failed. One short beep tells the operator audio itself
	// still works.
	beepCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.sink.Play(beepCtx, Beep(), FormatPCM16, beepSampleRate); err != nil {
		s.logger.Warn("diagnostic beep failed", zap.Error(err))
	}
	if cb.OnFailure != nil {
		cb.OnFailure()
	}
}

// switchTo records the engine a failover actually landed on, so status and
// later utterances reflect reality. A locked engine never moves.
func (s *Selector) switchTo(name string) {
	s.mu.Lock()
	if !s.locked {
		s.current = name
	}
	s.mu.Unlock()
}

// speakWith runs one engine, enforcing arming for the native path.
func (s *Selector) speakWith(ctx context.Context, eng Engine, text string) error {
	if eng.Name() == EngineNative {
		s.mu.Lock()
		armed := s.armed
		s.mu.Unlock()
		if !armed {
			return ErrNotArmed
		}
	}
	return eng.Speak(ctx, text)
}

// attemptOrder is the failover chain: the chosen engine first, then the
// configured provider order minus the chosen engine.
func (s *Selector) attemptOrder(engine string) []string {
	order := []string{engine}
	for _, name := range s.order {
		if name != engine {
			order = append(order, name)
		}
	}
	return order
}
