package speech

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leeway/agentlee/internal/config"
)

// fakeEngine is a scriptable Engine that can block until released.
type fakeEngine struct {
	name  string
	err   error
	block chan struct{} // when non-nil, Speak waits for close or ctx

	mu     sync.Mutex
	spoken []string
	active int32
	maxAct int32
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Speak(ctx context.Context, text string) error {
	n := atomic.AddInt32(&f.active, 1)
	for {
		old := atomic.LoadInt32(&f.maxAct)
		if n <= old || atomic.CompareAndSwapInt32(&f.maxAct, old, n) {
			break
		}
	}
	defer atomic.AddInt32(&f.active, -1)

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) spokenTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spoken...)
}

// fakeSink records plays.
type fakeSink struct {
	mu    sync.Mutex
	plays []Format
}

func (s *fakeSink) Play(_ context.Context, _ []byte, format Format, _ int) error {
	s.mu.Lock()
	s.plays = append(s.plays, format)
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plays)
}

func speechConfig(engine string, fallback bool) config.SpeechConfig {
	return config.SpeechConfig{
		DefaultEngine:     engine,
		FallbackOnFailure: fallback,
		ProviderOrder:     []string{EngineAzure, EngineGemini, EngineOrpheus},
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestSelector_SpeaksWithChosenEngine(t *testing.T) {
	azure := &fakeEngine{name: EngineAzure}
	sink := &fakeSink{}
	var ended atomic.Int32
	s := NewSelector(speechConfig(EngineAzure, false), []Engine{azure}, sink,
		WithCallbacks(Callbacks{OnEnded: func() { ended.Add(1) }}))

	if err := s.Speak("hello from the deck"); err != nil {
		t.Fatalf("Speak() error: %v", err)
	}
	waitFor(t, func() bool { return ended.Load() == 1 })
	if got := azure.spokenTexts(); len(got) != 1 || got[0] != "hello from the deck" {
		t.Errorf("spoken = %q", got)
	}
	if sink.count() != 0 {
		t.Error("no beep expected on success")
	}
}

func TestSelector_EmptyAfterSanitizeIsNoOp(t *testing.T) {
	azure := &fakeEngine{name: EngineAzure}
	s := NewSelector(speechConfig(EngineAzure, false), []Engine{azure}, &fakeSink{})
	if err := s.Speak("*** 🎉 "); err != nil {
		t.Fatalf("Speak() error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if len(azure.spokenTexts()) != 0 {
		t.Error("nothing should be spoken for empty text")
	}
	if s.Status().Speaking {
		t.Error("selector should be idle")
	}
}

func TestSelector_NativeRequiresArming(t *testing.T) {
	native := &fakeEngine{name: EngineNative}
	sink := &fakeSink{}
	var failures atomic.Int32
	var gotErr error
	var mu sync.Mutex
	s := NewSelector(speechConfig(EngineNative, false), []Engine{native}, sink,
		WithCallbacks(Callbacks{
			OnFailure: func() { failures.Add(1) },
			OnError: func(_ string, err error) {
				mu.Lock()
				gotErr = err
				mu.Unlock()
			},
		}))

	s.Speak("should not play")
	waitFor(t, func() bool { return failures.Load() == 1 })
	if len(native.spokenTexts()) != 0 {
		t.Error("native engine spoke while unarmed")
	}
	mu.Lock()
	if !errors.Is(gotErr, ErrNotArmed) {
		t.Errorf("error = %v, want ErrNotArmed", gotErr)
	}
	mu.Unlock()

	s.Arm()
	var ended atomic.Int32
	s.OnSessionEnd(func() { ended.Add(1) })
	s.Speak("now it plays")
	waitFor(t, func() bool { return ended.Load() == 1 })
	if len(native.spokenTexts()) != 1 {
		t.Errorf("spoken = %q after arming", native.spokenTexts())
	}
}

func TestSelector_FallbackChainAndBeepOnce(t *testing.T) {
	native := &fakeEngine{name: EngineNative, err: errors.New("no synth binary")}
	azure := &fakeEngine{name: EngineAzure, err: errors.New("401")}
	gemini := &fakeEngine{name: EngineGemini, err: errors.New("quota")}
	orpheus := &fakeEngine{name: EngineOrpheus, err: errors.New("down")}
	sink := &fakeSink{}
	var failures atomic.Int32
	var errSeq []string
	var mu sync.Mutex
	s := NewSelector(speechConfig(EngineNative, true),
		[]Engine{native, azure, gemini, orpheus}, sink,
		WithCallbacks(Callbacks{
			OnFailure: func() { failures.Add(1) },
			OnError: func(engine string, _ error) {
				mu.Lock()
				errSeq = append(errSeq, engine)
				mu.Unlock()
			},
		}))
	s.Arm()

	s.Speak("try everything")
	waitFor(t, func() bool { return failures.Load() == 1 })

	mu.Lock()
	wantSeq := []string{EngineNative, EngineAzure, EngineGemini, EngineOrpheus}
	if len(errSeq) != len(wantSeq) {
		t.Fatalf("error sequence = %v, want %v", errSeq, wantSeq)
	}
	for i := range wantSeq {
		if errSeq[i] != wantSeq[i] {
			t.Errorf("attempt %d = %s, want %s", i, errSeq[i], wantSeq[i])
		}
	}
	mu.Unlock()

	if sink.count() != 1 {
		t.Errorf("beep played %d times, want exactly once", sink.count())
	}
}

func TestSelector_FallbackSucceedsMidChain(t *testing.T) {
	azure := &fakeEngine{name: EngineAzure, err: errors.New("401")}
	gemini := &fakeEngine{name: EngineGemini}
	sink := &fakeSink{}
	var ended atomic.Int32
	s := NewSelector(speechConfig(EngineAzure, true), []Engine{azure, gemini}, sink,
		WithCallbacks(Callbacks{OnEnded: func() { ended.Add(1) }}))

	s.Speak("failover please")
	waitFor(t, func() bool { return ended.Load() == 1 })
	if len(gemini.spokenTexts()) != 1 {
		t.Errorf("gemini spoken = %q", gemini.spokenTexts())
	}
	if sink.count() != 0 {
		t.Error("no beep when a fallback engine succeeds")
	}
	if s.Engine() != EngineGemini {
		t.Errorf("engine = %s, want %s after failover", s.Engine(), EngineGemini)
	}
}

// unavailableEngine reports itself as unconfigured.
type unavailableEngine struct{ fakeEngine }

func (u *unavailableEngine) Available() bool { return false }

func TestSelector_FallbackSkipsUnconfiguredProviders(t *testing.T) {
	native := &fakeEngine{name: EngineNative, err: errors.New("no synth binary")}
	azure := &unavailableEngine{fakeEngine{name: EngineAzure}}
	gemini := &fakeEngine{name: EngineGemini}
	var ended atomic.Int32
	var errSeq []string
	var mu sync.Mutex
	s := NewSelector(speechConfig(EngineNative, true),
		[]Engine{native, azure, gemini}, &fakeSink{},
		WithCallbacks(Callbacks{
			OnEnded: func() { ended.Add(1) },
			OnError: func(engine string, _ error) {
				mu.Lock()
				errSeq = append(errSeq, engine)
				mu.Unlock()
			},
		}))
	s.Arm()

	s.Speak("skip the dead provider")
	waitFor(t, func() bool { return ended.Load() == 1 })
	if len(azure.spokenTexts()) != 0 {
		t.Error("unconfigured provider was attempted")
	}
	if len(gemini.spokenTexts()) != 1 {
		t.Errorf("gemini spoken = %q", gemini.spokenTexts())
	}
	mu.Lock()
	if len(errSeq) != 1 || errSeq[0] != EngineNative {
		t.Errorf("error sequence = %v, want only the chosen engine", errSeq)
	}
	mu.Unlock()
}

func TestSelector_NoFallbackWhenDisabled(t *testing.T) {
	azure := &fakeEngine{name: EngineAzure, err: errors.New("401")}
	gemini := &fakeEngine{name: EngineGemini}
	sink := &fakeSink{}
	var failures atomic.Int32
	s := NewSelector(speechConfig(EngineAzure, false), []Engine{azure, gemini}, sink,
		WithCallbacks(Callbacks{OnFailure: func() { failures.Add(1) }}))

	s.Speak("no failover")
	waitFor(t, func() bool { return failures.Load() == 1 })
	if len(gemini.spokenTexts()) != 0 {
		t.Error("fallback engine ran despite fallback being disabled")
	}
}

func TestSelector_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	azure := &fakeEngine{name: EngineAzure, block: release}
	s := NewSelector(speechConfig(EngineAzure, false), []Engine{azure}, &fakeSink{})

	s.Speak("first utterance")
	waitFor(t, func() bool { return atomic.LoadInt32(&azure.active) == 1 })

	// Second Speak must cancel the first before starting.
	done := make(chan struct{})
	go func() {
		s.Speak("second utterance")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second Speak did not proceed after cancelling the first")
	}
	close(release)
	waitFor(t, func() bool { return len(azure.spokenTexts()) == 1 })
	if got := azure.spokenTexts(); got[0] != "second utterance" {
		t.Errorf("spoken = %q, want only the second utterance", got)
	}
	if atomic.LoadInt32(&azure.maxAct) > 1 {
		t.Errorf("max concurrent speaks = %d, want 1", azure.maxAct)
	}
}

func TestSelector_StopIsIdempotent(t *testing.T) {
	release := make(chan struct{})
	azure := &fakeEngine{name: EngineAzure, block: release}
	sink := &fakeSink{}
	s := NewSelector(speechConfig(EngineAzure, false), []Engine{azure}, sink)

	s.Speak("stop me")
	waitFor(t, func() bool { return atomic.LoadInt32(&azure.active) == 1 })
	s.Stop()
	s.Stop()
	if s.Status().Speaking {
		t.Error("still speaking after Stop")
	}
	// A cancelled utterance is not a failure: no beep.
	if sink.count() != 0 {
		t.Errorf("beep played %d times after Stop", sink.count())
	}
}

func TestSelector_EngineLock(t *testing.T) {
	cfg := speechConfig(EngineNative, false)
	cfg.EngineLock = true
	s := NewSelector(cfg, []Engine{
		&fakeEngine{name: EngineNative},
		&fakeEngine{name: EngineAzure},
	}, &fakeSink{})

	if err := s.SetEngine(EngineAzure); !errors.Is(err, ErrEngineLocked) {
		t.Errorf("SetEngine under lock = %v, want ErrEngineLocked", err)
	}
	if err := s.SetEngine(EngineNative); err != nil {
		t.Errorf("re-setting the current engine should be allowed: %v", err)
	}
	if s.Engine() != EngineNative {
		t.Errorf("engine = %s", s.Engine())
	}
}

func TestSelector_SetEngineUnknown(t *testing.T) {
	s := NewSelector(speechConfig(EngineNative, false), []Engine{
		&fakeEngine{name: EngineNative},
	}, &fakeSink{})
	if err := s.SetEngine("winamp"); !errors.Is(err, ErrUnknownEngine) {
		t.Errorf("got %v, want ErrUnknownEngine", err)
	}
}
