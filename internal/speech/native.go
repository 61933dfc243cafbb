package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Voice describes one installed synthesizer voice.
type Voice struct {
	Name    string
	Lang    string
	Default bool
}

// Synthesizer is a local text-to-speech backend.
type Synthesizer interface {
	// Voices lists installed voices. An empty list is not an error; the
	// synthesizer then runs with its own default.
	Voices(ctx context.Context) ([]Voice, error)
	// Speak renders text aloud with the given voice, blocking until done.
	// An empty voice uses the synthesizer default.
	Speak(ctx context.Context, text, voice string) error
}

// naturalVoices are preferred names when no configured voice matches. They
// tend to sound less robotic than whatever sorts first.
var naturalVoices = []string{"Samantha", "Karen", "Daniel", "Moira", "en-us", "en-gb"}

// SelectVoice picks a voice by precedence: exact name match, substring
// match, a curated natural-sounding name, any English voice, then the first
// voice available. An empty result means use the synthesizer default.
func SelectVoice(voices []Voice, want string) string {
	if len(voices) == 0 {
		return ""
	}
	if want != "" {
		for _, v := range voices {
			if v.Name == want {
				return v.Name
			}
		}
		lowWant := strings.ToLower(want)
		for _, v := range voices {
			if strings.Contains(strings.ToLower(v.Name), lowWant) {
				return v.Name
			}
		}
	}
	for _, natural := range naturalVoices {
		lowNat := strings.ToLower(natural)
		for _, v := range voices {
			if strings.Contains(strings.ToLower(v.Name), lowNat) {
				return v.Name
			}
		}
	}
	for _, v := range voices {
		if strings.HasPrefix(strings.ToLower(v.Lang), "en") {
			return v.Name
		}
	}
	return voices[0].Name
}

// ExecSynthesizer shells out to a local TTS binary: espeak on Linux, say on
// macOS. Both accept a voice flag and the text as the final argument.
type ExecSynthesizer struct {
	Command string
}

func NewExecSynthesizer(command string) *ExecSynthesizer {
	if command == "" {
		command = "espeak"
	}
	return &ExecSynthesizer{Command: command}
}

// Voices parses the binary's voice listing. Failures degrade to an empty
// list so the default voice is used.
func (s *ExecSynthesizer) Voices(ctx context.Context) ([]Voice, error) {
	var out []byte
	var err error
	switch {
	case strings.HasSuffix(s.Command, "say"):
		out, err = exec.CommandContext(ctx, s.Command, "-v", "?").Output()
	default:
		out, err = exec.CommandContext(ctx, s.Command, "--voices").Output()
	}
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	return parseVoiceList(string(out)), nil
}

// parseVoiceList handles both espeak's columnar output and say's
// "Name  lang  # comment" format well enough to extract name and language.
func parseVoiceList(out string) []Voice {
	var voices []Voice
	for i, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		// espeak prints a header row.
		if i == 0 && fields[0] == "Pty" {
			continue
		}
		if _, err := fmt.Sscanf(fields[0], "%d", new(int)); err == nil && len(fields) >= 4 {
			// espeak row: Pty Language Age/Gender VoiceName ...
			voices = append(voices, Voice{Name: fields[3], Lang: fields[1]})
			continue
		}
		// say row: Name Lang # sample text
		voices = append(voices, Voice{Name: fields[0], Lang: fields[1]})
	}
	return voices
}

func (s *ExecSynthesizer) Speak(ctx context.Context, text, voice string) error {
	var args []string
	if voice != "" {
		args = append(args, "-v", voice)
	}
	args = append(args, text)
	cmd := exec.CommandContext(ctx, s.Command, args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("synthesizer %s: %w", s.Command, err)
	}
	return nil
}

// NativeEngine speaks through a local Synthesizer. Text is cut into short
// sentence-bounded chunks, and a start guard catches synthesizers that die
// immediately, usually a missing binary or a broken audio device, so the
// selector can fall back instead of staying silent.
type NativeEngine struct {
	synth      Synthesizer
	voice      string
	maxChunk   int
	startGuard time.Duration
	logger     *zap.Logger

	resolvedVoice string
	voiceOnce     bool
}

// NewNativeEngine wires a native engine. voice is the preferred voice name,
// resolved against the installed list on first use.
func NewNativeEngine(synth Synthesizer, voice string, maxChunk int, startGuard time.Duration, logger *zap.Logger) *NativeEngine {
	if maxChunk <= 0 {
		maxChunk = 280
	}
	if startGuard <= 0 {
		startGuard = 1500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NativeEngine{
		synth:      synth,
		voice:      voice,
		maxChunk:   maxChunk,
		startGuard: startGuard,
		logger:     logger,
	}
}

func (e *NativeEngine) Name() string { return EngineNative }

// Speak renders text chunk by chunk. A chunk that fails is skipped, not
// fatal; the call succeeds as long as at least one chunk actually started.
func (e *NativeEngine) Speak(ctx context.Context, text string) error {
	if !e.voiceOnce {
		e.voiceOnce = true
		voices, err := e.synth.Voices(ctx)
		if err != nil {
			e.logger.Debug("voice listing unavailable", zap.Error(err))
		}
		e.resolvedVoice = SelectVoice(voices, e.voice)
	}
	started := 0
	for _, chunk := range SplitChunks(text, e.maxChunk) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ok, err := e.speakChunk(ctx, chunk)
		if ok {
			started++
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Warn("speech chunk failed", zap.Error(err))
		}
	}
	if started == 0 {
		return fmt.Errorf("native engine: no chunk started")
	}
	return nil
}

// speakChunk runs one chunk against the synthesizer. The start guard bounds
// how long the chunk gets to prove it began: an error inside the guard window
// means the engine never started (missing binary, dead audio device), while a
// synthesizer still running when the guard elapses is treated as speaking and
// waited out.
func (e *NativeEngine) speakChunk(ctx context.Context, chunk string) (started bool, err error) {
	done := make(chan error, 1)
	go func() { done <- e.synth.Speak(ctx, chunk, e.resolvedVoice) }()
	timer := time.NewTimer(e.startGuard)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return false, err
		}
		return true, nil
	case <-timer.C:
		return true, <-done
	}
}
