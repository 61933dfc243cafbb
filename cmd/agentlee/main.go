// Package main is the Agent Lee CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/leeway/agentlee/internal/config"
	"github.com/leeway/agentlee/internal/ensemble"
	"github.com/leeway/agentlee/internal/evidence"
	"github.com/leeway/agentlee/internal/llm"
	"github.com/leeway/agentlee/internal/loader"
	"github.com/leeway/agentlee/internal/prefs"
	"github.com/leeway/agentlee/internal/server"
	"github.com/leeway/agentlee/internal/speech"
	"github.com/leeway/agentlee/internal/watcher"
	"github.com/leeway/agentlee/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/agentlee/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. A .env file next to the config is loaded before parsing so
// environment overrides apply to both.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "explain":
		runExplain()
	case "search":
		runSearch()
	case "speak":
		runSpeak()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("agentlee version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Assets.Watch && cfg.Assets.DataDir != "" {
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.New(cfg.Assets.DataDir, func() {
			ix, err := components.Loader.BuildIndex(context.Background())
			if err != nil {
				logger.Warn("asset reload failed", zap.Error(err))
				return
			}
			components.Index.Swap(ix)
			logger.Info("evidence index reloaded", zap.Int("documents", ix.Len()))
		}, watchOpts...)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		components.Watcher = watchSvc
	}

	srv := server.NewServer(
		components.Orchestrator,
		components.Index,
		components.Speaker,
		components.Prefs,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	speak := fs.Bool("speak", false, "read the answer aloud")
	_ = fs.Parse(os.Args[2:])

	question := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(question) == "" {
		fmt.Fprintln(os.Stderr, "Usage: agentlee ask [flags] <question>")
		os.Exit(1)
	}

	components := mustInitialize(*configPath)
	defer components.Close()

	result := components.Orchestrator.AskAll(context.Background(), question, nil, "")
	fmt.Println(result.Best.Text)
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "note: %s: %s\n", e.ModelID, e.Error)
		}
	}
	if *speak {
		speakAndWait(components.Speaker, result.Best.Text)
	}
}

func runExplain() {
	fs := flag.NewFlagSet("explain", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	title := fs.String("title", "Chart", "chart title")
	_ = fs.Parse(os.Args[2:])

	data := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(data) == "" {
		// Chart data can also arrive on stdin, the way plotting tools pipe it.
		buf := make([]byte, 64*1024)
		n, _ := os.Stdin.Read(buf)
		data = string(buf[:n])
	}
	if strings.TrimSpace(data) == "" {
		fmt.Fprintln(os.Stderr, "Usage: agentlee explain [flags] <chart data>")
		os.Exit(1)
	}

	components := mustInitialize(*configPath)
	defer components.Close()

	result := components.Orchestrator.ExplainChart(context.Background(), *title, data)
	fmt.Println(result.Best.Text)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 0, "maximum hits (default from config)")
	_ = fs.Parse(os.Args[2:])

	query := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(query) == "" {
		fmt.Fprintln(os.Stderr, "Usage: agentlee search [flags] <query>")
		os.Exit(1)
	}

	components := mustInitialize(*configPath)
	defer components.Close()

	n := *limit
	if n <= 0 {
		n = components.Config.Search.DefaultLimit
	}
	hits := components.Index.Get().Search(query, n)
	if len(hits) == 0 {
		fmt.Println("No matches.")
		return
	}
	for i, h := range hits {
		fmt.Printf("%d. %s (score %.3f)\n   %s\n", i+1, h.DocumentID, h.Score, firstLine(h.Text))
	}
}

func runSpeak() {
	fs := flag.NewFlagSet("speak", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	engine := fs.String("engine", "", "speech engine (native, azure, gemini, orpheus)")
	_ = fs.Parse(os.Args[2:])

	text := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(text) == "" {
		fmt.Fprintln(os.Stderr, "Usage: agentlee speak [flags] <text>")
		os.Exit(1)
	}

	components := mustInitialize(*configPath)
	defer components.Close()

	if *engine != "" {
		if err := components.Speaker.SetEngine(*engine); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot select engine: %v\n", err)
			os.Exit(1)
		}
	}
	speakAndWait(components.Speaker, text)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	components := mustInitialize(*configPath)
	defer components.Close()

	fmt.Printf("Documents indexed: %d\n", components.Index.Get().Len())
	fmt.Printf("Search backend:    %s\n", components.Config.Search.Backend)
	fmt.Printf("Speech engine:     %s (lock=%v fallback=%v)\n",
		components.Speaker.Engine(),
		components.Config.Speech.EngineLock,
		components.Config.Speech.FallbackOnFailure)
	for id, status := range components.Orchestrator.ClientStatuses() {
		fmt.Printf("Model %-10s %s\n", id+":", status)
	}
}

// speakAndWait runs one utterance to completion. Invoking the command is the
// explicit user action, so the selector is armed directly.
func speakAndWait(speaker *speech.Selector, text string) {
	done := make(chan struct{})
	speaker.OnSessionEnd(func() { close(done) })
	speaker.Arm()
	if err := speaker.Speak(text); err != nil {
		fmt.Fprintf(os.Stderr, "Speak failed: %v\n", err)
		os.Exit(1)
	}
	if !speaker.Status().Speaking {
		// Nothing to say after sanitizing, or playback already finished.
		return
	}
	select {
	case <-done:
	case <-time.After(5 * time.Minute):
		speaker.Stop()
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return utils.Truncate(s, 120)
}

func mustInitialize(configPath string) *Components {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return components
}

// Components bundles everything a subcommand needs.
type Components struct {
	Config       *config.Config
	Logger       *zap.Logger
	Index        *evidence.Handle
	Loader       *loader.Loader
	Orchestrator *ensemble.Orchestrator
	Speaker      *speech.Selector
	Prefs        *prefs.Store
	Watcher      *watcher.Watcher
}

func (c *Components) Close() {
	if c.Speaker != nil {
		c.Speaker.Stop()
	}
	if c.Watcher != nil {
		c.Watcher.Stop()
	}
	if c.Prefs != nil {
		_ = c.Prefs.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := prefs.Open(cfg.Prefs.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open preference store: %w", err)
	}

	ld := loader.New(cfg.Assets, loader.WithLogger(logger))
	handle, err := buildIndex(cfg, ld, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	clients := []llm.Client{
		llm.NewOpenRouter(cfg.Models.Gemma, llm.WithLogger(logger)),
	}
	if cfg.Models.LlamaEnabled == nil || *cfg.Models.LlamaEnabled {
		clients = append(clients, llm.NewTemplate("llama"))
	}
	if cfg.Models.Phi3Enabled == nil || *cfg.Models.Phi3Enabled {
		clients = append(clients, llm.NewTemplate("phi3"))
	}
	orch := ensemble.New(clients, handle, cfg.Answers,
		ensemble.WithLogger(logger),
		ensemble.WithSearchLimit(cfg.Search.DefaultLimit))

	speaker := buildSpeaker(cfg, store, logger)

	return &Components{
		Config:       cfg,
		Logger:       logger,
		Index:        handle,
		Loader:       ld,
		Orchestrator: orch,
		Speaker:      speaker,
		Prefs:        store,
	}, nil
}

// buildIndex loads all assets into the configured search backend.
func buildIndex(cfg *config.Config, ld *loader.Loader, logger *zap.Logger) (*evidence.Handle, error) {
	docs, err := ld.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load assets: %w", err)
	}
	var ix evidence.Searcher
	if cfg.Search.Backend == "bleve" {
		bix, err := evidence.NewBleveIndex(logger)
		if err != nil {
			logger.Warn("failed to create bleve index, falling back to memory", zap.Error(err))
			ix = evidence.NewMemoryIndex()
		} else {
			ix = bix
		}
	} else {
		ix = evidence.NewMemoryIndex()
	}
	for _, d := range docs {
		ix.AddDocument(d.ID, d.Text)
	}
	logger.Info("evidence index built",
		zap.String("backend", cfg.Search.Backend),
		zap.Int("documents", ix.Len()))
	return evidence.NewHandle(ix), nil
}

// buildSpeaker assembles the speech stack: local synthesizer, cloud
// providers, shared audio sink. Stored preferences override config for voice
// and engine.
func buildSpeaker(cfg *config.Config, store *prefs.Store, logger *zap.Logger) *speech.Selector {
	ctx := context.Background()
	voice := cfg.Speech.Voice
	if v, ok, err := store.Get(ctx, prefs.KeyVoice); err == nil && ok {
		voice = v
	}
	speechCfg := cfg.Speech
	if e, ok, err := store.Get(ctx, prefs.KeyEngine); err == nil && ok && !speechCfg.EngineLock {
		speechCfg.DefaultEngine = e
	}

	sink := speech.NewPlayerSink(speechCfg.PlayerCommand)
	synth := speech.NewExecSynthesizer(speechCfg.Native.Command)
	engines := []speech.Engine{
		speech.NewNativeEngine(synth, voice,
			speechCfg.Native.MaxChunk,
			time.Duration(speechCfg.Native.StartGuardMS)*time.Millisecond,
			logger),
		speech.NewProviderEngine(speech.NewAzure(speechCfg.Azure), sink),
		speech.NewProviderEngine(speech.NewGemini(speechCfg.Gemini), sink),
		speech.NewProviderEngine(speech.NewOrpheus(speechCfg.Orpheus), sink),
	}
	return speech.NewSelector(speechCfg, engines, sink,
		speech.WithSelectorLogger(logger))
}

func printUsage() {
	fmt.Println(`Agent Lee - pitch deck assistant with evidence search and speech

Usage:
  agentlee <command> [flags] [args]

Commands:
  server    Start the HTTP API server
  ask       Ask the model ensemble a question
  explain   Explain chart data (args or stdin)
  search    Search the evidence index
  speak     Read text aloud
  status    Show component status
  version   Print version
  help      Show this help

Run 'agentlee <command> -h' for command flags.`)
}
