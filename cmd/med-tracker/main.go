package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/med-tracker/internal/medication"
	"github.com/zombor/med-tracker/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("med-tracker")
	var (
		port             = fs.IntLong("port", 8080, "HTTP server port")
		dbPath           = fs.StringLong("db", "med-tracker.db", "Database file path")
		storagePath      = fs.StringLong("storage", "./labels", "Label image directory path")
		visionKey        = fs.StringLong("vision-key", "", "Google Cloud Vision API key (or set GOOGLE_CLOUD_VISION_API_KEY env var)")
		visionEndpoint   = fs.StringLong("vision-endpoint", "https://vision.googleapis.com/", "Google Cloud Vision endpoint")
		interpreterType  = fs.StringLong("interpreter", "openai", "Interpreter type: 'openai', 'ollama' or 'gemini'")
		openaiKey        = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openaiURL        = fs.StringLong("openai-url", "https://api.openai.com/v1", "OpenAI API base URL")
		openaiModel      = fs.StringLong("openai-model", "gpt-4o", "OpenAI chat model name")
		geminiKey        = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel      = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL        = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel      = fs.StringLong("ollama-model", "llama3.1", "Ollama model name")
		extractTimeout   = fs.DurationLong("extract-timeout", 20*time.Second, "Text extraction request timeout")
		interpretTimeout = fs.DurationLong("interpret-timeout", 30*time.Second, "Interpretation request timeout")
		timezone         = fs.StringLong("tz", "", "IANA time zone refill reminders fire in (default: system local)")
		authUser         = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass         = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion      = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("MED_TRACKER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := medication.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize text extraction
	apiKey := *visionKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_CLOUD_VISION_API_KEY")
	}
	if apiKey == "" {
		slog.Error("Vision API key is required. Set --vision-key flag or GOOGLE_CLOUD_VISION_API_KEY environment variable")
		os.Exit(1)
	}
	slog.Info("Initializing Vision text extraction...", "endpoint", *visionEndpoint)
	extractor, err := scanning.NewVision(scanning.VisionConfig{
		APIKey:   apiKey,
		Endpoint: *visionEndpoint,
		Timeout:  *extractTimeout,
	}, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize Vision", "error", err)
		os.Exit(1)
	}

	// Initialize interpreter based on type
	var interpreter scanning.Interpreter
	switch *interpreterType {
	case "openai":
		key := *openaiKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		if key == "" {
			slog.Error("OpenAI API key is required. Set --openai-key flag or OPENAI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing OpenAI interpreter...", "model", *openaiModel)
		interpreter, err = scanning.NewOpenAI(scanning.OpenAIConfig{
			APIKey:  key,
			BaseURL: *openaiURL,
			Model:   *openaiModel,
			Timeout: *interpretTimeout,
		}, slog.Default())
		if err != nil {
			slog.Error("Failed to initialize OpenAI", "error", err)
			os.Exit(1)
		}
	case "gemini":
		key := *geminiKey
		if key == "" {
			key = os.Getenv("GEMINI_API_KEY")
		}
		if key == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini interpreter...", "model", *geminiModel)
		gemini, err := scanning.NewGemini(key, *geminiModel, *interpretTimeout)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
		defer gemini.Close()
		interpreter = gemini
	case "ollama":
		slog.Info("Initializing Ollama interpreter...", "url", *ollamaURL, "model", *ollamaModel)
		interpreter, err = scanning.NewOllama(*ollamaURL, *ollamaModel, *interpretTimeout)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid interpreter type", "type", *interpreterType, "valid", "openai, ollama or gemini")
		os.Exit(1)
	}

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := medication.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize service
	pipeline := scanning.NewPipeline(extractor, interpreter, scanning.WithLogger(slog.Default()))
	medicationService := medication.NewService(db, pipeline, store)
	if *timezone != "" {
		loc, err := time.LoadLocation(*timezone)
		if err != nil {
			slog.Error("Invalid time zone", "tz", *timezone, "error", err)
			os.Exit(1)
		}
		medicationService.SetLocation(loc)
	}

	// Initialize server
	basicAuth := medication.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := medication.NewServer(medicationService, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}
