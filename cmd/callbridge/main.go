// callbridge: media relay server bridging phone calls to the AI pipeline
// Accepts telephony media streams over WebSocket and talks back
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/verbilabs/callbridge/internal/config"
	"github.com/verbilabs/callbridge/internal/log"
	"github.com/verbilabs/callbridge/pkg/call"
	"github.com/verbilabs/callbridge/pkg/inference"
	"github.com/verbilabs/callbridge/pkg/relay"
	"github.com/verbilabs/callbridge/pkg/retrieval"
	"github.com/verbilabs/callbridge/pkg/stt"
	"github.com/verbilabs/callbridge/pkg/tts"
)

var (
	version  = "1.0.0"
	port     = flag.Int("port", 8080, "HTTP server port")
	logLevel = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	debug    = flag.Bool("debug", false, "Enable request logging")
	voice    = flag.String("voice", "a0e99841-438c-4a64-b679-ae501e7d6091", "Cartesia voice ID")
	document = flag.String("document", "", "Plain-text document to ground answers in (optional)")
	say      = flag.String("say", "Please wait while we connect your call.", "Line spoken before the stream connects")
)

func main() {
	flag.Parse()
	log.Init(*logLevel)

	// Override from environment
	*port = portFromEnv(*port)
	if envVoice := os.Getenv("CARTESIA_VOICE_ID"); envVoice != "" {
		*voice = envVoice
	}
	publicHost := config.PublicHost(fmt.Sprintf("localhost:%d", *port))
	streamURL := "wss://" + publicHost + "/ws/call"

	fmt.Println()
	fmt.Println("📞 Callbridge v" + version)
	fmt.Println("   Voice call AI bridge")
	fmt.Println()

	groqKey := config.GroqAPIKey()
	cartesiaKey := config.CartesiaAPIKey()
	geminiKey := config.GeminiAPIKey()

	// Speech to text
	transcriber, err := stt.NewGroq(stt.WithAPIKey(groqKey), stt.WithLogger(log.L()))
	if err != nil {
		log.Error("transcriber init failed", "error", err)
		os.Exit(1)
	}
	defer transcriber.Close()

	// Generation: Groq primary, Gemini fallback when configured
	groq, err := inference.NewClient(inference.WithAPIKey(groqKey), inference.WithLogger(log.L()))
	if err != nil {
		log.Error("inference init failed", "error", err)
		os.Exit(1)
	}
	defer groq.Close()

	var provider inference.Provider = groq
	if geminiKey != "" {
		gemini, err := inference.NewGemini(inference.WithAPIKey(geminiKey), inference.WithLogger(log.L()))
		if err != nil {
			log.Error("gemini init failed", "error", err)
			os.Exit(1)
		}
		defer gemini.Close()

		provider, err = inference.NewChainWithLogger(log.L(), groq, gemini)
		if err != nil {
			log.Error("provider chain init failed", "error", err)
			os.Exit(1)
		}
	}

	// Text to speech: primary voice, with failover to a second voice
	// when one is configured
	primary, err := tts.NewCartesia(
		tts.WithAPIKey(cartesiaKey),
		tts.WithVoice(*voice),
		tts.WithLogger(log.L()),
	)
	if err != nil {
		log.Error("synthesizer init failed", "error", err)
		os.Exit(1)
	}

	var synth tts.Provider = primary
	if fallbackVoice := os.Getenv("CARTESIA_FALLBACK_VOICE"); fallbackVoice != "" {
		backup, err := tts.NewCartesia(
			tts.WithAPIKey(cartesiaKey),
			tts.WithVoice(fallbackVoice),
			tts.WithLogger(log.L()),
		)
		if err != nil {
			log.Error("fallback synthesizer init failed", "error", err)
			os.Exit(1)
		}
		synth, err = tts.NewChainWithLogger(log.L(), primary, backup)
		if err != nil {
			log.Error("synthesizer chain init failed", "error", err)
			os.Exit(1)
		}
		log.Info("synthesis failover enabled", "fallback_voice", fallbackVoice)
	}
	defer synth.Close()

	// Optional document grounding
	var retriever retrieval.Retriever
	if *document != "" {
		index, err := buildIndex(*document, geminiKey)
		if err != nil {
			log.Error("document indexing failed", "document", *document, "error", err)
			os.Exit(1)
		}
		retriever = index
		log.Info("document grounding enabled", "document", *document, "chunks", index.Len())
	}

	callCfg := call.DefaultConfig()
	callCfg.Logger = log.L()
	engine := call.NewEngine(provider, retriever, callCfg)
	registry := call.NewRegistry(log.L())

	factory := func(id string, sender call.Sender) *call.Session {
		return call.NewSession(id, sender, transcriber, synth, engine, callCfg)
	}

	server := relay.NewServer(registry, factory, relay.Options{
		Say:       *say,
		StreamURL: streamURL,
		Logger:    log.L(),
	})

	app := fiber.New(fiber.Config{
		AppName:               "callbridge",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))
	if *debug {
		app.Use(logger.New())
	}

	server.RegisterRoutes(app)

	go func() {
		addr := fmt.Sprintf(":%d", *port)
		log.Info("🚀 starting server", "addr", addr)
		log.Info("   media stream", "url", streamURL)
		log.Info("   webhook", "url", fmt.Sprintf("https://%s/incoming-call", publicHost))
		log.Info("   health", "url", fmt.Sprintf("http://localhost:%d/health", *port))

		if err := app.Listen(addr); err != nil {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("👋 shutting down", "active_calls", registry.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}

// portFromEnv returns the PORT environment override, or fallback when
// it is unset or not a number.
func portFromEnv(fallback int) int {
	v := os.Getenv("PORT")
	if v == "" {
		return fallback
	}
	p, err := strconv.Atoi(v)
	if err != nil {
		log.Warn("ignoring invalid PORT", "value", v, "error", err)
		return fallback
	}
	return p
}

// buildIndex chunks and embeds a plain-text document so calls can be
// grounded in it.
func buildIndex(path, geminiKey string) (*retrieval.Index, error) {
	if geminiKey == "" {
		return nil, fmt.Errorf("document grounding requires GEMINI_API_KEY")
	}

	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	embedder, err := retrieval.NewGeminiEmbedder(ctx, geminiKey, retrieval.DefaultEmbedModel, log.L())
	if err != nil {
		return nil, err
	}

	index, err := retrieval.NewIndex(embedder, log.L())
	if err != nil {
		return nil, err
	}
	if err := index.IndexDocument(ctx, string(text)); err != nil {
		return nil, err
	}
	return index, nil
}
