package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/famulus-ai/famulus/internal/assistant"
	"github.com/famulus-ai/famulus/internal/audit"
	"github.com/famulus-ai/famulus/internal/channel"
	"github.com/famulus-ai/famulus/internal/config"
	"github.com/famulus-ai/famulus/internal/convo"
	"github.com/famulus-ai/famulus/internal/enrich"
	"github.com/famulus-ai/famulus/internal/intent"
	"github.com/famulus-ai/famulus/internal/llm"
	"github.com/famulus-ai/famulus/internal/logging"
	"github.com/famulus-ai/famulus/internal/models"
	"github.com/famulus-ai/famulus/internal/search"
	"github.com/famulus-ai/famulus/internal/store"
	"github.com/famulus-ai/famulus/internal/tools"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", os.ExpandEnv("$HOME/.famulus/config.yaml"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "famulus: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "famulus: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("fatal", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down")
		cancel()
	}()

	client := llm.NewClient(&llm.Config{
		OllamaURL:   cfg.Model.OllamaURL,
		Model:       cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
		Timeout:     cfg.Model.Timeout.Std(),
		RateLimit:   5,
		RateBurst:   10,
	})

	if names, err := client.ListModels(ctx); err != nil {
		logger.Warn("could not reach Ollama", zap.Error(err))
	} else {
		found := false
		for _, name := range names {
			if name == cfg.Model.Name {
				found = true
				break
			}
		}
		if !found {
			logger.Warn("configured model not present in Ollama",
				zap.String("model", cfg.Model.Name))
		}
	}

	poolCfg := llm.DefaultPoolConfig()
	poolCfg.Workers = cfg.Model.Workers
	pool := llm.NewPool(client, poolCfg)
	defer pool.Shutdown(5 * time.Second)

	tasks, err := store.NewTaskStore(cfg.Storage.TasksPath)
	if err != nil {
		return fmt.Errorf("task store: %w", err)
	}
	defer tasks.Close()

	lists, err := store.NewListStore(cfg.Storage.ListsPath)
	if err != nil {
		return fmt.Errorf("list store: %w", err)
	}
	defer lists.Close()

	auditLog, err := audit.NewLog(cfg.Storage.AuditPath)
	if err != nil {
		return fmt.Errorf("audit log: %w", err)
	}
	defer auditLog.Close()

	sources := []search.Source{
		search.NewTaskSource(tasks),
		search.NewListSource(lists),
	}

	// Redis and Dgraph are optional; the assistant runs without vector
	// memories or the knowledge graph when they are unreachable.
	var memories *store.MemoryStore
	memCfg := store.DefaultMemoryConfig()
	memCfg.RedisURL = cfg.Storage.RedisAddr
	if memories, err = store.NewMemoryStore(memCfg); err != nil {
		logger.Warn("memory store unavailable", zap.Error(err))
		memories = nil
	} else {
		defer memories.Close()
		sources = append(sources, search.NewMemorySource(memories))
	}

	var facts *store.FactStore
	if facts, err = store.NewFactStore(cfg.Storage.DgraphAddr); err != nil {
		logger.Warn("fact store unavailable", zap.Error(err))
		facts = nil
	} else {
		defer facts.Close()
		sources = append(sources, search.NewFactSource(facts))
	}

	registry := tools.NewRegistry()
	toolList := []tools.Tool{
		tools.NewReminderTool(tasks),
		tools.NewReminderQueryTool(tasks),
		tools.NewListAddTool(lists),
		tools.NewListQueryTool(lists),
	}
	if memories != nil {
		toolList = append(toolList, tools.NewMemoryTool(memories, facts))
	}
	for _, tool := range toolList {
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("registering %s: %w", tool.Name(), err)
		}
	}

	contexts := convo.NewStore(&convo.StoreConfig{
		TTL:           cfg.Convo.TTL.Std(),
		SweepInterval: time.Minute,
		MaxTurns:      cfg.Convo.MaxTurns,
	})
	defer contexts.Close()

	orch := assistant.New(
		&assistant.Config{MaxToolRetries: cfg.Tools.MaxRetries},
		contexts,
		intent.NewRouter(pool, nil),
		enrich.NewEngine(pool, nil),
		registry,
		search.NewCoordinator(pool, sources, auditLog, logger.Named("search")),
		pool,
		auditLog,
		logger.Named("assistant"),
	)

	logger.Info("famulus started",
		zap.String("version", version),
		zap.String("model", cfg.Model.Name))

	if cfg.Telegram.Token != "" {
		return serveTelegram(ctx, cfg.Telegram.Token, orch, logger)
	}
	return serveConsole(ctx, orch)
}

// serveTelegram pumps messages between Telegram and the orchestrator.
// Updates are enqueued from this single loop, so the dispatcher sees
// each conversation's turns in arrival order.
func serveTelegram(ctx context.Context, token string, orch *assistant.Orchestrator, logger *zap.Logger) error {
	tg := channel.NewTelegram(token, logger.Named("telegram"))
	if err := tg.Start(ctx); err != nil {
		return err
	}
	defer tg.Stop()

	dispatcher := assistant.NewDispatcher(func(ctx context.Context, msg *models.InboundMessage) {
		reply := orch.HandleMessage(ctx, msg)
		if err := tg.Send(ctx, reply); err != nil {
			logger.Error("send failed",
				zap.String("conversation_id", msg.ConversationID),
				zap.Error(err))
		}
	})
	defer dispatcher.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-tg.Incoming():
			if !ok {
				return nil
			}
			dispatcher.Enqueue(ctx, msg)
		}
	}
}

// serveConsole runs a local single-conversation loop on stdin.
func serveConsole(ctx context.Context, orch *assistant.Orchestrator) error {
	fmt.Printf("famulus %s - type a message, Ctrl-D to quit\n\n", version)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		reply := orch.HandleMessage(ctx, &models.InboundMessage{
			ID:             fmt.Sprintf("console-%d", time.Now().UnixNano()),
			ConversationID: "console",
			UserID:         "console",
			Text:           text,
			ReceivedAt:     time.Now(),
		})
		fmt.Printf("Famulus: %s\n\n", reply.Text)
	}
}
