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

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/m4xw311/aide/agent"
	"github.com/m4xw311/aide/classify"
	"github.com/m4xw311/aide/config"
	"github.com/m4xw311/aide/llm"
	"github.com/m4xw311/aide/memory"
	"github.com/m4xw311/aide/task"
	"github.com/m4xw311/aide/tools"
	"github.com/m4xw311/aide/tools/mcp"
)

func main() {
	verboseFlag := flag.Bool("v", false, "Enable debug logging")
	jsonLogFlag := flag.Bool("log-json", false, "Emit logs as JSON")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *jsonLogFlag {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	if *verboseFlag {
		log.SetLevel(logrus.DebugLevel)
	}
	entry := logrus.NewEntry(log)

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %+v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	journal, err := buildJournal(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing memory: %+v\n", err)
		os.Exit(1)
	}

	adapter, catalog, err := buildProviders(ctx, cfg, entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing providers: %+v\n", err)
		os.Exit(1)
	}

	baseTools, mcpClients, err := buildTools(ctx, cfg, journal, entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing tools: %+v\n", err)
		os.Exit(1)
	}
	defer func() {
		for _, client := range mcpClients {
			if err := client.Stop(); err != nil {
				entry.WithError(err).Warn("Failed to stop MCP server")
			}
		}
	}()

	engine := agent.NewEngine(adapter, journal, agent.NewLogObserver(entry),
		cfg.Engine.MaxIterations, cfg.Engine.HistoryWindow, cfg.Engine.CallTimeout(), entry)
	registry := agent.NewRegistry(engine, journal, entry)

	if err := registerAgents(cfg, catalog, baseTools, registry, entry); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing agents: %+v\n", err)
		os.Exit(1)
	}

	classifierModel := cfg.Classifier.Model
	if classifierModel == "" {
		if selected, err := catalog.SelectModel("personal"); err == nil {
			classifierModel = selected
		}
	}
	classifier := classify.NewClassifier(adapter, classifierModel,
		cfg.Classifier.AcceptThreshold, cfg.Classifier.ClarifyThreshold, entry)
	router := classify.NewRouter(classifier, entry)

	// One-shot mode: route and execute the arguments as a single request.
	if prompt := strings.Join(flag.Args(), " "); prompt != "" {
		handle(ctx, router, registry, prompt)
		return
	}

	fmt.Println("aide is ready. Type a request, or 'exit' to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}
		handle(ctx, router, registry, input)
		if ctx.Err() != nil {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %+v\n", err)
		os.Exit(1)
	}
}

// handle routes one request and, when it yields a task, runs it.
func handle(ctx context.Context, router *classify.Router, registry *agent.Registry, input string) {
	result := router.Route(ctx, input)
	if result.Clarification != nil {
		fmt.Println(result.Clarification.Question)
		return
	}

	if result.Task.Metadata["requires_approval"] == true {
		fmt.Printf("Note: %q acts on your behalf and will need your approval before anything is sent.\n",
			result.Task.Title)
	}

	if err := registry.ExecuteTask(ctx, result.Task); err != nil {
		fmt.Fprintf(os.Stderr, "Task failed: %+v\n", err)
		return
	}
	if result.Task.Result != nil {
		fmt.Println(result.Task.Result.Output)
	}
}

func buildJournal(ctx context.Context, cfg *config.Config) (memory.Journal, error) {
	switch cfg.Memory.Driver {
	case "redis":
		return memory.NewRedisJournal(ctx, cfg.Memory.RedisAddr, cfg.Memory.RedisPassword, cfg.Memory.RedisDB)
	default:
		return memory.NewInMemoryJournal(), nil
	}
}

// buildProviders constructs a client per enabled provider and the model
// catalog derived from the same configuration. With nothing enabled the
// adapter falls back to the mock client so the loop stays usable offline.
func buildProviders(ctx context.Context, cfg *config.Config, log *logrus.Entry) (*llm.Adapter, *llm.Catalog, error) {
	adapter := llm.NewAdapter(cfg.DefaultProvider, log)
	var models []llm.ModelInfo

	for name, providerCfg := range cfg.Providers {
		if !providerCfg.Enabled {
			continue
		}
		var (
			client llm.Client
			err    error
		)
		switch name {
		case "openai":
			client, err = llm.NewOpenAIClient(ctx)
		case "anthropic":
			client, err = llm.NewAnthropicClient(ctx)
		case "gemini":
			client, err = llm.NewGeminiClient(ctx)
		case "bedrock":
			client, err = llm.NewBedrockClient(ctx)
		case "ollama":
			client, err = llm.NewOllamaClient(providerCfg.BaseURL)
		default:
			log.WithField("provider", name).Warn("Unknown provider in configuration, skipping")
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		adapter.RegisterClient(name, client)
		if providerCfg.Model != "" {
			models = append(models, llm.ModelInfo{
				ID:          fmt.Sprintf("%s:%s", name, providerCfg.Model),
				Provider:    name,
				IsLocal:     name == "ollama",
				IsAvailable: true,
				Capabilities: llm.Capabilities{
					SupportsTools:     true,
					SupportsStreaming: true,
				},
			})
		}
	}

	if len(adapter.Providers()) == 0 {
		log.Warn("No providers enabled, using the mock client")
		adapter = llm.NewAdapter("mock", log)
		adapter.RegisterClient("mock", &llm.MockClient{})
		models = append(models, llm.ModelInfo{
			ID: "mock:mock", Provider: "mock", IsLocal: true, IsAvailable: true,
			Capabilities: llm.Capabilities{SupportsTools: true, SupportsStreaming: true},
		})
	}
	return adapter, llm.NewCatalog(models), nil
}

// buildTools assembles the shared tool registry: journal-backed built-ins
// plus every tool exposed by the configured MCP servers.
func buildTools(ctx context.Context, cfg *config.Config, journal memory.Journal, log *logrus.Entry) (*tools.Registry, []*mcp.Client, error) {
	registry := tools.NewRegistry(log)
	registry.Register(&tools.RememberTool{Journal: journal})
	registry.Register(&tools.RecallTool{Journal: journal})
	registry.Register(&tools.CurrentTimeTool{})

	var clients []*mcp.Client
	for _, server := range cfg.AdditionalMCPServers {
		client, err := mcp.NewClient(ctx, server.Name, server.Command, server.Args, log)
		if err != nil {
			for _, c := range clients {
				c.Stop()
			}
			return nil, nil, err
		}
		clients = append(clients, client)
		for _, tool := range client.Tools() {
			registry.Register(tool)
		}
	}
	return registry, clients, nil
}

// registerAgents builds one agent per configuration entry, resolving its
// toolset against the shared registry and pinning or selecting its model.
func registerAgents(cfg *config.Config, catalog *llm.Catalog, baseTools *tools.Registry, registry *agent.Registry, log *logrus.Entry) error {
	agentConfigs := cfg.Agents
	if len(agentConfigs) == 0 {
		agentConfigs = []config.AgentConfig{
			{Role: "assistant", Type: "personal", SystemPrompt: "You are a helpful personal assistant."},
		}
	}

	for _, agentCfg := range agentConfigs {
		agentTools := tools.NewRegistry(log)
		if toolset, err := cfg.GetToolset(agentCfg.Toolset); err == nil {
			resolved, err := baseTools.Resolve(toolset.Tools)
			if err != nil {
				return err
			}
			for _, tool := range resolved {
				agentTools.Register(tool)
			}
		} else {
			// No toolsets configured at all: give the agent everything.
			for _, tool := range baseTools.All() {
				agentTools.Register(tool)
			}
		}

		model := agentCfg.Model
		if model == "" {
			selected, err := catalog.SelectModel(task.Type(agentCfg.Type))
			if err != nil {
				return err
			}
			model = selected
		}

		id := fmt.Sprintf("agent-%s-%s", agentCfg.Role, uuid.NewString()[:8])
		registry.Register(agent.New(id, agentCfg.Role, agentCfg.Type, agentCfg.SystemPrompt, model, agentTools))
		log.WithFields(logrus.Fields{
			"agent": id,
			"role":  agentCfg.Role,
			"model": model,
			"tools": agentTools.Names(),
		}).Info("Registered agent")
	}
	return nil
}
