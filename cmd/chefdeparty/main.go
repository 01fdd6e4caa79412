package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/tools/duckduckgo"

	"github.com/lucas-homer/chefdeparty-sub001/internal/agent"
	"github.com/lucas-homer/chefdeparty-sub001/internal/gateway"
	"github.com/lucas-homer/chefdeparty-sub001/internal/governance"
	"github.com/lucas-homer/chefdeparty-sub001/internal/observability"
	"github.com/lucas-homer/chefdeparty-sub001/internal/recipes"
	"github.com/lucas-homer/chefdeparty-sub001/internal/store"
	"github.com/lucas-homer/chefdeparty-sub001/internal/wizard"
	"github.com/lucas-homer/chefdeparty-sub001/pkg/config"
)

func main() {
	observability.PrintBanner()
	observability.InitializeTerminal()

	// Route all log output through the terminal mutex so it never
	// interrupts the dashboard's cursor save/restore sequence.
	log.SetOutput(observability.NewTermWriter())

	cfg := config.LoadConfig("config.yaml")

	tgCfg, tgOK := cfg.GetTelegramConfig()
	dcCfg, dcOK := cfg.GetDiscordConfig()
	if !tgOK && !dcOK {
		log.Fatal("No chat gateway is enabled; configure telegram or discord")
	}

	st, err := store.NewStore(cfg.Memory.Path)
	if err != nil {
		log.Fatal(err)
	}

	defaultModel := buildModel(cfg, "default")
	escalatedModel := buildModel(cfg, "escalated")

	prompts := wizard.NewPromptManager(cfg.Prompts.Directory)
	logger := observability.NewLogger()

	var search wizard.Searcher
	ddg, err := duckduckgo.New(5, duckduckgo.DefaultUserAgent)
	if err != nil {
		log.Printf("Warning: recipe search disabled: %v", err)
	} else {
		search = ddg
	}

	// Each step's toolset is also its policy allowlist.
	policy := governance.NewStepPolicyEngine()
	confirms := wizard.NewConfirmStore()
	exec := wizard.NewExecutor(confirms, st)
	for _, step := range []wizard.Step{wizard.StepEventInfo, wizard.StepGuestList, wizard.StepMenu, wizard.StepSchedule} {
		for _, t := range wizard.ToolsForStep(step, wizard.ToolDeps{Exec: exec, Search: search}) {
			policy.AllowTool(step.String(), t.Name)
		}
	}

	engine := wizard.NewEngine(defaultModel, escalatedModel, prompts, policy, logger, cfg.Wizard.StepBudget)
	extractor := recipes.NewLLMExtractor(defaultModel)
	scheduler := wizard.NewLLMScheduleGenerator(defaultModel)

	orch := wizard.NewOrchestrator(st, engine, confirms, exec,
		recipes.NewFetcher(), extractor, scheduler, search, logger)

	var messengers []gateway.Messenger
	if tgOK {
		tg, err := gateway.NewTelegramGateway(tgCfg.Token, orch, st)
		if err != nil {
			log.Fatal(err)
		}
		messengers = append(messengers, tg)
	}
	if dcOK {
		dc, err := gateway.NewDiscordGateway(dcCfg.Token, orch, st)
		if err != nil {
			log.Fatal(err)
		}
		messengers = append(messengers, dc)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reminders := agent.NewReminders(st, messengers[0], logger)
	go reminders.Start(ctx)

	// Live Resource Dashboard (1-second updates)
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.PrintLiveStatus()
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.Heartbeat()
			}
		}
	}()

	for _, m := range messengers {
		go func(m gateway.Messenger) {
			if err := m.Start(); err != nil {
				log.Printf("\033[91m[ FAIL ] GATEWAY CRITICAL ERROR: %v\033[0m", err)
				stop()
			}
		}(m)
	}

	<-ctx.Done()

	for _, m := range messengers {
		_ = m.Stop()
	}
	observability.CleanupTerminal()

	// Give a short time for final logs/syncs
	time.Sleep(500 * time.Millisecond)
	log.Println("\033[95m[ EXIT ] KITCHEN CLOSED. GOODBYE.\033[0m")
}

// buildModel constructs the llms.Model for a backend tier. The escalated
// tier falls back to the default tier's settings when absent.
func buildModel(cfg *config.Config, tier string) llms.Model {
	pCfg, ok := cfg.GetTier(tier)
	if !ok {
		log.Fatalf("No %s provider found in config", tier)
	}

	opts := []openai.Option{
		openai.WithToken(pCfg.APIKey),
		openai.WithModel(pCfg.Model),
	}
	if pCfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		log.Fatal(err)
	}
	return llm
}
