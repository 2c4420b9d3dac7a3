// Command ganesha forks a context for a goal, delegates it to a Mini-Me
// sub-agent and prints the result, optionally verifying it first.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"ganesha/pkg/agent"
	"ganesha/pkg/agent/middleware/metrics"
	"ganesha/pkg/config"
	"ganesha/pkg/logx"
	gmetrics "ganesha/pkg/metrics"
	"ganesha/pkg/minime"
	"ganesha/pkg/orchestrator"
	"ganesha/pkg/persistence"
	"ganesha/pkg/verify"
)

// passwordEnv unlocks the encrypted secrets file without a prompt.
const passwordEnv = "GANESHA_PASSWORD"

type options struct {
	configPath  string
	goal        string
	tier        string
	files       string
	facts       string
	projectDir  string
	verify      bool
	escalate    bool
	metricsAddr string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to YAML config (default: built-in providers)")
	flag.StringVar(&opts.goal, "goal", "", "Goal to delegate")
	flag.StringVar(&opts.tier, "tier", "fast", "Required model tier: fast, standard, capable, vision, cloud, premium")
	flag.StringVar(&opts.files, "files", "", "Comma-separated relevant files for the forked context")
	flag.StringVar(&opts.facts, "facts", "", "Semicolon-separated facts for the forked context")
	flag.StringVar(&opts.projectDir, "projectdir", ".", "Project directory (working tree and .ganesha state)")
	flag.BoolVar(&opts.verify, "verify", false, "Wrap the task in the verification loop")
	flag.BoolVar(&opts.escalate, "escalate", false, "Allow the sub-agent to escalate when stuck")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flag.Parse()

	os.Exit(run(opts))
}

// run returns an exit code so deferred cleanup executes before os.Exit.
func run(opts options) int {
	logger := logx.NewLogger("ganesha")

	if opts.goal == "" {
		fmt.Fprintln(os.Stderr, "-goal is required")
		return 2
	}
	tier, err := config.ParseTier(opts.tier)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -tier: %v\n", err)
		return 2
	}

	config.LoadDotEnv()
	if err := unlockSecrets(opts.projectDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to handle secrets: %v\n", err)
		return 1
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	registry, err := config.NewRegistry(cfg.Providers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid providers: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	usage := metrics.NewInternalRecorder()
	factory := agent.NewLLMClientFactory(agent.WithRecorder(metrics.Multi(usage, metrics.NewPrometheusRecorder(reg))))

	if opts.metricsAddr != "" {
		srv := serveMetrics(opts.metricsAddr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithRecorder(gmetrics.NewPrometheusScheduler(reg)),
		orchestrator.WithSubAgentConfig(cfg.SubAgent),
	}
	if cfg.Persistence.Path != "" {
		store, err := persistence.Open(cfg.Persistence.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open session store: %v\n", err)
			return 1
		}
		defer store.Close()
		orchOpts = append(orchOpts, orchestrator.WithPlanStore(persistence.NewPlanStore(store)))
	}

	orch, err := orchestrator.New(registry, factory, orchOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start orchestrator: %v\n", err)
		return 1
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.SubAgent.TaskTimeout)
		defer cancel()
		if err := orch.Close(closeCtx); err != nil {
			logger.Warn("orchestrator close: %v", err)
		}
	}()

	fc, err := minime.Fork(opts.goal, splitList(opts.files, ","))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to fork context: %v\n", err)
		return 2
	}
	fc = fc.WithWorkDir(opts.projectDir).WithFacts(splitList(opts.facts, ";")...)

	newTask := func(description string) minime.Task {
		t := minime.NewTask(description, fc, tier)
		t.AllowEscalation = opts.escalate
		return t
	}

	pretty := term.IsTerminal(int(os.Stdout.Fd()))
	var res minime.Result
	if opts.verify {
		res, err = runVerified(ctx, orch, factory, registry, tier, cfg.Verify, opts.goal, newTask)
	} else {
		res, err = orch.WaitFor(ctx, orch.Spawn(ctx, newTask(opts.goal)))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		if res.TaskID != uuid.Nil {
			fmt.Print(formatResult(res, pretty))
		}
		return 1
	}

	fmt.Print(formatResult(res, pretty))
	fmt.Println()
	fmt.Println(orch.Summary())

	if sm, ok := usage.Session(orch.SessionID().String()); ok {
		fmt.Printf("\nModel requests: %d (%d failed), tokens: %d, cost: $%.4f\n",
			sm.RequestCount, sm.FailedCount, sm.TotalTokens, sm.TotalCost)
	}
	reportPrometheusUsage(ctx, cfg.Metrics.PrometheusURL, orch.SessionID().String(), logger)

	if !res.Success {
		return 1
	}
	return 0
}

// runVerified retries the goal through fresh sub-agents until a model-backed
// verifier accepts the result.
func runVerified(ctx context.Context, orch *orchestrator.Orchestrator, factory *agent.LLMClientFactory,
	registry *config.Registry, tier config.ModelTier, vc config.VerifyConfig, goal string,
	newTask func(string) minime.Task,
) (minime.Result, error) {
	judge, ok := registry.Select(tier)
	if !ok {
		judge = registry.Default()
	}
	client, err := factory.CreateClient(judge)
	if err != nil {
		return minime.Result{}, fmt.Errorf("create verifier client: %w", err)
	}

	var last minime.Result
	loop := verify.NewLoop(verify.NewLLMVerifier(client), verify.FromConfig(vc))
	_, err = loop.Run(ctx, goal, func(ctx context.Context, prompt string, _ []verify.IterationContext) (string, string, error) {
		task := newTask(prompt)
		res, err := orch.WaitFor(ctx, orch.Spawn(ctx, task))
		if err != nil {
			return "", "", err
		}
		last = res
		action := fmt.Sprintf("Mini-Me %s on %s (%s), files modified: %v", res.TaskID, res.Provider, res.Outcome, res.FilesModified)
		return action, res.Summary, nil
	})
	if err != nil {
		_ = orch.AddDecision(fmt.Sprintf("Verification gave up after %d attempts: %v", len(verify.HistoryOf(err)), err))
		return last, err
	}
	_ = orch.AddDecision(fmt.Sprintf("Result of %s verified", last.TaskID))
	return last, nil
}

// unlockSecrets decrypts the project secrets file when present. The password
// comes from the environment, or an interactive prompt on a terminal.
func unlockSecrets(projectDir string) error {
	if !config.SecretsFileExists(projectDir) {
		return nil
	}
	password := os.Getenv(passwordEnv)
	if password == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("secrets file found but %s is not set", passwordEnv)
		}
		fmt.Print("Enter the Ganesha project password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(raw)
	}
	return config.LoadSecrets(projectDir, password)
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *logx.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server: %v", err)
		}
	}()
	logger.Info("📈 Serving metrics on %s/metrics", addr)
	return srv
}

func reportPrometheusUsage(ctx context.Context, url, sessionID string, logger *logx.Logger) {
	if url == "" {
		return
	}
	q, err := gmetrics.NewQueryService(url)
	if err != nil {
		logger.Warn("metrics query: %v", err)
		return
	}
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	u, err := q.SessionUsage(queryCtx, sessionID)
	if err != nil {
		logger.Warn("metrics query: %v", err)
		return
	}
	fmt.Printf("Prometheus totals: %d tokens, $%.4f\n", u.TotalTokens, u.TotalCost)
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
