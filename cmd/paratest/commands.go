package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pipelinehardening/paratest/internal/batchsched"
	"github.com/pipelinehardening/paratest/internal/config"
	"github.com/pipelinehardening/paratest/internal/domain"
	"github.com/pipelinehardening/paratest/internal/gitvcs"
	"github.com/pipelinehardening/paratest/internal/httpapi"
	"github.com/pipelinehardening/paratest/internal/notify"
	"github.com/pipelinehardening/paratest/internal/orchestrator"
	"github.com/pipelinehardening/paratest/internal/planparser"
	"github.com/pipelinehardening/paratest/internal/reportstore"
	"github.com/pipelinehardening/paratest/internal/testrunner"
	"github.com/pipelinehardening/paratest/internal/tui"
)

var (
	runPriority   int
	runBatchRange string
	servePort     int
	scheduleFile  string
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run PLAN...",
		Short: "Run one or more test plans and print the session report",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRun,
	}
	runCmd.Flags().IntVar(&runPriority, "priority", 0, "priority for every submitted plan (higher runs first)")
	runCmd.Flags().StringVar(&runBatchRange, "batch-range", "all", `"all" or "start-end"`)
	rootCmd.AddCommand(runCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "List recent sessions from the report store",
		RunE:  runStatus,
	}
	rootCmd.AddCommand(statusCmd)

	serveCmd := &cobra.Command{
		Use:   "serve PLAN...",
		Short: "Run plans behind an HTTP submission API with SSE progress",
		Args:  cobra.MinimumNArgs(0),
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)

	tuiCmd := &cobra.Command{
		Use:   "tui PLAN...",
		Short: "Run plans with a live terminal status view",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runTUI,
	}
	rootCmd.AddCommand(tuiCmd)

	scheduleCmd := &cobra.Command{
		Use:   "schedule FILE",
		Short: "Run scheduled batches from a cron schedule file until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedule,
	}
	rootCmd.AddCommand(scheduleCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

func buildRequests(plans []string, cfg *config.Config, priority int, br domain.BatchRange) ([]*domain.TestRequest, error) {
	parser := planparser.New()
	reqs := make([]*domain.TestRequest, 0, len(plans))
	for _, path := range plans {
		if _, err := parser.Parse(path); err != nil {
			return nil, fmt.Errorf("parsing plan %s: %w", path, err)
		}
		reqs = append(reqs, &domain.TestRequest{
			ID:         uuid.NewString(),
			PlanPath:   path,
			BatchRange: br,
			Priority:   priority,
			MaxRetries: cfg.Runner.MaxRetries,
			Config: domain.RunnerConfig{
				Timeout:    cfg.Runner.Timeout,
				MaxRetries: cfg.Runner.MaxRetries,
			},
			CreatedAt: time.Now(),
		})
	}
	return reqs, nil
}

func parseBatchRangeFlag(s string) domain.BatchRange {
	if s == "" || s == "all" {
		return domain.AllBatches
	}
	var start, end int
	if _, err := fmt.Sscanf(s, "%d-%d", &start, &end); err != nil {
		return domain.AllBatches
	}
	return domain.BatchRange{Start: start, End: end}
}

func newOrchestrator(cfg *config.Config) *orchestrator.Orchestrator {
	vcs := gitvcs.New(cfg.General.RepoDir, cfg.General.BaseBranch)
	run := testrunner.New(cfg.Runner.Command)
	return orchestrator.New(orchestrator.Config{
		NumWorkers:      cfg.General.NumWorkers,
		WorktreeBaseDir: cfg.General.WorktreeDir,
		MaxQueueSize:    cfg.General.MaxQueueSize,
		ResetFailureCap: cfg.General.ResetFailureCap,
	}, vcs, run)
}

func persistAndNotify(cfg *config.Config, report domain.SessionReport) {
	if store, err := reportstore.New(cfg.General.DatabasePath); err == nil {
		defer store.Close()
		if err := store.SaveReport(report); err != nil {
			fmt.Fprintf(os.Stderr, "warning: saving report: %v\n", err)
		}
	} else {
		fmt.Fprintf(os.Stderr, "warning: opening report store: %v\n", err)
	}

	notifier := buildNotifier(cfg)
	if err := notifier.Send(notify.FromSessionReport(report)); err != nil {
		fmt.Fprintf(os.Stderr, "warning: sending notification: %v\n", err)
	}
}

func buildNotifier(cfg *config.Config) notify.Notifier {
	var notifiers []notify.Notifier
	if cfg.Notifications.Desktop {
		notifiers = append(notifiers, notify.NewDesktopNotifier(true))
	}
	if cfg.Notifications.SlackWebhook != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(cfg.Notifications.SlackWebhook))
	}
	if len(notifiers) == 0 {
		return notify.NoopNotifier{}
	}
	return notify.NewMultiNotifier(notifiers...)
}

func printReport(report domain.SessionReport) {
	fmt.Printf("session %s: %s (%s passed, %s failed, %s total) finished %s\n",
		report.SessionID, report.Status,
		humanize.Comma(int64(report.Summary.Passed)),
		humanize.Comma(int64(report.Summary.Failed)),
		humanize.Comma(int64(report.Summary.Total)),
		humanize.Time(report.CompletedAt))
	for _, w := range report.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	for _, r := range report.Results {
		fmt.Printf("  %-36s %-9s worker=%s lease=%s\n", r.RequestID, r.Status, r.WorkerID, r.WorktreeID)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reqs, err := buildRequests(args, cfg, runPriority, parseBatchRangeFlag(runBatchRange))
	if err != nil {
		return err
	}

	orc := newOrchestrator(cfg)
	ctx := context.Background()
	report, err := orc.RunTests(ctx, reqs)
	if err != nil {
		return err
	}

	printReport(report)
	persistAndNotify(cfg, report)
	if report.Status == domain.SessionFailed {
		os.Exit(1)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := reportstore.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.ListSessions()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTATUS\tSTARTED\tPASSED\tFAILED\tTOTAL")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
			s.SessionID, s.Status, humanize.Time(s.StartedAt), s.Passed, s.Failed, s.Total)
	}
	return w.Flush()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	port := cfg.Web.Port
	if servePort != 0 {
		port = servePort
	}

	orc := newOrchestrator(cfg)
	if err := orc.Initialize(context.Background()); err != nil {
		return err
	}
	if err := orc.Start(context.Background()); err != nil {
		return err
	}
	defer orc.Shutdown(context.Background())

	if len(args) > 0 {
		reqs, err := buildRequests(args, cfg, runPriority, parseBatchRangeFlag(runBatchRange))
		if err != nil {
			return err
		}
		if err := orc.SubmitBatch(reqs); err != nil {
			return err
		}
	}

	adapter := newSessionAdapter(orc)
	server := httpapi.NewServer(fmt.Sprintf("%s:%d", cfg.Web.Host, port), adapter)

	go func() {
		report := orc.WaitForCompletion()
		server.NotifyCompletion(report)
		persistAndNotify(cfg, report)
	}()

	fmt.Printf("serving on %s:%d\n", cfg.Web.Host, port)
	return server.Start()
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reqs, err := buildRequests(args, cfg, runPriority, parseBatchRangeFlag(runBatchRange))
	if err != nil {
		return err
	}

	orc := newOrchestrator(cfg)
	ctx := context.Background()
	if err := orc.Initialize(ctx); err != nil {
		return err
	}
	if err := orc.Start(ctx); err != nil {
		return err
	}
	defer orc.Shutdown(ctx)

	adapter := newSessionAdapter(orc)
	if err := adapter.SubmitBatch(reqs); err != nil {
		return err
	}

	program := tea.NewProgram(tui.New(adapter))
	if _, err := program.Run(); err != nil {
		return err
	}

	report := orc.WaitForCompletion()
	persistAndNotify(cfg, report)
	printReport(report)
	return nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	file, err := batchsched.LoadScheduleFile(args[0])
	if err != nil {
		return err
	}

	sched, err := batchsched.NewScheduler(file.Schedules)
	if err != nil {
		return err
	}

	go sched.Start(func(sc batchsched.ScheduleConfig) error {
		reqs, err := buildRequests(sc.Plans, cfg, 0, domain.AllBatches)
		if err != nil {
			return err
		}
		orc := newOrchestrator(cfg)
		ctx, cancel := context.WithTimeout(context.Background(), sc.MaxDuration)
		defer cancel()
		report, err := orc.RunTests(ctx, reqs)
		if err != nil {
			return err
		}
		printReport(report)
		if sc.Notify {
			persistAndNotify(cfg, report)
		}
		return nil
	})

	fmt.Println("schedule running, press ctrl+c to stop")
	select {}
}
