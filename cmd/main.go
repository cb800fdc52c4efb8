package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/term-linker/internal/config"
	"github.com/MimeLyc/term-linker/internal/httpapi"
	"github.com/MimeLyc/term-linker/internal/hyperlink"
	"github.com/MimeLyc/term-linker/internal/jobs"
	"github.com/MimeLyc/term-linker/internal/library"
	"github.com/MimeLyc/term-linker/internal/persistence"
	"github.com/MimeLyc/term-linker/internal/service"
	"github.com/MimeLyc/term-linker/internal/watch"
	"github.com/MimeLyc/term-linker/pkg/log"
)

const shutdownTimeout = 10 * time.Second

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func main() {
	// A missing .env is fine; the environment may be set by other means.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	return root.ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Link on a schedule and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	onceCmd := &cobra.Command{
		Use:   "once",
		Short: "Link the library once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context())
		},
	}

	root := &cobra.Command{
		Use:           "term-linker",
		Short:         "Wrap known terms in documents with hyperlinks",
		Long:          "Links the terms of link_rules files across document libraries: once, on a schedule, or on demand over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serveCmd.RunE,
	}
	root.AddCommand(serveCmd)
	root.AddCommand(onceCmd)
	root.AddCommand(newLinkCmd())
	return root
}

func setupLogging(cfg config.SystemConfig) (func() error, error) {
	level := log.ParseLevel(cfg.LogLevel)
	if cfg.LogFile == "" {
		log.InitLogger(level)
		return func() error { return nil }, nil
	}

	fileLogger, err := log.NewFileLogger(cfg.LogFile, level)
	if err != nil {
		return nil, err
	}
	log.SetLogger(fileLogger.Logger)
	return fileLogger.Close, nil
}

// app holds the components shared by the once and serve commands.
type app struct {
	cfg     *config.Config
	scanner *library.Scanner
	store   *persistence.SQLiteStore
	cron    *cron.Cron
	service *service.LinkService
	close   func() error
}

func newApp() (*app, error) {
	cfg, err := config.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	closeLog, err := setupLogging(cfg.System)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	settingsPath := config.RuntimeSettingsFilePath()
	if stored, err := config.LoadRuntimeSettingsFile(settingsPath); err == nil {
		if err := stored.Validate(); err != nil {
			log.Warn("Ignoring invalid runtime settings in %s: %v", settingsPath, err)
		} else {
			cfg.Link.Apply(stored)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to read runtime settings from %s: %v", settingsPath, err)
	}

	store, err := persistence.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	scanner := library.NewScanner(
		cfg.Link.Sources(),
		cfg.Link.DefaultLanguage,
		library.WithExtensions(cfg.Link.Extensions...),
	)
	cronEngine := cron.New()

	return &app{
		cfg:     cfg,
		scanner: scanner,
		store:   store,
		cron:    cronEngine,
		service: service.NewLinkService(*cfg, scanner, store, cronEngine),
		close: func() error {
			return errors.Join(store.Close(), closeLog())
		},
	}, nil
}

func runOnce(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.service.RunOnce(ctx)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed to link", report.Failed, report.Scanned)
	}
	return nil
}

func runServe(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	settings, err := config.NewRuntimeSettingsStore(config.RuntimeSettingsFilePath(), a.cfg.RuntimeSettings())
	if err != nil {
		return fmt.Errorf("failed to create settings store: %w", err)
	}

	queue := jobs.NewQueue(1, a.store)
	queue.Start(a.service.Execute)
	defer queue.Stop()

	enqueueRun := func(source string) {
		queue.Enqueue(jobs.EnqueueRequest{
			Source:  source,
			Payload: jobs.JobPayload{Kind: jobs.KindRun},
		})
	}
	enqueueRun("startup")

	if a.cfg.Link.Watch {
		watcher, err := watch.NewWatcher(
			watch.WithExtensions(a.cfg.Link.Extensions...),
			watch.WithIgnore(a.cfg.Link.OutputDir),
		)
		if err != nil {
			return fmt.Errorf("failed to create file watcher: %w", err)
		}
		defer watcher.Stop()

		err = watcher.Watch(a.cfg.Link.SourceDirs, func(paths []string) {
			log.Info("Detected %d changed files, queueing a link run", len(paths))
			a.scanner.Invalidate()
			enqueueRun("watch")
		})
		if err != nil {
			return fmt.Errorf("failed to watch sources: %w", err)
		}
	}

	server := httpapi.NewServer(a.scanner, queue,
		httpapi.WithUI(a.cfg.HTTP.UIStaticDir, a.cfg.HTTP.UIEnabled),
		httpapi.WithDocumentStates(a.store),
		httpapi.WithRunReports(a.service),
		httpapi.WithRuntimeSettingsStore(settings),
		httpapi.WithRuntimeSettingsApplier(a.service.ApplyRuntimeSettings),
	)

	return runWithComponents(ctx, a.cfg, a.service, a.cron, server)
}

// runWithComponents schedules link passes and serves HTTP until ctx is done
// or the server fails.
func runWithComponents(
	ctx context.Context,
	cfg *config.Config,
	sched scheduler,
	cronEngine cronEngine,
	httpSrv httpServer,
) error {
	if err := sched.Schedule(ctx); err != nil {
		return err
	}
	cronEngine.Start()
	// Passes still running see ctx cancelled and return early.
	defer cronEngine.Stop()

	if cfg.HTTP.Addr == "" {
		log.Info("HTTP server disabled")
		<-ctx.Done()
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe(cfg.HTTP.Addr)
	}()
	log.Info("HTTP server listening on %s", cfg.HTTP.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		err := <-errCh
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	}
}

func newLinkCmd() *cobra.Command {
	var (
		url        string
		terms      []string
		capitalize string
		attrs      attrFlags
	)

	cmd := &cobra.Command{
		Use:   "link [text]",
		Short: "Link terms in the given text, or stdin, to a URL",
		Example: `  term-linker link --url https://go.dev --term Go --term gopher "Go gophers"
  cat page.html | term-linker link --url /glossary/cat --term cat --attr class=term --attr rel`,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := hyperlink.ParseCapitalizePolicy(capitalize)
			if err != nil {
				return err
			}

			var text string
			if len(args) > 0 {
				text = strings.Join(args, " ")
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}

			linked, err := hyperlink.Link(text, terms, url, hyperlink.Options{
				Attributes: attrs,
				Capitalize: policy,
			})
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), linked)
			return err
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "link target")
	cmd.Flags().StringArrayVarP(&terms, "term", "t", nil, "term to link, taken verbatim (repeatable)")
	cmd.Flags().StringVar(&capitalize, "capitalize", "", "always | leading-upper | any-upper")
	cmd.Flags().Var(&attrs, "attr", "anchor attribute as name=value, or a bare name to drop a default (repeatable)")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

// attrFlags collects repeated --attr flags. "name=value" sets an attribute;
// a bare "name" removes it.
type attrFlags []hyperlink.Attribute

func (a *attrFlags) String() string {
	parts := make([]string, 0, len(*a))
	for _, attr := range *a {
		if attr.Unset {
			parts = append(parts, attr.Name)
			continue
		}
		parts = append(parts, attr.Name+"="+attr.Value)
	}
	return strings.Join(parts, ",")
}

func (a *attrFlags) Type() string {
	return "attribute"
}

func (a *attrFlags) Set(v string) error {
	name, value, ok := strings.Cut(v, "=")
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("attribute name is required")
	}
	if !ok {
		*a = append(*a, hyperlink.Omit(name))
		return nil
	}
	*a = append(*a, hyperlink.Attr(name, value))
	return nil
}
