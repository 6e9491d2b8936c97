// Package main provides the CLI entrypoint for passplay.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/passplay/internal/browseui"
	"github.com/verte-zerg/passplay/internal/catalog"
	"github.com/verte-zerg/passplay/internal/config"
	"github.com/verte-zerg/passplay/internal/engine"
	"github.com/verte-zerg/passplay/internal/metrics"
	"github.com/verte-zerg/passplay/internal/model"
	"github.com/verte-zerg/passplay/internal/server"
	"github.com/verte-zerg/passplay/internal/store"
	"github.com/verte-zerg/passplay/internal/tui"
)

const (
	defaultProblem = "code-review"
	defaultPasses  = 4
	defaultSpeed   = 1.0
	defaultPauseMs = 1000
	defaultAddr    = ":8080"

	defaultPlotHeight = 10
)

var (
	playProblem string
	playPasses  int
	playSpeed   float64
	playPauseMs int

	catalogPath string
	catalogDB   string

	serveAddr string

	showWidth  int
	showHeight int

	exportOut string

	configPrint bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "passplay",
		Short:         "Replay multi-pass refinement of answers",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE:          runPlayerCmd,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&playProblem, "problem", defaultProblem, "problem key")
	flags.IntVar(&playPasses, "passes", defaultPasses, "number of passes to play")
	flags.Float64Var(&playSpeed, "speed", defaultSpeed, "animation speed multiplier")
	flags.IntVar(&playPauseMs, "pause-ms", defaultPauseMs, "dwell time after each pass in milliseconds")
	flags.StringVar(&catalogPath, "catalog", "", "YAML catalog file (default: built-in problems)")
	flags.StringVar(&catalogDB, "db", "", "SQLite catalog database to read problems from")

	rootCmd.AddCommand(newProblemsCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newBrowseCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCatalogCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// loadSettings merges .env, environment and config file values into any flag
// the user did not set explicitly.
func loadSettings(cmd *cobra.Command) (model.Config, config.FileConfig, error) {
	if err := config.LoadDotEnv(); err != nil {
		return model.Config{}, config.FileConfig{}, err
	}
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.ApplyEnv(&fileCfg, os.LookupEnv); err != nil {
		return model.Config{}, config.FileConfig{}, err
	}
	applyStringConfig(cmd, "problem", &playProblem, fileCfg.Playback.Problem)
	applyIntConfig(cmd, "passes", &playPasses, fileCfg.Playback.Passes)
	applyFloatConfig(cmd, "speed", &playSpeed, fileCfg.Playback.Speed)
	applyIntConfig(cmd, "pause-ms", &playPauseMs, fileCfg.Playback.PauseMs)
	applyStringConfig(cmd, "catalog", &catalogPath, fileCfg.Catalog.Path)
	applyStringConfig(cmd, "db", &catalogDB, fileCfg.Catalog.DB)

	cfg := model.Config{
		Problem: playProblem,
		Passes:  playPasses,
		Speed:   playSpeed,
		PauseMs: playPauseMs,
	}
	if err := validateConfig(cfg); err != nil {
		return model.Config{}, config.FileConfig{}, err
	}
	return cfg, fileCfg, nil
}

// openCatalog picks the problem source: --db, then --catalog, then a user
// catalog in the config directory, then the built-in problems.
func openCatalog(ctx context.Context) (*catalog.Catalog, error) {
	if catalogDB != "" {
		st, err := store.Open(catalogDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}
		defer func() {
			if cerr := st.Close(); cerr != nil {
				logErrf("failed to close db: %v\n", cerr)
			}
		}()
		cat, err := st.LoadCatalog(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog from db: %w", err)
		}
		return cat, nil
	}
	return catalog.LoadOrEmpty(resolveCatalogPath(catalogPath), cliLogger()), nil
}

func resolveCatalogPath(path string) string {
	if path != "" {
		return path
	}
	userPath := config.DefaultCatalogPath()
	if _, err := os.Stat(userPath); err == nil {
		return userPath
	}
	return ""
}

func cliLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func runPlayerCmd(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	cat, err := openCatalog(context.Background())
	if err != nil {
		return err
	}

	m, err := tui.NewModel(cat, cfg)
	if err != nil {
		return problemError(cfg.Problem, err)
	}
	defer m.Close()

	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newProblemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "problems",
		Short: "List available problems",
		Args:  cobra.NoArgs,
		RunE:  runProblemsCmd,
	}
}

func runProblemsCmd(cmd *cobra.Command, _ []string) error {
	if _, _, err := loadSettings(cmd); err != nil {
		return err
	}
	cat, err := openCatalog(context.Background())
	if err != nil {
		return err
	}
	if cat.Len() == 0 {
		return fmt.Errorf("no problems available")
	}
	rows := make([][]string, 0, cat.Len())
	for _, p := range cat.Problems() {
		rows = append(rows, []string{p.Key, p.Title, fmt.Sprintf("%d", len(p.Passes))})
	}
	return writeLines(cmd.OutOrStdout(), metrics.FormatTable([]string{"Key", "Title", "Passes"}, rows, map[int]bool{2: true}))
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [problem]",
		Short: "Print the pass timeline and metric chart of a problem",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runShowCmd,
	}
	cmd.Flags().IntVar(&showWidth, "width", 0, "chart width (default: terminal width)")
	cmd.Flags().IntVar(&showHeight, "height", defaultPlotHeight, "chart height")
	return cmd
}

func runShowCmd(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Problem = args[0]
	}
	if showHeight <= 0 {
		return fmt.Errorf("--height must be > 0")
	}
	cat, err := openCatalog(context.Background())
	if err != nil {
		return err
	}
	p, ok := cat.Problem(cfg.Problem)
	if !ok {
		return problemError(cfg.Problem, engine.ErrUnknownProblem)
	}
	return writeShow(cmd.OutOrStdout(), p, cfg.Passes, showWidth, showHeight)
}

func writeShow(w io.Writer, p model.Problem, passes, width, height int) error {
	series := metrics.MetricHistory(p, passes)
	n := series.Len()
	lines := []string{p.Title, p.Description, ""}
	lines = append(lines, metrics.PassTable(p, n)...)
	lines = append(lines, "")
	if err := writeLines(w, lines); err != nil {
		return err
	}
	if err := metrics.PlotSeries(w, "Quality by pass", metrics.ChartSeries(series), width, height); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}

	first, last := p.Passes[0], p.Passes[n-1]
	summary := []string{""}
	if n > 1 {
		gains := metrics.RankGains(first, last)
		parts := make([]string, 0, len(gains))
		for _, g := range gains {
			parts = append(parts, fmt.Sprintf("%s %+d", g.Metric, g.Delta))
		}
		summary = append(summary, "Gains: "+strings.Join(parts, ", "))
	}
	summary = append(summary,
		"Weakest now: "+metrics.WeakestMetric(last),
		"Insight: "+metrics.Insight(n-1),
	)
	return writeLines(w, summary)
}

func newBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse [problem]",
		Short: "Browse a problem's passes, chart and details",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runBrowseCmd,
	}
}

func runBrowseCmd(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Problem = args[0]
	}
	cat, err := openCatalog(context.Background())
	if err != nil {
		return err
	}
	m, err := browseui.NewModel(cat, cfg.Problem, cfg.Passes)
	if err != nil {
		return problemError(cfg.Problem, err)
	}
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run browser TUI: %w", err)
	}
	return nil
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog API and playback websocket",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", defaultAddr, "listen address")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, fileCfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "addr", &serveAddr, fileCfg.Server.Addr)
	srvCfg := model.ServerConfig{Addr: serveAddr, PauseMs: cfg.PauseMs}
	if err := validateServerConfig(srvCfg); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cat, err := openCatalog(context.Background())
	if err != nil {
		return err
	}
	if cat.Len() == 0 {
		logger.Warn("Serving an empty catalog")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cat,
		server.WithLogger(logger),
		server.WithPause(time.Duration(srvCfg.PauseMs)*time.Millisecond),
	)
	return srv.Run(ctx, srvCfg.Addr)
}

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Import or export problem catalogs",
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a YAML catalog into the database",
		Args:  cobra.ExactArgs(1),
		RunE:  runCatalogImportCmd,
	}
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the active catalog as YAML",
		Args:  cobra.NoArgs,
		RunE:  runCatalogExportCmd,
	}
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default: stdout)")

	cmd.AddCommand(importCmd, exportCmd)
	return cmd
}

func runCatalogImportCmd(cmd *cobra.Command, args []string) error {
	if _, _, err := loadSettings(cmd); err != nil {
		return err
	}
	cat, err := catalog.LoadFile(args[0])
	if err != nil {
		return err
	}
	dbPath := catalogDB
	if dbPath == "" {
		dbPath = config.DefaultDBPath()
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	if err := st.ImportCatalog(context.Background(), cat); err != nil {
		return err
	}
	logErrf("Imported %d problems into %s\n", cat.Len(), dbPath)
	return nil
}

func runCatalogExportCmd(cmd *cobra.Command, _ []string) error {
	if _, _, err := loadSettings(cmd); err != nil {
		return err
	}
	cat, err := openCatalog(context.Background())
	if err != nil {
		return err
	}
	data, err := catalog.Marshal(cat)
	if err != nil {
		return err
	}
	if exportOut == "" {
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(exportOut), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(exportOut, data, 0o644); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	logErrf("Wrote %s\n", exportOut)
	return nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
	cmd.Flags().BoolVar(&configPrint, "print", false, "print the default config template and exit")
	return cmd
}

func runConfigCmd(cmd *cobra.Command, _ []string) error {
	if configPrint {
		if _, err := fmt.Fprint(cmd.OutOrStdout(), defaultConfigTemplate()); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	editCmd := exec.Command(parts[0], append(parts[1:], path)...)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	if err := editCmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# passplay configuration
# Uncomment a value to enable it. PASSPLAY_* environment variables override
# config values and CLI flags override both.

[playback]
# problem = %q     # Problem key
# passes = %d              # Number of passes to play
# speed = %.1f             # Animation speed multiplier
# pause-ms = %d         # Dwell time after each pass

[catalog]
# path = "problems.yaml"   # YAML catalog file
# db = "catalog.db"        # SQLite catalog database

[server]
# addr = %q           # Listen address for passplay serve
`,
		defaultProblem,
		defaultPasses,
		defaultSpeed,
		defaultPauseMs,
		defaultAddr,
	)
}

func validateConfig(cfg model.Config) error {
	if cfg.Problem == "" {
		return fmt.Errorf("--problem must not be empty")
	}
	if cfg.Passes <= 0 {
		return fmt.Errorf("--passes must be > 0")
	}
	if !engine.ValidSpeed(cfg.Speed) {
		return fmt.Errorf("--speed must be a finite number > 0")
	}
	if cfg.PauseMs < 0 {
		return fmt.Errorf("--pause-ms must be >= 0")
	}
	return nil
}

func validateServerConfig(cfg model.ServerConfig) error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("--addr must not be empty")
	}
	if cfg.PauseMs < 0 {
		return fmt.Errorf("--pause-ms must be >= 0")
	}
	return nil
}

func problemError(key string, err error) error {
	if !errors.Is(err, engine.ErrUnknownProblem) {
		return err
	}
	lines := []string{
		fmt.Sprintf("unknown problem %q", key),
		"Run: passplay problems",
	}
	return fmt.Errorf("%s", strings.Join(lines, "\n"))
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
