// Package main provides the CLI entrypoint for livetiming.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/livetiming/internal/board"
	"github.com/verte-zerg/livetiming/internal/config"
	"github.com/verte-zerg/livetiming/internal/correction"
	"github.com/verte-zerg/livetiming/internal/model"
	"github.com/verte-zerg/livetiming/internal/ranking"
	"github.com/verte-zerg/livetiming/internal/report"
	"github.com/verte-zerg/livetiming/internal/roster"
	"github.com/verte-zerg/livetiming/internal/station"
	"github.com/verte-zerg/livetiming/internal/store"
)

const (
	defaultRefreshMs = 1000
	defaultCacheSize = 16
	defaultStation   = "finish"
)

var (
	dbPath string

	boardRace      string
	boardRefreshMs int
	boardCacheSize int

	resultsRace     string
	resultsView     string
	resultsGender   string
	resultsCategory string

	statsRace string

	splitsRace string
	splitsBib  string

	segmentRace  string
	segmentIndex int

	captureRace    string
	captureStation string

	correctRace string
	correctBib  string
	correctRef  string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "livetiming",
		Short:         "Live race timing and leaderboards",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runBoardCmd,
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultDBPath(), "timing database path")
	rootCmd.Flags().StringVar(&boardRace, "race", "", "race id (default: the only race in the store)")
	rootCmd.Flags().IntVar(&boardRefreshMs, "refresh-ms", defaultRefreshMs, "leaderboard refresh interval in milliseconds")
	rootCmd.Flags().IntVar(&boardCacheSize, "cache-size", defaultCacheSize, "number of memoized rankings")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLoadCmd())
	rootCmd.AddCommand(newRacesCmd())
	rootCmd.AddCommand(newResultsCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newSplitsCmd())
	rootCmd.AddCommand(newSegmentCmd())
	rootCmd.AddCommand(newCaptureCmd())
	rootCmd.AddCommand(newCorrectCmd())

	return rootCmd
}

func loadFileConfig(cmd *cobra.Command) (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "db", &dbPath, fileCfg.Store.Path)
	return fileCfg, nil
}

func openStore() (*store.Store, func(), error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db: %w", err)
	}
	closeFn := func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}
	return st, closeFn, nil
}

// resolveRace returns id, or the single race of the store when id is empty.
func resolveRace(ctx context.Context, st *store.Store, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	races, err := st.ListRaces(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list races: %w", err)
	}
	return pickRace(races)
}

func pickRace(races []model.Race) (string, error) {
	switch len(races) {
	case 0:
		return "", fmt.Errorf("no races loaded (run: livetiming load <roster.toml>)")
	case 1:
		return races[0].ID, nil
	}
	ids := make([]string, len(races))
	for i, r := range races {
		ids[i] = r.ID
	}
	return "", fmt.Errorf("--race is required (available: %s)", strings.Join(ids, ", "))
}

func runBoardCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig(cmd)
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "race", &boardRace, fileCfg.Board.Race)
	applyIntConfig(cmd, "refresh-ms", &boardRefreshMs, fileCfg.Board.RefreshMs)
	applyIntConfig(cmd, "cache-size", &boardCacheSize, fileCfg.Board.CacheSize)
	if boardRefreshMs <= 0 {
		return fmt.Errorf("--refresh-ms must be > 0")
	}
	if boardCacheSize <= 0 {
		return fmt.Errorf("--cache-size must be > 0")
	}

	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	raceID, err := resolveRace(cmd.Context(), st, boardRace)
	if err != nil {
		return err
	}
	cache, err := ranking.NewCache(boardCacheSize)
	if err != nil {
		return fmt.Errorf("failed to create ranking cache: %w", err)
	}

	m := board.NewModel(st, cache, raceID, time.Duration(boardRefreshMs)*time.Millisecond)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run leaderboard TUI: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
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
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <roster.toml>",
		Short: "Load races and participants from a roster file",
		Args:  cobra.ExactArgs(1),
		RunE:  runLoadCmd,
	}
}

func runLoadCmd(cmd *cobra.Command, args []string) error {
	if _, err := loadFileConfig(cmd); err != nil {
		return err
	}
	r, err := roster.Load(args[0])
	if err != nil {
		return err
	}

	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	if err := st.SaveRoster(cmd.Context(), r.Races, r.Participants); err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}
	logErrf("Loaded %d race(s) and %d participant(s)\n", len(r.Races), len(r.Participants))
	return nil
}

func newRacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "races",
		Short: "List loaded races",
		Args:  cobra.NoArgs,
		RunE:  runRacesCmd,
	}
}

func runRacesCmd(cmd *cobra.Command, _ []string) error {
	if _, err := loadFileConfig(cmd); err != nil {
		return err
	}
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	races, err := st.ListRaces(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list races: %w", err)
	}
	if len(races) == 0 {
		logErrln("No races loaded. Load one with: livetiming load <roster.toml>")
		return nil
	}
	for _, r := range races {
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%.1f km\t%s\t%s\n", r.ID, r.Name, r.Distance, r.Type, r.Status); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Print the leaderboard",
		Args:  cobra.NoArgs,
		RunE:  runResultsCmd,
	}
	cmd.Flags().StringVar(&resultsRace, "race", "", "race id")
	cmd.Flags().StringVar(&resultsView, "view", "overall", "rank column: overall, gender or category")
	cmd.Flags().StringVar(&resultsGender, "gender", "", "gender filter (M or F)")
	cmd.Flags().StringVar(&resultsCategory, "category", "", "category filter")
	return cmd
}

func runResultsCmd(cmd *cobra.Command, _ []string) error {
	view, err := parseView(resultsView)
	if err != nil {
		return err
	}
	results, err := computeResults(cmd, resultsRace)
	if err != nil {
		return err
	}
	filter := report.Filter{View: view, Gender: resultsGender, Category: resultsCategory}
	out := cmd.OutOrStdout()
	return report.RenderLeaderboard(out, results, filter, report.TerminalWidth(out))
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show race counters",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsRace, "race", "", "race id")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	results, err := computeResults(cmd, statsRace)
	if err != nil {
		return err
	}
	return report.RenderStats(cmd.OutOrStdout(), ranking.ComputeStats(results))
}

func newSplitsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "splits",
		Short: "Show the segment splits of one bib",
		Args:  cobra.NoArgs,
		RunE:  runSplitsCmd,
	}
	cmd.Flags().StringVar(&splitsRace, "race", "", "race id")
	cmd.Flags().StringVar(&splitsBib, "bib", "", "bib number")
	return cmd
}

func runSplitsCmd(cmd *cobra.Command, _ []string) error {
	if splitsBib == "" {
		return fmt.Errorf("--bib is required")
	}
	results, err := computeResults(cmd, splitsRace)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Bib == splitsBib {
			out := cmd.OutOrStdout()
			return report.RenderSplits(out, r, report.TerminalWidth(out))
		}
	}
	return fmt.Errorf("bib %s: %w", splitsBib, model.ErrNotFound)
}

func newSegmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Rank participants on one course segment",
		Args:  cobra.NoArgs,
		RunE:  runSegmentCmd,
	}
	cmd.Flags().StringVar(&segmentRace, "race", "", "race id")
	cmd.Flags().IntVar(&segmentIndex, "index", 1, "segment number, starting at 1")
	return cmd
}

func runSegmentCmd(cmd *cobra.Command, _ []string) error {
	results, err := computeResults(cmd, segmentRace)
	if err != nil {
		return err
	}
	labels := report.SegmentLabels(results)
	if segmentIndex < 1 || segmentIndex > len(labels) {
		return fmt.Errorf("--index must be between 1 and %d", len(labels))
	}
	out := cmd.OutOrStdout()
	return report.RenderSegment(out, results, segmentIndex-1, report.TerminalWidth(out))
}

func newCaptureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Run a finish-line capture station",
		Args:  cobra.NoArgs,
		RunE:  runCaptureCmd,
	}
	cmd.Flags().StringVar(&captureRace, "race", "", "race id")
	cmd.Flags().StringVar(&captureStation, "station", defaultStation, "station name shown in the header")
	return cmd
}

func runCaptureCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig(cmd)
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "race", &captureRace, fileCfg.Capture.Race)
	applyStringConfig(cmd, "station", &captureStation, fileCfg.Capture.Station)

	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	raceID, err := resolveRace(cmd.Context(), st, captureRace)
	if err != nil {
		return err
	}
	m := station.NewModel(st, raceID, captureStation)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run capture TUI: %w", err)
	}
	if n := m.Pending(); n > 0 {
		logErrf("%d arrival(s) left without a bib\n", n)
	}
	return nil
}

func newCorrectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correct",
		Short: "Replace a bib's passages with a reference runner's timing",
		Args:  cobra.NoArgs,
		RunE:  runCorrectCmd,
	}
	cmd.Flags().StringVar(&correctRace, "race", "", "race id")
	cmd.Flags().StringVar(&correctBib, "bib", "", "bib to correct")
	cmd.Flags().StringVar(&correctRef, "ref", "", "bib of the runner who crossed together with it")
	return cmd
}

func runCorrectCmd(cmd *cobra.Command, _ []string) error {
	if correctBib == "" || correctRef == "" {
		return fmt.Errorf("--bib and --ref are required")
	}
	if _, err := loadFileConfig(cmd); err != nil {
		return err
	}
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := cmd.Context()
	raceID, err := resolveRace(ctx, st, correctRace)
	if err != nil {
		return err
	}
	snap, err := st.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	target, ok := snap.FindByBib(raceID, correctBib)
	if !ok {
		return fmt.Errorf("bib %s: %w", correctBib, model.ErrNotFound)
	}
	batch, err := correction.Correct(target, correctRef, snap, uuid.NewString)
	if err != nil {
		if errors.Is(err, model.ErrNoData) {
			return fmt.Errorf("reference bib %s has no passages to copy", correctRef)
		}
		return fmt.Errorf("failed to correct bib %s: %w", correctBib, err)
	}
	if err := st.ApplyBatch(ctx, batch); err != nil {
		return fmt.Errorf("failed to save correction: %w", err)
	}
	logErrf("Bib %s: replaced %d passage(s) with %d from bib %s\n",
		correctBib, len(batch.DeletePassages), len(batch.InsertPassages), correctRef)
	return nil
}

func computeResults(cmd *cobra.Command, raceID string) ([]model.RankedResult, error) {
	if _, err := loadFileConfig(cmd); err != nil {
		return nil, err
	}
	st, closeStore, err := openStore()
	if err != nil {
		return nil, err
	}
	defer closeStore()

	ctx := cmd.Context()
	raceID, err = resolveRace(ctx, st, raceID)
	if err != nil {
		return nil, err
	}
	snap, err := st.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if _, ok := snap.FindRace(raceID); !ok {
		return nil, fmt.Errorf("race %s: %w", raceID, model.ErrNotFound)
	}
	return ranking.Compute(snap, raceID), nil
}

func parseView(v string) (report.View, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "overall":
		return report.ViewOverall, nil
	case "gender", "sex":
		return report.ViewGender, nil
	case "category", "cat":
		return report.ViewCategory, nil
	}
	return report.ViewOverall, fmt.Errorf("invalid --view %q (want overall, gender or category)", v)
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

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# livetiming configuration
# Uncomment a value to enable it. CLI flags override config values.

[store]
# path = %q

[board]
# race = "10k"            # Race shown by default
# refresh-ms = %d       # Leaderboard refresh interval
# cache-size = %d         # Number of memoized rankings

[capture]
# race = "10k"            # Race captured by this station
# station = %q       # Station name
`,
		config.DefaultDBPath(),
		defaultRefreshMs,
		defaultCacheSize,
		defaultStation,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
