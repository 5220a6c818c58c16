package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tbell/backscroll/internal/app"
	"github.com/tbell/backscroll/internal/config"
	"github.com/tbell/backscroll/internal/store"
	"github.com/tbell/backscroll/internal/styles"
)

// Version is set at build time via ldflags
var Version = ""

var (
	configPath  = flag.String("config", "", "path to config file")
	exportDir   = flag.String("exports", "", "directory of .jsonl room exports (overrides config)")
	dbPath      = flag.String("db", "", "message database path (overrides config)")
	themeFlag   = flag.String("theme", "", "color theme (overrides config)")
	debugFlag   = flag.Bool("debug", false, "enable debug logging")
	versionFlag = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("backscroll version %s\n", effectiveVersion(Version))
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *debugFlag {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	path := *configPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *exportDir != "" {
		cfg.ExportDir = *exportDir
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *themeFlag != "" {
		cfg.Theme = *themeFlag
	}

	if cfg.ExportDir, err = filepath.Abs(cfg.ExportDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve export dir: %v\n", err)
		os.Exit(1)
	}
	if !styles.SetTheme(cfg.Theme) {
		logger.Warn("unknown theme, using default", "theme", cfg.Theme)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create data dir: %v\n", err)
		os.Exit(1)
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open message store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	// Pick up anything exported while we were not running.
	if added, err := st.IngestDir(cfg.ExportDir, logger); err != nil {
		logger.Warn("initial ingest failed", "dir", cfg.ExportDir, "error", err)
	} else if added > 0 {
		logger.Info("ingested exports", "dir", cfg.ExportDir, "messages", added)
	}

	model, err := app.New(cfg, logger, st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running application: %v\n", err)
		os.Exit(1)
	}
}

// effectiveVersion returns the version string, with fallback to build info.
func effectiveVersion(v string) string {
	if v != "" {
		return v
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			rev := setting.Value
			if len(rev) > 12 {
				rev = rev[:12]
			}
			return "devel+" + rev
		}
	}
	return "devel"
}
