package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/clinicware/clinic-sync/pkg/cache"
	"github.com/clinicware/clinic-sync/pkg/config"
	"github.com/clinicware/clinic-sync/pkg/export"
	"github.com/clinicware/clinic-sync/pkg/loader"
	"github.com/clinicware/clinic-sync/pkg/record"
	"github.com/clinicware/clinic-sync/pkg/remote"
	"github.com/clinicware/clinic-sync/pkg/server"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version information
	Version   = "1.0.0"
	BuildDate = "unknown"

	// Global flags
	configFile string
	apiURL     string
	cacheDir   string
	noCache    bool
	verbose    bool

	// Color definitions
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warningColor = color.New(color.FgYellow)
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-sync",
		Short: "🏥 Local sync service for the clinic CRM",
		Long: `
╔═══════════════════════════════════════════════════════════╗
║            🏥 Clinic Sync - CRM Data Service              ║
║    Syncs patients, sales and proformas from the CRM API   ║
║      into a local cache and serves them to the UI         ║
╚═══════════════════════════════════════════════════════════╝

Loads records from the remote CRM API with a local cache fallback,
serves them over REST/WebSocket and exports them to JSON or CSV.
`,
		Version: Version,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVarP(&apiURL, "api", "a", "", "Remote CRM API base URL (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&cacheDir, "cache-dir", "C", "", "Cache directory (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "Use an in-memory cache (nothing persisted)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	// Sync command
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "🔄 Fetch every record kind from the CRM API into the local cache",
		Run:   runSync,
	}

	// Serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "🌐 Start REST API and WebSocket server",
		Run:   runServe,
	}
	serveCmd.Flags().String("addr", "", "Server address (overrides config, e.g. :8080)")
	serveCmd.Flags().String("import", "", "JSON export file to watch and re-import (overrides config)")
	serveCmd.Flags().Duration("debounce", 0, "Debounce duration for import watching (e.g. 0s, 500ms, 1s)")

	// Export command
	exportCmd := &cobra.Command{
		Use:   "export [kind]",
		Short: "📊 Export a record kind to JSON or CSV",
		Args:  cobra.ExactArgs(1),
		Run:   runExport,
	}
	exportCmd.Flags().StringP("format", "f", "json", "Output format (json or csv)")
	exportCmd.Flags().StringP("output", "o", ".", "Output directory")
	exportCmd.Flags().Bool("totals", false, "Attach derived financial totals to each record")

	// Info command
	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "ℹ️  Show cache contents and configuration",
		Run:   runInfo,
	}

	rootCmd.AddCommand(syncCmd, serveCmd, exportCmd, infoCmd)

	if err := rootCmd.Execute(); err != nil {
		errorColor.Fprintf(os.Stderr, "❌ Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file and applies command-line overrides.
func loadConfig() config.Config {
	cfg, err := config.Load(configFile)
	if err != nil {
		errorColor.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}
	if cacheDir != "" {
		cfg.Cache.Dir = cacheDir
	}
	if noCache {
		cfg.Cache.InMemory = true
	}
	return cfg
}

// openStore opens the configured cache store.
func openStore(cfg config.Config) cache.Store {
	if cfg.Cache.InMemory {
		infoColor.Println("ℹ️  Using in-memory cache (nothing persisted)")
		return cache.NewMemory()
	}

	store, err := cache.OpenBadger(cfg.Cache.Dir)
	if err != nil {
		errorColor.Printf("❌ Failed to open cache: %v\n", err)
		os.Exit(1)
	}
	if verbose {
		infoColor.Printf("ℹ️  Cache directory: %s\n", cfg.Cache.Dir)
	}
	return store
}

// newClient creates the remote client, or nil when no API is configured.
func newClient(cfg config.Config) *remote.Client {
	if cfg.API.BaseURL == "" {
		warningColor.Println("⚠️  No remote API configured - serving from cache and defaults only")
		return nil
	}
	infoColor.Printf("🌐 Remote API: %s\n", cfg.API.BaseURL)
	return remote.NewClient(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout.Std())
}

func runSync(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	if cfg.API.BaseURL == "" {
		errorColor.Println("❌ sync requires a remote API (set --api or api.base_url in the config)")
		os.Exit(1)
	}

	store := openStore(cfg)
	defer store.Close()

	client := newClient(cfg)
	ldr := loader.New(store, log.Default())

	ctx := context.Background()
	for _, kind := range record.Kinds() {
		records := ldr.LoadKind(ctx, kind, client.Fetcher(kind))
		successColor.Printf("✅ %s: %d records\n", kind, len(records))
	}
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if importFile, _ := cmd.Flags().GetString("import"); importFile != "" {
		cfg.Import.File = importFile
	}
	if cmd.Flags().Changed("debounce") {
		d, _ := cmd.Flags().GetDuration("debounce")
		cfg.Import.Debounce = config.Duration(d)
	}

	store := openStore(cfg)
	defer store.Close()

	client := newClient(cfg)
	ldr := loader.New(store, log.Default())

	srv := server.NewServer(ldr, client, store)
	defer srv.Close()

	if cfg.Import.File != "" {
		if err := srv.StartImportWatch(cfg.Import.File, cfg.Import.Debounce.Std()); err != nil {
			errorColor.Printf("❌ Failed to watch import file: %v\n", err)
			os.Exit(1)
		}
	}

	successColor.Printf("🌐 Server running at http://localhost%s\n", cfg.Server.Addr)
	infoColor.Println("📝 Press Ctrl+C to stop the server")

	if err := srv.Start(cfg.Server.Addr); err != nil {
		errorColor.Printf("❌ Server error: %v\n", err)
		os.Exit(1)
	}
}

func runExport(cmd *cobra.Command, args []string) {
	kind, err := record.ParseKind(args[0])
	if err != nil {
		errorColor.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	formatStr, _ := cmd.Flags().GetString("format")
	format, err := export.ParseFormat(formatStr)
	if err != nil {
		errorColor.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	outputDir, _ := cmd.Flags().GetString("output")
	withTotals, _ := cmd.Flags().GetBool("totals")

	cfg := loadConfig()
	store := openStore(cfg)
	defer store.Close()

	client := newClient(cfg)
	ldr := loader.New(store, log.Default())

	records := ldr.LoadKind(context.Background(), kind, client.Fetcher(kind))
	infoColor.Printf("📊 Loaded %d %s records\n", len(records), kind)

	exp := export.NewExporter(withTotals)
	outputFile := filepath.Join(outputDir, fmt.Sprintf("%s.%s", kind, format))

	switch format {
	case export.FormatCSV:
		err = exp.ExportToCSV(records, outputFile)
	default:
		err = exp.ExportToJSON(records, outputFile)
	}
	if err != nil {
		errorColor.Printf("❌ Failed to export: %v\n", err)
		os.Exit(1)
	}

	successColor.Printf("✅ Successfully exported to: %s\n", outputFile)
}

func runInfo(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	store := openStore(cfg)
	defer store.Close()

	keys, err := store.Keys()
	if err != nil {
		errorColor.Printf("❌ Failed to inspect cache: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	successColor.Println("📋 Cache Information")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	infoColor.Printf("📁 Directory: %s\n", cfg.Cache.Dir)
	infoColor.Printf("🔑 Keys: %d\n", len(keys))
	fmt.Println()

	ldr := loader.New(store, log.Default())
	for _, kind := range record.Kinds() {
		records := ldr.LoadKind(context.Background(), kind, nil)
		fmt.Printf("%-12s %4d records (cache key: %s)\n", kind, len(records), kind.CacheKey())
	}
	fmt.Println()
}

func init() {
	// Set up logging
	log.SetFlags(0)
	log.SetOutput(os.Stdout)
}
