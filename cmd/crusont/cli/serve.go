package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crusont/crusont/internal/config"
	"github.com/crusont/crusont/internal/provider"
	"github.com/crusont/crusont/internal/server"
	"github.com/crusont/crusont/internal/service"
	"github.com/crusont/crusont/internal/telemetry"
)

const banner = `
  ___ ___ _   _ ___  ___  _  _ _____
 / __| _ \ | | / __|/ _ \| \| |_   _|
| (__|   / |_| \__ \ (_) | .' | | |
 \___|_|_\\___/|___/\___/|_|\_| |_|
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Crusont gateway server",
		Long:  "Start the HTTP server that manages API keys and forwards inference requests to configured providers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP listen port (overrides config)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP listen host (overrides config)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")

	return cmd
}

func runServe(host string, port int, dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	// 1. Load configuration: crusont.yaml if present, defaults otherwise
	cfg := config.Default()
	if path := viper.ConfigFileUsed(); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	// 2. Set up logger
	logLevel := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	if dev {
		logLevel = slog.LevelDebug
	}
	var logger *slog.Logger
	if cfg.Logging.Format == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	}

	// 3. Open the store
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	logger.Info("store initialized", "driver", st.Driver())

	ctx := context.Background()

	// 4. Load providers into the routing registry
	registry := provider.NewRegistry(cfg.ForwardTimeout())
	providers, err := st.ListProviders(ctx)
	if err != nil {
		logger.Warn("failed to load providers", "error", err)
	}
	for _, p := range providers {
		registry.Register(p)
	}
	logger.Info("provider registry initialized", "providers", len(registry.Names()))

	// 5. Initialize services
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = viper.GetString("auth.jwt_secret")
	}
	if jwtSecret == "" {
		jwtSecret = "crusont-dev-secret-change-me"
		logger.Warn("no JWT secret configured, using insecure default")
	}
	authSvc := service.NewAuthService(st, jwtSecret, cfg.JWTExpiry(), logger)
	keySvc := service.NewKeyService(st, logger)

	// 6. Check for first-run (no admin exists)
	hasAdmin, err := st.HasAnyAdmin(ctx)
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: crusont admin create")
	}

	// 7. Telemetry
	tracker := telemetry.New(ctx, st, func() telemetry.Properties {
		users, _ := st.CountUsers(ctx)
		keys, _ := st.CountAPIKeys(ctx)
		provs, _ := st.CountProviders(ctx)
		return telemetry.Properties{
			Version:   versionString(),
			GoVersion: runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			Driver:    st.Driver(),
			Users:     users,
			APIKeys:   keys,
			Providers: provs,
		}
	})
	if tracker != nil {
		telemetry.PrintNotice()
		tracker.Start()
		defer tracker.Shutdown()
	}

	// 8. Build and start HTTP server
	srvCfg := server.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ShutdownTimeout:   cfg.ShutdownTimeout(),
		CORSOrigins:       cfg.Server.CORS.Origins,
		CORSMethods:       cfg.Server.CORS.Methods,
		MaxBodySize:       cfg.MaxBodyBytes(),
		RequestsPerMinute: cfg.Forward.RequestsPerMinute,
	}

	srv := server.New(srvCfg, registry, st, authSvc, keySvc, logger)

	fmt.Printf("→ Crusont %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ OpenAPI:  http://%s:%d/openapi.json\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Health:   http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Providers: %d\n", len(registry.Names()))
	fmt.Println()

	if err := writePID(os.Getpid()); err != nil {
		logger.Warn("failed to write PID file", "error", err)
	}
	defer removePID()

	return srv.ListenAndServe()
}
