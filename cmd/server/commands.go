package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jcastroba/red-simpatizantes/internal/api"
	"github.com/jcastroba/red-simpatizantes/internal/config"
	"github.com/jcastroba/red-simpatizantes/internal/db"
	"github.com/jcastroba/red-simpatizantes/internal/logging"
	"github.com/jcastroba/red-simpatizantes/internal/models"
	"github.com/jcastroba/red-simpatizantes/internal/services"
	"github.com/jcastroba/red-simpatizantes/internal/tree"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const serviceName = "network-service"

var (
	rootCmd = &cobra.Command{
		Use:   "red-simpatizantes",
		Short: "Referral network service for the sympathizers registry",
		RunE:  runServe,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (default)",
		RunE:  runServe,
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables and indexes if they do not exist",
		RunE:  runMigrate,
	}
	inspectCmd = &cobra.Command{
		Use:   "inspect [person-id]",
		Short: "Traverse a person's subtree and print size, depth and anomaly counts",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
	seedLocationsCmd = &cobra.Command{
		Use:   "seed-locations",
		Short: "Load departments and municipalities from a YAML file",
		RunE:  runSeedLocations,
	}
)

func init() {
	seedLocationsCmd.Flags().String("file", "configs/locations.yaml", "YAML file with departments and their municipalities")
	rootCmd.AddCommand(serveCmd, migrateCmd, inspectCmd, seedLocationsCmd)
}

// storage bundles the stores the services need plus their lifecycle
type storage struct {
	people    services.PersonStore
	labels    services.LevelLabelStore
	locations services.LocationStore
	pinger    api.Pinger
	schema    func(ctx context.Context) error
	close     func() error
}

func openStorage(cfg *config.Config, logger *zap.Logger) (*storage, error) {
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn("using in-memory storage; data is lost on restart")
		mem := db.NewMemoryRepository()
		return &storage{
			people:    mem,
			labels:    mem,
			locations: mem,
			pinger:    mem,
			schema:    func(context.Context) error { return nil },
			close:     func() error { return nil },
		}, nil
	}

	database, err := db.NewDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return &storage{
		people:    db.NewPersonRepository(database),
		labels:    db.NewLevelLabelRepository(database),
		locations: db.NewLocationRepository(database),
		pinger:    database,
		schema:    database.InitSchema,
		close:     database.Close,
	}, nil
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg := config.Load()
	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func networkService(cfg *config.Config, store *storage, logger *zap.Logger) *services.NetworkService {
	return services.NewNetworkService(store.people, store.labels, services.NetworkOptions{
		Limits:      tree.Limits{MaxNodes: cfg.TreeMaxNodes, MaxDepth: cfg.TreeMaxDepth},
		Layout:      tree.LayoutOptions{Spacing: cfg.LayoutSpacing, LevelHeight: cfg.LayoutLevelHeight},
		Concurrency: cfg.AdminConcurrency,
	}, logger)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("service starting",
		zap.String("git_sha", os.Getenv("GIT_SHA")),
		zap.String("build_time", os.Getenv("BUILD_TIME")),
		zap.String("driver", cfg.Database.Driver))

	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	// Set Gin mode based on environment
	if cfg.GinMode == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(cfg.GinMode)
	}

	store, err := openStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = store.close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.schema(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	network := networkService(cfg, store, logger)
	locations := services.NewLocationService(store.locations, logger)
	people := services.NewPersonService(store.people, locations, network, logger)
	handler := api.NewHandler(people, network, locations, store.pinger, logger, cfg.RequestTimeout)
	router := api.NewRouter(handler, api.RouterConfig{
		JWTSecret:  cfg.JWTSecret,
		CORSOrigin: cfg.CORSOrigin,
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := openStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = store.close() }()

	if err := store.schema(cmd.Context()); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	logger.Info("schema ready")
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid person id %q", args[0])
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := openStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = store.close() }()

	stats, err := networkService(cfg, store, logger).Inspect(cmd.Context(), id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

func readLocationSeed(path string) (models.LocationSeed, error) {
	var seed models.LocationSeed
	raw, err := os.ReadFile(path)
	if err != nil {
		return seed, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return seed, fmt.Errorf("parse %s: %w", path, err)
	}
	return seed, nil
}

func runSeedLocations(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")
	seed, err := readLocationSeed(path)
	if err != nil {
		return err
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := openStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = store.close() }()

	if err := store.schema(cmd.Context()); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	result, err := services.NewLocationService(store.locations, logger).Seed(cmd.Context(), seed)
	if err != nil {
		return err
	}
	logger.Info("locations seeded",
		zap.String("file", path),
		zap.Int("departments_created", result.Departments),
		zap.Int("municipalities_created", result.Municipalities))
	return nil
}
