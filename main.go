package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"pixel-asset-store/config"
	"pixel-asset-store/handlers"
	"pixel-asset-store/middleware"
	"pixel-asset-store/services"
	"pixel-asset-store/storage"
	"pixel-asset-store/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "pixel-asset-store",
		Usage: "purchase ledger and download gate for the pixel asset storefront",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Value:   ".env",
				Usage:   "dotenv file loaded before reading the environment",
				EnvVars: []string{"ENV_FILE"},
			},
		},
		Before: func(c *cli.Context) error {
			if err := config.LoadEnvFile(c.String("env-file")); err != nil {
				logrus.Warnf("No %s file found, reading environment variables directly", c.String("env-file"))
			}
			return nil
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "reconcile",
				Usage:  "re-add purchase records missing from their wallet's purchase set, then exit",
				Action: reconcile,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	assets, err := openAssets(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize %s assets: %w", cfg.AssetSource, err)
	}

	verifier, err := buildVerifier(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to configure payment verification: %w", err)
	}

	purchases := services.NewPurchaseService(store, verifier, log)
	purchases.DownloadPath = cfg.DownloadPath
	purchases.StoreTimeout = cfg.StoreTimeout
	purchases.VerifyTimeout = cfg.Verify.Timeout
	downloads := services.NewDownloadService(purchases, assets, log)
	reconciler := services.NewReconciler(store, log)

	app := fiber.New(fiber.Config{
		AppName:               "pixel-asset-store",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(log))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,OPTIONS,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID",
		ExposeHeaders:    "Content-Length, Content-Type, Content-Disposition, X-Request-ID",
		AllowCredentials: !slices.Contains(cfg.AllowedOrigins, "*"),
		MaxAge:           86400, // 24 hours
	}))

	handlers.SetupPurchaseRoutes(app, handlers.Routes{
		Purchases:  purchases,
		Downloads:  downloads,
		Reconciler: reconciler,
		Store:      store,
		AdminToken: cfg.AdminToken,
		Log:        log,
	})

	if cfg.ReconcileInterval > 0 {
		sched, err := services.StartReconcileScheduler(reconciler, cfg.ReconcileInterval, 10*time.Minute, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := sched.Shutdown(); err != nil {
				log.WithError(err).Warn("[Scheduler] Shutdown failed")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.Port)
	}()

	log.WithFields(logrus.Fields{
		"port":     cfg.Port,
		"store":    cfg.StoreBackend,
		"assets":   cfg.AssetSource,
		"verify":   cfg.Verify.Enabled,
		"origins":  cfg.AllowedOrigins,
		"admin_on": cfg.AdminToken != "",
	}).Info("Server running")

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	return app.ShutdownWithTimeout(10 * time.Second)
}

func reconcile(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	defer store.Close()

	report, err := services.NewReconciler(store, log).Run(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "scanned=%d repaired=%d undecodable=%d\n", report.Scanned, report.Repaired, report.Undecodable)
	return nil
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		return storage.NewRedisStore(cfg.RedisURL)
	case config.StorePostgres:
		return storage.OpenPostgresStore(cfg.DatabaseURL)
	case config.StoreBolt:
		return storage.OpenBoltStore(cfg.BoltPath)
	case config.StoreMemory:
		return storage.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func openAssets(ctx context.Context, cfg *config.Config) (services.AssetSource, error) {
	if cfg.AssetSource == config.AssetsR2 {
		return utils.NewR2Assets(ctx, utils.R2Config{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			AccessKeySecret: cfg.R2.AccessKeySecret,
			Bucket:          cfg.R2.Bucket,
			Endpoint:        cfg.R2.Endpoint,
			Prefix:          cfg.R2.Prefix,
		})
	}
	return utils.NewLocalAssets(cfg.DownloadsDir), nil
}

func buildVerifier(cfg *config.Config, log logrus.FieldLogger) (services.PaymentVerifier, error) {
	v := cfg.Verify
	if !v.Enabled {
		log.Warn("[VERIFY] Payment verification disabled, client-reported payments are trusted")
		return services.TrustingVerifier{}, nil
	}

	client := utils.NewHTTPClient(v.Timeout)
	evm, err := services.NewEVMVerifier(v.EVMRPCURLs, v.EVMPayee)
	if err != nil {
		return nil, err
	}
	router := &services.ChainRouter{
		EVM:     evm,
		Solana:  services.NewSolanaVerifier(v.SolanaRPCURL, v.SolanaPayee, client),
		Bitcoin: services.NewBitcoinVerifier(v.BitcoinAPIURL, v.BitcoinPayee, client),
	}
	if v.PayPalClientID != "" {
		router.PayPal = services.NewPayPalVerifier(v.PayPalAPIBase, v.PayPalClientID, v.PayPalClientSecret, client)
	}

	log.WithField("evm_chains", len(v.EVMRPCURLs)).WithField("paypal", router.PayPal != nil).Info("[VERIFY] Payment verification enabled")
	return router, nil
}
