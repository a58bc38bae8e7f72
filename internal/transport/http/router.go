package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/apache/bigtop-manager-sub000/internal/config"
	"github.com/apache/bigtop-manager-sub000/internal/core/ports"
	"github.com/apache/bigtop-manager-sub000/internal/core/services"
	"github.com/apache/bigtop-manager-sub000/internal/domain"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/db"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/logger"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/managerapi"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/remote"
	"github.com/apache/bigtop-manager-sub000/internal/transport/http/handlers"
	httpmw "github.com/apache/bigtop-manager-sub000/internal/transport/http/middleware"
	"github.com/apache/bigtop-manager-sub000/pkg/utils/crypto"
)

// ManagerAPI is everything the console needs from the cluster manager.
type ManagerAPI interface {
	ports.CatalogAPI
	ports.CommandAPI
	ports.JobAPI
}

type RouterConfig struct {
	DB       *gorm.DB
	Logger   *logger.Logger
	Config   *config.Config
	Registry *prometheus.Registry
	// Manager and Prober replace the real manager client and SSH prober when set.
	Manager ManagerAPI
	Prober  ports.HostProber
}

// Runtime holds the long-running parts started by SetupRoutes.
type Runtime struct {
	Tracker   *services.JobProgressTracker
	Retention *services.RetentionService
	Hub       *handlers.ProgressHub
}

// Shutdown stops the retention schedule and every poll task.
func (r *Runtime) Shutdown() {
	r.Retention.Stop()
	r.Tracker.Close()
}

func SetupRoutes(app *fiber.App, cfg RouterConfig) (*Runtime, error) {
	log := cfg.Logger
	appCfg := cfg.Config

	// Initialize repositories
	sealer := crypto.NewSealer(appCfg.Security.EncryptionKey)
	snapshotRepo := db.NewSnapshotRepository(cfg.DB, sealer, log)
	jobRepo := db.NewJobRepository(cfg.DB, log)
	timelineRepo := db.NewTimelineRepository(cfg.DB, log)

	manager := cfg.Manager
	if manager == nil {
		manager = managerapi.NewClient(managerapi.ClientConfig{
			BaseURL: appCfg.Manager.BaseURL,
			Token:   appCfg.Manager.Token,
			Timeout: appCfg.Manager.Timeout,
			Logger:  log,
		})
	}
	var catalog ports.CatalogAPI = manager
	if appCfg.Catalog.File != "" {
		catalog = managerapi.NewFileCatalog(appCfg.Catalog.File)
		log.Infow("catalog_from_file", "path", appCfg.Catalog.File)
	}

	prober := cfg.Prober
	if prober == nil {
		key, err := remote.LoadPrivateKey(appCfg.Hosts.SSHKeyFile)
		if err != nil {
			return nil, err
		}
		prober = remote.NewSSHProber(remote.SSHConfig{
			Port:       appCfg.Hosts.SSHPort,
			User:       appCfg.Hosts.SSHUser,
			Password:   appCfg.Hosts.SSHPassword,
			PrivateKey: key,
			Timeout:    appCfg.Hosts.Timeout,
		})
	}

	var metrics *services.Metrics
	if cfg.Registry != nil {
		metrics = services.NewMetrics(cfg.Registry)
	}

	// Initialize services
	hub := handlers.NewProgressHub(log)
	builder := services.NewCommandBuilder()
	tracker := services.NewJobProgressTracker(services.JobTrackerConfig{
		JobAPI:       manager,
		Notifier:     hub,
		Records:      jobRepo,
		TimelineRepo: timelineRepo,
		Metrics:      metrics,
		Logger:       log.Named("tracker"),
		PollInterval: appCfg.Tracker.PollInterval,
		DismissDelay: appCfg.Tracker.DismissDelay,
		Step:         appCfg.Tracker.Step,
		Cap:          appCfg.Tracker.Cap,
	})

	wizardService := services.NewWizardService(services.WizardServiceConfig{
		Catalog:      catalog,
		Commands:     manager,
		Tracker:      tracker,
		Snapshots:    snapshotRepo,
		TimelineRepo: timelineRepo,
		Builder:      builder,
		Metrics:      metrics,
		Logger:       log,
		ClusterID:    appCfg.Wizard.ClusterID,
		Mode:         domain.CreationMode(appCfg.Wizard.CreationMode),
		EnableLocks:  appCfg.Features.EnableLocks,
	})
	commandService := services.NewCommandService(services.CommandServiceConfig{
		Commands:     manager,
		Tracker:      tracker,
		TimelineRepo: timelineRepo,
		Builder:      builder,
		Metrics:      metrics,
		Logger:       log,
		ClusterID:    appCfg.Wizard.ClusterID,
	})
	hostService := services.NewHostService(services.HostServiceConfig{
		Prober:      prober,
		Logger:      log,
		Parallelism: appCfg.Hosts.Parallelism,
	})
	retention := services.NewRetentionService(services.RetentionServiceConfig{
		Jobs:         jobRepo,
		TimelineRepo: timelineRepo,
		Logger:       log,
		Schedule:     appCfg.Maintenance.CleanupSchedule,
		Retention:    appCfg.Maintenance.Retention,
	})
	if err := retention.Start(); err != nil {
		tracker.Close()
		return nil, err
	}

	// Initialize handlers
	catalogHandler := handlers.NewCatalogHandler(catalog, appCfg.Wizard.ClusterID, log)
	wizardHandler := handlers.NewWizardHandler(wizardService, log)
	jobHandler := handlers.NewJobHandler(tracker, jobRepo, log)
	commandHandler := handlers.NewCommandHandler(commandService, log)
	hostHandler := handlers.NewHostHandler(hostService, log)
	timelineHandler := handlers.NewTimelineHandler(timelineRepo)

	if cfg.Registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))
	}

	// Live job progress
	app.Use("/ws", httpmw.AdminAuth(appCfg), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws/jobs", websocket.New(hub.Handle))

	// API v1 routes
	api := app.Group("/api/v1", httpmw.AdminAuth(appCfg))

	api.Get("/catalog", catalogHandler.Get)

	wizards := api.Group("/wizards")
	wizards.Post("/", wizardHandler.Create)
	wizards.Get("/:id", wizardHandler.Get)
	wizards.Delete("/:id", wizardHandler.Reset)
	wizards.Post("/:id/services", wizardHandler.ResolveService)
	wizards.Put("/:id/hosts", wizardHandler.AssignHosts)
	wizards.Post("/:id/snapshot", wizardHandler.CaptureSnapshot)
	wizards.Get("/:id/snapshots", wizardHandler.Snapshots)
	wizards.Put("/:id/configs/:service", wizardHandler.UpdateConfigs)
	wizards.Get("/:id/diff", wizardHandler.Diff)
	wizards.Post("/:id/submit", wizardHandler.Submit)
	wizards.Post("/:id/components", wizardHandler.SubmitComponents)

	api.Post("/commands", commandHandler.Execute)

	jobs := api.Group("/jobs")
	jobs.Get("/", jobHandler.List)
	jobs.Get("/history", jobHandler.History)
	jobs.Get("/:id", jobHandler.Get)
	jobs.Post("/:id/retry", jobHandler.Retry)
	jobs.Delete("/:id", jobHandler.Dismiss)

	api.Post("/hosts/check", hostHandler.Check)

	// Timeline routes
	api.Get("/timeline", timelineHandler.GetEvents)

	return &Runtime{Tracker: tracker, Retention: retention, Hub: hub}, nil
}
