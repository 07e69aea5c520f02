package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/samasante/amina/internal/config"
	"github.com/samasante/amina/internal/domain/auditlog"
	"github.com/samasante/amina/internal/domain/availability"
	"github.com/samasante/amina/internal/domain/documents"
	"github.com/samasante/amina/internal/domain/gdpr"
	"github.com/samasante/amina/internal/domain/identity"
	"github.com/samasante/amina/internal/domain/scheduling"
	"github.com/samasante/amina/internal/domain/signature"
	"github.com/samasante/amina/internal/platform/auth"
	"github.com/samasante/amina/internal/platform/compliance"
	"github.com/samasante/amina/internal/platform/db"
	"github.com/samasante/amina/internal/platform/metrics"
	"github.com/samasante/amina/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "amina-server",
		Short: "AMINA clinic API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(gdprCmd())
	rootCmd.AddCommand(slotsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// loadConfig loads and validates the configuration and opens the pool.
func loadConfig(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			cfg, pool, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			if tenant == "" {
				tenant = cfg.DefaultTenant
			}

			schema := db.SchemaName(tenant)
			fmt.Printf("Running migrations on schema: %s\n", schema)
			count, err := db.NewMigrator(pool, dir).Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("tenant", "", "Tenant whose schema is migrated (default DEFAULT_TENANT)")
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			cfg, pool, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			if tenant == "" {
				tenant = cfg.DefaultTenant
			}

			schema := db.SchemaName(tenant)
			statuses, err := db.NewMigrator(pool, dir).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("tenant", "", "Tenant whose schema is inspected (default DEFAULT_TENANT)")
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create and migrate a new tenant schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			ctx := context.Background()
			cfg, pool, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating tenant schema: %s\n", db.SchemaName(name))
			if err := db.CreateTenantSchema(ctx, pool, name, cfg.MigrationsDir); err != nil {
				return err
			}
			fmt.Println("Tenant created and migrated.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")

	cmd.AddCommand(createCmd)
	return cmd
}

// withApp runs fn against the services of one tenant.
func withApp(tenant string, fn func(ctx context.Context, a *app) error) error {
	ctx := context.Background()
	cfg, pool, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	if tenant == "" {
		tenant = cfg.DefaultTenant
	}

	a, err := newApp(cfg, pool, newLogger(cfg), nil)
	if err != nil {
		return err
	}
	return db.WithTenant(ctx, pool, tenant, func(ctx context.Context) error {
		return fn(ctx, a)
	})
}

func gdprCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gdpr",
		Short: "Patient data rights",
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Print a patient's data export",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			patientID, _ := cmd.Flags().GetInt64("patient")
			format, _ := cmd.Flags().GetString("format")
			user, _ := cmd.Flags().GetString("user")
			if patientID <= 0 {
				return fmt.Errorf("--patient is required")
			}

			return withApp(tenant, func(ctx context.Context, a *app) error {
				if format == gdpr.FormatPDF {
					_, err := gdpr.GeneratePDFExport(nil)
					return err
				}
				bundle, err := a.gdpr.ExportPatientData(ctx, patientID, user)
				if err != nil {
					return err
				}
				switch format {
				case gdpr.FormatCSV:
					out, err := gdpr.GenerateCSVExport(bundle)
					if err != nil {
						return err
					}
					fmt.Print(out)
					return nil
				case gdpr.FormatJSON:
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(bundle)
				default:
					return fmt.Errorf("unknown format %q", format)
				}
			})
		},
	}
	exportCmd.Flags().String("tenant", "", "Tenant identifier (default DEFAULT_TENANT)")
	exportCmd.Flags().Int64("patient", 0, "Patient id")
	exportCmd.Flags().String("format", gdpr.FormatJSON, "json, csv or pdf")
	exportCmd.Flags().String("user", "cli", "User id recorded in the audit trail")
	cmd.AddCommand(exportCmd)

	eraseCmd := &cobra.Command{
		Use:   "erase",
		Short: "Erase or anonymize a patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			patientID, _ := cmd.Flags().GetInt64("patient")
			user, _ := cmd.Flags().GetString("user")
			if patientID <= 0 || user == "" {
				return fmt.Errorf("--patient and --user are required")
			}

			return withApp(tenant, func(ctx context.Context, a *app) error {
				out, err := a.gdpr.RequestErasure(ctx, patientID, user)
				if err != nil {
					return err
				}
				fmt.Printf("%s: %s\n", out.Outcome, out.Message)
				for _, r := range out.RetainedData {
					fmt.Printf("  - %s\n", r)
				}
				return nil
			})
		},
	}
	eraseCmd.Flags().String("tenant", "", "Tenant identifier (default DEFAULT_TENANT)")
	eraseCmd.Flags().Int64("patient", 0, "Patient id")
	eraseCmd.Flags().String("user", "", "User id recorded in the audit trail")
	cmd.AddCommand(eraseCmd)

	return cmd
}

func slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print a doctor's free slots for a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			doctorID, _ := cmd.Flags().GetInt64("doctor")
			date, _ := cmd.Flags().GetString("date")
			duration, _ := cmd.Flags().GetInt("duration")
			if doctorID <= 0 || date == "" {
				return fmt.Errorf("--doctor and --date are required")
			}

			return withApp(tenant, func(ctx context.Context, a *app) error {
				slots, err := a.availability.ComputeDailySlots(ctx, doctorID, date, duration)
				if err != nil {
					return err
				}
				if len(slots) == 0 {
					fmt.Println("No free slot.")
				}
				for _, s := range slots {
					fmt.Println(s.Display)
				}
				return nil
			})
		},
	}
	cmd.Flags().String("tenant", "", "Tenant identifier (default DEFAULT_TENANT)")
	cmd.Flags().Int64("doctor", 0, "Doctor id")
	cmd.Flags().String("date", "", "Day as YYYY-MM-DD")
	cmd.Flags().Int("duration", 0, "Slot length in minutes (default DEFAULT_SLOT_MINUTES)")
	return cmd
}

// app holds the services shared by the HTTP server and the CLI commands.
type app struct {
	retention    *compliance.RetentionService
	identity     *identity.Service
	availability *availability.Service
	scheduling   *scheduling.Service
	documents    *documents.Service
	gdpr         *gdpr.Service
	signature    *signature.Service
	auditlog     *auditlog.Service
}

func newApp(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger, m *metrics.Metrics) (*app, error) {
	txm := db.NewTxManager(pool)
	auditLogger := compliance.NewAuditLogger(pool)

	patients := identity.NewPatientRepo(pool)
	doctors := identity.NewDoctorRepo(pool)
	appointments := scheduling.NewAppointmentRepo(pool)

	a := &app{
		retention: compliance.NewRetentionService(compliance.DefaultRetentionPolicies(), logger),
		identity:  identity.NewService(patients, doctors),
		documents: documents.NewService(
			documents.NewMedicalFileRepo(pool),
			documents.NewPrescriptionRepo(pool),
			documents.NewLabOrderRepo(pool),
			documents.NewConsultationNoteRepo(pool),
			documents.NewCertificateRepo(pool),
			documents.NewReferralLetterRepo(pool),
		),
		auditlog: auditlog.NewService(auditlog.NewRepo(pool)),
	}
	a.availability = availability.NewService(availability.NewRepo(pool), cfg.DefaultSlotMinutes, m, logger)
	a.scheduling = scheduling.NewService(appointments, a.availability, txm, m, logger)
	a.gdpr = gdpr.NewService(gdpr.Sources{
		Patients:     patients,
		Doctors:      doctors,
		Appointments: appointments,
		Documents:    a.documents,
	}, a.retention, auditLogger, txm, m, logger)

	key, err := signature.KeyFromConfig(cfg.SignatureSecretKey, cfg.IsProduction(), logger)
	if err != nil {
		return nil, err
	}
	a.signature = signature.NewService(signature.NewRepo(pool), a.documents, signature.NewSigner(key), m, logger)
	return a, nil
}

// newServer builds the echo instance with the middleware chain and every
// route mounted.
func newServer(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger, m *metrics.Metrics) (*echo.Echo, error) {
	a, err := newApp(cfg, pool, logger, m)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))
	e.Use(middleware.SecurityHeaders())
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}
	e.Use(m.Middleware())

	if cfg.ResolvedAuthMode() == "development" {
		e.Use(auth.DevAuthMiddleware(cfg.DefaultTenant, auth.AuthSkipper))
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	e.Use(db.TenantMiddleware(pool, cfg.DefaultTenant, auth.AuthSkipper))
	e.Use(middleware.Audit(logger, middleware.ComplianceRecorder(compliance.NewAuditLogger(pool))))

	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	rl.Skipper = auth.AuthSkipper
	e.Use(middleware.RateLimit(rl))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool, logger))
	e.GET("/metrics", m.Handler())

	apiV1 := e.Group("/api/v1")
	compliance.RegisterRoutes(apiV1, a.retention)
	identity.NewHandler(a.identity).RegisterRoutes(apiV1)
	availability.NewHandler(a.availability).RegisterRoutes(apiV1)
	scheduling.NewHandler(a.scheduling).RegisterRoutes(apiV1)
	documents.NewHandler(a.documents).RegisterRoutes(apiV1)
	gdpr.NewHandler(a.gdpr).RegisterRoutes(apiV1)
	signature.NewHandler(a.signature).RegisterRoutes(apiV1)
	auditlog.NewHandler(a.auditlog).RegisterRoutes(apiV1)

	return e, nil
}

func runServer() error {
	ctx := context.Background()
	cfg, pool, err := loadConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer pool.Close()

	logger := newLogger(cfg)
	logger.Info().Msg("connected to database")

	m := metrics.New()
	m.RegisterPool(pool)

	e, err := newServer(cfg, pool, logger, m)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
