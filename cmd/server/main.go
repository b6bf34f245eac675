package main

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/devicebind/devicebind/internal/server/api"
	"github.com/devicebind/devicebind/internal/server/config"
	"github.com/devicebind/devicebind/internal/server/services"
	"github.com/devicebind/devicebind/internal/server/setup"
	"github.com/devicebind/devicebind/internal/server/storage"
	"github.com/devicebind/devicebind/pkg/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var rootCmd = &cobra.Command{
	Use:   "devicebind-server",
	Short: "Device binding server - MAC address identity binding and verification",
	Long:  "Server component providing device binding, verification audit logging, and request-time enforcement",
	// Default to serve command if no subcommand provided
	Run: func(cmd *cobra.Command, args []string) {
		runServe(cmd, args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the device binding server",
	Long:  "Start the HTTP API for device binding, verification, and admin operations",
	Run:   runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersion("devicebind-server"))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, adminCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) {

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	log.Printf("=== Device Binding Server ===")
	log.Printf("%s", version.GetVersion("devicebind-server"))
	log.Println()

	// Ensure a database exists before reading config (may set DATABASE_URL)
	log.Println("=== Database Setup ===")
	if err := setup.CheckAndSetupDatabase(); err != nil {
		log.Fatalf("Failed to setup database: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	log.Println("Connecting to database...")
	db, err := storage.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// Run embedded migrations
	log.Println("Running database migrations...")
	if err := runEmbeddedMigrations(db.DB.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations complete")

	// Initialize repositories
	bindingRepo := storage.NewBindingRepository(db)
	logRepo := storage.NewVerificationLogRepository(db)
	profileRepo := storage.NewProfileRepository(db)

	// Initialize services
	captureService := services.NewCaptureService()
	log.Printf("Capture strategies: %v", captureService.StrategyNames())

	bindingService := services.NewBindingService(bindingRepo, logRepo, profileRepo, captureService, cfg.MACVerificationKey)
	authService := services.NewAuthService(profileRepo, cfg.JWTSecret, cfg.TokenExpiration)

	if services.IsServerlessEnvironment() {
		log.Println("Serverless environment detected: device verification gate will pass through")
	}

	// Initialize handlers
	authHandler := api.NewAuthHandler(authService, bindingService)
	adminHandler := api.NewAdminHandler(bindingService)

	adminAuth, err := api.NewAdminAuth(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("Failed to initialize admin auth: %v", err)
	}

	gate := api.NewVerificationGate(bindingService, cfg.SensitiveRoutes, cfg.JWTSecrets())

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.CORSMiddleware)

	// The gate runs before routing so it covers every sensitive prefix,
	// including routes added later.
	r.Use(gate.Middleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"devicebind"}`))
	})

	// Public routes
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	// Protected routes
	r.Route("/api", func(r chi.Router) {
		r.Use(api.AuthMiddleware(cfg.JWTSecrets()...))

		r.Get("/auth/device-status", authHandler.DeviceStatus)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(adminAuth.Middleware)

		r.Get("/bindings", adminHandler.ListBindings)
		r.Get("/bindings/{user_id}", adminHandler.UserBindings)
		r.Post("/bindings/{binding_id}/deactivate", adminHandler.DeactivateBinding)
		r.Get("/verification-log", adminHandler.VerificationLog)
		r.Get("/stats", adminHandler.Stats)
		r.Get("/debug/capture", adminHandler.DebugCapture)
	})

	// Find available port
	port := findAvailableAPIPort(cfg.APIPort)
	addr := fmt.Sprintf("%s:%s", cfg.APIHost, port)

	// Create server
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		log.Printf("Server starting on %s", addr)
		log.Printf("Sensitive routes: %v", cfg.SensitiveRoutes)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func runEmbeddedMigrations(db *sql.DB) error {
	// Read all migration files from embedded FS
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	// Sort migrations by filename to ensure correct order
	var migrations []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".sql" {
			migrations = append(migrations, entry.Name())
		}
	}
	sort.Strings(migrations)

	// Execute each migration
	for _, migration := range migrations {
		log.Printf("Applying migration: %s", migration)

		content, err := migrationsFS.ReadFile(filepath.Join("migrations", migration))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", migration, err)
		}

		// Execute migration (ignore errors if table already exists)
		if _, err := db.Exec(string(content)); err != nil {
			log.Printf("Warning: Migration %s: %v (may already exist)", migration, err)
		}
	}

	return nil
}

// isPortAvailable checks if a port is available for binding
func isPortAvailable(port string) bool {
	ln, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return false // Port in use
	}
	ln.Close()
	return true // Port available
}

// findAvailableAPIPort finds an available port for the API server
func findAvailableAPIPort(preferredPort string) string {
	// Try preferred port first
	if isPortAvailable(preferredPort) {
		log.Printf("✓ Port %s available", preferredPort)
		return preferredPort
	}

	log.Printf("Port %s in use, trying alternatives...", preferredPort)

	// Convert preferred port to int
	startPort := 8080
	if p, err := strconv.Atoi(preferredPort); err == nil {
		startPort = p
	}

	// Try next 20 ports
	for i := 1; i <= 20; i++ {
		port := startPort + i
		portStr := strconv.Itoa(port)
		if isPortAvailable(portStr) {
			log.Printf("✓ Found available port: %s", portStr)
			return portStr
		}
	}

	// No ports available, return preferred (will fail with clear error)
	log.Printf("⚠️  No available ports found, will attempt %s", preferredPort)
	return preferredPort
}
