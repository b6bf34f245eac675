package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/devicebind/devicebind/internal/server/config"
	"github.com/devicebind/devicebind/internal/server/services"
	"github.com/devicebind/devicebind/internal/server/storage"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative commands",
	Long:  "Administrative commands for inspecting bindings, verification history, and MAC capture",
}

var listBindingsCmd = &cobra.Command{
	Use:   "list-bindings",
	Short: "List device bindings, optionally for a single user",
	Run:   runListBindingsCommand,
}

var deactivateBindingCmd = &cobra.Command{
	Use:   "deactivate-binding",
	Short: "Deactivate a binding so the user can rebind on next login",
	Run:   runDeactivateBindingCommand,
}

var verificationLogCmd = &cobra.Command{
	Use:   "verification-log",
	Short: "Show recent verification attempts",
	Run:   runVerificationLogCommand,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show binding and verification statistics",
	Run:   runStatsCommand,
}

var captureTestCmd = &cobra.Command{
	Use:   "capture-test",
	Short: "Run the MAC capture cascade on this host",
	Run:   runCaptureTestCommand,
}

func init() {
	listBindingsCmd.Flags().String("user-id", "", "Only show bindings for this user")
	listBindingsCmd.Flags().Int("limit", 100, "Maximum rows to show")

	deactivateBindingCmd.Flags().String("binding-id", "", "Binding ID to deactivate (required)")
	deactivateBindingCmd.MarkFlagRequired("binding-id")

	verificationLogCmd.Flags().String("status", "", "Filter by status (success or failed)")
	verificationLogCmd.Flags().Int("limit", 50, "Maximum rows to show")

	adminCmd.AddCommand(
		listBindingsCmd,
		deactivateBindingCmd,
		verificationLogCmd,
		statsCmd,
		captureTestCmd,
	)
}

// adminBindingService opens the database and wires up a BindingService for
// one-shot CLI use. The caller must Close the returned DB.
func adminBindingService() (*services.BindingService, *storage.DB) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := storage.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	bindingRepo := storage.NewBindingRepository(db)
	logRepo := storage.NewVerificationLogRepository(db)
	profileRepo := storage.NewProfileRepository(db)

	svc := services.NewBindingService(bindingRepo, logRepo, profileRepo, services.NewCaptureService(), cfg.MACVerificationKey)
	return svc, db
}

func runListBindingsCommand(cmd *cobra.Command, args []string) {
	userIDFlag, _ := cmd.Flags().GetString("user-id")
	limit, _ := cmd.Flags().GetInt("limit")

	svc, db := adminBindingService()
	defer db.Close()

	ctx := context.Background()

	var rows int
	fmt.Println(strings.Repeat("=", 110))
	fmt.Printf("%-36s %-36s %-8s %-8s %-10s %-8s\n", "ID", "User", "OS", "Active", "Verified", "Failed")
	fmt.Println(strings.Repeat("=", 110))

	if userIDFlag != "" {
		userID, err := uuid.Parse(userIDFlag)
		if err != nil {
			log.Fatalf("Invalid user ID: %v", err)
		}
		list, err := svc.GetUserBindings(ctx, userID)
		if err != nil {
			log.Fatalf("Failed to list bindings: %v", err)
		}
		for _, b := range list {
			fmt.Printf("%-36s %-36s %-8s %-8v %-10d %-8d\n",
				b.ID, b.UserID, b.DeviceOS, b.IsActive, b.VerificationCount, b.FailedVerificationCount)
			rows++
		}
	} else {
		list, err := svc.ListAllBindings(ctx, limit, 0)
		if err != nil {
			log.Fatalf("Failed to list bindings: %v", err)
		}
		for _, b := range list {
			fmt.Printf("%-36s %-36s %-8s %-8v %-10d %-8d\n",
				b.ID, b.UserID, b.DeviceOS, b.IsActive, b.VerificationCount, b.FailedVerificationCount)
			rows++
		}
	}

	fmt.Println(strings.Repeat("=", 110))
	fmt.Printf("%d binding(s)\n", rows)
}

func runDeactivateBindingCommand(cmd *cobra.Command, args []string) {
	bindingIDFlag, _ := cmd.Flags().GetString("binding-id")

	bindingID, err := uuid.Parse(bindingIDFlag)
	if err != nil {
		log.Fatalf("Invalid binding ID: %v", err)
	}

	svc, db := adminBindingService()
	defer db.Close()

	ctx := context.Background()

	found, err := svc.DeactivateBinding(ctx, bindingID)
	if err != nil {
		log.Fatalf("Failed to deactivate binding: %v", err)
	}
	if !found {
		log.Fatalf("Binding not found: %s", bindingID)
	}

	fmt.Printf("✓ Binding %s deactivated\n", bindingID)
	fmt.Println("The user will be bound to their current device on next login.")
}

func runVerificationLogCommand(cmd *cobra.Command, args []string) {
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	if status != "" && status != "success" && status != "failed" {
		log.Fatalf("Invalid status filter: %q (want success or failed)", status)
	}

	svc, db := adminBindingService()
	defer db.Close()

	ctx := context.Background()

	entries, err := svc.ListVerificationLog(ctx, status, limit, 0)
	if err != nil {
		log.Fatalf("Failed to read verification log: %v", err)
	}

	if len(entries) == 0 {
		fmt.Println("No verification attempts recorded.")
		return
	}

	fmt.Println(strings.Repeat("=", 120))
	fmt.Printf("%-36s %-8s %-8s %-20s %-30s\n", "User", "Status", "Match", "When", "Error")
	fmt.Println(strings.Repeat("=", 120))

	for _, e := range entries {
		errMsg := "-"
		if e.ErrorMessage != nil {
			errMsg = *e.ErrorMessage
		}
		fmt.Printf("%-36s %-8s %-8v %-20s %-30s\n",
			e.UserID, e.VerificationStatus, e.ChecksumMatch, e.CreatedAt.Format("2006-01-02 15:04:05"), errMsg)
	}
	fmt.Println(strings.Repeat("=", 120))
}

func runStatsCommand(cmd *cobra.Command, args []string) {
	svc, db := adminBindingService()
	defer db.Close()

	ctx := context.Background()

	stats, err := svc.Stats(ctx)
	if err != nil {
		log.Fatalf("Failed to compute stats: %v", err)
	}

	fmt.Println("Binding statistics")
	fmt.Println(strings.Repeat("=", 40))
	fmt.Printf("Total bindings:       %d\n", stats.TotalBindings)
	fmt.Printf("Active bindings:      %d\n", stats.ActiveBindings)
	fmt.Printf("Inactive bindings:    %d\n", stats.InactiveBindings)
	fmt.Printf("Verifications:        %d\n", stats.TotalVerifications)
	fmt.Printf("  successful:         %d\n", stats.SuccessfulVerifications)
	fmt.Printf("  failed:             %d\n", stats.FailedVerifications)
	fmt.Printf("Success rate:         %.2f%%\n", stats.SuccessRatePercent)
}

func runCaptureTestCommand(cmd *cobra.Command, args []string) {
	capture := services.NewCaptureService()

	fmt.Printf("Strategy chain: %s\n", strings.Join(capture.StrategyNames(), " -> "))

	mac, strategy, ok := capture.Capture(context.Background())
	if !ok {
		fmt.Println("✗ Capture failed: no strategy produced a MAC address")
		return
	}

	fmt.Printf("✓ Captured MAC: %s (strategy: %s)\n", mac, strategy)
	if services.IsServerlessEnvironment() {
		fmt.Println("Note: serverless environment detected, this is an environment fingerprint")
	}
}
