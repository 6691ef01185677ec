package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lettings-match/internal/app"
	"github.com/lettings-match/internal/config"
	"github.com/lettings-match/internal/db"
	"github.com/lettings-match/internal/debug"
	"github.com/lettings-match/internal/locality"
	"github.com/lettings-match/internal/store"
)

var (
	// Global services, built once before any command runs
	application *app.App
	logger      *zap.Logger
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err = debug.NewLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	application, err = app.New(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer application.Close()

	rootCmd := &cobra.Command{
		Use:   "matcher",
		Short: "Tenant and property matching",
		Long:  `Scores tenants against rental listings and runs agent targeting campaigns`,
	}

	rootCmd.AddCommand(createPingCmd())
	rootCmd.AddCommand(createDBCmd())
	rootCmd.AddCommand(createSeedCmd())
	rootCmd.AddCommand(createScoreCmd())
	rootCmd.AddCommand(createCampaignCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// createPingCmd creates a command to test database connectivity
func createPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test database connectivity",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			if err := application.Ping(ctx); err != nil {
				log.Fatalf("Ping failed: %v", err)
			}
			fmt.Println("Database connection successful!")

			for _, table := range db.Tables() {
				var count int
				err := application.Conn.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
				if err != nil {
					log.Printf("Error counting %s records: %v", table, err)
					continue
				}
				fmt.Printf("%-28s %d\n", table+":", count)
			}
		},
	}
}

// createDBCmd creates database management commands
func createDBCmd() *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	dbCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create tables and indexes",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			if err := application.Conn.EnsureSchema(ctx); err != nil {
				log.Fatalf("Schema setup failed: %v", err)
			}
			fmt.Println("Schema ready")
		},
	})

	return dbCmd
}

// createSeedCmd loads tenants, preferences and properties from a JSON file
func createSeedCmd() *cobra.Command {
	var usePostal bool

	cmd := &cobra.Command{
		Use:   "seed <file.json>",
		Short: "Load tenants, preferences and properties",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			f, err := os.Open(args[0])
			if err != nil {
				log.Fatalf("Failed to open seed file: %v", err)
			}
			defer f.Close()

			seed, err := store.ReadSeed(f)
			if err != nil {
				log.Fatalf("Invalid seed file: %v", err)
			}

			if usePostal {
				enricher := locality.NewEnricher(locality.Libpostal, logger)
				enriched := 0
				for i := range seed.Properties {
					if enricher.Enrich(&seed.Properties[i]) {
						enriched++
					}
				}
				fmt.Printf("Filled locality for %d properties\n", enriched)
			}

			ctx := cmd.Context()
			if err := application.Conn.EnsureSchema(ctx); err != nil {
				log.Fatalf("Schema setup failed: %v", err)
			}
			if err := seed.Apply(ctx, application.Store); err != nil {
				log.Fatalf("Seeding failed: %v", err)
			}

			fmt.Printf("Loaded %d tenants, %d preferences, %d properties\n",
				len(seed.Tenants), len(seed.Preferences), len(seed.Properties))
		},
	}

	cmd.Flags().BoolVar(&usePostal, "postal", false, "Fill missing city and area from the address using libpostal")
	return cmd
}

// createScoreCmd scores a single tenant/property pair
func createScoreCmd() *cobra.Command {
	var tenantID, propertyID string

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one tenant against one property",
		Run: func(cmd *cobra.Command, args []string) {
			res, err := application.Orchestrator.ScorePair(cmd.Context(), tenantID, propertyID)
			if err != nil {
				log.Fatalf("Scoring failed: %v", err)
			}

			fmt.Printf("Score: %d", res.Score)
			if res.Estimated {
				fmt.Print(" (estimated)")
			}
			fmt.Println()
			for _, r := range res.Reasons {
				fmt.Printf("  - %s\n", r)
			}
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID")
	cmd.Flags().StringVar(&propertyID, "property", "", "Property ID")
	cmd.MarkFlagRequired("tenant")
	cmd.MarkFlagRequired("property")
	return cmd
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
}
