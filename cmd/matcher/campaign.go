package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lettings-match/internal/campaign"
)

// createCampaignCmd creates the campaign subcommands
func createCampaignCmd() *cobra.Command {
	campaignCmd := &cobra.Command{
		Use:   "campaign",
		Short: "Targeting campaign commands",
	}

	campaignCmd.AddCommand(createCampaignRunCmd())
	campaignCmd.AddCommand(createCampaignRerunCmd())
	campaignCmd.AddCommand(createCampaignShowCmd())
	campaignCmd.AddCommand(createCampaignMatchesCmd())
	campaignCmd.AddCommand(createCampaignRunsCmd())

	return campaignCmd
}

func createCampaignRunCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create a campaign from a criteria file and run it",
		Run: func(cmd *cobra.Command, args []string) {
			data, err := os.ReadFile(file)
			if err != nil {
				log.Fatalf("Failed to read criteria: %v", err)
			}
			var criteria campaign.Criteria
			if err := json.Unmarshal(data, &criteria); err != nil {
				log.Fatalf("Invalid criteria: %v", err)
			}

			ctx, cancel := runContext(cmd.Context())
			defer cancel()

			res, err := application.Orchestrator.RunCampaign(ctx, criteria)
			reportRun(res, err)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Criteria JSON file")
	cmd.MarkFlagRequired("file")
	return cmd
}

func createCampaignRerunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rerun <campaign-id>",
		Short: "Score an existing campaign again",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := runContext(cmd.Context())
			defer cancel()

			res, err := application.Orchestrator.Rerun(ctx, args[0])
			reportRun(res, err)
		},
	}
}

func createCampaignShowCmd() *cobra.Command {
	var ranked, asJSON bool

	cmd := &cobra.Command{
		Use:   "show <campaign-id>",
		Short: "Show a campaign",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			c, err := application.Store.GetCampaign(cmd.Context(), args[0])
			if err != nil {
				log.Fatalf("Failed to load campaign: %v", err)
			}
			if asJSON {
				printJSON(c)
				return
			}

			fmt.Printf("Campaign:   %s (%s)\n", c.Name, c.ID)
			fmt.Printf("Agent:      %s\n", c.AgentID)
			fmt.Printf("Audience:   %s\n", c.TargetDemographic)
			fmt.Printf("Status:     %s\n", c.Status)
			fmt.Printf("Properties: %s\n", strings.Join(c.TargetProperties, ", "))

			tenants := c.MatchedTenants
			if ranked {
				tenants = campaign.RankedView(c)
			}
			fmt.Printf("\nMatched tenants: %d\n", len(tenants))
			for _, mt := range tenants {
				fmt.Printf("  %-20s %3d  %s\n", mt.TenantID, mt.BestScore, strings.Join(mt.RecommendedPropertyIDs, ", "))
			}

			if len(c.Insights) > 0 {
				fmt.Println("\nInsights:")
				for _, line := range c.Insights {
					fmt.Printf("  - %s\n", line)
				}
			}
		},
	}

	cmd.Flags().BoolVar(&ranked, "ranked", false, "Order tenants by best score")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the campaign as JSON")
	return cmd
}

func createCampaignMatchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "matches <campaign-id>",
		Short: "List persisted property/tenant matches",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			matches, err := application.Store.ListMatches(cmd.Context(), args[0])
			if err != nil {
				log.Fatalf("Failed to list matches: %v", err)
			}
			for _, m := range matches {
				fmt.Printf("%-20s %-20s %3d  %s\n", m.TenantID, m.PropertyID, m.Score, strings.Join(m.Reasons, "; "))
			}
			fmt.Printf("%d matches\n", len(matches))
		},
	}
}

func createCampaignRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs <campaign-id>",
		Short: "List recorded runs of a campaign",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runs, err := application.Tracker.ListRuns(cmd.Context(), args[0])
			if err != nil {
				log.Fatalf("Failed to list runs: %v", err)
			}
			for _, r := range runs {
				fmt.Printf("%s  %s  candidates=%d scored=%d failed=%d matched=%d persisted=%d cancelled=%v\n",
					r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Candidates, r.PairsScored,
					r.PairsFailed, r.TenantsMatched, r.MatchesPersisted, r.Cancelled)
			}
		},
	}
}

func runContext(parent context.Context) (context.Context, context.CancelFunc) {
	if timeout := application.Config.Matching.RunTimeout; timeout > 0 {
		return context.WithTimeout(parent, timeout)
	}
	return context.WithCancel(parent)
}

// reportRun prints run statistics. A run cut short by its deadline still
// prints what was saved before exiting non-zero.
func reportRun(res *campaign.RunResult, err error) {
	if err != nil && res == nil {
		var verr *campaign.ValidationError
		if errors.As(err, &verr) {
			for _, p := range verr.Problems {
				fmt.Printf("  - %s\n", p)
			}
		}
		log.Fatalf("Campaign run failed: %v", err)
	}

	s := res.Stats
	fmt.Printf("Campaign %s (%s)\n", res.Campaign.Name, res.Campaign.ID)
	fmt.Printf("  Candidates:          %d\n", s.Candidates)
	fmt.Printf("  Properties:          %d\n", s.Properties)
	fmt.Printf("  Pairs scored:        %d\n", s.PairsScored)
	fmt.Printf("  Pairs failed:        %d\n", s.PairsFailed)
	fmt.Printf("  Estimation failures: %d\n", s.EstimationFailures)
	fmt.Printf("  Tenants matched:     %d\n", s.TenantsMatched)
	fmt.Printf("  Matches saved:       %d\n", s.MatchesPersisted)
	fmt.Printf("  Duration:            %v\n", s.Duration())

	if err != nil {
		log.Fatalf("Run stopped early: %v", err)
	}
}
