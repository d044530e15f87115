package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/buildhive/buildhive/pkg/config"
	"github.com/buildhive/buildhive/pkg/events"
	"github.com/buildhive/buildhive/pkg/orchestrator"
	"github.com/buildhive/buildhive/pkg/state"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Provision a builder pool and register it as a buildx builder",
	Long: `Request builder assignment from the control plane, wait for every
worker to become ready, and register them all into one buildx builder.

The builder stays up until 'buildhive down' removes it.

Examples:
  # Provision the ci-pool profile
  buildhive up --profile ci-pool --token $BUILDHIVE_TOKEN

  # Provision from a pool profile file
  buildhive up -f pool.yaml`,
	RunE: runUp,
}

func init() {
	upCmd.Flags().String("profile", "", "Builder pool profile to request")
	upCmd.Flags().String("token", "", "API token (omit inside a trusted runner)")
	upCmd.Flags().Duration("timeout", 0, "Global provisioning deadline (default 10m)")
	upCmd.Flags().StringP("file", "f", "", "YAML pool profile file")

	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	profile, _ := cmd.Flags().GetString("profile")
	token, _ := cmd.Flags().GetString("token")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	profileFile, _ := cmd.Flags().GetString("file")

	cfg, err := config.Build(config.Options{
		Profile:     profile,
		Token:       token,
		Timeout:     timeout,
		ProfileFile: profileFile,
	})
	if err != nil {
		return err
	}

	store, err := state.Open(cfg.CertRoot)
	if err != nil {
		return err
	}
	defer store.Close()

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	go printEvents(sub)

	orch, err := orchestrator.New(cfg, orchestrator.Deps{
		Broker: broker,
		Store:  store,
	})
	if err != nil {
		return err
	}

	ctx := context.Background()

	fmt.Printf("Provisioning builder pool (profile=%s)...\n", cfg.Profile)
	orch.Assign(ctx)

	if err := orch.Setup(ctx); err != nil {
		// Release whatever the partial setup created
		orch.Cleanup(ctx)
		return fmt.Errorf("failed to provision builder pool: %w", err)
	}

	fmt.Println()
	fmt.Printf("✓ Builder ready: %s (%d workers)\n", orch.ClusterName(), orch.BuilderCount())
	fmt.Printf("  Use it with: docker buildx build --builder %s ...\n", orch.ClusterName())
	fmt.Printf("  Tear it down with: buildhive down %s\n", orch.ClusterName())

	// Let the broker drain pending events before exit
	time.Sleep(100 * time.Millisecond)
	return nil
}

func printEvents(sub events.Subscriber) {
	for event := range sub {
		if event.WorkerID != "" {
			fmt.Printf("  [%s] %s: %s\n", event.Type, event.WorkerID, event.Message)
		} else {
			fmt.Printf("  [%s] %s\n", event.Type, event.Message)
		}
	}
}
