package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/buildhive/buildhive/pkg/config"
	"github.com/buildhive/buildhive/pkg/events"
	"github.com/buildhive/buildhive/pkg/orchestrator"
	"github.com/buildhive/buildhive/pkg/state"
)

var runCmd = &cobra.Command{
	Use:   "run -- <command> [args...]",
	Short: "Provision a builder pool, run a command, then tear the pool down",
	Long: `Provision a builder pool, export its name as BUILDHIVE_BUILDER to
the given command, and guarantee teardown once the command exits -
whether it succeeded, failed, or the provisioning itself failed partway.

Examples:
  buildhive run --profile ci-pool -- docker buildx build --builder '$BUILDHIVE_BUILDER' .`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("profile", "", "Builder pool profile to request")
	runCmd.Flags().String("token", "", "API token (omit inside a trusted runner)")
	runCmd.Flags().Duration("timeout", 0, "Global provisioning deadline (default 10m)")
	runCmd.Flags().StringP("file", "f", "", "YAML pool profile file")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
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

	orch.Assign(ctx)

	// Teardown runs no matter how setup or the build command fare
	defer orch.Cleanup(ctx)

	if err := orch.Setup(ctx); err != nil {
		return fmt.Errorf("failed to provision builder pool: %w", err)
	}

	build := exec.CommandContext(ctx, args[0], args[1:]...)
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	build.Stdin = os.Stdin
	build.Env = append(os.Environ(), "BUILDHIVE_BUILDER="+orch.ClusterName())

	if err := build.Run(); err != nil {
		return fmt.Errorf("build command failed: %w", err)
	}
	return nil
}
