package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/buildhive/buildhive/pkg/buildx"
	"github.com/buildhive/buildhive/pkg/config"
	"github.com/buildhive/buildhive/pkg/credentials"
	"github.com/buildhive/buildhive/pkg/log"
	"github.com/buildhive/buildhive/pkg/orchestrator"
	"github.com/buildhive/buildhive/pkg/state"
)

var downCmd = &cobra.Command{
	Use:   "down [cluster-name]",
	Short: "Tear down provisioned builder pools",
	Long: `Remove a builder cluster and the credential directories provisioned
for it. With --all, every run recorded in the local ledger is torn down,
including runs left behind by a crashed 'up'.

Examples:
  buildhive down buildhive-a1b2c3d4
  buildhive down --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDown,
}

func init() {
	downCmd.Flags().Bool("all", false, "Tear down every recorded run")

	rootCmd.AddCommand(downCmd)
}

func runDown(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	if !all && len(args) == 0 {
		return fmt.Errorf("specify a cluster name or --all")
	}

	certRoot, err := config.CertRoot()
	if err != nil {
		return err
	}

	store, err := state.Open(certRoot)
	if err != nil {
		return err
	}
	defer store.Close()

	driver := buildx.NewExecDriver()
	ctx := context.Background()

	if all {
		if err := orchestrator.CleanupStale(ctx, store, driver); err != nil {
			return err
		}
		fmt.Println("✓ All recorded runs torn down")
		return nil
	}

	clusterName := args[0]
	record, err := store.GetRun(clusterName)
	if err != nil {
		return fmt.Errorf("no recorded run for %s: %w", clusterName, err)
	}

	logger := log.WithComponent("down")
	if err := driver.Remove(ctx, record.ClusterName); err != nil {
		logger.Warn().Err(err).Msg("failed to remove builder cluster")
	}
	for _, dir := range record.CredentialDirs {
		if err := credentials.Remove(dir); err != nil {
			logger.Warn().Err(err).Str("dir", dir).Msg("failed to remove credential directory")
		}
	}
	if err := store.DeleteRun(record.ClusterName); err != nil {
		logger.Warn().Err(err).Msg("failed to clear run record")
	}

	fmt.Printf("✓ Torn down %s\n", clusterName)
	return nil
}
