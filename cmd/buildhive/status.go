package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/buildhive/buildhive/pkg/config"
	"github.com/buildhive/buildhive/pkg/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List recorded builder pool runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		certRoot, err := config.CertRoot()
		if err != nil {
			return err
		}

		store, err := state.Open(certRoot)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.ListRuns()
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("No recorded runs")
			return nil
		}

		fmt.Printf("%-28s %-16s %-10s %-8s %s\n", "CLUSTER", "PROFILE", "WORKERS", "ACTIVE", "CREATED")
		for _, record := range records {
			fmt.Printf("%-28s %-16s %-10d %-8t %s\n",
				record.ClusterName,
				record.Profile,
				len(record.CredentialDirs),
				record.Registered,
				record.CreatedAt.Format(time.RFC3339),
			)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
