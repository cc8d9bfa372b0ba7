package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/guiyumin/textube/internal/core/updater"
	"github.com/guiyumin/textube/internal/core/version"
)

var checkOnly bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update textube to the latest release",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		out := cmd.OutOrStdout()

		if checkOnly {
			rel, err := updater.Check(ctx)
			if err != nil {
				return err
			}
			if !rel.Newer {
				fmt.Fprintf(out, "Already up to date (v%s)\n", version.Version)
				return nil
			}
			fmt.Fprintf(out, "Update available: v%s -> %s\n%s\n", version.Version, rel.Version, rel.URL)
			return nil
		}

		fmt.Fprintln(out, "Checking for updates...")
		installed, err := updater.Update(ctx)
		if err != nil {
			return err
		}
		if installed == "" {
			fmt.Fprintf(out, "Already up to date (v%s)\n", version.Version)
			return nil
		}
		fmt.Fprintf(out, "Successfully updated to %s\n", installed)
		return nil
	},
}

func init() {
	updateCmd.Flags().BoolVar(&checkOnly, "check", false, "only report whether an update is available")
	rootCmd.AddCommand(updateCmd)
}
