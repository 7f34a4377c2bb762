package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tmachado/splitsync/internal/config"
	"github.com/tmachado/splitsync/internal/profile"
)

var signinCmd = &cobra.Command{
	Use:   "signin <owner-id>",
	Short: "Record the signed-in owner in the global config",
	Long: `Signin stores the owner id the daemon drains the queue and pulls
remote data for. The daemon picks it up on its next start.`,
	Args: cobra.ExactArgs(1),
	RunE: runSignin,
}

func runSignin(cmd *cobra.Command, args []string) error {
	path := profile.ConfigPath()
	cfg := config.LoadOrDefault(path)
	cfg.OwnerID = args[0]
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("owner set to %s\n", args[0])
	return nil
}
