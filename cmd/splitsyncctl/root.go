// splitsyncctl inspects and maintains a profile's local store directly.
// It must not run against a profile whose daemon holds the lock when
// mutating (the wipe command acquires the lock first).
package main

import (
	"github.com/spf13/cobra"
	"github.com/tmachado/splitsync/internal/profile"
	"github.com/tmachado/splitsync/internal/store"
)

var flagProfile string

var rootCmd = &cobra.Command{
	Use:   "splitsyncctl",
	Short: "Inspect and maintain a splitsync profile",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "profile name (overrides config default)")

	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(signinCmd)
	rootCmd.AddCommand(wipeCmd)
	rootCmd.AddCommand(versionCmd)
}

// openStore resolves the active profile and opens its database.
func openStore() (*store.DB, string, error) {
	name := profile.Resolve(flagProfile)
	if err := profile.ValidateName(name); err != nil {
		return nil, "", err
	}
	db, err := store.Open(profile.DBPath(name))
	if err != nil {
		return nil, "", err
	}
	if _, err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, "", err
	}
	return db, name, nil
}
