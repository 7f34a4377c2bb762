package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tmachado/splitsync/internal/config"
	"github.com/tmachado/splitsync/internal/lock"
	"github.com/tmachado/splitsync/internal/profile"
)

var flagWipeYes bool

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Erase the profile's local data (sign-out)",
	Long: `Wipe erases every local row and removes the profile directory.
Mutations still queued for upload are lost; their count is shown and
confirmation required unless --yes is given.`,
	RunE: runWipe,
}

func init() {
	wipeCmd.Flags().BoolVar(&flagWipeYes, "yes", false, "skip confirmation")
}

func runWipe(cmd *cobra.Command, args []string) error {
	owner, err := resolveOwner()
	if err != nil {
		return err
	}

	db, name, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	// Refuse while a daemon holds the profile.
	lk, err := lock.Acquire(profile.Dir(name))
	if err != nil {
		return fmt.Errorf("profile in use: %w", err)
	}
	defer func() { _ = lk.Release() }()

	pending, err := db.CountPendingQueue(owner)
	if err != nil {
		return err
	}
	if pending > 0 && !flagWipeYes {
		fmt.Printf("%d mutations have not been uploaded and will be lost. Continue? [y/N] ", pending)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.TrimSpace(strings.ToLower(answer)) != "y" {
			fmt.Println("aborted")
			return nil
		}
	}

	if err := db.Wipe(); err != nil {
		return err
	}
	if err := db.Close(); err != nil {
		return err
	}
	_ = lk.Release()
	if err := profile.RemoveDir(name); err != nil {
		return err
	}

	// Sign out: forget the owner so the next daemon start idles.
	cfgPath := profile.ConfigPath()
	cfg := config.LoadOrDefault(cfgPath)
	if cfg.OwnerID == owner {
		cfg.OwnerID = ""
		if err := config.Save(cfgPath, cfg); err != nil {
			return err
		}
	}

	fmt.Printf("profile %s wiped\n", name)
	return nil
}
