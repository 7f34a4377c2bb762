package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tmachado/splitsync/internal/config"
	"github.com/tmachado/splitsync/internal/profile"
)

var (
	flagOwner string
	flagCount bool
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Show mutations queued for upload",
	Long: `Pending lists the owner's queued mutations oldest first, the order
the upload coordinator will drain them in. With --count only the number
of entries is printed, the same figure surfaced before sign-out.`,
	RunE: runPending,
}

func init() {
	pendingCmd.Flags().StringVar(&flagOwner, "owner", "", "owner id (default: configured owner)")
	pendingCmd.Flags().BoolVar(&flagCount, "count", false, "print only the number of pending entries")
}

func resolveOwner() (string, error) {
	if flagOwner != "" {
		return flagOwner, nil
	}
	cfg := config.LoadOrDefault(profile.ConfigPath())
	if cfg.OwnerID == "" {
		return "", fmt.Errorf("no owner configured; pass --owner")
	}
	return cfg.OwnerID, nil
}

func runPending(cmd *cobra.Command, args []string) error {
	owner, err := resolveOwner()
	if err != nil {
		return err
	}

	db, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if flagCount {
		n, err := db.CountPendingQueue(owner)
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	}

	entries, err := db.ListPendingQueue(owner, 0)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no pending mutations")
		return nil
	}

	for _, e := range entries {
		age := time.Since(time.UnixMilli(e.CreatedAt)).Round(time.Second)
		line := fmt.Sprintf("%-6d %-14s %-8s %s (age %s", e.ID, e.EntityType, e.OperationType, e.EntityID, age)
		if e.RetryCount > 0 {
			line += fmt.Sprintf(", %d failed attempts, last: %s", e.RetryCount, e.LastError)
		}
		fmt.Println(line + ")")
	}
	fmt.Printf("%d pending\n", len(entries))
	return nil
}
