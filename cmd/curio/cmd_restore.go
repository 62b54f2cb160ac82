package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/HerbHall/curio/internal/backup"
)

func runRestore(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	input := fs.String("input", "", "backup archive to restore (required)")
	dataDir := fs.String("data-dir", ".", "target directory for restored files")
	force := fs.Bool("force", false, "overwrite existing files")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *input == "" {
		fmt.Fprintln(os.Stderr, "error: --input is required")
		fs.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m, err := backup.Restore(ctx, *input, *dataDir, *force)
	exitOnError("restore failed", err)

	fmt.Printf("Restore complete: backup from %s (curio %s) restored to %s\n",
		m.CreatedAt.Format("2006-01-02 15:04:05"), m.Version, *dataDir)
}
