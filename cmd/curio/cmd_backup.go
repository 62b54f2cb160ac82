package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/HerbHall/curio/internal/backup"
)

func runBackup(args []string) {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	output := fs.String("output", "", "output file path (default: curio-backup-{timestamp}.tar.gz)")
	dbPath := fs.String("db", "curio.db", "path to the database")
	configFile := fs.String("config", "", "path to config file to include in backup")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *output == "" {
		*output = fmt.Sprintf("curio-backup-%s.tar.gz", time.Now().Format("20060102-150405"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m, err := backup.Backup(ctx, *dbPath, *configFile, *output)
	exitOnError("backup failed", err)

	fmt.Printf("Backup created: %s (database %s", *output, m.Database)
	if m.Config != "" {
		fmt.Printf(", config %s", m.Config)
	}
	fmt.Println(")")
}
