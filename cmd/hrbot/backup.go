package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

const sqliteHeader = "SQLite format 3\x00"

var restoreForce bool

var backupCmd = &cobra.Command{
	Use:   "backup [dest]",
	Short: "Write a consistent copy of the SQLite database",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Database.Driver != "sqlite" {
			return errors.New("backup only supports the sqlite driver; use pg_dump for postgres")
		}
		dest := cfg.Database.Path + "." + time.Now().UTC().Format("20060102T150405") + ".bak"
		if len(args) == 1 {
			dest = args[0]
		}
		if _, err := os.Stat(dest); err == nil {
			return fmt.Errorf("%s already exists", dest)
		}
		b, err := openBackend(cmd.Context(), cfg.Database, logger)
		if err != nil {
			return err
		}
		defer b.Close()
		if err := b.sqlite.Backup(cmd.Context(), dest); err != nil {
			return fmt.Errorf("backup: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Database backup written to %s\n", dest)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <src>",
	Short: "Replace the SQLite database with a backup (stop the bot first)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Database.Driver != "sqlite" {
			return errors.New("restore only supports the sqlite driver")
		}
		if err := restoreFile(args[0], cfg.Database.Path, restoreForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Database restored from %s\n", args[0])
		return nil
	},
}

func init() {
	restoreCmd.Flags().BoolVar(&restoreForce, "force", false, "Overwrite an existing database")
	rootCmd.AddCommand(backupCmd, restoreCmd)
}

// restoreFile copies src over dst through a temporary file in dst's
// directory so a failed copy never leaves a truncated database behind.
func restoreFile(src, dst string, force bool) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer in.Close()

	header := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(in, header); err != nil || string(header) != sqliteHeader {
		return fmt.Errorf("%s is not a sqlite database", src)
	}
	if _, err := in.Seek(0, io.SeekStart); err != nil {
		return err
	}

	if _, err := os.Stat(dst); err == nil && !force {
		return fmt.Errorf("%s exists; pass --force to overwrite", dst)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".restore-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	// stale WAL files would be replayed over the restored pages
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dst + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
