package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/WCArena/pudscan/internal/config"
	"github.com/WCArena/pudscan/internal/database"
	"github.com/WCArena/pudscan/internal/logging"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the scan tables in Postgres",
	Long: `Migrate connects to the configured Postgres database and migrates the
schema. When Postgres is unreachable the schema is created in a local SQLite
database and written to storage.sqlite.dumpPath instead.`,
	Args: cobra.NoArgs,
	RunE: runDBMigrate,
}

var dbBackupsCmd = &cobra.Command{
	Use:   "backups [dir]",
	Short: "List SQLite dumps in a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDBBackups,
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd, dbBackupsCmd)
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	storageCfg, err := config.GetStorageConfig()
	if err != nil {
		return err
	}

	var out io.Writer
	if LogFile != nil {
		out = LogFile
	}
	m := database.NewManager(logging.NewZerolog(out, viper.GetString("logLevel"), "database"))
	if err := m.Connect(storageCfg.DB); err != nil {
		return err
	}
	defer m.Close()

	if err := m.Setup(); err != nil {
		return err
	}
	if m.ShouldSaveLocal {
		if err := m.DumpToDisk(storageCfg.SQLite.DumpPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Postgres unreachable, schema written to %s\n", storageCfg.SQLite.DumpPath)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s@%s/%s\n", storageCfg.DB.Username, storageCfg.DB.Host, storageCfg.DB.Database)
	return nil
}

func runDBBackups(cmd *cobra.Command, args []string) error {
	dir := filepath.Dir(viper.GetString("storage.sqlite.dumpPath"))
	if len(args) > 0 {
		dir = args[0]
	}
	paths, err := database.GetBackupDBPaths(dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	return writeBackups(cmd.OutOrStdout(), paths)
}

func writeBackups(w io.Writer, paths []string) error {
	if len(paths) == 0 {
		_, err := fmt.Fprintln(w, "No SQLite dumps found")
		return err
	}
	for _, p := range paths {
		size := "?"
		if fi, err := os.Stat(p); err == nil {
			size = humanize.Bytes(uint64(fi.Size()))
		}
		if _, err := fmt.Fprintf(w, "%s  %s\n", p, size); err != nil {
			return err
		}
	}
	return nil
}
