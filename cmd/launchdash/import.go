package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/launchdash/dbopen"
	"github.com/hazyhaar/launchdash/launches"
)

func newImportCmd(root *rootOptions) *cobra.Command {
	var dbPath, tableName string
	cmd := &cobra.Command{
		Use:   "import <csv>",
		Short: "Copy a CSV launch dataset into a SQLite table",
		Long: "import validates a CSV launch dataset and writes its records into a\n" +
			"SQLite table, replacing the table if it exists. Serve the result by\n" +
			"pointing dataset at the .db file.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := root.setup(cmd, nil)
			if err != nil {
				return err
			}
			src := args[0]
			if launches.IsSQLitePath(src) {
				return fmt.Errorf("import: %s is a SQLite path, want a CSV file", src)
			}
			ds, err := launches.Load(src, launches.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("load dataset %s: %w", src, err)
			}

			db, err := dbopen.Open(dbPath, dbopen.WithMkdirAll())
			if err != nil {
				return fmt.Errorf("open %s: %w", dbPath, err)
			}
			defer db.Close()

			if err := launches.WriteSQLite(cmd.Context(), db, tableName, ds); err != nil {
				return fmt.Errorf("write %s: %w", dbPath, err)
			}
			logger.Info("launchdash: dataset imported", "src", src, "db", dbPath, "table", tableName, "records", ds.Len())
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d records into %s (table %s)\n", ds.Len(), dbPath, tableName)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&dbPath, "db", "launches.db", "SQLite database to write")
	f.StringVar(&tableName, "table", launches.DefaultTable, "table to create or replace")
	return cmd
}
