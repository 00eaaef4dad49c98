package cmd

import (
	"github.com/spf13/cobra"

	"github.com/libratom/libratom/internal/export"
)

var (
	exportDB     string
	exportDir    string
	exportTables []string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a finished extraction database to parquet files",
	Long: `Reads the tables of an extraction database produced by 'entities' or
'report' and writes one parquet file per table, suitable for columnar
analysis tooling. The source database is never modified.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return export.Run(export.Options{
			DBPath:    exportDB,
			OutputDir: exportDir,
			Tables:    exportTables,
		}, getLogger())
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportDB, "in", "i", "ratom.sqlite3", "extraction database to read")
	exportCmd.Flags().StringVarP(&exportDir, "out", "o", "./ratom_parquet", "directory for parquet output")
	exportCmd.Flags().StringSliceVarP(&exportTables, "table", "t", nil, "tables to export (default: all)")
}
