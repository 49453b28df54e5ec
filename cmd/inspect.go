package cmd

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/doc-session/internal"
	"github.com/spf13/cobra"
)

var (
	inspectFormat  string
	inspectPattern string
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect [database-path]",
	Short: "Inspect the local SQLite store",
	Long: `Inspect the schema and stored keys of the local SQLite database.

This command provides detailed information about:
  • Database schema (tables, columns, types)
  • Row counts
  • Stored keys and their values

Examples:
  doc-session inspect                              # Inspect the configured store
  doc-session inspect /path/to/documents.db        # Inspect a specific database
  doc-session inspect --format json --key 'doc-%'  # Pretty-print matching values`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := cfg.StorePath
		if len(args) > 0 {
			dbPath = args[0]
		} else if cfg.Store != "sqlite" {
			return fmt.Errorf("inspect only supports the sqlite store (configured: %s)", cfg.Store)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return inspectDatabase(ctx, cmd.OutOrStdout(), dbPath)
	},
}

func inspectDatabase(ctx context.Context, out io.Writer, dbPath string) error {
	db, err := internal.OpenDatabase(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	tables, err := getTables(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to get tables: %w", err)
	}

	fmt.Fprintf(out, "📋 Database: %s\n", dbPath)
	fmt.Fprintf(out, "📊 Found %d table(s)\n\n", len(tables))

	for _, tableName := range tables {
		if err := inspectTable(ctx, out, db, tableName); err != nil {
			fmt.Fprintf(out, "⚠️  Error inspecting table %s: %v\n", tableName, err)
		}
		fmt.Fprintln(out)
	}

	pairs, err := internal.NewSQLiteKV(db).QueryKV(ctx, inspectPattern)
	if err != nil {
		return fmt.Errorf("failed to query keys: %w", err)
	}
	fmt.Fprintf(out, "🔑 Keys matching %q: %d\n", inspectPattern, len(pairs))
	for _, pair := range pairs {
		fmt.Fprintf(out, "\n  %s (%d bytes)\n", pair.Key, len(pair.Value))
		fmt.Fprintln(out, describeValue(pair.Value))
	}
	return nil
}

func getTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type='table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			continue
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func inspectTable(ctx context.Context, out io.Writer, db *sql.DB, tableName string) error {
	fmt.Fprintf(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(out, "📦 Table: %s\n", tableName)
	fmt.Fprintf(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")

	var rowCount int
	if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %q", tableName)).Scan(&rowCount); err != nil {
		return fmt.Errorf("failed to get row count: %w", err)
	}
	fmt.Fprintf(out, "📊 Rows: %d\n\n", rowCount)

	columns, err := getTableSchema(ctx, db, tableName)
	if err != nil {
		return fmt.Errorf("failed to get schema: %w", err)
	}

	fmt.Fprintf(out, "📐 Schema:\n")
	for _, col := range columns {
		pk := ""
		if col.PrimaryKey {
			pk = " [PRIMARY KEY]"
		}
		notNull := ""
		if col.NotNull {
			notNull = " NOT NULL"
		}
		fmt.Fprintf(out, "  • %s: %s%s%s\n", col.Name, col.Type, notNull, pk)
	}
	return nil
}

type ColumnInfo struct {
	Name       string
	Type       string
	NotNull    bool
	PrimaryKey bool
}

func getTableSchema(ctx context.Context, db *sql.DB, tableName string) ([]ColumnInfo, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", tableName))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		var cid int
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &defaultValue, &pk); err != nil {
			continue
		}
		col.NotNull = notNull == 1
		col.PrimaryKey = pk == 1
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// describeValue summarizes a stored value, or pretty-prints it with --format json
func describeValue(value string) string {
	if inspectFormat == "json" {
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(value), "    ", "  "); err == nil {
			return "    " + buf.String()
		}
	}

	var list []json.RawMessage
	if err := json.Unmarshal([]byte(value), &list); err == nil {
		return fmt.Sprintf("    JSON list with %d entr(ies)", len(list))
	}

	preview := value
	if strings.Contains(preview, "\n") {
		preview = strings.Split(preview, "\n")[0] + "..."
	}
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	return "    " + preview
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "Output format (text, json)")
	inspectCmd.Flags().StringVar(&inspectPattern, "key", "%", "Only show keys matching this LIKE pattern")
}
