// Package export dumps the persisted tables to parquet files so extraction
// results can feed columnar analysis tooling without touching the SQLite
// contract.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"gorm.io/gorm"

	"github.com/libratom/libratom/internal/store"
)

// Tables lists the exportable table names.
var Tables = []string{"file_report", "message", "attachment", "entity", "run_report"}

// Rows are flattened for parquet: timestamps become RFC 3339 strings and
// nullable columns become empty values, which keeps every reader simple.

type fileReportRow struct {
	ID       int64  `parquet:"name=id, type=INT64"`
	Path     string `parquet:"name=path, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Name     string `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Size     int64  `parquet:"name=size, type=INT64"`
	MD5      string `parquet:"name=md5, type=BYTE_ARRAY, convertedtype=UTF8"`
	SHA256   string `parquet:"name=sha256, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status   string `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	MsgCount int64  `parquet:"name=msg_count, type=INT64"`
	Error    string `parquet:"name=error, type=BYTE_ARRAY, convertedtype=UTF8"`
}

type messageRow struct {
	ID                  int64  `parquet:"name=id, type=INT64"`
	PffIdentifier       int64  `parquet:"name=pff_identifier, type=INT64"`
	HasPffIdentifier    bool   `parquet:"name=has_pff_identifier, type=BOOLEAN"`
	ProcessingStartTime string `parquet:"name=processing_start_time, type=BYTE_ARRAY, convertedtype=UTF8"`
	ProcessingEndTime   string `parquet:"name=processing_end_time, type=BYTE_ARRAY, convertedtype=UTF8"`
	FileReportID        int64  `parquet:"name=file_report_id, type=INT64"`
}

type attachmentRow struct {
	ID          int64  `parquet:"name=id, type=INT64"`
	Name        string `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Size        int64  `parquet:"name=size, type=INT64"`
	ContentType string `parquet:"name=content_type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	MessageID   int64  `parquet:"name=message_id, type=INT64"`
}

type entityRow struct {
	ID           int64  `parquet:"name=id, type=INT64"`
	Text         string `parquet:"name=text, type=BYTE_ARRAY, convertedtype=UTF8"`
	Label        string `parquet:"name=label, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Filepath     string `parquet:"name=filepath, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	MessageID    int64  `parquet:"name=message_id, type=INT64"`
	FileReportID int64  `parquet:"name=file_report_id, type=INT64"`
}

type runReportRow struct {
	ID            int64  `parquet:"name=id, type=INT64"`
	StartTime     string `parquet:"name=start_time, type=BYTE_ARRAY, convertedtype=UTF8"`
	EndTime       string `parquet:"name=end_time, type=BYTE_ARRAY, convertedtype=UTF8"`
	ToolVersion   string `parquet:"name=tool_version, type=BYTE_ARRAY, convertedtype=UTF8"`
	ModelIdentity string `parquet:"name=model_identity, type=BYTE_ARRAY, convertedtype=UTF8"`
	Concurrency   int32  `parquet:"name=concurrency, type=INT32"`
	FileCount     int64  `parquet:"name=file_count, type=INT64"`
	MessageCount  int64  `parquet:"name=message_count, type=INT64"`
	EntityCount   int64  `parquet:"name=entity_count, type=INT64"`
	Status        string `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// Options selects what to export and where.
type Options struct {
	DBPath    string
	OutputDir string
	// Tables restricts the export; empty means all of Tables.
	Tables []string
}

// Run exports the selected tables from the database at opts.DBPath into
// one parquet file per table under opts.OutputDir.
func Run(opts Options, logger *slog.Logger) error {
	db, err := store.OpenQueryDB(opts.DBPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create export directory %s: %w", opts.OutputDir, err)
	}

	tables := opts.Tables
	if len(tables) == 0 {
		tables = Tables
	}

	for _, table := range tables {
		path := filepath.Join(opts.OutputDir, table+".parquet")
		var n int
		var err error
		switch table {
		case "file_report":
			n, err = exportFileReports(db, path)
		case "message":
			n, err = exportMessages(db, path)
		case "attachment":
			n, err = exportAttachments(db, path)
		case "entity":
			n, err = exportEntities(db, path)
		case "run_report":
			n, err = exportRunReports(db, path)
		default:
			return fmt.Errorf("unknown table %q (valid: %v)", table, Tables)
		}
		if err != nil {
			return fmt.Errorf("export %s: %w", table, err)
		}
		logger.Info("table exported", "table", table, "rows", n, "path", path)
	}
	return nil
}

// newParquetWriter opens a snappy-compressed writer for the given row type.
func newParquetWriter(path string, rowType any) (*writer.ParquetWriter, func() error, error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	pw, err := writer.NewParquetWriter(fw, rowType, 2)
	if err != nil {
		fw.Close()
		return nil, nil, fmt.Errorf("init writer for %s: %w", path, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	finish := func() error {
		if err := pw.WriteStop(); err != nil {
			fw.Close()
			return err
		}
		return fw.Close()
	}
	return pw, finish, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func exportFileReports(db *gorm.DB, path string) (int, error) {
	var rows []store.FileReport
	if err := db.Order("id").Find(&rows).Error; err != nil {
		return 0, err
	}
	pw, finish, err := newParquetWriter(path, new(fileReportRow))
	if err != nil {
		return 0, err
	}
	for _, r := range rows {
		if err := pw.Write(fileReportRow{
			ID: r.ID, Path: r.Path, Name: r.Name, Size: r.Size,
			MD5: r.MD5, SHA256: r.SHA256, Status: r.Status,
			MsgCount: r.MsgCount, Error: r.Error,
		}); err != nil {
			return 0, err
		}
	}
	return len(rows), finish()
}

func exportMessages(db *gorm.DB, path string) (int, error) {
	var rows []store.Message
	if err := db.Order("id").Find(&rows).Error; err != nil {
		return 0, err
	}
	pw, finish, err := newParquetWriter(path, new(messageRow))
	if err != nil {
		return 0, err
	}
	for _, r := range rows {
		row := messageRow{
			ID:                  r.ID,
			ProcessingStartTime: formatTime(r.ProcessingStartTime),
			ProcessingEndTime:   formatTime(r.ProcessingEndTime),
			FileReportID:        r.FileReportID,
		}
		if r.PffIdentifier != nil {
			row.PffIdentifier = *r.PffIdentifier
			row.HasPffIdentifier = true
		}
		if err := pw.Write(row); err != nil {
			return 0, err
		}
	}
	return len(rows), finish()
}

func exportAttachments(db *gorm.DB, path string) (int, error) {
	var rows []store.Attachment
	if err := db.Order("id").Find(&rows).Error; err != nil {
		return 0, err
	}
	pw, finish, err := newParquetWriter(path, new(attachmentRow))
	if err != nil {
		return 0, err
	}
	for _, r := range rows {
		if err := pw.Write(attachmentRow{
			ID: r.ID, Name: r.Name, Size: r.Size,
			ContentType: r.ContentType, MessageID: r.MessageID,
		}); err != nil {
			return 0, err
		}
	}
	return len(rows), finish()
}

func exportEntities(db *gorm.DB, path string) (int, error) {
	var rows []store.Entity
	if err := db.Order("id").Find(&rows).Error; err != nil {
		return 0, err
	}
	pw, finish, err := newParquetWriter(path, new(entityRow))
	if err != nil {
		return 0, err
	}
	for _, r := range rows {
		if err := pw.Write(entityRow{
			ID: r.ID, Text: r.Text, Label: r.Label, Filepath: r.Filepath,
			MessageID: r.MessageID, FileReportID: r.FileReportID,
		}); err != nil {
			return 0, err
		}
	}
	return len(rows), finish()
}

func exportRunReports(db *gorm.DB, path string) (int, error) {
	var rows []store.RunReport
	if err := db.Order("id").Find(&rows).Error; err != nil {
		return 0, err
	}
	pw, finish, err := newParquetWriter(path, new(runReportRow))
	if err != nil {
		return 0, err
	}
	for _, r := range rows {
		if err := pw.Write(runReportRow{
			ID: r.ID, StartTime: formatTime(r.StartTime), EndTime: formatTime(r.EndTime),
			ToolVersion: r.ToolVersion, ModelIdentity: r.ModelIdentity,
			Concurrency: int32(r.Concurrency), FileCount: r.FileCount,
			MessageCount: r.MessageCount, EntityCount: r.EntityCount, Status: r.Status,
		}); err != nil {
			return 0, err
		}
	}
	return len(rows), finish()
}
