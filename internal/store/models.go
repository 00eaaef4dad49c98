// Package store owns the destination SQLite database: its models, the
// single-writer discipline, and the run report lifecycle. The table layout
// is a binding contract; other tooling queries these tables directly.
package store

import "time"

// FileReport is one row per source container file. It is created when the
// file's job starts and its status/msg_count/error are backfilled once the
// job reaches a terminal state.
type FileReport struct {
	ID       int64  `gorm:"primaryKey"`
	Path     string `gorm:"column:path"`
	Name     string `gorm:"column:name"`
	Size     int64  `gorm:"column:size"`
	MD5      string `gorm:"column:md5"`
	SHA256   string `gorm:"column:sha256"`
	Status   string `gorm:"column:status;index"`
	MsgCount int64  `gorm:"column:msg_count"`
	Error    string `gorm:"column:error"`
}

func (FileReport) TableName() string { return "file_report" }

// Message is one row per parsed message. PffIdentifier is nil for container
// formats without a native identifier (mbox). Body and Headers are stored
// only when message contents are requested.
type Message struct {
	ID                  int64     `gorm:"primaryKey"`
	PffIdentifier       *int64    `gorm:"column:pff_identifier"`
	ProcessingStartTime time.Time `gorm:"column:processing_start_time"`
	ProcessingEndTime   time.Time `gorm:"column:processing_end_time"`
	Body                *string   `gorm:"column:body"`
	Headers             *string   `gorm:"column:headers"`
	FileReportID        int64     `gorm:"column:file_report_id;not null;index"`
}

func (Message) TableName() string { return "message" }

type Attachment struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"column:name"`
	Size        int64  `gorm:"column:size"`
	ContentType string `gorm:"column:content_type"`
	MessageID   int64  `gorm:"column:message_id;not null;index"`
}

func (Attachment) TableName() string { return "attachment" }

// Entity carries both its message and file report keys; the file-level key
// and filepath are redundant on purpose, for join-free per-file queries.
type Entity struct {
	ID           int64  `gorm:"primaryKey"`
	Text         string `gorm:"column:text"`
	Label        string `gorm:"column:label;index"`
	Filepath     string `gorm:"column:filepath"`
	MessageID    int64  `gorm:"column:message_id;not null;index"`
	FileReportID int64  `gorm:"column:file_report_id;not null;index"`
}

func (Entity) TableName() string { return "entity" }

// RunReport is written once per invocation: inserted (partial) at pipeline
// start and finalized with counts, end time and terminal status at the end.
type RunReport struct {
	ID            int64     `gorm:"primaryKey"`
	StartTime     time.Time `gorm:"column:start_time"`
	EndTime       time.Time `gorm:"column:end_time"`
	ToolVersion   string    `gorm:"column:tool_version"`
	ModelIdentity string    `gorm:"column:model_identity"`
	Concurrency   int       `gorm:"column:concurrency"`
	FileCount     int64     `gorm:"column:file_count"`
	MessageCount  int64     `gorm:"column:message_count"`
	EntityCount   int64     `gorm:"column:entity_count"`
	Status        string    `gorm:"column:status"`
}

func (RunReport) TableName() string { return "run_report" }
