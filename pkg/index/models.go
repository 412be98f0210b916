package index

import "time"

// File is a row of the files table: one entry per indexed path.
//
// GORM struct tags describe the existing schema created by applySchema;
// this package never calls AutoMigrate, so the tags only need to match
// column names for Scan/query building, not drive DDL.
type File struct {
	FileID   uint64    `gorm:"column:file_id;primaryKey"`
	Name     string    `gorm:"column:name"`
	Modified time.Time `gorm:"column:modified"`
}

// TableName pins the GORM table name; the struct name would otherwise
// pluralize to "files", which happens to match, but we don't rely on it.
func (File) TableName() string { return "files" }

// Block is a row of the blocks table: one content-defined chunk of one
// file. Size is a schema extension beyond the original store (SPEC_FULL
// §12, resolving the new_index open question) so that a bulk index feed
// never needs to re-read file bytes to learn a block's length.
type Block struct {
	Hash   string `gorm:"column:hash"`
	FileID uint64 `gorm:"column:file_id;primaryKey"`
	Offset uint64 `gorm:"column:offset;primaryKey"`
	Size   uint64 `gorm:"column:size"`
}

func (Block) TableName() string { return "blocks" }

// versionRow mirrors the single row of the version table.
type versionRow struct {
	Name    string `gorm:"column:name"`
	Version string `gorm:"column:version"`
}

func (versionRow) TableName() string { return "version" }

// schemaName and schemaVersion are the expected contents of the version
// table (spec §6), unchanged from the original store's on-disk marker so
// that indexes created by either implementation are mutually recognizable.
const (
	schemaName    = "rs-sync"
	schemaVersion = "0.1"
)
