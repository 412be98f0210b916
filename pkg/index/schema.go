package index

import (
	"errors"

	"gorm.io/gorm"
)

// sqliteSchema and postgresSchema are the DDL statements applied to a fresh
// backing store, one statement per Exec call (multi-statement batches are
// not reliably supported by every driver's simple-query path). They mirror
// the original store's SCHEMA constant (original_source/src/index.rs),
// extended with blocks.size (SPEC_FULL §12).
//
// Raw DDL rather than GORM AutoMigrate: the version row is this package's
// only signal for SchemaMismatch, and AutoMigrate has no notion of "this
// table's contents assert a format version" — it only reconciles columns.
var sqliteSchema = []string{
	`CREATE TABLE version(
		name VARCHAR(8) NOT NULL,
		version VARCHAR(16) NOT NULL
	)`,
	`INSERT INTO version(name, version) VALUES(?, ?)`,
	`CREATE TABLE files(
		file_id INTEGER NOT NULL PRIMARY KEY,
		name VARCHAR(512) NOT NULL,
		modified DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX idx_files_name ON files(name)`,
	`CREATE TABLE blocks(
		hash VARCHAR(40) NOT NULL,
		file_id INTEGER NOT NULL,
		offset INTEGER NOT NULL,
		size INTEGER NOT NULL,
		PRIMARY KEY(file_id, offset)
	)`,
	`CREATE INDEX idx_blocks_hash ON blocks(hash)`,
	`CREATE INDEX idx_blocks_file ON blocks(file_id)`,
}

var postgresSchema = []string{
	`CREATE TABLE version(
		name VARCHAR(8) NOT NULL,
		version VARCHAR(16) NOT NULL
	)`,
	`INSERT INTO version(name, version) VALUES($1, $2)`,
	`CREATE TABLE files(
		file_id BIGSERIAL PRIMARY KEY,
		name VARCHAR(512) NOT NULL,
		modified TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX idx_files_name ON files(name)`,
	`CREATE TABLE blocks(
		hash VARCHAR(40) NOT NULL,
		file_id BIGINT NOT NULL,
		offset BIGINT NOT NULL,
		size BIGINT NOT NULL,
		PRIMARY KEY(file_id, offset)
	)`,
	`CREATE INDEX idx_blocks_hash ON blocks(hash)`,
	`CREATE INDEX idx_blocks_file ON blocks(file_id)`,
}

// tableExists reports whether name already exists in the connected
// database, using a dialect-appropriate catalog query.
func tableExists(db *gorm.DB, backend Backend, name string) (bool, error) {
	var n int64
	var err error
	switch backend {
	case BackendPostgres:
		err = db.Raw(`SELECT count(*) FROM information_schema.tables WHERE table_name = ?`, name).Scan(&n).Error
	default:
		err = db.Raw(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n).Error
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ensureSchema applies the schema to a fresh store, or verifies the version
// row of an existing one, per spec §4.3 open/open_in_memory.
func ensureSchema(db *gorm.DB, backend Backend) error {
	exists, err := tableExists(db, backend, "version")
	if err != nil {
		return newError("open", "", 0, errors.Join(ErrIo, err))
	}

	if !exists {
		stmts := sqliteSchema
		if backend == BackendPostgres {
			stmts = postgresSchema
		}
		for i, stmt := range stmts {
			var execErr error
			if i == 1 {
				execErr = db.Exec(stmt, schemaName, schemaVersion).Error
			} else {
				execErr = db.Exec(stmt).Error
			}
			if execErr != nil {
				return newError("open", "", 0, errors.Join(ErrIo, execErr))
			}
		}
		return nil
	}

	var v versionRow
	if err := db.Table("version").Take(&v).Error; err != nil {
		return newError("open", "", 0, errors.Join(ErrSchemaMismatch, err))
	}
	if v.Name != schemaName || v.Version != schemaVersion {
		return newError("open", "", 0, ErrSchemaMismatch)
	}
	return nil
}
