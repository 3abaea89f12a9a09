package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mwantia/blockfile/backend"
	"github.com/mwantia/blockfile/data"
)

func (sb *SQLiteBackend) StatObject(ctx context.Context, key string) (*data.ObjectStat, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	var size, modifyTime int64
	err := sb.db.QueryRowContext(ctx,
		"SELECT length(content), modify_time FROM blockfile_objects WHERE namespace = ? AND key = ?",
		sb.namespace, key).Scan(&size, &modifyTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, data.ErrNotExist
	}
	if err != nil {
		return nil, err
	}

	return &data.ObjectStat{
		Key:        key,
		Size:       size,
		ModifyTime: time.Unix(0, modifyTime),
	}, nil
}

func (sb *SQLiteBackend) ReadObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	// substr() on a BLOB is byte based and 1-indexed
	var content []byte
	err := sb.db.QueryRowContext(ctx,
		"SELECT substr(content, ?, ?) FROM blockfile_objects WHERE namespace = ? AND key = ?",
		offset+1, len(buf), sb.namespace, key).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, data.ErrNotExist
	}
	if err != nil {
		return 0, err
	}

	return copy(buf, content), nil
}

func (sb *SQLiteBackend) WriteObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var content []byte
	err = tx.QueryRowContext(ctx,
		"SELECT content FROM blockfile_objects WHERE namespace = ? AND key = ?",
		sb.namespace, key).Scan(&content)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	content = backend.WriteAt(content, offset, buf)
	if err := upsert(ctx, tx, sb.namespace, key, content); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return len(buf), nil
}

func (sb *SQLiteBackend) WriteFullObject(ctx context.Context, key string, buf []byte) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	return upsert(ctx, sb.db, sb.namespace, key, buf)
}

func (sb *SQLiteBackend) RemoveObject(ctx context.Context, key string) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	result, err := sb.db.ExecContext(ctx,
		"DELETE FROM blockfile_objects WHERE namespace = ? AND key = ?",
		sb.namespace, key)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return data.ErrNotExist
	}

	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, namespace, key string, content []byte) error {
	if content == nil {
		content = []byte{}
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO blockfile_objects (namespace, key, content, modify_time) VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET content = excluded.content, modify_time = excluded.modify_time`,
		namespace, key, content, time.Now().UnixNano())
	return err
}
