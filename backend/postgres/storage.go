package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mwantia/blockfile/backend"
	"github.com/mwantia/blockfile/data"
)

func (pb *PostgresBackend) StatObject(ctx context.Context, key string) (*data.ObjectStat, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	var size, modifyTime int64
	err := pb.pool.QueryRow(ctx,
		"SELECT octet_length(content), modify_time FROM blockfile_objects WHERE namespace = $1 AND key = $2",
		pb.namespace, key).Scan(&size, &modifyTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, data.ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query object: %w", err)
	}

	return &data.ObjectStat{
		Key:        key,
		Size:       size,
		ModifyTime: time.Unix(0, modifyTime),
	}, nil
}

func (pb *PostgresBackend) ReadObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	var content []byte
	err := pb.pool.QueryRow(ctx,
		"SELECT substring(content FROM $1::bigint FOR $2::bigint) FROM blockfile_objects WHERE namespace = $3 AND key = $4",
		offset+1, len(buf), pb.namespace, key).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, data.ErrNotExist
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query data: %w", err)
	}

	return copy(buf, content), nil
}

func (pb *PostgresBackend) WriteObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	conn, err := pb.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var content []byte
	err = tx.QueryRow(ctx,
		"SELECT content FROM blockfile_objects WHERE namespace = $1 AND key = $2 FOR UPDATE",
		pb.namespace, key).Scan(&content)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to query existing data: %w", err)
	}

	content = backend.WriteAt(content, offset, buf)
	if err := upsert(ctx, tx, pb.namespace, key, content); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return len(buf), nil
}

func (pb *PostgresBackend) WriteFullObject(ctx context.Context, key string, buf []byte) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	return upsert(ctx, pb.pool, pb.namespace, key, buf)
}

func (pb *PostgresBackend) RemoveObject(ctx context.Context, key string) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	tag, err := pb.pool.Exec(ctx,
		"DELETE FROM blockfile_objects WHERE namespace = $1 AND key = $2",
		pb.namespace, key)
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return data.ErrNotExist
	}

	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func upsert(ctx context.Context, db execer, namespace, key string, content []byte) error {
	if content == nil {
		content = []byte{}
	}

	_, err := db.Exec(ctx,
		`INSERT INTO blockfile_objects (namespace, key, content, modify_time) VALUES ($1, $2, $3, $4)
		ON CONFLICT (namespace, key) DO UPDATE SET content = EXCLUDED.content, modify_time = EXCLUDED.modify_time`,
		namespace, key, content, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to store object: %w", err)
	}
	return nil
}
