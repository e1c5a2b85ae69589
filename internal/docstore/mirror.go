// Package docstore implements the document-store-mirrored Store backend: an
// in-memory backend remains authoritative for the request, while a pgx-backed
// remote document store is written through (best-effort) and preferred on
// reads, falling back to memory on connection or deserialisation errors.
package docstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/galynx/galynx/internal/storage"
)

// Mirror wraps a storage.Memory with a remote pgx-backed mirror. It satisfies
// storage.Store.
type Mirror struct {
	local  *storage.Memory
	remote *pgxpool.Pool
	log    zerolog.Logger
}

// New returns a Store that mirrors every write to remote and prefers remote
// reads, falling back to the in-memory backend.
func New(remote *pgxpool.Pool, logger zerolog.Logger) *Mirror {
	return &Mirror{
		local:  storage.NewMemory(),
		remote: remote,
		log:    logger.With().Str("component", "docstore").Logger(),
	}
}

// upsertDoc mirrors a single-primary-key document by deleting then inserting,
// which makes the write idempotent under retry. Failures are logged, not
// returned: the caller's in-memory write already succeeded and remains
// authoritative for this request.
func (s *Mirror) upsertDoc(ctx context.Context, table, idCol string, id any, extraCols []string, extraVals []any, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Warn().Err(err).Str("table", table).Msg("marshal document for mirror write")
		return
	}

	tx, err := s.remote.Begin(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("table", table).Msg("begin mirror write transaction")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE "+idCol+" = $1", id); err != nil {
		s.log.Warn().Err(err).Str("table", table).Msg("mirror delete-before-insert failed")
		return
	}

	cols := append([]string{idCol}, extraCols...)
	cols = append(cols, "data")
	vals := append([]any{id}, extraVals...)
	vals = append(vals, data)

	if err := execInsert(ctx, tx, table, cols, vals); err != nil {
		s.log.Warn().Err(err).Str("table", table).Msg("mirror insert failed")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		s.log.Warn().Err(err).Str("table", table).Msg("commit mirror write")
	}
}

func execInsert(ctx context.Context, tx pgx.Tx, table string, cols []string, vals []any) error {
	query := "INSERT INTO " + table + " (" + joinCols(cols) + ") VALUES (" + placeholders(len(cols)) + ")"
	_, err := tx.Exec(ctx, query, vals...)
	return err
}

func joinCols(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func placeholders(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ", "
		}
		out += "$" + itoa(i+1)
	}
	return out
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := [20]byte{}
	pos := len(digits)
	for n > 0 {
		pos--
		digits[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[pos:])
}

// fetchDoc fetches one JSONB document from the remote store and unmarshals it
// into v. A missing row or a malformed payload are both reported through err
// so the caller can fall back to memory.
func fetchDoc(ctx context.Context, remote *pgxpool.Pool, query string, args []any, v any) error {
	row := remote.QueryRow(ctx, query, args...)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

var errRemoteUnavailable = errors.New("remote document store unavailable")
