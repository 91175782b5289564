package store

import (
	"context"
	"fmt"

	"github.com/roach88/pledge/internal/model"
)

// replayPageSize bounds how many events are held in memory per page.
const replayPageSize = 256

// ReadEvents returns up to limit events with seq > afterSeq, in seq order.
// A limit of 0 means no limit.
func (s *Store) ReadEvents(ctx context.Context, afterSeq uint64, limit int) ([]model.Event, error) {
	after, err := toInt64("after_seq", afterSeq)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	if limit <= 0 {
		return readEvents(ctx, s.db, `
			SELECT seq, kind, habit, request_id, at, payload
			FROM events
			WHERE seq > ?
			ORDER BY seq ASC
		`, after)
	}
	return readEvents(ctx, s.db, `
		SELECT seq, kind, habit, request_id, at, payload
		FROM events
		WHERE seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`, after, limit)
}

// Replay calls fn for every event in seq order, starting after afterSeq.
//
// Events are read a page at a time and the rows are closed before fn runs,
// so fn may issue its own queries against the store. Returning an error
// from fn stops the replay and returns that error.
func (s *Store) Replay(ctx context.Context, afterSeq uint64, fn func(model.Event) error) error {
	cursor := afterSeq
	for {
		page, err := s.ReadEvents(ctx, cursor, replayPageSize)
		if err != nil {
			return fmt.Errorf("replay: %w", err)
		}
		for _, ev := range page {
			if err := fn(ev); err != nil {
				return err
			}
			cursor = ev.Seq
		}
		if len(page) < replayPageSize {
			return nil
		}
	}
}

// LastSeq returns the highest event seq, or 0 for an empty log.
func (s *Store) LastSeq(ctx context.Context) (uint64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return uint64(seq), nil
}
