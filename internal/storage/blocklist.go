package storage

import (
	"context"
	"database/sql"
	"errors"
)

// The pair blocklist is an unordered relation: (a, b) and (b, a) are the same
// row. Keys are canonicalized to (low, high) on write and read.

func blockKey(a, b string) (string, string) {
	if b < a {
		a, b = b, a
	}
	return a, b
}

func (s *Store) AddPairBlock(ctx context.Context, a, b string) error {
	low, high := blockKey(a, b)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pair_blocklist (user_id, blocked_id) VALUES (?, ?)
		ON CONFLICT(user_id, blocked_id) DO NOTHING`, low, high)
	return err
}

func (s *Store) RemovePairBlock(ctx context.Context, a, b string) error {
	low, high := blockKey(a, b)
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM pair_blocklist WHERE user_id = ? AND blocked_id = ?`, low, high)
	return err
}

func (s *Store) IsPairBlocked(ctx context.Context, a, b string) (bool, error) {
	low, high := blockKey(a, b)
	row := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM pair_blocklist WHERE user_id = ? AND blocked_id = ?`, low, high)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) ListPairBlocks(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, blocked_id FROM pair_blocklist
		WHERE user_id = ? OR blocked_id = ?`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var others []string
	for rows.Next() {
		var low, high string
		if err := rows.Scan(&low, &high); err != nil {
			return nil, err
		}
		if low == userID {
			others = append(others, high)
		} else {
			others = append(others, low)
		}
	}
	return others, rows.Err()
}
