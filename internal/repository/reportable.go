package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"battle-royale-bot/internal/model"
)

// ReportableRepository records which reportables have been delivered.
type ReportableRepository struct {
	pool *pgxpool.Pool
}

// NewReportableRepository creates a new ReportableRepository instance.
func NewReportableRepository(pool *pgxpool.Pool) *ReportableRepository {
	return &ReportableRepository{pool: pool}
}

// ListDelivered lists everything already delivered for a game, oldest first.
func (r *ReportableRepository) ListDelivered(ctx context.Context, gameID int64) ([]*model.DeliveredReportable, error) {
	const query = `
		SELECT id, game_id, type, sub_type, beatmap_id, same_beatmap_number, reported_at, item, delivered_at
		FROM delivered_reportables
		WHERE game_id = $1
		ORDER BY reported_at, id
	`

	rows, err := r.pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivered reportables: %w", err)
	}
	defer rows.Close()

	var delivered []*model.DeliveredReportable
	for rows.Next() {
		var d model.DeliveredReportable
		err := rows.Scan(
			&d.ID,
			&d.GameID,
			&d.Type,
			&d.SubType,
			&d.BeatmapID,
			&d.SameBeatmapNumber,
			&d.ReportedAt,
			&d.Item,
			&d.DeliveredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivered reportable: %w", err)
		}
		delivered = append(delivered, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate delivered reportables: %w", err)
	}
	return delivered, nil
}

// MarkDelivered records a dispatched batch in one transaction. Identities
// already recorded are skipped, so replaying a batch is harmless.
// It returns the number of newly recorded rows.
func (r *ReportableRepository) MarkDelivered(ctx context.Context, gameID int64, batch []*model.DeliveredReportable) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	const query = `
		INSERT INTO delivered_reportables
			(game_id, type, sub_type, beatmap_id, same_beatmap_number, reported_at, item, delivered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (game_id, type, sub_type, beatmap_id, same_beatmap_number) DO NOTHING
	`

	var inserted int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, d := range batch {
			b.Queue(query, gameID, d.Type, d.SubType, d.BeatmapID, d.SameBeatmapNumber, d.ReportedAt, d.Item)
		}
		results := tx.SendBatch(ctx, b)
		for range batch {
			tag, err := results.Exec()
			if err != nil {
				results.Close()
				return fmt.Errorf("failed to mark reportable delivered: %w", err)
			}
			inserted += tag.RowsAffected()
		}
		return results.Close()
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
