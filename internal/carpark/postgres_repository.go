package carpark

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository persists carpark dataset snapshots in PostgreSQL.
// It implements Source, so the API can read the dataset the worker wrote
// instead of sharing a CSV file.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL carpark repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Schema returns the DDL for the carparks table, applied by migrations.
func Schema() string {
	return `
		CREATE TABLE IF NOT EXISTS carparks (
			position          INTEGER NOT NULL,
			id                TEXT PRIMARY KEY,
			name              TEXT NOT NULL DEFAULT '',
			agency            TEXT NOT NULL DEFAULT '',
			latitude          DOUBLE PRECISION,
			longitude         DOUBLE PRECISION,
			ineligible_reason TEXT NOT NULL DEFAULT '',
			lots              JSONB NOT NULL DEFAULT '{}',
			fetched_at        TIMESTAMPTZ NOT NULL
		)
	`
}

// ReplaceSnapshot atomically replaces the stored dataset with a new snapshot.
func (r *PostgresRepository) ReplaceSnapshot(ctx context.Context, dataset *Dataset) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, `DELETE FROM carparks`); err != nil {
		return fmt.Errorf("clear previous snapshot: %w", err)
	}

	query := `
		INSERT INTO carparks (
			position, id, name, agency,
			latitude, longitude, ineligible_reason, lots, fetched_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for i, record := range dataset.Records {
		lots, err := json.Marshal(record.Lots)
		if err != nil {
			return fmt.Errorf("encode lots for %s: %w", record.ID, err)
		}

		var lat, lon *float64
		if record.HasCoordinate {
			lat = &record.Coordinate.Lat
			lon = &record.Coordinate.Lon
		}

		if _, err := tx.Exec(ctx, query,
			i, record.ID, record.Name, record.Agency,
			lat, lon, record.IneligibleReason, lots, dataset.FetchedAt,
		); err != nil {
			return fmt.Errorf("insert carpark %s: %w", record.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Snapshot loads the stored dataset in original input order. Implements Source.
func (r *PostgresRepository) Snapshot(ctx context.Context) (*Dataset, error) {
	query := `
		SELECT id, name, agency, latitude, longitude, ineligible_reason, lots, fetched_at
		FROM carparks
		ORDER BY position
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer rows.Close()

	dataset := &Dataset{Source: "postgres"}

	for rows.Next() {
		var (
			record    Record
			lat, lon  *float64
			lots      []byte
			fetchedAt time.Time
		)

		if err := rows.Scan(
			&record.ID, &record.Name, &record.Agency,
			&lat, &lon, &record.IneligibleReason, &lots, &fetchedAt,
		); err != nil {
			return nil, fmt.Errorf("scan carpark row: %w", err)
		}

		if lat != nil && lon != nil {
			record.Coordinate.Lat = *lat
			record.Coordinate.Lon = *lon
			record.HasCoordinate = true
		}

		if err := json.Unmarshal(lots, &record.Lots); err != nil {
			return nil, fmt.Errorf("decode lots for %s: %w", record.ID, err)
		}
		if record.Lots == nil {
			record.Lots = make(map[LotType]Availability)
		}

		dataset.Records = append(dataset.Records, record)
		dataset.FetchedAt = fetchedAt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	if dataset.FetchedAt.IsZero() {
		dataset.FetchedAt = time.Now()
	}

	return dataset, nil
}
