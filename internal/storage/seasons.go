package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/neexbeast/destinations/internal/destination"
)

const selectSeason = `SELECT id, city_id, season_name, start_month, end_month FROM seasons`

func errUnknownCity() error {
	return destination.NewValidationError("city_id", "does not reference an existing city")
}

// ListSeasons returns every season, or only those of cityID when it is non-empty.
func (r *Repository) ListSeasons(ctx context.Context, cityID string) ([]destination.Season, error) {
	q := selectSeason + ` ORDER BY city_id, start_month, id`
	var args []any
	if cityID != "" {
		q = selectSeason + ` WHERE city_id = $1 ORDER BY start_month, id`
		args = append(args, cityID)
	}

	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying seasons: %w", err)
	}
	defer rows.Close()

	seasons := make([]destination.Season, 0)
	for rows.Next() {
		var s destination.Season
		if err := rows.Scan(&s.ID, &s.CityID, &s.SeasonName, &s.StartMonth, &s.EndMonth); err != nil {
			return nil, fmt.Errorf("scanning season row: %w", err)
		}
		seasons = append(seasons, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating season rows: %w", err)
	}

	return seasons, nil
}

// GetSeason retrieves a season by id.
// Returns nil, nil when the season is not found.
func (r *Repository) GetSeason(ctx context.Context, id string) (*destination.Season, error) {
	s, err := scanSeason(r.q.QueryRow(ctx, selectSeason+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying season %s: %w", id, err)
	}
	return s, nil
}

// CreateSeason inserts a normalized, validated season. The referenced city is
// checked before writing; a missing city is reported as a ValidationError on
// city_id rather than as a store failure.
func (r *Repository) CreateSeason(ctx context.Context, in destination.SeasonInput) (*destination.Season, error) {
	exists, err := cityExists(ctx, r.q, in.CityID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errUnknownCity()
	}

	const q = `
		INSERT INTO seasons (id, city_id, season_name, start_month, end_month)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, city_id, season_name, start_month, end_month
	`

	s, err := scanSeason(r.q.QueryRow(ctx, q, r.newID(), in.CityID, in.SeasonName, in.StartMonth, in.EndMonth))
	if err != nil {
		return nil, seasonWriteErr(err, in.CityID, in.SeasonName)
	}
	return s, nil
}

// UpdateSeason applies patch inside a transaction, with the same locking and
// precondition contract as UpdateCity. A changed city_id is re-checked.
func (r *Repository) UpdateSeason(ctx context.Context, id string, patch destination.SeasonPatch, check func(destination.Season) error) (*destination.Season, error) {
	var updated *destination.Season

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		current, err := scanSeason(tx.QueryRow(ctx, selectSeason+` WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("season %s: %w", id, destination.ErrNotFound)
			}
			return fmt.Errorf("locking season %s: %w", id, err)
		}

		if check != nil {
			if err := check(*current); err != nil {
				return err
			}
		}

		if patch.IsEmpty() {
			updated = current
			return nil
		}

		next := patch.Apply(*current)
		if next.CityID != current.CityID {
			exists, err := cityExists(ctx, tx, next.CityID)
			if err != nil {
				return err
			}
			if !exists {
				return errUnknownCity()
			}
		}

		const q = `
			UPDATE seasons
			SET city_id = $2, season_name = $3, start_month = $4, end_month = $5, updated_at = NOW()
			WHERE id = $1
			RETURNING id, city_id, season_name, start_month, end_month
		`
		updated, err = scanSeason(tx.QueryRow(ctx, q, id, next.CityID, next.SeasonName, next.StartMonth, next.EndMonth))
		if err != nil {
			return seasonWriteErr(err, next.CityID, next.SeasonName)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteSeason removes a season by id.
func (r *Repository) DeleteSeason(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM seasons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting season %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("season %s: %w", id, destination.ErrNotFound)
	}
	return nil
}

// seasonWriteErr translates constraint violations raised by an insert or update.
func seasonWriteErr(err error, cityID, name string) error {
	switch pgCode(err) {
	case foreignKeyViolation:
		return errUnknownCity()
	case uniqueViolation:
		return fmt.Errorf("season %q already defined for city %s: %w", name, cityID, destination.ErrConflict)
	default:
		return fmt.Errorf("writing season for city %s: %w", cityID, err)
	}
}

func scanSeason(row pgx.Row) (*destination.Season, error) {
	var s destination.Season
	if err := row.Scan(&s.ID, &s.CityID, &s.SeasonName, &s.StartMonth, &s.EndMonth); err != nil {
		return nil, err
	}
	return &s, nil
}
