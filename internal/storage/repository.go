package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/neexbeast/destinations/internal/destination"
)

// SQLSTATE codes translated into domain errors.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

const defaultPageSize = 20

// Querier abstracts the subset of pgxpool.Pool used by Repository.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// rowQuerier is satisfied by both Querier and pgx.Tx.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides database access for cities and seasons.
type Repository struct {
	q     Querier
	newID func() string
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{q: pool, newID: uuid.NewString}
}

// NewRepositoryWithQuerier constructs a Repository with a custom Querier (for tests).
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{q: q, newID: uuid.NewString}
}

const selectCity = `SELECT id, name, country_code, currency FROM cities`

// ListCities returns one page of cities matching f together with the total
// number of matches. The count and the page are queried concurrently.
func (r *Repository) ListCities(ctx context.Context, f destination.CityFilter) ([]destination.City, int, error) {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	where, args := cityWhere(f)

	g, gCtx := errgroup.WithContext(ctx)

	var total int
	g.Go(func() error {
		if err := r.q.QueryRow(gCtx, `SELECT COUNT(*) FROM cities`+where, args...).Scan(&total); err != nil {
			return fmt.Errorf("counting cities: %w", err)
		}
		return nil
	})

	var cities []destination.City
	g.Go(func() error {
		q := fmt.Sprintf("%s%s ORDER BY name, id LIMIT $%d OFFSET $%d", selectCity, where, len(args)+1, len(args)+2)
		pageArgs := append(append([]any{}, args...), f.Limit, f.Offset())

		rows, err := r.q.Query(gCtx, q, pageArgs...)
		if err != nil {
			return fmt.Errorf("querying cities: %w", err)
		}
		defer rows.Close()

		cities = make([]destination.City, 0, f.Limit)
		for rows.Next() {
			var c destination.City
			if err := rows.Scan(&c.ID, &c.Name, &c.CountryCode, &c.Currency); err != nil {
				return fmt.Errorf("scanning city row: %w", err)
			}
			cities = append(cities, c)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating city rows: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return cities, total, nil
}

// cityWhere builds the WHERE clause and positional args for a filter.
func cityWhere(f destination.CityFilter) (string, []any) {
	var conds []string
	var args []any

	if f.CountryCode != "" {
		args = append(args, strings.ToUpper(f.CountryCode))
		conds = append(conds, fmt.Sprintf("country_code = $%d", len(args)))
	}
	if f.Currency != "" {
		args = append(args, strings.ToUpper(f.Currency))
		conds = append(conds, fmt.Sprintf("currency = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// GetCity retrieves a city by id.
// Returns nil, nil when the city is not found.
func (r *Repository) GetCity(ctx context.Context, id string) (*destination.City, error) {
	c, err := scanCity(r.q.QueryRow(ctx, selectCity+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying city %s: %w", id, err)
	}
	return c, nil
}

// CreateCity inserts a normalized, validated city.
// A duplicate (name, country_code) pair yields destination.ErrConflict.
func (r *Repository) CreateCity(ctx context.Context, in destination.CityInput) (*destination.City, error) {
	const q = `
		INSERT INTO cities (id, name, country_code, currency)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, country_code, currency
	`

	id := in.ID
	if id == "" {
		id = r.newID()
	}

	c, err := scanCity(r.q.QueryRow(ctx, q, id, in.Name, in.CountryCode, in.Currency))
	if err != nil {
		if pgCode(err) == uniqueViolation {
			return nil, fmt.Errorf("city %q already exists in %s: %w", in.Name, in.CountryCode, destination.ErrConflict)
		}
		return nil, fmt.Errorf("inserting city %q: %w", in.Name, err)
	}
	return c, nil
}

// UpdateCity applies patch to the city inside a transaction. The current row is
// locked first and handed to check, so a precondition sees exactly the state
// the update will replace. A non-nil error from check aborts the update and is
// returned unchanged.
func (r *Repository) UpdateCity(ctx context.Context, id string, patch destination.CityPatch, check func(destination.City) error) (*destination.City, error) {
	var updated *destination.City

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		current, err := scanCity(tx.QueryRow(ctx, selectCity+` WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("city %s: %w", id, destination.ErrNotFound)
			}
			return fmt.Errorf("locking city %s: %w", id, err)
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
		const q = `
			UPDATE cities
			SET name = $2, country_code = $3, currency = $4, updated_at = NOW()
			WHERE id = $1
			RETURNING id, name, country_code, currency
		`
		updated, err = scanCity(tx.QueryRow(ctx, q, id, next.Name, next.CountryCode, next.Currency))
		if err != nil {
			if pgCode(err) == uniqueViolation {
				return fmt.Errorf("city %q already exists in %s: %w", next.Name, next.CountryCode, destination.ErrConflict)
			}
			return fmt.Errorf("updating city %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteCity removes a city; its seasons are removed by the foreign key cascade.
func (r *Repository) DeleteCity(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM cities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting city %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("city %s: %w", id, destination.ErrNotFound)
	}
	return nil
}

func scanCity(row pgx.Row) (*destination.City, error) {
	var c destination.City
	if err := row.Scan(&c.ID, &c.Name, &c.CountryCode, &c.Currency); err != nil {
		return nil, err
	}
	return &c, nil
}

func cityExists(ctx context.Context, q rowQuerier, id string) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cities WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking city %s exists: %w", id, err)
	}
	return exists, nil
}

// inTx runs fn in a transaction, rolling back when fn fails.
func (r *Repository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
