package catalog

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"sjsage522/pricecompare/internal/crawler"
	"sjsage522/pricecompare/logger"
	apperrors "sjsage522/pricecompare/pkg/errors"
)

//go:embed postgres_schema.sql
var postgresSchema string

const uniqueViolation = "23505"

const pgProductColumns = `id::text, shop_id, search_phrase, name, description, size, price::text, image_url, url, created_at, updated_at`

// PostgresStore keeps the catalog in PostgreSQL
type PostgresStore struct {
	DB  *pgxpool.Pool
	log *logger.Logger
}

// OpenPostgres connects to databaseURL and applies the schema
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, apperrors.NewStorage("connect postgres", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.NewStorage("ping postgres", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, apperrors.NewStorage("apply postgres schema", err)
	}
	return &PostgresStore{DB: pool, log: logger.ForStore().WithField("driver", "postgres")}, nil
}

// FindByURL implements Store
func (s *PostgresStore) FindByURL(ctx context.Context, url string) (*Product, error) {
	return scanPgProduct(s.DB.QueryRow(ctx, `SELECT `+pgProductColumns+` FROM products WHERE url = $1`, url))
}

// FindByID implements Store
func (s *PostgresStore) FindByID(ctx context.Context, id string) (*Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return scanPgProduct(s.DB.QueryRow(ctx, `SELECT `+pgProductColumns+` FROM products WHERE id = $1`, id))
}

// Create implements Store
func (s *PostgresStore) Create(ctx context.Context, record crawler.RawProductRecord, at time.Time) (*Product, error) {
	product := newProduct(uuid.NewString(), record, at)

	err := pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO products (id, shop_id, search_phrase, name, description, size, price, image_url, url, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $10)
		`, product.ID, product.ShopID, product.SearchPhrase, product.Name, product.Description, product.Size,
			product.Price.String(), product.ImageURL, product.URL, at)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO price_history (product_id, price, observed_at) VALUES ($1, $2::numeric, $3)`,
			product.ID, product.Price.String(), at)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrConflict
		}
		return nil, apperrors.NewStorage("insert product "+record.URL, err)
	}
	s.log.Debug().Str("id", product.ID).Str("url", product.URL).Msg("product created")
	return product, nil
}

// UpdatePrice implements Store
func (s *PostgresStore) UpdatePrice(ctx context.Context, product *Product, price decimal.Decimal, at time.Time) (*Product, error) {
	err := pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE products SET price = $1::numeric, updated_at = $2 WHERE id = $3`,
			price.String(), at, product.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		_, err = tx.Exec(ctx, `INSERT INTO price_history (product_id, price, observed_at) VALUES ($1, $2::numeric, $3)`,
			product.ID, price.String(), at)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.NewStorage("update price "+product.URL, err)
	}
	s.log.Debug().Str("id", product.ID).Stringer("price", price).Msg("price updated")

	updated := *product
	updated.Price = price
	updated.UpdatedAt = at
	return &updated, nil
}

// List implements Store
func (s *PostgresStore) List(ctx context.Context) ([]Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+pgProductColumns+` FROM products ORDER BY url`)
	if err != nil {
		return nil, apperrors.NewStorage("list products", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanPgProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorage("list products", err)
	}
	return products, nil
}

// History implements Store
func (s *PostgresStore) History(ctx context.Context, productID string) ([]PricePoint, error) {
	if _, err := uuid.Parse(productID); err != nil {
		return nil, nil
	}
	rows, err := s.DB.Query(ctx,
		`SELECT product_id::text, price::text, observed_at FROM price_history WHERE product_id = $1 ORDER BY observed_at, id`, productID)
	if err != nil {
		return nil, apperrors.NewStorage("list price history", err)
	}
	defer rows.Close()

	var points []PricePoint
	for rows.Next() {
		var (
			point PricePoint
			price string
		)
		if err := rows.Scan(&point.ProductID, &price, &point.ObservedAt); err != nil {
			return nil, apperrors.NewStorage("scan price history", err)
		}
		if point.Price, err = decimal.NewFromString(price); err != nil {
			return nil, apperrors.NewStorage("parse stored price", err)
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorage("list price history", err)
	}
	return points, nil
}

// Close releases the connection pool
func (s *PostgresStore) Close() error {
	s.DB.Close()
	return nil
}

func scanPgProduct(row pgx.Row) (*Product, error) {
	var (
		p     Product
		price string
	)
	err := row.Scan(&p.ID, &p.ShopID, &p.SearchPhrase, &p.Name, &p.Description, &p.Size,
		&price, &p.ImageURL, &p.URL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewStorage("scan product", err)
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, apperrors.NewStorage("parse stored price", err)
	}
	return &p, nil
}
