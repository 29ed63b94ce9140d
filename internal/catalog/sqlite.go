package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"sjsage522/pricecompare/internal/crawler"
	"sjsage522/pricecompare/logger"
	apperrors "sjsage522/pricecompare/pkg/errors"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

const productColumns = `id, shop_id, search_phrase, name, description, size, price, image_url, url, created_at, updated_at`

// SQLiteStore keeps the catalog in a SQLite database
type SQLiteStore struct {
	db  *sql.DB
	log *logger.Logger
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway catalog.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.NewStorage("open sqlite "+path, err)
	}
	// one connection: keeps :memory: databases shared and writes serialized
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA foreign_keys = ON", sqliteSchema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, apperrors.NewStorage("apply sqlite schema", err)
		}
	}
	return &SQLiteStore{db: db, log: logger.ForStore().WithField("driver", "sqlite")}, nil
}

// isUniqueViolation reports a UNIQUE constraint failure, such as a second
// product with the same URL
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// FindByURL implements Store
func (s *SQLiteStore) FindByURL(ctx context.Context, url string) (*Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE url = ?`, url)
	return scanSQLiteProduct(row)
}

// FindByID implements Store
func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	return scanSQLiteProduct(row)
}

// Create implements Store
func (s *SQLiteStore) Create(ctx context.Context, record crawler.RawProductRecord, at time.Time) (*Product, error) {
	product := newProduct(uuid.NewString(), record, at)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewStorage("begin create", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID, product.ShopID, product.SearchPhrase, product.Name, product.Description, product.Size,
		product.Price.String(), product.ImageURL, product.URL, at.UnixNano(), at.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, apperrors.NewStorage("insert product "+record.URL, err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO price_history (product_id, price, observed_at) VALUES (?, ?, ?)`,
		product.ID, product.Price.String(), at.UnixNano()); err != nil {
		return nil, apperrors.NewStorage("insert price history", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewStorage("commit create", err)
	}
	s.log.Debug().Str("id", product.ID).Str("url", product.URL).Msg("product created")
	return product, nil
}

// UpdatePrice implements Store
func (s *SQLiteStore) UpdatePrice(ctx context.Context, product *Product, price decimal.Decimal, at time.Time) (*Product, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewStorage("begin update", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE products SET price = ?, updated_at = ? WHERE id = ?`,
		price.String(), at.UnixNano(), product.ID)
	if err != nil {
		return nil, apperrors.NewStorage("update price "+product.URL, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO price_history (product_id, price, observed_at) VALUES (?, ?, ?)`,
		product.ID, price.String(), at.UnixNano()); err != nil {
		return nil, apperrors.NewStorage("insert price history", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewStorage("commit update", err)
	}
	s.log.Debug().Str("id", product.ID).Stringer("price", price).Msg("price updated")

	updated := *product
	updated.Price = price
	updated.UpdatedAt = at
	return &updated, nil
}

// List implements Store
func (s *SQLiteStore) List(ctx context.Context) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY url`)
	if err != nil {
		return nil, apperrors.NewStorage("list products", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanSQLiteProduct(rows)
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
func (s *SQLiteStore) History(ctx context.Context, productID string) ([]PricePoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, price, observed_at FROM price_history WHERE product_id = ? ORDER BY observed_at, id`, productID)
	if err != nil {
		return nil, apperrors.NewStorage("list price history", err)
	}
	defer rows.Close()

	var points []PricePoint
	for rows.Next() {
		var (
			point    PricePoint
			price    string
			observed int64
		)
		if err := rows.Scan(&point.ProductID, &price, &observed); err != nil {
			return nil, apperrors.NewStorage("scan price history", err)
		}
		if point.Price, err = decimal.NewFromString(price); err != nil {
			return nil, apperrors.NewStorage("parse stored price", err)
		}
		point.ObservedAt = time.Unix(0, observed).UTC()
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorage("list price history", err)
	}
	return points, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteProduct(row rowScanner) (*Product, error) {
	var (
		p                Product
		price            string
		created, updated int64
	)
	err := row.Scan(&p.ID, &p.ShopID, &p.SearchPhrase, &p.Name, &p.Description, &p.Size,
		&price, &p.ImageURL, &p.URL, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewStorage("scan product", err)
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, apperrors.NewStorage(fmt.Sprintf("parse stored price %q", price), err)
	}
	p.CreatedAt = time.Unix(0, created).UTC()
	p.UpdatedAt = time.Unix(0, updated).UTC()
	return &p, nil
}
