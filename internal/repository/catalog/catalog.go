// Package catalog is the relational product catalog. It is the source of
// truth for product metadata and precomputed product embeddings; the vector
// search corpus is synced from here at startup.
package catalog

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/arcadia-shop/persona/internal/domain"
	"github.com/arcadia-shop/persona/internal/domain/product"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category    TEXT NOT NULL DEFAULT '',
	price_cents INTEGER NOT NULL DEFAULT 0,
	embedding   BLOB
);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	display_name TEXT NOT NULL
);
`

// Entry is a catalog row including its embedding, used for corpus sync.
type Entry struct {
	Product product.Product
	Vector  []float64
}

// Repository reads the product catalog from SQLite.
type Repository struct {
	db *sql.DB
}

// Open opens the catalog database and ensures the schema exists.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init catalog schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping checks catalog availability.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Get loads a product by ID. A missing product returns domain.ErrProductNotFound.
func (r *Repository) Get(ctx context.Context, id string) (product.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, category, price_cents FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return product.Product{}, fmt.Errorf("product %s: %w", id, domain.ErrProductNotFound)
		}
		return product.Product{}, fmt.Errorf("load product %s: %w", id, err)
	}
	return p, nil
}

// GetVector loads a product's precomputed embedding. Products without an
// embedding return domain.ErrProductNotFound.
func (r *Repository) GetVector(ctx context.Context, id string) ([]float64, error) {
	var blob []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT embedding FROM products WHERE id = ?`, id).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", id, domain.ErrProductNotFound)
		}
		return nil, fmt.Errorf("load product vector %s: %w", id, err)
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("product %s has no embedding: %w", id, domain.ErrProductNotFound)
	}
	return bytesToVector(blob)
}

// Upsert writes a product row with its embedding.
func (r *Repository) Upsert(ctx context.Context, e Entry) error {
	p := e.Product
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, category, price_cents, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			category = excluded.category,
			price_cents = excluded.price_cents,
			embedding = excluded.embedding`,
		p.ID(), p.Name(), p.Description(), p.Category(), p.PriceCents(), vectorToBytes(e.Vector))
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID(), err)
	}
	return nil
}

// KeywordSearch matches products whose name or description contains the query
// text, case-insensitively. Every match scores the same; ordering is by name
// for stable pagination. Returns the page and the total match count.
func (r *Repository) KeywordSearch(
	ctx context.Context, text, category string, limit, offset int,
) ([]product.Product, int, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(text))) + "%"

	where := `(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`
	args := []any{pattern, pattern}
	if category != "" {
		where += ` AND category = ?`
		args = append(args, category)
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("keyword search count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, category, price_cents FROM products
		 WHERE `+where+` ORDER BY name LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var products []product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("keyword search scan: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("keyword search rows: %w", err)
	}
	return products, total, nil
}

// DisplayName resolves a user's display name for cold-start seeding.
func (r *Repository) DisplayName(ctx context.Context, userID string) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx,
		`SELECT display_name FROM users WHERE id = ?`, userID).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("user %s: %w", userID, domain.ErrProfileNotFound)
		}
		return "", fmt.Errorf("load user %s: %w", userID, err)
	}
	return name, nil
}

// List streams every catalog entry carrying an embedding, for corpus sync.
func (r *Repository) List(ctx context.Context, fn func(Entry) error) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, category, price_cents, embedding
		 FROM products WHERE embedding IS NOT NULL`)
	if err != nil {
		return fmt.Errorf("list catalog: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, name, description, category string
			priceCents                      int64
			blob                            []byte
		)
		if err := rows.Scan(&id, &name, &description, &category, &priceCents, &blob); err != nil {
			return fmt.Errorf("list catalog scan: %w", err)
		}
		vec, err := bytesToVector(blob)
		if err != nil {
			return fmt.Errorf("product %s embedding: %w", id, err)
		}
		entry := Entry{
			Product: product.New(id, name, description, category, priceCents),
			Vector:  vec,
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (product.Product, error) {
	var (
		id, name, description, category string
		priceCents                      int64
	)
	if err := row.Scan(&id, &name, &description, &category, &priceCents); err != nil {
		return product.Product{}, err
	}
	return product.New(id, name, description, category, priceCents), nil
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func vectorToBytes(v []float64) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float64, error) {
	if len(data) == 0 || len(data)%8 != 0 {
		return nil, fmt.Errorf("invalid embedding blob: len=%d", len(data))
	}
	vec := make([]float64, len(data)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return vec, nil
}
