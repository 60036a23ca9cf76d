package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"product-importer/internal/store"
)

// StorageError marks an infrastructure failure (storage unreachable, batch
// rolled back). It fails the owning import job; row-level problems never
// produce it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("catalog storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store reads and writes products.
type Store struct {
	db *store.Store
}

func NewStore(db *store.Store) *Store {
	return &Store{db: db}
}

// UpsertBatch applies one batch inside a single transaction. Each record is
// classified as created, updated, or unchanged against the current catalog
// row with the same SKU (case-insensitive). On any storage error the whole
// batch rolls back and a *StorageError is returned.
func (s *Store) UpsertBatch(ctx context.Context, batch []ProductRecord) ([]Applied, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, &StorageError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	applied := make([]Applied, 0, len(batch))
	for _, rec := range batch {
		pb := s.db.Dialect.NewParamBuilder()
		row, err := store.QueryRow(ctx, tx,
			fmt.Sprintf(`SELECT sku, name, description, price, status FROM products WHERE lower(sku) = lower(%s)`,
				pb.Add(rec.SKU)),
			pb.Params()...)

		switch {
		case errors.Is(err, store.ErrNotFound):
			if err := s.insert(ctx, tx, rec); err != nil {
				return nil, &StorageError{Op: "insert " + rec.SKU, Err: err}
			}
			applied = append(applied, Applied{Record: rec, Classification: Created})

		case err != nil:
			return nil, &StorageError{Op: "lookup " + rec.SKU, Err: err}

		default:
			existing := recordFromRow(row)
			if existing.Same(rec) {
				applied = append(applied, Applied{Record: rec, Classification: Unchanged})
				continue
			}
			if err := s.update(ctx, tx, rec); err != nil {
				return nil, &StorageError{Op: "update " + rec.SKU, Err: err}
			}
			applied = append(applied, Applied{Record: rec, Classification: Updated})
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, &StorageError{Op: "commit", Err: err}
	}
	return applied, nil
}

func (s *Store) insert(ctx context.Context, q store.Querier, rec ProductRecord) error {
	pb := s.db.Dialect.NewParamBuilder()
	_, err := store.Exec(ctx, q,
		fmt.Sprintf(`INSERT INTO products (id, sku, name, description, price, status) VALUES (%s, %s, %s, %s, %s, %s)`,
			pb.Add(store.GenerateUUID()), pb.Add(rec.SKU), pb.Add(rec.Name),
			pb.Add(rec.Description), pb.Add(rec.Price), pb.Add(string(rec.Status))),
		pb.Params()...)
	return s.db.Dialect.MapError(err)
}

func (s *Store) update(ctx context.Context, q store.Querier, rec ProductRecord) error {
	pb := s.db.Dialect.NewParamBuilder()
	_, err := store.Exec(ctx, q,
		fmt.Sprintf(`UPDATE products SET sku = %s, name = %s, description = %s, price = %s, status = %s, updated_at = %s
		 WHERE lower(sku) = lower(%s)`,
			pb.Add(rec.SKU), pb.Add(rec.Name), pb.Add(rec.Description),
			pb.Add(rec.Price), pb.Add(string(rec.Status)), s.db.Dialect.NowExpr(), pb.Add(rec.SKU)),
		pb.Params()...)
	return s.db.Dialect.MapError(err)
}

// Get fetches a product by SKU (case-insensitive). Returns store.ErrNotFound
// when absent.
func (s *Store) Get(ctx context.Context, sku string) (ProductRecord, error) {
	pb := s.db.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, s.db.DB,
		fmt.Sprintf(`SELECT sku, name, description, price, status FROM products WHERE lower(sku) = lower(%s)`,
			pb.Add(sku)),
		pb.Params()...)
	if err != nil {
		return ProductRecord{}, err
	}
	return recordFromRow(row), nil
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	SKU     string
	Name    string
	Status  string
	Page    int
	PerPage int
}

// List returns a page of products plus the total match count.
func (s *Store) List(ctx context.Context, f ListFilter) ([]ProductRecord, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 200 {
		f.PerPage = 20
	}

	pb := s.db.Dialect.NewParamBuilder()
	var where []string
	if f.SKU != "" {
		where = append(where, fmt.Sprintf("lower(sku) LIKE lower(%s)", pb.Add("%"+f.SKU+"%")))
	}
	if f.Name != "" {
		where = append(where, fmt.Sprintf("lower(name) LIKE lower(%s)", pb.Add("%"+f.Name+"%")))
	}
	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = %s", pb.Add(f.Status)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	countRow, err := store.QueryRow(ctx, s.db.DB,
		"SELECT COUNT(*) AS count FROM products"+clause, pb.Params()...)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	total := toInt(countRow["count"])

	offset := (f.Page - 1) * f.PerPage
	sqlStr := fmt.Sprintf("SELECT sku, name, description, price, status FROM products%s ORDER BY sku LIMIT %s OFFSET %s",
		clause, pb.Add(f.PerPage), pb.Add(offset))
	rows, err := store.QueryRows(ctx, s.db.DB, sqlStr, pb.Params()...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}

	records := make([]ProductRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, recordFromRow(row))
	}
	return records, total, nil
}

// DeleteAll removes every product and returns the number deleted.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	n, err := store.Exec(ctx, s.db.DB, "DELETE FROM products")
	if err != nil {
		return 0, &StorageError{Op: "delete all", Err: err}
	}
	return n, nil
}

// Count returns the number of products in the catalog.
func (s *Store) Count(ctx context.Context) (int, error) {
	row, err := store.QueryRow(ctx, s.db.DB, "SELECT COUNT(*) AS count FROM products")
	if err != nil {
		return 0, err
	}
	return toInt(row["count"]), nil
}

func recordFromRow(row map[string]any) ProductRecord {
	return ProductRecord{
		SKU:         toString(row["sku"]),
		Name:        toString(row["name"]),
		Description: toString(row["description"]),
		Price:       toFloat(row["price"]),
		Status:      Status(toString(row["status"])),
	}
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func toFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	default:
		return 0
	}
}

func toInt(v any) int {
	switch val := v.(type) {
	case int64:
		return int(val)
	case int:
		return val
	case float64:
		return int(val)
	default:
		return 0
	}
}
