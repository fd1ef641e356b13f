package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/schema/field"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/doc-intake/db/ent/schema"
	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/entity"
)

// SQLStore keeps documents in one table on sqlite or postgres. The table
// layout comes from the Document ent schema.
type SQLStore struct {
	drv     *entsql.Driver
	pool    *pgxpool.Pool
	columns []*field.Descriptor
	logger  *slog.Logger
	now     func() time.Time
}

// NewSQLStore creates the documents table if needed. pool may be nil.
func NewSQLStore(ctx context.Context, drv *entsql.Driver, pool *pgxpool.Pool, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SQLStore{
		drv:     drv,
		pool:    pool,
		columns: documentColumns(),
		logger:  logger,
		now:     time.Now,
	}
	if err := s.migrate(ctx); err != nil {
		Close(drv, pool, logger)
		return nil, err
	}
	return s, nil
}

func documentColumns() []*field.Descriptor {
	var cols []*field.Descriptor
	for _, f := range (schema.Document{}).Fields() {
		cols = append(cols, f.Descriptor())
	}
	return cols
}

func (s *SQLStore) columnType(d *field.Descriptor) string {
	if t, ok := d.SchemaType[s.drv.Dialect()]; ok {
		return t
	}
	switch d.Info.Type {
	case field.TypeTime:
		return "bigint"
	default:
		// strings and JSON are both kept as text
		return "text"
	}
}

// ddl returns the CREATE statements for the documents table and its indexes.
func (s *SQLStore) ddl() []string {
	b := entsql.Dialect(s.drv.Dialect())
	cols := make([]entsql.Querier, 0, len(s.columns))
	for _, d := range s.columns {
		typ := s.columnType(d)
		if !d.Optional {
			typ += " NOT NULL"
		}
		cols = append(cols, entsql.Column(d.Name).Type(typ))
	}
	stmts := []string{b.String(func(sb *entsql.Builder) {
		sb.WriteString("CREATE TABLE IF NOT EXISTS ").
			Ident(schema.DocumentsTable).
			Wrap(func(w *entsql.Builder) {
				w.JoinComma(cols...).Comma().WriteString("PRIMARY KEY ").Wrap(func(pk *entsql.Builder) {
					pk.Ident("id")
				})
			})
	})}

	for _, ix := range (schema.Document{}).Indexes() {
		desc := ix.Descriptor()
		name := schema.DocumentsTable + "_" + strings.Join(desc.Fields, "_")
		stmts = append(stmts, b.String(func(sb *entsql.Builder) {
			sb.WriteString("CREATE ")
			if desc.Unique {
				sb.WriteString("UNIQUE ")
			}
			sb.WriteString("INDEX IF NOT EXISTS ").Ident(name).
				WriteString(" ON ").Ident(schema.DocumentsTable).
				Wrap(func(w *entsql.Builder) {
					w.IdentComma(desc.Fields...)
				})
		}))
	}
	return stmts
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.ddl() {
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			s.logger.Error("failed to migrate documents table", "statement", stmt, "error", err)
			return common.NewAppError("DB_MIGRATE", "create documents table", errors.Join(common.ErrDatabase, err))
		}
	}
	s.logger.Debug("documents table ready", "dialect", s.drv.Dialect())
	return nil
}

func (s *SQLStore) columnNames() []string {
	names := make([]string, len(s.columns))
	for i, d := range s.columns {
		names[i] = d.Name
	}
	return names
}

// row maps a document onto column values.
func row(doc *entity.Document) (map[string]any, error) {
	var extra any
	if len(doc.Extra) > 0 {
		b, err := json.Marshal(doc.Extra)
		if err != nil {
			return nil, err
		}
		extra = string(b)
	}
	return map[string]any{
		"id":              doc.ID,
		"owner_id":        doc.OwnerID,
		"title":           doc.Title,
		"document_type":   doc.DocumentType,
		"full_name":       doc.Fields.FullName,
		"date_of_birth":   doc.Fields.DateOfBirth,
		"aadhar_number":   doc.Fields.IDNumber,
		"gender":          doc.Fields.Gender,
		"address":         doc.Fields.Address,
		"document_number": doc.Fields.DocumentNumber,
		"extra":           extra,
		"original_text":   doc.OriginalText,
		"source_path":     doc.SourcePath,
		"content_hash":    doc.ContentHash,
		"created_at":      doc.CreatedAt.UnixNano(),
		"updated_at":      doc.UpdatedAt.UnixNano(),
	}, nil
}

// validate runs the schema's string validators over the row.
func (s *SQLStore) validate(values map[string]any) error {
	for _, d := range s.columns {
		v, ok := values[d.Name].(string)
		if !ok {
			continue
		}
		for _, fn := range d.Validators {
			check, ok := fn.(func(string) error)
			if !ok {
				continue
			}
			if err := check(v); err != nil {
				return fmt.Errorf("%w: %s: %v", common.ErrValidation, d.Name, err)
			}
		}
	}
	return nil
}

func (s *SQLStore) scan(rows *entsql.Rows) (*entity.Document, error) {
	var (
		doc              entity.Document
		extra            sql.NullString
		created, updated int64
	)
	dest := map[string]any{
		"id":              &doc.ID,
		"owner_id":        &doc.OwnerID,
		"title":           &doc.Title,
		"document_type":   &doc.DocumentType,
		"full_name":       &doc.Fields.FullName,
		"date_of_birth":   &doc.Fields.DateOfBirth,
		"aadhar_number":   &doc.Fields.IDNumber,
		"gender":          &doc.Fields.Gender,
		"address":         &doc.Fields.Address,
		"document_number": &doc.Fields.DocumentNumber,
		"extra":           &extra,
		"original_text":   &doc.OriginalText,
		"source_path":     &doc.SourcePath,
		"content_hash":    &doc.ContentHash,
		"created_at":      &created,
		"updated_at":      &updated,
	}
	ptrs := make([]any, len(s.columns))
	for i, d := range s.columns {
		ptrs[i] = dest[d.Name]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	if extra.Valid && extra.String != "" {
		if err := json.Unmarshal([]byte(extra.String), &doc.Extra); err != nil {
			return nil, fmt.Errorf("decode extra: %w", err)
		}
	}
	doc.CreatedAt = time.Unix(0, created).UTC()
	doc.UpdatedAt = time.Unix(0, updated).UTC()
	return &doc, nil
}

func (s *SQLStore) query(ctx context.Context, where *entsql.Predicate, limit int) ([]*entity.Document, error) {
	b := entsql.Dialect(s.drv.Dialect())
	sel := b.Select(s.columnNames()...).
		From(b.Table(schema.DocumentsTable)).
		Where(where).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id"))
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, errors.Join(common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.Document
	for rows.Next() {
		doc, err := s.scan(&rows)
		if err != nil {
			return nil, errors.Join(common.ErrDatabase, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(common.ErrDatabase, err)
	}
	return out, nil
}

func ownedBy(ownerID, id string) *entsql.Predicate {
	return entsql.And(entsql.EQ("owner_id", ownerID), entsql.EQ("id", id))
}

func (s *SQLStore) Save(ctx context.Context, doc *entity.Document) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := s.now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}

	values, err := row(doc)
	if err != nil {
		return "", err
	}
	if err := s.validate(values); err != nil {
		return "", err
	}

	names := s.columnNames()
	vals := make([]any, len(names))
	for i, n := range names {
		vals[i] = values[n]
	}
	query, args := entsql.Dialect(s.drv.Dialect()).
		Insert(schema.DocumentsTable).
		Columns(names...).
		Values(vals...).
		Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		s.logger.Error("failed to save document", "owner_id", doc.OwnerID, "error", err)
		return "", errors.Join(common.ErrDatabase, err)
	}
	s.logger.Debug("document saved", "owner_id", doc.OwnerID, "id", doc.ID)
	return doc.ID, nil
}

func (s *SQLStore) Get(ctx context.Context, ownerID, id string) (*entity.Document, error) {
	docs, err := s.query(ctx, ownedBy(ownerID, id), 1)
	if err != nil {
		s.logger.Error("failed to get document", "owner_id", ownerID, "id", id, "error", err)
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	return docs[0], nil
}

func (s *SQLStore) List(ctx context.Context, ownerID string) ([]*entity.Document, error) {
	docs, err := s.query(ctx, entsql.EQ("owner_id", ownerID), 0)
	if err != nil {
		s.logger.Error("failed to list documents", "owner_id", ownerID, "error", err)
		return nil, err
	}
	return docs, nil
}

func (s *SQLStore) FindByContentHash(ctx context.Context, ownerID, hash string) (*entity.Document, error) {
	docs, err := s.query(ctx, entsql.And(entsql.EQ("owner_id", ownerID), entsql.EQ("content_hash", hash)), 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("document with hash %s: %w", hash, common.ErrNotFound)
	}
	return docs[0], nil
}

func (s *SQLStore) Update(ctx context.Context, ownerID, id string, patch entity.DocumentPatch) (*entity.Document, error) {
	doc, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	doc.Apply(patch, s.now().UTC())

	values, err := row(doc)
	if err != nil {
		return nil, err
	}
	if err := s.validate(values); err != nil {
		return nil, err
	}

	ub := entsql.Dialect(s.drv.Dialect()).Update(schema.DocumentsTable)
	for _, d := range s.columns {
		if d.Immutable || d.Name == "owner_id" {
			continue
		}
		ub.Set(d.Name, values[d.Name])
	}
	query, args := ub.Where(ownedBy(ownerID, id)).Query()

	var res sql.Result
	if err := s.drv.Exec(ctx, query, args, &res); err != nil {
		s.logger.Error("failed to update document", "owner_id", ownerID, "id", id, "error", err)
		return nil, errors.Join(common.ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	return doc, nil
}

func (s *SQLStore) Delete(ctx context.Context, ownerID, id string) error {
	query, args := entsql.Dialect(s.drv.Dialect()).
		Delete(schema.DocumentsTable).
		Where(ownedBy(ownerID, id)).
		Query()

	var res sql.Result
	if err := s.drv.Exec(ctx, query, args, &res); err != nil {
		s.logger.Error("failed to delete document", "owner_id", ownerID, "id", id, "error", err)
		return errors.Join(common.ErrDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Join(common.ErrDatabase, err)
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if s.pool != nil {
		return s.pool.Ping(ctx)
	}
	return HealthCheck(ctx, s.drv.DB(), 0, s.logger)
}

func (s *SQLStore) Close() error {
	Close(s.drv, s.pool, s.logger)
	return nil
}
