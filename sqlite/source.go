package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/fwojciec/folio"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var _ folio.SourceService = (*SourceService)(nil)

// SourceService implements folio.SourceService using SQLite.
//
// The full source is stored as JSON; the columns used for filtering and
// ordering are kept alongside it.
type SourceService struct {
	db *DB
}

// NewSourceService creates a new SourceService.
func NewSourceService(db *DB) *SourceService {
	return &SourceService{db: db}
}

// CreateSource creates a new source.
func (s *SourceService) CreateSource(ctx context.Context, src *folio.Source) error {
	if err := src.Validate(); err != nil {
		return err
	}

	if _, err := s.findIDByURL(ctx, src.URL); err == nil {
		return folio.Errorf(folio.ECONFLICT, "source %q already exists", src.URL)
	} else if folio.ErrorCode(err) != folio.ENOTFOUND {
		return err
	}

	src.ID = uuid.New().String()
	now := time.Now().UTC()
	src.CreatedAt = now
	src.UpdatedAt = now

	data, err := json.Marshal(src)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sources (id, name, url, grp, enabled, weight, custom_order, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, src.ID, src.Name, src.URL, src.Group, src.Enabled, src.Weight, src.CustomOrder, string(data),
		src.CreatedAt.Format(time.RFC3339), src.UpdatedAt.Format(time.RFC3339))

	return err
}

// SaveSource creates the source or replaces the one with the same URL,
// keeping its ID and creation time.
func (s *SourceService) SaveSource(ctx context.Context, src *folio.Source) error {
	if err := src.Validate(); err != nil {
		return err
	}

	id, err := s.findIDByURL(ctx, src.URL)
	if folio.ErrorCode(err) == folio.ENOTFOUND {
		return s.CreateSource(ctx, src)
	}
	if err != nil {
		return err
	}

	existing, err := s.FindSourceByID(ctx, id)
	if err != nil {
		return err
	}
	src.ID = id
	src.CreatedAt = existing.CreatedAt
	src.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(src)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE sources
		SET name = ?, grp = ?, enabled = ?, weight = ?, custom_order = ?, data = ?, updated_at = ?
		WHERE id = ?
	`, src.Name, src.Group, src.Enabled, src.Weight, src.CustomOrder, string(data),
		src.UpdatedAt.Format(time.RFC3339), id)

	return err
}

func (s *SourceService) findIDByURL(ctx context.Context, url string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, "SELECT id FROM sources WHERE url = ?", url).Scan(&id)
	if err == sql.ErrNoRows {
		return "", folio.Errorf(folio.ENOTFOUND, "source not found")
	}
	return id, err
}

// FindSourceByID retrieves a source by ID.
func (s *SourceService) FindSourceByID(ctx context.Context, id string) (*folio.Source, error) {
	sources, err := s.FindSources(ctx, folio.SourceFilter{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, folio.Errorf(folio.ENOTFOUND, "source not found")
	}
	return sources[0], nil
}

// FindSources retrieves sources matching the filter, in custom order.
func (s *SourceService) FindSources(ctx context.Context, filter folio.SourceFilter) ([]*folio.Source, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT id, data, created_at, updated_at FROM sources WHERE 1=1")

	if filter.ID != nil {
		query.WriteString(" AND id = ?")
		args = append(args, *filter.ID)
	}
	if filter.Name != nil {
		query.WriteString(" AND name = ?")
		args = append(args, *filter.Name)
	}
	if filter.URL != nil {
		query.WriteString(" AND url = ?")
		args = append(args, *filter.URL)
	}
	if filter.Group != nil {
		query.WriteString(" AND grp = ?")
		args = append(args, *filter.Group)
	}
	if filter.Enabled != nil {
		query.WriteString(" AND enabled = ?")
		args = append(args, *filter.Enabled)
	}

	query.WriteString(" ORDER BY custom_order ASC, name ASC")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*folio.Source
	for rows.Next() {
		var id, data, createdAt, updatedAt string
		if err := rows.Scan(&id, &data, &createdAt, &updatedAt); err != nil {
			return nil, err
		}

		var src folio.Source
		if err := json.Unmarshal([]byte(data), &src); err != nil {
			return nil, folio.Errorf(folio.EINTERNAL, "decode source %s: %v", id, err)
		}
		src.ID = id
		if src.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
			return nil, err
		}
		if src.UpdatedAt, err = parseRFC3339(updatedAt, "updated_at"); err != nil {
			return nil, err
		}
		sources = append(sources, &src)
	}

	return sources, rows.Err()
}

// DeleteSource permanently removes a source, its tables of contents and
// its stored chapters.
func (s *SourceService) DeleteSource(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM chapter_contents
		WHERE book IN (SELECT source_id || '|' || book_url FROM tocs WHERE source_id = ?)
	`, id); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM sources WHERE id = ?", id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return folio.Errorf(folio.ENOTFOUND, "source not found")
	}

	return nil
}
