package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/fwojciec/folio"
)

// Compile-time interface verification.
var _ folio.TocService = (*TocService)(nil)

// TocService implements folio.TocService using SQLite.
type TocService struct {
	db *DB
}

// NewTocService creates a new TocService.
func NewTocService(db *DB) *TocService {
	return &TocService{db: db}
}

// FindToc returns the cached table of contents for a book. Chapters whose
// text is stored are marked as downloaded.
func (s *TocService) FindToc(ctx context.Context, sourceID, bookURL string) (*folio.TableOfContents, error) {
	toc := &folio.TableOfContents{BookURL: bookURL}
	var info string

	err := s.db.QueryRowContext(ctx, `
		SELECT toc_url, info FROM tocs WHERE source_id = ? AND book_url = ?
	`, sourceID, bookURL).Scan(&toc.TocURL, &info)
	if err == sql.ErrNoRows {
		return nil, folio.Errorf(folio.ENOTFOUND, "table of contents not found")
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(info), &toc.Info); err != nil {
		return nil, folio.Errorf(folio.EINTERNAL, "decode book info: %v", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.idx, c.name, c.url, cc.idx IS NOT NULL
		FROM chapters c
		LEFT JOIN chapter_contents cc ON cc.book = ? AND cc.idx = c.idx AND cc.url = c.url
		WHERE c.source_id = ? AND c.book_url = ?
		ORDER BY c.idx ASC
	`, folio.BookKey(sourceID, bookURL), sourceID, bookURL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ch folio.Chapter
		if err := rows.Scan(&ch.Index, &ch.Name, &ch.URL, &ch.Downloaded); err != nil {
			return nil, err
		}
		toc.Chapters = append(toc.Chapters, &ch)
	}

	return toc, rows.Err()
}

// SaveToc stores a table of contents, replacing any previous one for the
// same book. Stored chapter text is kept only where the chapter at its
// index still has the same URL.
func (s *TocService) SaveToc(ctx context.Context, sourceID string, toc *folio.TableOfContents) error {
	info, err := json.Marshal(toc.Info)
	if err != nil {
		return err
	}
	if toc.Info == nil {
		info = []byte("{}")
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tocs WHERE source_id = ? AND book_url = ?", sourceID, toc.BookURL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tocs (source_id, book_url, toc_url, info, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, sourceID, toc.BookURL, toc.TocURL, string(info), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	for _, ch := range toc.Chapters {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chapters (source_id, book_url, idx, name, url)
			VALUES (?, ?, ?, ?, ?)
		`, sourceID, toc.BookURL, ch.Index, ch.Name, ch.URL); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM chapter_contents
		WHERE book = ? AND NOT EXISTS (
			SELECT 1 FROM chapters c
			WHERE c.source_id = ? AND c.book_url = ?
				AND c.idx = chapter_contents.idx AND c.url = chapter_contents.url
		)
	`, folio.BookKey(sourceID, toc.BookURL), sourceID, toc.BookURL); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteToc removes a cached table of contents and its stored chapters.
func (s *TocService) DeleteToc(ctx context.Context, sourceID, bookURL string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tocs WHERE source_id = ? AND book_url = ?", sourceID, bookURL)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return folio.Errorf(folio.ENOTFOUND, "table of contents not found")
	}

	_, err = s.db.ExecContext(ctx, "DELETE FROM chapter_contents WHERE book = ?", folio.BookKey(sourceID, bookURL))
	return err
}
