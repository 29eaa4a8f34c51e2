package sqlite

import (
	"context"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/folio"
)

// Compile-time interface verification.
var _ folio.ChapterStore = (*ChapterStore)(nil)

// ChapterStore implements folio.ChapterStore using SQLite.
type ChapterStore struct {
	db *DB
}

// NewChapterStore creates a new ChapterStore.
func NewChapterStore(db *DB) *ChapterStore {
	return &ChapterStore{db: db}
}

// hashContent computes xxHash of content and returns hex string.
func hashContent(content string) string {
	h := xxhash.Sum64String(content)
	b := make([]byte, 8)
	b[0] = byte(h >> 56)
	b[1] = byte(h >> 48)
	b[2] = byte(h >> 40)
	b[3] = byte(h >> 32)
	b[4] = byte(h >> 24)
	b[5] = byte(h >> 16)
	b[6] = byte(h >> 8)
	b[7] = byte(h)
	return hex.EncodeToString(b)
}

// FindChapterContent returns stored chapter text. Text stored for another
// chapter URL at the same index is not returned.
func (s *ChapterStore) FindChapterContent(ctx context.Context, key folio.CacheKey) (*folio.ChapterContent, error) {
	var content folio.ChapterContent
	err := s.db.QueryRowContext(ctx, `
		SELECT name, content, pages FROM chapter_contents WHERE book = ? AND idx = ? AND url = ?
	`, key.Book, key.Index, key.URL).Scan(&content.Name, &content.Text, &content.Pages)
	if err == sql.ErrNoRows {
		return nil, folio.Errorf(folio.ENOTFOUND, "chapter not stored")
	}
	if err != nil {
		return nil, err
	}
	return &content, nil
}

// SaveChapterContent stores chapter text, replacing earlier text. Saving
// unchanged text leaves the stored row untouched.
func (s *ChapterStore) SaveChapterContent(ctx context.Context, key folio.CacheKey, content *folio.ChapterContent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chapter_contents (book, idx, url, name, content, content_hash, pages, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (book, idx) DO UPDATE SET
			url = excluded.url,
			name = excluded.name,
			content = excluded.content,
			content_hash = excluded.content_hash,
			pages = excluded.pages,
			fetched_at = excluded.fetched_at
		WHERE content_hash != excluded.content_hash OR name != excluded.name OR url != excluded.url
	`, key.Book, key.Index, key.URL, content.Name, content.Text, hashContent(content.Text), content.Pages,
		time.Now().UTC().Format(time.RFC3339))
	return err
}
