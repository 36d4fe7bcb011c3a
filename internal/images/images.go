// Package images stores item photos as database blobs addressed by opaque
// resource IDs, playing the role a CDN or object store would in a larger
// deployment.
package images

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campusfound/campusfound/internal/imaging"
)

// ErrNoImage is returned when a resource ID resolves to nothing.
var ErrNoImage = errors.New("image not found")

// Ref points at a stored image resource.
type Ref struct {
	URL string `json:"url"`
	ID  string `json:"id"`
}

// Store uploads and releases image resources. Release failures are
// non-fatal to callers; upload failures are not.
type Store interface {
	Upload(ctx context.Context, data []byte) (*Ref, error)
	Release(ctx context.Context, id string) error
}

// DBStore keeps image blobs in the portal's own SQLite database.
type DBStore struct {
	DB *sql.DB
}

// Upload processes raw upload bytes through the imaging pipeline and
// stores the result under a fresh resource ID.
func (s *DBStore) Upload(ctx context.Context, data []byte) (*Ref, error) {
	photo, err := imaging.Process(data)
	if err != nil {
		return nil, fmt.Errorf("processing image: %w", err)
	}

	id := uuid.NewString()
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO images (id, data, mime) VALUES (?, ?, ?)`,
		id, photo.Data, photo.MIME,
	)
	if err != nil {
		return nil, fmt.Errorf("storing image: %w", err)
	}

	return &Ref{URL: "/api/images/" + id, ID: id}, nil
}

// Release deletes a stored image. Releasing an unknown ID is not an error:
// the resource is gone either way.
func (s *DBStore) Release(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("releasing image %s: %w", id, err)
	}
	return nil
}

// Get returns a stored image's bytes and MIME type.
func (s *DBStore) Get(ctx context.Context, id string) ([]byte, string, error) {
	var data []byte
	var mime string
	err := s.DB.QueryRowContext(ctx,
		`SELECT data, mime FROM images WHERE id = ?`, id,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", ErrNoImage
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting image %s: %w", id, err)
	}
	return data, mime, nil
}

// Sweep deletes orphaned images: blobs no item references, older than the
// grace window. Orphans accumulate when a release fails or an item insert
// fails after its upload; item mutations never roll back image writes, so
// this is the reconciliation path. Returns the number of blobs removed.
func (s *DBStore) Sweep(ctx context.Context, olderThan time.Duration) (int64, error) {
	// Compare in SQLite's own clock and format; created_at is written by
	// the CURRENT_TIMESTAMP default.
	modifier := fmt.Sprintf("-%d seconds", int64(olderThan.Seconds()))
	result, err := s.DB.ExecContext(ctx,
		`DELETE FROM images
		 WHERE created_at < datetime('now', ?)
		   AND id NOT IN (SELECT image_id FROM items)`,
		modifier,
	)
	if err != nil {
		return 0, fmt.Errorf("sweeping orphaned images: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweeping orphaned images: %w", err)
	}
	return n, nil
}
