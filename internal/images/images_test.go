package images

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"
	"time"

	"github.com/campusfound/campusfound/internal/db"
)

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for x := 0; x < 64; x++ {
		for y := 0; y < 48; y++ {
			img.Set(x, y, color.RGBA{60, 120, 60, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding test JPEG: %v", err)
	}
	return buf.Bytes()
}

func TestUploadAndGet(t *testing.T) {
	store := &DBStore{DB: db.NewTestDB(t)}
	ctx := context.Background()

	ref, err := store.Upload(ctx, testJPEG(t))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if ref.ID == "" || !strings.HasPrefix(ref.URL, "/api/images/") {
		t.Errorf("unexpected ref: %+v", ref)
	}

	data, mime, err := store.Get(ctx, ref.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if mime != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", mime)
	}
	if len(data) == 0 {
		t.Error("expected stored bytes")
	}
}

func TestUploadRejectsBadData(t *testing.T) {
	store := &DBStore{DB: db.NewTestDB(t)}

	if _, err := store.Upload(context.Background(), []byte("not an image")); err == nil {
		t.Error("expected error for invalid image data")
	}
}

func TestGetMissing(t *testing.T) {
	store := &DBStore{DB: db.NewTestDB(t)}

	_, _, err := store.Get(context.Background(), "no-such-id")
	if !errors.Is(err, ErrNoImage) {
		t.Errorf("expected ErrNoImage, got %v", err)
	}
}

func TestRelease(t *testing.T) {
	store := &DBStore{DB: db.NewTestDB(t)}
	ctx := context.Background()

	ref, err := store.Upload(ctx, testJPEG(t))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if err := store.Release(ctx, ref.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, _, err := store.Get(ctx, ref.ID); !errors.Is(err, ErrNoImage) {
		t.Errorf("expected image to be gone, got %v", err)
	}

	// Unknown IDs are not an error.
	if err := store.Release(ctx, "no-such-id"); err != nil {
		t.Errorf("expected unknown release to succeed: %v", err)
	}
}

func TestSweepRemovesOnlyOldOrphans(t *testing.T) {
	database := db.NewTestDB(t)
	store := &DBStore{DB: database}
	ctx := context.Background()

	orphan, err := store.Upload(ctx, testJPEG(t))
	if err != nil {
		t.Fatalf("Upload orphan: %v", err)
	}
	referenced, err := store.Upload(ctx, testJPEG(t))
	if err != nil {
		t.Fatalf("Upload referenced: %v", err)
	}

	if _, err := database.ExecContext(ctx,
		`INSERT INTO items (name, category, location, found_date, image_url, image_id, added_by)
		 VALUES ('Pen Drive', 'Electronics', 'Computer Lab', CURRENT_TIMESTAMP, ?, ?, 'guard@campus.edu')`,
		referenced.URL, referenced.ID,
	); err != nil {
		t.Fatalf("inserting referencing item: %v", err)
	}

	// Both blobs are within the grace window: nothing to sweep.
	n, err := store.Sweep(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no blobs swept inside the grace window, got %d", n)
	}

	// Age both blobs past the window; only the orphan goes.
	if _, err := database.ExecContext(ctx,
		`UPDATE images SET created_at = datetime('now', '-2 hours')`,
	); err != nil {
		t.Fatalf("backdating blobs: %v", err)
	}
	n, err = store.Sweep(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 orphan swept, got %d", n)
	}
	if _, _, err := store.Get(ctx, orphan.ID); !errors.Is(err, ErrNoImage) {
		t.Errorf("expected orphan to be gone, got %v", err)
	}
	if _, _, err := store.Get(ctx, referenced.ID); err != nil {
		t.Errorf("expected referenced blob to survive: %v", err)
	}
}
