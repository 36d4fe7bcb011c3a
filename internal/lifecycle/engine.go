// Package lifecycle is the single authority over an item's status and its
// claim/delivery records. Every transition goes through the Engine; no
// other code path writes the status column.
package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/campusfound/campusfound/internal/images"
	"github.com/campusfound/campusfound/internal/imaging"
	"github.com/campusfound/campusfound/internal/model"
	"github.com/campusfound/campusfound/internal/store"
)

// Engine mutates items through guarded, atomic state transitions.
type Engine struct {
	db     *sql.DB
	images images.Store
	log    *slog.Logger
}

// NewEngine creates a lifecycle engine backed by the given database and
// image store.
func NewEngine(db *sql.DB, imgs images.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{db: db, images: imgs, log: logger}
}

// CreateRequest describes a new found item. Image holds the raw upload
// bytes; an item cannot exist without a photo.
type CreateRequest struct {
	Name        string
	Description string
	Category    string
	Location    string
	FoundDate   time.Time
	AddedBy     string
	Image       []byte
}

// EditRequest updates an available item's descriptive fields. Image, when
// non-nil, replaces the stored photo.
type EditRequest struct {
	Name        string
	Description string
	Category    string
	Location    string
	FoundDate   time.Time
	Image       []byte
}

// ClaimRequest carries claimant identity from the student-facing form.
type ClaimRequest struct {
	StudentName   string
	RollNumber    string
	StudyYear     string
	ContactNumber string
	ClaimedDate   *time.Time
}

// DeliverRequest carries optional handover confirmation details.
type DeliverRequest struct {
	Name      string
	Email     string
	StudentID string
	Phone     string
}

// Create validates the request, uploads the photo, and inserts the item in
// the available status. An upload failure is fatal: items are never created
// without their image.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*model.Item, error) {
	if err := validateDescriptive(req.Name, req.Description, req.Category, req.Location); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.AddedBy) == "" {
		return nil, &ValidationError{Field: "added_by", Reason: "must specify who added the item"}
	}
	if len(req.Image) == 0 {
		return nil, &ValidationError{Field: "image", Reason: "an image is required"}
	}

	ref, err := e.uploadImage(ctx, req.Image)
	if err != nil {
		return nil, err
	}

	foundDate := req.FoundDate
	if foundDate.IsZero() {
		foundDate = time.Now()
	}

	item, err := store.InsertItem(ctx, e.db, &model.Item{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		FoundDate:   foundDate,
		ImageURL:    ref.URL,
		ImageID:     ref.ID,
		AddedBy:     req.AddedBy,
	})
	if err != nil {
		e.releaseImage(ctx, ref.ID)
		return nil, err
	}

	e.recordEvent(ctx, &model.Event{
		ItemID:   item.ID,
		Type:     model.EventCreated,
		ToStatus: model.StatusAvailable,
		Actor:    req.AddedBy,
	})

	return item, nil
}

// Claim moves an available item to claimed and records the claimant. The
// check-and-set is a single conditional UPDATE at the store, so of two
// racing claims exactly one succeeds; the loser gets ErrInvalidState.
func (e *Engine) Claim(ctx context.Context, itemID int64, req ClaimRequest) (*model.Item, error) {
	if err := validateClaim(req); err != nil {
		return nil, err
	}

	claimedDate := time.Now()
	if req.ClaimedDate != nil && !req.ClaimedDate.IsZero() {
		claimedDate = *req.ClaimedDate
	}

	claim := &model.ClaimedBy{
		StudentName:   req.StudentName,
		RollNumber:    req.RollNumber,
		StudyYear:     req.StudyYear,
		ContactNumber: req.ContactNumber,
		ClaimedDate:   claimedDate,
	}

	ok, err := store.ClaimItem(ctx, e.db, itemID, claim)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, e.missingOrInvalid(ctx, itemID)
	}

	e.recordEvent(ctx, &model.Event{
		ItemID:     itemID,
		Type:       model.EventClaimed,
		FromStatus: model.StatusAvailable,
		ToStatus:   model.StatusClaimed,
		Actor:      req.StudentName,
		Notes:      "roll " + req.RollNumber,
	})

	return store.GetItem(ctx, e.db, itemID)
}

// Deliver moves a claimed item to delivered, preserving the claim record
// and stamping the handover. Not idempotent: delivering an already
// delivered item fails with ErrInvalidState and leaves the original
// delivery record untouched.
func (e *Engine) Deliver(ctx context.Context, itemID int64, req DeliverRequest) (*model.Item, error) {
	delivery := &model.DeliveredTo{
		Name:         req.Name,
		Email:        req.Email,
		StudentID:    req.StudentID,
		Phone:        req.Phone,
		DeliveryDate: time.Now(),
	}

	ok, err := store.DeliverItem(ctx, e.db, itemID, delivery)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, e.missingOrInvalid(ctx, itemID)
	}

	e.recordEvent(ctx, &model.Event{
		ItemID:     itemID,
		Type:       model.EventDelivered,
		FromStatus: model.StatusClaimed,
		ToStatus:   model.StatusDelivered,
		Actor:      req.Name,
	})

	return store.GetItem(ctx, e.db, itemID)
}

// Edit updates an available item's descriptive fields and optionally
// replaces its photo. Claimed and delivered items are frozen.
func (e *Engine) Edit(ctx context.Context, itemID int64, req EditRequest) (*model.Item, error) {
	if err := validateDescriptive(req.Name, req.Description, req.Category, req.Location); err != nil {
		return nil, err
	}

	current, err := store.GetItem(ctx, e.db, itemID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}

	var newRef *images.Ref
	if len(req.Image) > 0 {
		newRef, err = e.uploadImage(ctx, req.Image)
		if err != nil {
			return nil, err
		}
	}

	foundDate := req.FoundDate
	if foundDate.IsZero() {
		foundDate = current.FoundDate
	}

	ok, err := store.UpdateItemFields(ctx, e.db, itemID, req.Name, req.Description, req.Category, req.Location, foundDate)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The item was claimed (or deleted) since we fetched it. The new
		// photo is now an orphan; try to clean it up, the sweep catches
		// the rest.
		if newRef != nil {
			e.releaseImage(ctx, newRef.ID)
		}
		return nil, e.missingOrInvalid(ctx, itemID)
	}

	if newRef != nil {
		ok, err := store.SetItemImage(ctx, e.db, itemID, newRef.URL, newRef.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			e.releaseImage(ctx, current.ImageID)
		} else {
			e.releaseImage(ctx, newRef.ID)
		}
	}

	e.recordEvent(ctx, &model.Event{
		ItemID:     itemID,
		Type:       model.EventEdited,
		FromStatus: model.StatusAvailable,
		ToStatus:   model.StatusAvailable,
	})

	return store.GetItem(ctx, e.db, itemID)
}

// SetStatusDirect force-sets an item's status. Administrative override for
// guard tooling: the enum is validated, but neither the forward-only rule
// nor claim-record population is enforced, so it can produce a claimed
// item with no claimant. Every use is logged.
func (e *Engine) SetStatusDirect(ctx context.Context, itemID int64, status string) (*model.Item, error) {
	if !model.ValidStatus(status) {
		return nil, &ValidationError{Field: "status", Reason: "must be available, claimed, or delivered"}
	}

	current, err := store.GetItem(ctx, e.db, itemID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}

	ok, err := store.SetItemStatus(ctx, e.db, itemID, status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}

	e.log.Warn("item status overridden outside guarded lifecycle",
		"item_id", itemID, "from", current.Status, "to", status)

	e.recordEvent(ctx, &model.Event{
		ItemID:     itemID,
		Type:       model.EventOverridden,
		FromStatus: current.Status,
		ToStatus:   status,
	})

	return store.GetItem(ctx, e.db, itemID)
}

// Delete removes an item in any status. The image release is best-effort:
// a failure is logged but never blocks the record deletion.
func (e *Engine) Delete(ctx context.Context, itemID int64) error {
	item, err := store.GetItem(ctx, e.db, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return ErrNotFound
	}

	e.releaseImage(ctx, item.ImageID)

	ok, err := store.DeleteItem(ctx, e.db, itemID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// missingOrInvalid turns a failed conditional update into the right error:
// ErrNotFound when the item is gone, ErrInvalidState when it exists in a
// status the operation does not accept.
func (e *Engine) missingOrInvalid(ctx context.Context, itemID int64) error {
	item, err := store.GetItem(ctx, e.db, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return ErrNotFound
	}
	return fmt.Errorf("%w: item is %s", ErrInvalidState, item.Status)
}

// uploadImage stores a new photo. Unusable image bytes are the caller's
// fault (ValidationError); anything else is a fatal ResourceError.
func (e *Engine) uploadImage(ctx context.Context, data []byte) (*images.Ref, error) {
	ref, err := e.images.Upload(ctx, data)
	if err != nil {
		if errors.Is(err, imaging.ErrBadImage) {
			return nil, &ValidationError{Field: "image", Reason: err.Error()}
		}
		return nil, &ResourceError{Op: "upload", Err: err}
	}
	return ref, nil
}

func (e *Engine) releaseImage(ctx context.Context, id string) {
	if err := e.images.Release(ctx, id); err != nil {
		e.log.Warn("failed to release image resource", "image_id", id, "error", err)
	}
}

func (e *Engine) recordEvent(ctx context.Context, event *model.Event) {
	if err := store.RecordEvent(ctx, e.db, event); err != nil {
		e.log.Warn("failed to record item event", "item_id", event.ItemID, "type", event.Type, "error", err)
	}
}

func validateDescriptive(name, description, category, location string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if len(name) > 100 {
		return &ValidationError{Field: "name", Reason: "cannot be more than 100 characters"}
	}
	if len(description) > 500 {
		return &ValidationError{Field: "description", Reason: "cannot be more than 500 characters"}
	}
	if !model.ValidCategory(category) {
		return &ValidationError{Field: "category", Reason: "unknown category"}
	}
	if !model.ValidLocation(location) {
		return &ValidationError{Field: "location", Reason: "unknown location"}
	}
	return nil
}

func validateClaim(req ClaimRequest) error {
	if strings.TrimSpace(req.StudentName) == "" {
		return &ValidationError{Field: "student_name", Reason: "required"}
	}
	if strings.TrimSpace(req.RollNumber) == "" {
		return &ValidationError{Field: "roll_number", Reason: "required"}
	}
	if strings.TrimSpace(req.ContactNumber) == "" {
		return &ValidationError{Field: "contact_number", Reason: "required"}
	}
	return nil
}
