package api

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/campusfound/campusfound/internal/lifecycle"
	"github.com/campusfound/campusfound/internal/model"
	"github.com/campusfound/campusfound/internal/store"
)

// defaultRecentLimit is how many items the homepage carousel shows.
const defaultRecentLimit = 8

// ItemsHandler handles item endpoints. All status mutations go through
// the lifecycle engine; handlers only read the store directly.
type ItemsHandler struct {
	DB        *sql.DB
	Engine    *lifecycle.Engine
	MaxUpload int64
}

type claimRequest struct {
	StudentName   string     `json:"student_name"`
	RollNumber    string     `json:"roll_number"`
	StudyYear     string     `json:"study_year"`
	ContactNumber string     `json:"contact_number"`
	ClaimedDate   *time.Time `json:"claimed_date"`
}

type deliverRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	StudentID string `json:"student_id"`
	Phone     string `json:"phone"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	var items []model.Item
	var err error

	if category := r.URL.Query().Get("category"); category != "" {
		items, err = store.ListItemsByCategory(r.Context(), h.DB, category)
	} else {
		items, err = store.ListItems(r.Context(), h.DB)
	}
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Recent handles GET /api/items/recent?limit=N. Only available items are
// returned so the homepage never advertises claimed or delivered ones.
func (h *ItemsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			jsonError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	items, err := store.ListRecentItems(r.Context(), h.DB, limit)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list recent items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Search handles GET /api/items/search?q=.
func (h *ItemsHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		jsonError(w, http.StatusBadRequest, "please provide a search term")
		return
	}

	items, err := store.SearchItems(r.Context(), h.DB, query)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// Create handles POST /api/items (guard only, multipart with image).
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	image, ok := h.readMultipart(w, r, true)
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	item, err := h.Engine.Create(r.Context(), lifecycle.CreateRequest{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		Location:    r.FormValue("location"),
		FoundDate:   parseDate(r.FormValue("found_date")),
		AddedBy:     claims.Email,
		Image:       image,
	})
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	jsonResponse(w, http.StatusCreated, item)
}

// Update handles PUT /api/items/{id} (guard only, pre-claim only).
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	image, ok := h.readMultipart(w, r, false)
	if !ok {
		return
	}

	item, err := h.Engine.Edit(r.Context(), id, lifecycle.EditRequest{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		Location:    r.FormValue("location"),
		FoundDate:   parseDate(r.FormValue("found_date")),
		Image:       image,
	})
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// Claim handles PUT /api/items/{id}/claim (public: students claim from
// the item page without logging in).
func (h *ItemsHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	var req claimRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Engine.Claim(r.Context(), id, lifecycle.ClaimRequest{
		StudentName:   req.StudentName,
		RollNumber:    req.RollNumber,
		StudyYear:     req.StudyYear,
		ContactNumber: req.ContactNumber,
		ClaimedDate:   req.ClaimedDate,
	})
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// Deliver handles PUT /api/items/{id}/delivered (guard only).
func (h *ItemsHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	var req deliverRequest
	if err := decodeJSON(r, &req); err != nil && err != io.EOF {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Engine.Deliver(r.Context(), id, lifecycle.DeliverRequest{
		Name:      req.Name,
		Email:     req.Email,
		StudentID: req.StudentID,
		Phone:     req.Phone,
	})
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// SetStatus handles PATCH /api/items/{id}/status (guard only). This is
// the administrative override documented on Engine.SetStatusDirect.
func (h *ItemsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Engine.SetStatusDirect(r.Context(), id, req.Status)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id} (guard only).
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	if err := h.Engine.Delete(r.Context(), id); err != nil {
		writeLifecycleError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// History handles GET /api/items/{id}/history (guard only).
func (h *ItemsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	events, err := store.GetItemHistory(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item history")
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	jsonResponse(w, http.StatusOK, events)
}

// readMultipart parses the multipart form and returns the image bytes, if
// any. When required is true a missing file is a client error. A false
// second return means the response has already been written.
func (h *ItemsHandler) readMultipart(w http.ResponseWriter, r *http.Request, required bool) ([]byte, bool) {
	maxUpload := h.MaxUpload
	if maxUpload <= 0 {
		maxUpload = 5 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)

	if err := r.ParseMultipartForm(maxUpload); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return nil, false
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		if required {
			jsonError(w, http.StatusBadRequest, "image file required")
			return nil, false
		}
		return nil, true
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to read image")
		return nil, false
	}
	return data, true
}

// itemID parses the {id} path value. A false return means the response
// has already been written.
func itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return 0, false
	}
	return id, true
}

// parseDate accepts RFC 3339 or plain YYYY-MM-DD form values.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Time{}
}

// writeLifecycleError maps engine errors onto HTTP statuses: missing
// items are 404, state and validation problems are 400, everything else
// is a 500.
func writeLifecycleError(w http.ResponseWriter, err error) {
	var validationErr *lifecycle.ValidationError
	var resourceErr *lifecycle.ResourceError

	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		jsonError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, lifecycle.ErrInvalidState):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &validationErr):
		jsonError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &resourceErr):
		jsonError(w, http.StatusInternalServerError, resourceErr.Error())
	default:
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
