package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/campusfound/campusfound/internal/db"
	"github.com/campusfound/campusfound/internal/images"
	"github.com/campusfound/campusfound/internal/lifecycle"
	"github.com/campusfound/campusfound/internal/model"
	"github.com/campusfound/campusfound/internal/store"
)

const (
	testSecret        = "test-secret"
	testGuardEmail    = "guard@campus.edu"
	testGuardPassword = "guard-password"
)

func newTestServer(t *testing.T) (*httptest.Server, *sql.DB) {
	t.Helper()

	database := db.NewTestDB(t)
	imageStore := &images.DBStore{DB: database}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := lifecycle.NewEngine(database, imageStore, logger)

	hash, err := bcrypt.GenerateFromPassword([]byte(testGuardPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing guard password: %v", err)
	}
	if _, err := store.CreateUser(t.Context(), database, &model.User{
		Email:        testGuardEmail,
		PasswordHash: string(hash),
		Role:         model.RoleGuard,
		Name:         "Security Desk",
	}); err != nil {
		t.Fatalf("seeding guard: %v", err)
	}

	server := httptest.NewServer(NewRouter(database, engine, imageStore, testSecret, 5<<20))
	t.Cleanup(server.Close)
	return server, database
}

func login(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()
	resp := doJSON(t, server, http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": email, "password": password})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login as %s: status %d", email, resp.StatusCode)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding login response: %v", err)
	}
	return body.Token
}

func doJSON(t *testing.T, server *httptest.Server, method, path, token string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshaling request: %v", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, server.URL+path, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for x := 0; x < 64; x++ {
		for y := 0; y < 48; y++ {
			img.Set(x, y, color.RGBA{200, 30, 30, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding test JPEG: %v", err)
	}
	return buf.Bytes()
}

// createTestItem registers a found item through the guard API and returns
// the decoded item.
func createTestItem(t *testing.T, server *httptest.Server, token, name string) model.Item {
	t.Helper()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	form.WriteField("name", name)
	form.WriteField("description", "test item")
	form.WriteField("category", "Other")
	form.WriteField("location", "Main Building")
	part, err := form.CreateFormFile("image", "photo.jpg")
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := part.Write(testJPEG(t)); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	form.Close()

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/items", &buf)
	if err != nil {
		t.Fatalf("building create request: %v", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("creating item: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("creating item: status %d: %s", resp.StatusCode, data)
	}

	var item model.Item
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		t.Fatalf("decoding created item: %v", err)
	}
	return item
}

func TestLoginAndMe(t *testing.T) {
	server, _ := newTestServer(t)

	token := login(t, server, testGuardEmail, testGuardPassword)

	resp := doJSON(t, server, http.MethodGet, "/api/auth/me", token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d", resp.StatusCode)
	}
	var user model.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		t.Fatalf("decoding me response: %v", err)
	}
	if user.Email != testGuardEmail || user.Role != model.RoleGuard {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, server, http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": testGuardEmail, "password": "wrong"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong password, got %d", resp.StatusCode)
	}
}

func TestRegisterStudent(t *testing.T) {
	server, _ := newTestServer(t)

	register := map[string]string{
		"registration_id":  "CS1042",
		"name":             "Asha Verma",
		"email":            "asha@campus.edu",
		"password":         "secret1",
		"confirm_password": "secret1",
		"mobile_number":    "9876543210",
	}

	resp := doJSON(t, server, http.MethodPost, "/api/auth/register", "", register)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: status %d", resp.StatusCode)
	}
	var body struct {
		Token string      `json:"token"`
		User  *model.User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding register response: %v", err)
	}
	resp.Body.Close()
	if body.Token == "" {
		t.Error("expected a token on registration")
	}
	if body.User == nil || body.User.Role != model.RoleStudent {
		t.Errorf("expected a student account, got %+v", body.User)
	}

	// Same registration ID again is rejected.
	register["email"] = "asha2@campus.edu"
	resp = doJSON(t, server, http.MethodPost, "/api/auth/register", "", register)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for duplicate registration id, got %d", resp.StatusCode)
	}
}

func TestRegisterValidation(t *testing.T) {
	server, _ := newTestServer(t)

	valid := map[string]string{
		"registration_id":  "CS1042",
		"name":             "Asha Verma",
		"email":            "asha@campus.edu",
		"password":         "secret1",
		"confirm_password": "secret1",
		"mobile_number":    "9876543210",
	}

	tests := []struct {
		name  string
		patch map[string]string
	}{
		{"short password", map[string]string{"password": "abc", "confirm_password": "abc"}},
		{"password mismatch", map[string]string{"confirm_password": "different"}},
		{"bad mobile number", map[string]string{"mobile_number": "12345"}},
		{"missing name", map[string]string{"name": ""}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			req := map[string]string{}
			for k, v := range valid {
				req[k] = v
			}
			for k, v := range test.patch {
				req[k] = v
			}
			resp := doJSON(t, server, http.MethodPost, "/api/auth/register", "", req)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	server, _ := newTestServer(t)

	token := login(t, server, testGuardEmail, testGuardPassword)

	resp := doJSON(t, server, http.MethodPost, "/api/auth/logout", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: status %d", resp.StatusCode)
	}

	resp = doJSON(t, server, http.MethodGet, "/api/auth/me", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestChangePassword(t *testing.T) {
	server, _ := newTestServer(t)
	token := login(t, server, testGuardEmail, testGuardPassword)

	resp := doJSON(t, server, http.MethodPut, "/api/auth/password", token,
		map[string]string{"current_password": "wrong", "new_password": "next-password"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong current password, got %d", resp.StatusCode)
	}

	resp = doJSON(t, server, http.MethodPut, "/api/auth/password", token,
		map[string]string{"current_password": testGuardPassword, "new_password": "next-password"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("change password: status %d", resp.StatusCode)
	}

	login(t, server, testGuardEmail, "next-password")
}

func TestItemLifecycleFlow(t *testing.T) {
	server, _ := newTestServer(t)
	guardToken := login(t, server, testGuardEmail, testGuardPassword)

	item := createTestItem(t, server, guardToken, "Black Wallet")
	if item.Status != model.StatusAvailable {
		t.Errorf("expected available status, got %q", item.Status)
	}
	if item.ImageURL == "" {
		t.Error("expected an image URL")
	}

	// The stored photo is publicly servable.
	resp, err := http.Get(server.URL + item.ImageURL)
	if err != nil {
		t.Fatalf("fetching image: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for image, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", ct)
	}

	// Claiming is public.
	claim := map[string]string{
		"student_name":   "Asha Verma",
		"roll_number":    "CS1042",
		"contact_number": "9876543210",
	}
	path := fmt.Sprintf("/api/items/%d/claim", item.ID)
	resp = doJSON(t, server, http.MethodPut, path, "", claim)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim: status %d", resp.StatusCode)
	}
	var claimed model.Item
	if err := json.NewDecoder(resp.Body).Decode(&claimed); err != nil {
		t.Fatalf("decoding claimed item: %v", err)
	}
	resp.Body.Close()
	if claimed.Status != model.StatusClaimed || claimed.ClaimedBy == nil {
		t.Errorf("unexpected claimed item: %+v", claimed)
	}

	// Second claim is a state violation.
	resp = doJSON(t, server, http.MethodPut, path, "", claim)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for second claim, got %d", resp.StatusCode)
	}

	// Delivery needs the guard.
	deliverPath := fmt.Sprintf("/api/items/%d/delivered", item.ID)
	resp = doJSON(t, server, http.MethodPut, deliverPath, guardToken,
		map[string]string{"name": "Asha Verma", "student_id": "CS1042"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deliver: status %d", resp.StatusCode)
	}
	var delivered model.Item
	if err := json.NewDecoder(resp.Body).Decode(&delivered); err != nil {
		t.Fatalf("decoding delivered item: %v", err)
	}
	resp.Body.Close()
	if delivered.Status != model.StatusDelivered || delivered.DeliveredTo == nil {
		t.Errorf("unexpected delivered item: %+v", delivered)
	}

	// Delivery is not idempotent.
	resp = doJSON(t, server, http.MethodPut, deliverPath, guardToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for second delivery, got %d", resp.StatusCode)
	}

	// The full trail is visible to the guard.
	resp = doJSON(t, server, http.MethodGet, fmt.Sprintf("/api/items/%d/history", item.ID), guardToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history: status %d", resp.StatusCode)
	}
	var events []model.Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		t.Fatalf("decoding history: %v", err)
	}
	resp.Body.Close()
	if len(events) != 3 {
		t.Errorf("expected 3 lifecycle events, got %d", len(events))
	}
}

func TestGuardOnlyRoutes(t *testing.T) {
	server, _ := newTestServer(t)
	guardToken := login(t, server, testGuardEmail, testGuardPassword)
	item := createTestItem(t, server, guardToken, "Keys")

	resp := doJSON(t, server, http.MethodPost, "/api/auth/register", "", map[string]string{
		"registration_id": "CS1042", "name": "Asha Verma", "email": "asha@campus.edu",
		"password": "secret1", "confirm_password": "secret1", "mobile_number": "9876543210",
	})
	var registered struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&registered); err != nil {
		t.Fatalf("decoding register response: %v", err)
	}
	resp.Body.Close()

	deletePath := fmt.Sprintf("/api/items/%d", item.ID)

	// No token: 401.
	resp = doJSON(t, server, http.MethodDelete, deletePath, "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}

	// Student token: 403.
	resp = doJSON(t, server, http.MethodDelete, deletePath, registered.Token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for student, got %d", resp.StatusCode)
	}

	// Guard token: allowed.
	resp = doJSON(t, server, http.MethodDelete, deletePath, guardToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for guard, got %d", resp.StatusCode)
	}
}

func TestListAndSearchEndpoints(t *testing.T) {
	server, _ := newTestServer(t)
	guardToken := login(t, server, testGuardEmail, testGuardPassword)
	createTestItem(t, server, guardToken, "Casio Calculator")

	resp, err := http.Get(server.URL + "/api/items")
	if err != nil {
		t.Fatalf("listing items: %v", err)
	}
	var items []model.Item
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		t.Fatalf("decoding item list: %v", err)
	}
	resp.Body.Close()
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}

	resp, err = http.Get(server.URL + "/api/items/search?q=calculator")
	if err != nil {
		t.Fatalf("searching: %v", err)
	}
	items = nil
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		t.Fatalf("decoding search results: %v", err)
	}
	resp.Body.Close()
	if len(items) != 1 {
		t.Errorf("expected 1 search hit, got %d", len(items))
	}

	// A search term is required.
	resp, _ = http.Get(server.URL + "/api/items/search")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing term, got %d", resp.StatusCode)
	}

	// Category filter.
	resp, _ = http.Get(server.URL + "/api/items?category=Electronics")
	items = nil
	json.NewDecoder(resp.Body).Decode(&items)
	resp.Body.Close()
	if len(items) != 0 {
		t.Errorf("expected no electronics, got %d", len(items))
	}
}

func TestRecentEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/items/recent?limit=abc")
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + "/api/items/recent")
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestGetItemErrors(t *testing.T) {
	server, _ := newTestServer(t)

	resp, _ := http.Get(server.URL + "/api/items/999")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for missing item, got %d", resp.StatusCode)
	}

	resp, _ = http.Get(server.URL + "/api/items/not-a-number")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad id, got %d", resp.StatusCode)
	}
}

func TestSetStatusEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	guardToken := login(t, server, testGuardEmail, testGuardPassword)
	item := createTestItem(t, server, guardToken, "Umbrella")

	path := fmt.Sprintf("/api/items/%d/status", item.ID)

	resp := doJSON(t, server, http.MethodPatch, path, guardToken, map[string]string{"status": "delivered"})
	var updated model.Item
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		t.Fatalf("decoding status response: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || updated.Status != model.StatusDelivered {
		t.Errorf("expected delivered override, got %d %+v", resp.StatusCode, updated)
	}

	resp = doJSON(t, server, http.MethodPatch, path, guardToken, map[string]string{"status": "lost"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status, got %d", resp.StatusCode)
	}
}

func TestImageNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	resp, _ := http.Get(server.URL + "/api/images/no-such-id")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for missing image, got %d", resp.StatusCode)
	}
}
