package api

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lekha-app/lekha-server/internal/models"
)

// userID looks up the database id of a registered test user.
func userID(t *testing.T, conn *gorm.DB, email string) uint64 {
	t.Helper()
	var user models.User
	if errFind := conn.Where("email = ?", email).First(&user).Error; errFind != nil {
		t.Fatalf("load user %s: %v", email, errFind)
	}
	return user.ID
}

// seedDocs inserts n documents with strictly increasing creation times so
// ordering assertions are deterministic.
func seedDocs(t *testing.T, conn *gorm.DB, ownerID uint64, n int) []models.Document {
	t.Helper()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	docs := make([]models.Document, 0, n)
	for i := 0; i < n; i++ {
		doc := models.Document{
			Owner:         "Seed Owner",
			VehicleNumber: fmt.Sprintf("KL07SD%04d", i),
			UserID:        ownerID,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
			UpdatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		if errCreate := conn.Create(&doc).Error; errCreate != nil {
			t.Fatalf("seed doc %d: %v", i, errCreate)
		}
		docs = append(docs, doc)
	}
	return docs
}

// documentsFrom extracts the documents array from a list response.
func documentsFrom(t *testing.T, body map[string]any) []map[string]any {
	t.Helper()
	raw, ok := body["documents"].([]any)
	if !ok {
		t.Fatalf("expected documents array, got %v", body)
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		doc, okDoc := item.(map[string]any)
		if !okDoc {
			t.Fatalf("expected document object, got %v", item)
		}
		out = append(out, doc)
	}
	return out
}

func TestAddDocumentNormalizesFields(t *testing.T) {
	engine, _, mailer := newTestServer(t)
	token := registerAndVerify(t, engine, mailer, "docs@example.com")

	w := doJSON(t, engine, http.MethodPost, "/api/add-doc", token, gin.H{
		"owner":         "  Ravi Kumar  ",
		"vehicleNumber": "kl07ab1234",
		"phone":         "9876543210",
		"cf":            "2024-06-01",
		"dir":           []string{"rc", "np", "RC"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("add-doc: expected 201, got %d (%s)", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	doc, _ := body["document"].(map[string]any)
	if doc == nil {
		t.Fatalf("expected document in response, got %v", body)
	}
	if doc["vehicleNumber"] != "KL07AB1234" {
		t.Fatalf("expected uppercased vehicle number, got %v", doc["vehicleNumber"])
	}
	if doc["owner"] != "Ravi Kumar" {
		t.Fatalf("expected trimmed owner, got %v", doc["owner"])
	}
	if phone, _ := doc["phone"].(float64); int64(phone) != 9876543210 {
		t.Fatalf("expected string phone to parse, got %v", doc["phone"])
	}
	dir, _ := doc["dir"].([]any)
	if len(dir) != 2 || dir[0] != "RC" || dir[1] != "NP" {
		t.Fatalf("expected deduped uppercased dir tags, got %v", doc["dir"])
	}
}

func TestAddDocumentValidation(t *testing.T) {
	engine, _, mailer := newTestServer(t)
	token := registerAndVerify(t, engine, mailer, "docval@example.com")

	w := doJSON(t, engine, http.MethodPost, "/api/add-doc", token, gin.H{
		"owner": "Ravi Kumar",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing vehicle number: expected 400, got %d", w.Code)
	}

	w = doJSON(t, engine, http.MethodPost, "/api/add-doc", token, gin.H{
		"owner":         "Ravi Kumar",
		"vehicleNumber": "KL07AB1234",
		"dir":           []string{"BOGUS"},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bogus dir tag: expected 400, got %d", w.Code)
	}

	w = doJSON(t, engine, http.MethodPost, "/api/add-doc", token, gin.H{
		"owner":         "Ravi Kumar",
		"vehicleNumber": "KL07AB1234",
		"cf":            "31-01-2024",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad date: expected 400, got %d", w.Code)
	}
}

func TestGetAllEmptyIs404(t *testing.T) {
	engine, _, mailer := newTestServer(t)
	token := registerAndVerify(t, engine, mailer, "empty@example.com")

	w := doJSON(t, engine, http.MethodGet, "/api/get-doc/all", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if msg, _ := decodeBody(t, w)["message"].(string); msg != "No documents found" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestRecentOrderingAndLimit(t *testing.T) {
	engine, conn, mailer := newTestServer(t)
	token := registerAndVerify(t, engine, mailer, "recent@example.com")
	seeded := seedDocs(t, conn, userID(t, conn, "recent@example.com"), 7)

	w := doJSON(t, engine, http.MethodGet, "/api/get-doc/recent", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("recent: expected 200, got %d", w.Code)
	}
	docs := documentsFrom(t, decodeBody(t, w))
	if len(docs) != 5 {
		t.Fatalf("expected default limit of 5, got %d", len(docs))
	}
	if docs[0]["vehicleNumber"] != seeded[6].VehicleNumber {
		t.Fatalf("expected newest doc first, got %v", docs[0]["vehicleNumber"])
	}

	w = doJSON(t, engine, http.MethodGet, "/api/get-doc/recent?limit=2", token, nil)
	docs = documentsFrom(t, decodeBody(t, w))
	if len(docs) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(docs))
	}

	// Negative and unparseable limits fall back to the default.
	for _, limit := range []string{"-3", "abc"} {
		w = doJSON(t, engine, http.MethodGet, "/api/get-doc/recent?limit="+limit, token, nil)
		docs = documentsFrom(t, decodeBody(t, w))
		if len(docs) != 5 {
			t.Fatalf("limit=%s: expected fallback to 5, got %d", limit, len(docs))
		}
	}

	w = doJSON(t, engine, http.MethodGet, "/api/get-doc/all", token, nil)
	body := decodeBody(t, w)
	if count, _ := body["count"].(float64); int(count) != 7 {
		t.Fatalf("expected all 7 documents, got %v", body["count"])
	}
	all := documentsFrom(t, body)
	if all[0]["vehicleNumber"] != seeded[6].VehicleNumber || all[6]["vehicleNumber"] != seeded[0].VehicleNumber {
		t.Fatalf("expected newest-first ordering across the full listing")
	}
}

func TestFilterEndpoint(t *testing.T) {
	engine, conn, mailer := newTestServer(t)
	token := registerAndVerify(t, engine, mailer, "filter@example.com")
	ownerID := userID(t, conn, "filter@example.com")

	cf := time.Date(2024, 1, 31, 18, 0, 0, 0, time.UTC)
	doc := models.Document{
		Owner:         "Anita Menon",
		VehicleNumber: "KA01XY9999",
		CF:            &cf,
		UserID:        ownerID,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if errCreate := conn.Create(&doc).Error; errCreate != nil {
		t.Fatalf("seed doc: %v", errCreate)
	}

	w := doJSON(t, engine, http.MethodGet, "/api/get-doc/filter", token, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("no params: expected 400, got %d", w.Code)
	}
	if msg, _ := decodeBody(t, w)["message"].(string); msg != "Please provide at least one filter parameter." {
		t.Fatalf("unexpected message %q", msg)
	}

	w = doJSON(t, engine, http.MethodGet, "/api/get-doc/filter?cfStart=2024-02-01&cfEnd=2024-01-01", token, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("inverted range: expected 400, got %d", w.Code)
	}
	if msg, _ := decodeBody(t, w)["message"].(string); msg != "Start date cannot be after end date" {
		t.Fatalf("unexpected message %q", msg)
	}

	w = doJSON(t, engine, http.MethodGet, "/api/get-doc/filter?cfStart=not-a-date", token, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad date: expected 400, got %d", w.Code)
	}

	// cfEnd widens to end of day, so the 18:00 record is inside the window.
	w = doJSON(t, engine, http.MethodGet, "/api/get-doc/filter?cfStart=2024-01-01&cfEnd=2024-01-31", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("match: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if count, _ := body["count"].(float64); int(count) != 1 {
		t.Fatalf("expected one match, got %v", body["count"])
	}

	w = doJSON(t, engine, http.MethodGet, "/api/get-doc/filter?owner=nobody", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("no matches: expected 404, got %d", w.Code)
	}
	if msg, _ := decodeBody(t, w)["message"].(string); msg != "No documents found matching the criteria" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestUpdateDocument(t *testing.T) {
	engine, conn, mailer := newTestServer(t)
	token := registerAndVerify(t, engine, mailer, "update@example.com")
	seeded := seedDocs(t, conn, userID(t, conn, "update@example.com"), 1)

	// A vehicleNumber field in the payload is ignored, not applied.
	w := doJSON(t, engine, http.MethodPut, fmt.Sprintf("/api/doc/%d", seeded[0].ID), token, gin.H{
		"owner":         "New Owner",
		"vehicleNumber": "CHANGED123",
		"remarks":       "  updated  ",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	doc, _ := body["document"].(map[string]any)
	if doc["owner"] != "New Owner" {
		t.Fatalf("expected owner update, got %v", doc["owner"])
	}
	if doc["vehicleNumber"] != seeded[0].VehicleNumber {
		t.Fatalf("vehicle number must be immutable, got %v", doc["vehicleNumber"])
	}
	if doc["remarks"] != "updated" {
		t.Fatalf("expected trimmed remarks, got %v", doc["remarks"])
	}

	w = doJSON(t, engine, http.MethodPut, fmt.Sprintf("/api/doc/%d", seeded[0].ID), token, gin.H{
		"owner": "   ",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank owner: expected 400, got %d", w.Code)
	}

	w = doJSON(t, engine, http.MethodPut, "/api/doc/999999", token, gin.H{
		"owner": "Nobody",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown id: expected 404, got %d", w.Code)
	}
}

func TestUpdatePhonePresenceSemantics(t *testing.T) {
	engine, _, mailer := newTestServer(t)
	token := registerAndVerify(t, engine, mailer, "phone@example.com")

	w := doJSON(t, engine, http.MethodPost, "/api/add-doc", token, gin.H{
		"owner":         "Ravi Kumar",
		"vehicleNumber": "KL07PH0001",
		"phone":         9876543210,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("add-doc: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	created, _ := decodeBody(t, w)["document"].(map[string]any)
	id := int64(created["id"].(float64))

	// An absent phone key leaves the stored value alone.
	w = doJSON(t, engine, http.MethodPut, fmt.Sprintf("/api/doc/%d", id), token, gin.H{
		"remarks": "touched",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update without phone: expected 200, got %d", w.Code)
	}
	doc, _ := decodeBody(t, w)["document"].(map[string]any)
	if phone, _ := doc["phone"].(float64); int64(phone) != 9876543210 {
		t.Fatalf("absent key must not clear the phone, got %v", doc["phone"])
	}

	// An explicit null clears it.
	w = doJSON(t, engine, http.MethodPut, fmt.Sprintf("/api/doc/%d", id), token, gin.H{
		"phone": nil,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update with null phone: expected 200, got %d", w.Code)
	}
	doc, _ = decodeBody(t, w)["document"].(map[string]any)
	if _, has := doc["phone"]; has {
		t.Fatalf("null phone must clear the stored value, got %v", doc["phone"])
	}

	// So does an empty string.
	w = doJSON(t, engine, http.MethodPut, fmt.Sprintf("/api/doc/%d", id), token, gin.H{
		"phone": "9876543210",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("restore phone: expected 200, got %d", w.Code)
	}
	w = doJSON(t, engine, http.MethodPut, fmt.Sprintf("/api/doc/%d", id), token, gin.H{
		"phone": "",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update with empty phone: expected 200, got %d", w.Code)
	}
	doc, _ = decodeBody(t, w)["document"].(map[string]any)
	if _, has := doc["phone"]; has {
		t.Fatalf("empty phone must clear the stored value, got %v", doc["phone"])
	}
}

func TestDocumentsAreOwnerScoped(t *testing.T) {
	engine, conn, mailer := newTestServer(t)
	ownerToken := registerAndVerify(t, engine, mailer, "owner@example.com")
	otherToken := registerAndVerify(t, engine, mailer, "other@example.com")
	seeded := seedDocs(t, conn, userID(t, conn, "owner@example.com"), 1)

	w := doJSON(t, engine, http.MethodGet, "/api/get-doc/all", otherToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("other user listing: expected 404, got %d", w.Code)
	}

	w = doJSON(t, engine, http.MethodPut, fmt.Sprintf("/api/doc/%d", seeded[0].ID), otherToken, gin.H{
		"owner": "Hijacked",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("cross-user update: expected 404, got %d", w.Code)
	}
	if msg, _ := decodeBody(t, w)["message"].(string); msg != "Document not found or unauthorized" {
		t.Fatalf("unexpected message %q", msg)
	}

	w = doJSON(t, engine, http.MethodDelete, fmt.Sprintf("/api/doc/%d", seeded[0].ID), otherToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("cross-user delete: expected 404, got %d", w.Code)
	}

	var doc models.Document
	if errFind := conn.First(&doc, seeded[0].ID).Error; errFind != nil {
		t.Fatalf("document must survive cross-user attempts: %v", errFind)
	}
	if doc.Owner == "Hijacked" {
		t.Fatalf("cross-user update must not modify the document")
	}

	w = doJSON(t, engine, http.MethodDelete, fmt.Sprintf("/api/doc/%d", seeded[0].ID), ownerToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("owner delete: expected 200, got %d", w.Code)
	}

	w = doJSON(t, engine, http.MethodDelete, fmt.Sprintf("/api/doc/%d", seeded[0].ID), ownerToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("repeat delete: expected 404, got %d", w.Code)
	}
}
