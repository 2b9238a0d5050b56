package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lekha-app/lekha-server/internal/docfilter"
	"github.com/lekha-app/lekha-server/internal/models"
)

// defaultRecentLimit caps the recent-documents listing when no limit is given.
const defaultRecentLimit = 5

// DocumentHandler manages vehicle document records.
type DocumentHandler struct {
	db *gorm.DB
}

// NewDocumentHandler constructs a DocumentHandler.
func NewDocumentHandler(db *gorm.DB) *DocumentHandler {
	return &DocumentHandler{db: db}
}

// flexiblePhone accepts a phone number sent as a JSON number or string.
// Values that do not parse as an integer, including an explicit null, are
// treated as absent. present records whether the key appeared at all, so
// updates can tell "clear the phone" from "leave it alone".
type flexiblePhone struct {
	value   *int64
	present bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *flexiblePhone) UnmarshalJSON(data []byte) error {
	p.present = true
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		p.value = nil
		return nil
	}
	raw := string(trimmed)
	if strings.HasPrefix(raw, `"`) {
		var s string
		if errUnmarshal := json.Unmarshal(trimmed, &s); errUnmarshal != nil {
			return errUnmarshal
		}
		raw = strings.TrimSpace(s)
	}
	if raw == "" {
		p.value = nil
		return nil
	}
	n, errParse := strconv.ParseInt(raw, 10, 64)
	if errParse != nil {
		p.value = nil
		return nil
	}
	p.value = &n
	return nil
}

// normalizeDirTags validates and uppercases documents-in-record tags.
func normalizeDirTags(tags []string) (datatypes.JSON, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	seen := map[string]bool{}
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		upper := strings.ToUpper(strings.TrimSpace(tag))
		if upper == "" {
			continue
		}
		valid := false
		for _, known := range models.DirTags {
			if upper == known {
				valid = true
				break
			}
		}
		if !valid {
			return nil, fmt.Errorf("invalid dir tag: %s", tag)
		}
		if seen[upper] {
			continue
		}
		seen[upper] = true
		normalized = append(normalized, upper)
	}
	if len(normalized) == 0 {
		return nil, nil
	}
	payload, errMarshal := json.Marshal(normalized)
	if errMarshal != nil {
		return nil, errMarshal
	}
	return datatypes.JSON(payload), nil
}

// parseOptionalDate parses an optional request date value.
func parseOptionalDate(raw string) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	t, err := docfilter.ParseDate(trimmed)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// createDocumentRequest defines the request body for document creation.
type createDocumentRequest struct {
	Owner         string        `json:"owner"`
	Phone         flexiblePhone `json:"phone"`
	VehicleNumber string        `json:"vehicleNumber"`
	DOR           string        `json:"dor"`
	ChasisNumber  string        `json:"chasisNumber"`
	CF            string        `json:"cf"`
	NP            string        `json:"np"`
	Auth          string        `json:"auth"`
	Remarks       string        `json:"remarks"`
	Dir           []string      `json:"dir"`
}

// Create adds a new document owned by the requesting user.
func (h *DocumentHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not found"})
		return
	}

	var body createDocumentRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid json"})
		return
	}

	owner := strings.TrimSpace(body.Owner)
	vehicleNumber := strings.ToUpper(strings.TrimSpace(body.VehicleNumber))
	if owner == "" || vehicleNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Owner and vehicle number are required"})
		return
	}

	dor, errDOR := parseOptionalDate(body.DOR)
	cf, errCF := parseOptionalDate(body.CF)
	np, errNP := parseOptionalDate(body.NP)
	auth, errAuth := parseOptionalDate(body.Auth)
	for _, errDate := range []error{errDOR, errCF, errNP, errAuth} {
		if errDate != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid date value"})
			return
		}
	}

	dir, errDir := normalizeDirTags(body.Dir)
	if errDir != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": errDir.Error()})
		return
	}

	now := time.Now().UTC()
	doc := models.Document{
		Owner:         owner,
		Phone:         body.Phone.value,
		VehicleNumber: vehicleNumber,
		DOR:           dor,
		ChasisNumber:  strings.TrimSpace(body.ChasisNumber),
		CF:            cf,
		NP:            np,
		Auth:          auth,
		Remarks:       strings.TrimSpace(body.Remarks),
		Dir:           dir,
		UserID:        user.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&doc).Error; errCreate != nil {
		log.WithError(errCreate).Error("documents: create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to add document"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"message":  "Document added successfully",
		"document": doc,
	})
}

// All returns every document of the requesting user, newest first.
func (h *DocumentHandler) All(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not found"})
		return
	}

	var docs []models.Document
	errFind := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Find(&docs).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch documents"})
		return
	}
	if len(docs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "No documents found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(docs), "documents": docs})
}

// Recent returns the most recently created documents, newest first.
func (h *DocumentHandler) Recent(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not found"})
		return
	}

	limit := defaultRecentLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if parsed, errParse := strconv.Atoi(raw); errParse == nil && parsed > 0 {
			limit = parsed
		}
	}

	var docs []models.Document
	errFind := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Limit(limit).
		Find(&docs).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch recent documents"})
		return
	}
	if len(docs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "No documents found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(docs), "documents": docs})
}

// Filter returns documents matching the supplied filter parameters.
func (h *DocumentHandler) Filter(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not found"})
		return
	}

	filter, errBuild := docfilter.Build(docfilter.Params{
		Owner:         c.Query("owner"),
		VehicleNumber: c.Query("vehicleNumber"),
		CFStart:       c.Query("cfStart"),
		CFEnd:         c.Query("cfEnd"),
		NPStart:       c.Query("npStart"),
		NPEnd:         c.Query("npEnd"),
		AuthStart:     c.Query("authStart"),
		AuthEnd:       c.Query("authEnd"),
	})
	if errBuild != nil {
		switch {
		case errors.Is(errBuild, docfilter.ErrNoFilter):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Please provide at least one filter parameter."})
		case errors.Is(errBuild, docfilter.ErrInvalidRange):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Start date cannot be after end date"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid date value"})
		}
		return
	}

	q := h.db.WithContext(c.Request.Context()).
		Model(&models.Document{}).
		Where("user_id = ?", user.ID)
	q = filter.Apply(h.db, q)

	var docs []models.Document
	if errFind := q.Order("created_at DESC").Find(&docs).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch documents"})
		return
	}
	if len(docs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "No documents found matching the criteria"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(docs), "documents": docs})
}

// updateDocumentRequest defines the request body for document updates.
// The vehicle number is immutable after creation and is never accepted here.
type updateDocumentRequest struct {
	Owner        *string       `json:"owner"`
	Phone        flexiblePhone `json:"phone"`
	DOR          *string       `json:"dor"`
	ChasisNumber *string       `json:"chasisNumber"`
	CF           *string       `json:"cf"`
	NP           *string       `json:"np"`
	Auth         *string       `json:"auth"`
	Remarks      *string       `json:"remarks"`
	Dir          *[]string     `json:"dir"`
}

// Update modifies a document owned by the requesting user.
func (h *DocumentHandler) Update(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not found"})
		return
	}
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}

	var body updateDocumentRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Owner != nil {
		owner := strings.TrimSpace(*body.Owner)
		if owner == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Owner cannot be empty"})
			return
		}
		updates["owner"] = owner
	}
	if body.Phone.present {
		updates["phone"] = body.Phone.value
	}
	if body.ChasisNumber != nil {
		updates["chasis_number"] = strings.TrimSpace(*body.ChasisNumber)
	}
	if body.Remarks != nil {
		updates["remarks"] = strings.TrimSpace(*body.Remarks)
	}
	for _, field := range []struct {
		column string
		value  *string
	}{
		{"dor", body.DOR},
		{"cf", body.CF},
		{"np", body.NP},
		{"auth", body.Auth},
	} {
		if field.value == nil {
			continue
		}
		parsed, errDate := parseOptionalDate(*field.value)
		if errDate != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid date value"})
			return
		}
		updates[field.column] = parsed
	}
	if body.Dir != nil {
		dir, errDir := normalizeDirTags(*body.Dir)
		if errDir != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": errDir.Error()})
			return
		}
		updates["dir"] = dir
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Document{}).
		Where("id = ? AND user_id = ?", id, user.ID).
		Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to update document"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Document not found or unauthorized"})
		return
	}

	var doc models.Document
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", id, user.ID).
		First(&doc).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch updated document"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Document updated successfully",
		"document": doc,
	})
}

// Delete removes a document owned by the requesting user.
func (h *DocumentHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not found"})
		return
	}
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", id, user.ID).
		Delete(&models.Document{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to delete document"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Document not found or unauthorized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Document deleted successfully"})
}
