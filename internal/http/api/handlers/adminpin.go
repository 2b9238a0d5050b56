package handlers

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/lekha-app/lekha-server/internal/mail"
	"github.com/lekha-app/lekha-server/internal/models"
	"github.com/lekha-app/lekha-server/internal/security"
)

const (
	// adminOTPTTL is the validity window for PIN-setup codes.
	adminOTPTTL = 10 * time.Minute
	// pinSetupWindow is how long SetPin stays allowed after OTP verification.
	pinSetupWindow = 10 * time.Minute
)

// pinPattern matches exactly four digits.
var pinPattern = regexp.MustCompile(`^\d{4}$`)

// AdminPinHandler manages the admin PIN lifecycle.
//
// The flow is password re-verification (InitSetup), emailed code check
// (VerifyOtp), then SetPin inside the setup window. VerifyPin guards
// destructive document operations and is repeatable.
type AdminPinHandler struct {
	db     *gorm.DB
	mailer mail.Mailer
}

// NewAdminPinHandler constructs an AdminPinHandler.
func NewAdminPinHandler(db *gorm.DB, mailer mail.Mailer) *AdminPinHandler {
	return &AdminPinHandler{db: db, mailer: mailer}
}

// Status reports whether an admin PIN is currently set.
func (h *AdminPinHandler) Status(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "isAdminPinSet": user.IsAdminPinSet})
}

// initSetupRequest defines the request body for PIN setup initiation.
type initSetupRequest struct {
	Password string `json:"password"`
}

// InitSetup re-verifies the password and mails a PIN-setup code.
func (h *AdminPinHandler) InitSetup(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not found"})
		return
	}

	var body initSetupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid json"})
		return
	}
	if body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Password is required"})
		return
	}
	if !security.CheckPassword(user.Password, body.Password) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Incorrect password"})
		return
	}

	code, errGen := security.GenerateOTP()
	if errGen != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to start PIN setup"})
		return
	}
	hash, errHash := security.HashCode(code)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to start PIN setup"})
		return
	}

	// Overwrites any pending setup code; an earlier in-flight code becomes
	// invalid immediately.
	expiry := time.Now().UTC().Add(adminOTPTTL)
	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"admin_otp":              hash,
			"admin_otp_expiry":       expiry,
			"admin_pin_setup_expiry": nil,
			"updated_at":             time.Now().UTC(),
		})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to start PIN setup"})
		return
	}

	if errMail := h.mailer.SendAdminPinSetup(user.Email, code); errMail != nil {
		log.WithError(errMail).Error("admin pin: send setup mail failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to send OTP email"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "OTP sent to admin email. Verify OTP to proceed.",
	})
}

// verifyAdminOtpRequest defines the request body for setup-code verification.
type verifyAdminOtpRequest struct {
	OTP string `json:"otp"`
}

// VerifyOtp checks the PIN-setup code and opens the SetPin window.
func (h *AdminPinHandler) VerifyOtp(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not found"})
		return
	}

	var body verifyAdminOtpRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid json"})
		return
	}
	otp := strings.TrimSpace(body.OTP)
	if otp == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "OTP is required"})
		return
	}

	if user.AdminOTP == "" || user.AdminOTPExpiry == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "No admin OTP found. Start setup again."})
		return
	}
	if user.AdminOTPExpiry.Before(time.Now().UTC()) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "OTP expired. Request new OTP."})
		return
	}
	if !security.CheckCode(user.AdminOTP, otp) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid OTP"})
		return
	}

	setupExpiry := time.Now().UTC().Add(pinSetupWindow)
	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"admin_otp":              "",
			"admin_otp_expiry":       nil,
			"admin_pin_setup_expiry": setupExpiry,
			"updated_at":             time.Now().UTC(),
		})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to verify OTP"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "OTP verified successfully. You may now set a new Admin PIN.",
	})
}

// setPinRequest defines the request body for setting the PIN.
type setPinRequest struct {
	Pin string `json:"pin"`
}

// SetPin stores a new 4-digit admin PIN inside the setup window.
func (h *AdminPinHandler) SetPin(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not found"})
		return
	}

	var body setPinRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid json"})
		return
	}
	if body.Pin == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "PIN is required"})
		return
	}
	if !pinPattern.MatchString(body.Pin) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "PIN must be exactly 4 numeric digits"})
		return
	}

	if user.AdminPinSetupExpiry == nil || user.AdminPinSetupExpiry.Before(time.Now().UTC()) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "OTP verification required. Start setup again."})
		return
	}

	hash, errHash := security.HashCode(body.Pin)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to set Admin PIN"})
		return
	}

	now := time.Now().UTC()
	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"admin_pin":              hash,
			"is_admin_pin_set":       true,
			"admin_pin_updated_at":   now,
			"admin_pin_setup_expiry": nil,
			"updated_at":             now,
		})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to set Admin PIN"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Admin PIN set successfully"})
}

// verifyPinRequest defines the request body for PIN verification.
type verifyPinRequest struct {
	Pin string `json:"pin"`
}

// VerifyPin checks the admin PIN before a destructive document operation.
// It has no side effects and may be called repeatedly.
func (h *AdminPinHandler) VerifyPin(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not found"})
		return
	}

	var body verifyPinRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid json"})
		return
	}
	if body.Pin == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "PIN is required"})
		return
	}

	if user.AdminPin == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Admin PIN is not set"})
		return
	}
	if !security.CheckCode(user.AdminPin, body.Pin) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid Admin PIN"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "PIN verified. Access granted."})
}
