package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/lekha-app/lekha-server/internal/config"
	dbutil "github.com/lekha-app/lekha-server/internal/db"
	"github.com/lekha-app/lekha-server/internal/mail"
	"github.com/lekha-app/lekha-server/internal/models"
	"github.com/lekha-app/lekha-server/internal/security"
)

// accountOTPTTL is the validity window for account verification codes.
const accountOTPTTL = 5 * time.Minute

// AuthHandler manages registration, login, and email verification.
type AuthHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
	mailer mail.Mailer
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig, mailer mail.Mailer) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg, mailer: mailer}
}

// registerRequest defines the request body for registration.
type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an unverified account and mails a verification code.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	email := strings.ToLower(strings.TrimSpace(body.Email))
	password := body.Password
	if username == "" || email == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Required fields are missing"})
		return
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Registration failed"})
		return
	}

	now := time.Now().UTC()
	user := models.User{
		Username:  username,
		Email:     email,
		Password:  hash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&user).Error; errCreate != nil {
		if dbutil.IsUniqueViolation(errCreate) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "User already exists"})
			return
		}
		log.WithError(errCreate).Error("register: create user failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Registration failed"})
		return
	}

	if errOTP := h.issueAccountOTP(c, &user); errOTP != nil {
		log.WithError(errOTP).Error("register: issue otp failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to send verification email"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Registration successful. Verify the OTP sent to your email.",
	})
}

// verifyOtpRequest defines the request body for account verification.
type verifyOtpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyOtp checks a pending verification code and issues a session token.
func (h *AuthHandler) VerifyOtp(c *gin.Context) {
	var body verifyOtpRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	otp := strings.TrimSpace(body.OTP)
	if email == "" || otp == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Required fields are missing"})
		return
	}

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid or expired OTP"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Verification failed"})
		return
	}

	if user.OTP == "" || user.OTPExpiry == nil ||
		user.OTPExpiry.Before(time.Now().UTC()) ||
		!security.CheckCode(user.OTP, otp) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid or expired OTP"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"is_verified": true,
			"otp":         "",
			"otp_expiry":  nil,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Verification failed"})
		return
	}
	user.IsVerified = true

	token, errToken := security.IssueSessionToken(h.jwtCfg.Secret, user.ID, h.jwtCfg.Expiry)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Verification failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Account verified successfully",
		"user":    userResponse(user),
		"token":   token,
	})
}

// loginRequest defines the request body for login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a user. Unverified accounts get a fresh verification
// code instead of a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Required fields are missing"})
		return
	}

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid email or password"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Login failed"})
		return
	}
	if !security.CheckPassword(user.Password, body.Password) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid email or password"})
		return
	}

	if !user.IsVerified {
		// The message never reveals whether this is the first code or a resend.
		if errOTP := h.issueAccountOTP(c, &user); errOTP != nil {
			log.WithError(errOTP).Error("login: issue otp failed")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to send verification email"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":              true,
			"requiresVerification": true,
			"email":                user.Email,
			"message":              "Verification required. An OTP has been sent to your email.",
		})
		return
	}

	token, errToken := security.IssueSessionToken(h.jwtCfg.Secret, user.ID, h.jwtCfg.Expiry)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"user":    userResponse(user),
		"token":   token,
	})
}

// issueAccountOTP stores a fresh hashed verification code on the user and
// mails it. Any previously pending code becomes invalid.
func (h *AuthHandler) issueAccountOTP(c *gin.Context, user *models.User) error {
	code, errGen := security.GenerateOTP()
	if errGen != nil {
		return errGen
	}
	hash, errHash := security.HashCode(code)
	if errHash != nil {
		return errHash
	}

	expiry := time.Now().UTC().Add(accountOTPTTL)
	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"otp":        hash,
			"otp_expiry": expiry,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}

	return h.mailer.SendAccountVerification(user.Email, code)
}

// userResponse shapes the user payload returned to clients.
func userResponse(user models.User) gin.H {
	return gin.H{
		"id":            user.ID,
		"username":      user.Username,
		"email":         user.Email,
		"isVerified":    user.IsVerified,
		"isAdminPinSet": user.IsAdminPinSet,
		"createdAt":     user.CreatedAt,
	}
}
