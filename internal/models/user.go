package models

import "time"

// User represents an account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null"`             // Display name.
	Email    string `gorm:"type:text;not null;uniqueIndex"` // Unique email address.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	IsVerified bool       `gorm:"not null;default:false"` // Whether the email has been verified.
	OTP        string     `gorm:"type:text"`              // Hashed pending verification code.
	OTPExpiry  *time.Time `gorm:"type:timestamp"`         // Verification code expiry.

	AdminPin            string     `gorm:"type:text"`              // Hashed admin PIN.
	IsAdminPinSet       bool       `gorm:"not null;default:false"` // Whether an admin PIN exists.
	AdminPinUpdatedAt   *time.Time `gorm:"type:timestamp"`         // Last PIN change timestamp.
	AdminOTP            string     `gorm:"type:text"`              // Hashed PIN-setup code.
	AdminOTPExpiry      *time.Time `gorm:"type:timestamp"`         // PIN-setup code expiry.
	AdminPinSetupExpiry *time.Time `gorm:"type:timestamp"`         // Window in which SetPin is allowed.

	Documents []Document `gorm:"foreignKey:UserID"` // Owned documents.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
