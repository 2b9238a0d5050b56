package models

import (
	"time"

	"gorm.io/datatypes"
)

// DirTags lists the valid documents-in-record tags.
var DirTags = []string{"RC", "NP", "PP", "SLD"}

// Document represents a vehicle document record owned by one user.
type Document struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Owner         string     `gorm:"type:text;not null" json:"owner"`               // Owner name.
	Phone         *int64     `gorm:"type:bigint" json:"phone,omitempty"`            // Contact phone number.
	VehicleNumber string     `gorm:"type:text;not null;index" json:"vehicleNumber"` // Registration number, uppercased, immutable after create.
	DOR           *time.Time `gorm:"type:timestamp" json:"dor,omitempty"`           // Date of registration.
	ChasisNumber  string     `gorm:"type:text" json:"chasisNumber,omitempty"`       // Chassis number.

	CF   *time.Time `gorm:"type:timestamp;index" json:"cf,omitempty"`   // CF certificate expiry.
	NP   *time.Time `gorm:"type:timestamp;index" json:"np,omitempty"`   // NP certificate expiry.
	Auth *time.Time `gorm:"type:timestamp;index" json:"auth,omitempty"` // Authorization expiry.

	Remarks string         `gorm:"type:text" json:"remarks,omitempty"` // Free-form remarks.
	Dir     datatypes.JSON `gorm:"type:json" json:"dir,omitempty"`     // Documents-in-record tag set.

	UserID uint64 `gorm:"not null;index" json:"-"` // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID" json:"-"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"createdAt"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updatedAt"`       // Last update timestamp.
}
