package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UserName        string         `gorm:"uniqueIndex;size:64;not null" json:"user_name"`
	Email           string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash    string         `gorm:"size:255" json:"-"`
	PhoneNumber     string         `gorm:"size:20" json:"phone_number,omitempty"`
	AccountType     string         `gorm:"size:20;not null;index" json:"account_type"` // buyer | seller
	SellerPackageID string         `gorm:"size:20" json:"seller_package_id,omitempty"`
	PhotoUploads    int            `gorm:"default:0" json:"photo_uploads"`
	VideoUploads    int            `gorm:"default:0" json:"video_uploads"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}
