package models

import (
	"fmt"
	"time"
)

// Scan statuses
const (
	ScanStatusPending   = "pending"
	ScanStatusCompleted = "completed"
)

// ScanMetadata is the stored record of a customer's foot scan for one retailer.
// There is at most one per (retailer, customer); each upload replaces its images.
type ScanMetadata struct {
	ID         uint        `gorm:"primaryKey" json:"-"`
	RetailerID string      `gorm:"not null;uniqueIndex:idx_scan_retailer_customer" json:"retailer_id"`
	CustomerID string      `gorm:"not null;uniqueIndex:idx_scan_retailer_customer" json:"customer_id"`
	Status     string      `gorm:"not null;default:'pending'" json:"status"` // pending, completed
	Images     []ScanImage `gorm:"foreignKey:ScanID;constraint:OnDelete:CASCADE" json:"images"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// TableName specifies the table name for the ScanMetadata model
func (ScanMetadata) TableName() string {
	return "scans"
}

// ScanImage is one uploaded photo of a scan
type ScanImage struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	ScanID    uint   `gorm:"not null;uniqueIndex:idx_scan_image_step" json:"-"`
	Foot      string `gorm:"not null;uniqueIndex:idx_scan_image_step" json:"foot"` // left, right
	View      string `gorm:"not null;uniqueIndex:idx_scan_image_step" json:"view"` // left, right, top
	RemoteURL string `gorm:"not null" json:"url"`
	Timestamp int64  `gorm:"not null" json:"timestamp"` // unix millis of the upload batch
}

// TableName specifies the table name for the ScanImage model
func (ScanImage) TableName() string {
	return "scan_images"
}

// ObjectKey returns the storage key the image was uploaded under
func (i ScanImage) ObjectKey(customerID string) string {
	return ScanObjectKey(customerID, i.Timestamp, i.Foot, i.View)
}

// ScanObjectKey builds the storage key for a scan photo: {customer}/{timestamp}_{foot}_{view}.jpg
func ScanObjectKey(customerID string, timestamp int64, foot, view string) string {
	return fmt.Sprintf("%s/%d_%s_%s.jpg", customerID, timestamp, foot, view)
}
