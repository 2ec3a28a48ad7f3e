package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ErfanAalam/MyFootFirst2-sub000/models"
)

var (
	ErrScanNotFound       = errors.New("scan not found")
	ErrMetadataPermission = errors.New("scan store: permission denied")
)

// postgres insufficient_privilege
const pgInsufficientPrivilege = "42501"

// ScanStore persists scan metadata keyed by (retailer, customer)
type ScanStore interface {
	GetScan(ctx context.Context, retailerID, customerID string) (*models.ScanMetadata, error)
	MergeScan(ctx context.Context, scan *models.ScanMetadata) error
}

// GormScanStore is the ScanStore backed by the application database
type GormScanStore struct {
	db *gorm.DB
}

var _ ScanStore = (*GormScanStore)(nil)

// NewGormScanStore creates a scan store on db
func NewGormScanStore(db *gorm.DB) *GormScanStore {
	return &GormScanStore{db: db}
}

// AutoMigrate creates or updates the scan tables
func (s *GormScanStore) AutoMigrate() error {
	return s.db.AutoMigrate(&models.ScanMetadata{}, &models.ScanImage{})
}

// GetScan loads the scan with its images. It returns ErrScanNotFound when the
// customer has no scan for the retailer.
func (s *GormScanStore) GetScan(ctx context.Context, retailerID, customerID string) (*models.ScanMetadata, error) {
	var scan models.ScanMetadata
	err := s.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("retailer_id = ? AND customer_id = ?", retailerID, customerID).
		First(&scan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScanNotFound
		}
		return nil, classifyStoreError(fmt.Errorf("failed to load scan: %w", err))
	}
	return &scan, nil
}

// MergeScan creates or updates the scan for (retailer, customer). Status and
// UpdatedAt are overwritten and the image list is replaced wholesale.
func (s *GormScanStore) MergeScan(ctx context.Context, scan *models.ScanMetadata) error {
	if scan.RetailerID == "" || scan.CustomerID == "" {
		return fmt.Errorf("scan requires retailer and customer")
	}
	if scan.UpdatedAt.IsZero() {
		scan.UpdatedAt = time.Now()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.ScanMetadata{
			RetailerID: scan.RetailerID,
			CustomerID: scan.CustomerID,
			Status:     scan.Status,
			CreatedAt:  scan.UpdatedAt,
			UpdatedAt:  scan.UpdatedAt,
		}
		err := tx.Omit("Images").Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "retailer_id"}, {Name: "customer_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("failed to upsert scan: %w", err)
		}

		var stored models.ScanMetadata
		if err := tx.Where("retailer_id = ? AND customer_id = ?", scan.RetailerID, scan.CustomerID).
			First(&stored).Error; err != nil {
			return fmt.Errorf("failed to reload scan: %w", err)
		}

		if err := tx.Where("scan_id = ?", stored.ID).Delete(&models.ScanImage{}).Error; err != nil {
			return fmt.Errorf("failed to replace scan images: %w", err)
		}

		images := make([]models.ScanImage, len(scan.Images))
		for i, img := range scan.Images {
			img.ID = 0
			img.ScanID = stored.ID
			images[i] = img
		}
		if len(images) > 0 {
			if err := tx.Create(&images).Error; err != nil {
				return fmt.Errorf("failed to insert scan images: %w", err)
			}
		}

		scan.ID = stored.ID
		scan.CreatedAt = stored.CreatedAt
		scan.Images = images
		return nil
	})
	if err != nil {
		return classifyStoreError(err)
	}
	return nil
}

// classifyStoreError tags permission failures with ErrMetadataPermission
func classifyStoreError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgInsufficientPrivilege {
		return fmt.Errorf("%w: %w", ErrMetadataPermission, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission denied") || strings.Contains(msg, "readonly database") {
		return fmt.Errorf("%w: %w", ErrMetadataPermission, err)
	}
	return err
}
