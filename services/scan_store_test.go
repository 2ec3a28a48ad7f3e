package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ErfanAalam/MyFootFirst2-sub000/models"
)

// newTestScanStore opens a private in-memory database with the scan tables
func newTestScanStore(t *testing.T) *GormScanStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	store := NewGormScanStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func sixImages(ts int64) []models.ScanImage {
	var images []models.ScanImage
	for _, foot := range []string{"left", "right"} {
		for _, view := range []string{"left", "right", "top"} {
			images = append(images, models.ScanImage{
				Foot:      foot,
				View:      view,
				RemoteURL: "https://blobs.test/" + models.ScanObjectKey("C123", ts, foot, view),
				Timestamp: ts,
			})
		}
	}
	return images
}

func TestGormScanStore_GetMissing(t *testing.T) {
	store := newTestScanStore(t)

	_, err := store.GetScan(context.Background(), "R1", "C123")
	assert.ErrorIs(t, err, ErrScanNotFound)
}

func TestGormScanStore_MergeCreates(t *testing.T) {
	store := newTestScanStore(t)
	ctx := context.Background()

	scan := &models.ScanMetadata{
		RetailerID: "R1",
		CustomerID: "C123",
		Status:     models.ScanStatusCompleted,
		Images:     sixImages(1000),
	}
	require.NoError(t, store.MergeScan(ctx, scan))
	assert.NotZero(t, scan.ID)

	got, err := store.GetScan(ctx, "R1", "C123")
	require.NoError(t, err)
	assert.Equal(t, models.ScanStatusCompleted, got.Status)
	require.Len(t, got.Images, 6)
	assert.Equal(t, "left", got.Images[0].Foot)
	assert.Equal(t, "left", got.Images[0].View)
	assert.Equal(t, int64(1000), got.Images[0].Timestamp)
}

func TestGormScanStore_MergeReplacesImages(t *testing.T) {
	store := newTestScanStore(t)
	ctx := context.Background()

	first := &models.ScanMetadata{RetailerID: "R1", CustomerID: "C123", Status: models.ScanStatusCompleted, Images: sixImages(1000)}
	require.NoError(t, store.MergeScan(ctx, first))

	second := &models.ScanMetadata{
		RetailerID: "R1",
		CustomerID: "C123",
		Status:     models.ScanStatusCompleted,
		Images:     sixImages(2000),
		UpdatedAt:  time.Now().Add(time.Minute),
	}
	require.NoError(t, store.MergeScan(ctx, second))
	assert.Equal(t, first.ID, second.ID, "merge must update the existing record")

	got, err := store.GetScan(ctx, "R1", "C123")
	require.NoError(t, err)
	require.Len(t, got.Images, 6, "images are replaced, never appended")
	for _, img := range got.Images {
		assert.Equal(t, int64(2000), img.Timestamp)
	}
}

func TestGormScanStore_KeyedByRetailerAndCustomer(t *testing.T) {
	store := newTestScanStore(t)
	ctx := context.Background()

	require.NoError(t, store.MergeScan(ctx, &models.ScanMetadata{RetailerID: "R1", CustomerID: "C123", Status: models.ScanStatusCompleted, Images: sixImages(1)}))
	require.NoError(t, store.MergeScan(ctx, &models.ScanMetadata{RetailerID: "R2", CustomerID: "C123", Status: models.ScanStatusPending}))

	r1, err := store.GetScan(ctx, "R1", "C123")
	require.NoError(t, err)
	assert.Len(t, r1.Images, 6)

	r2, err := store.GetScan(ctx, "R2", "C123")
	require.NoError(t, err)
	assert.Equal(t, models.ScanStatusPending, r2.Status)
	assert.Empty(t, r2.Images)
}

func TestGormScanStore_MergeRequiresKeys(t *testing.T) {
	store := newTestScanStore(t)
	err := store.MergeScan(context.Background(), &models.ScanMetadata{CustomerID: "C123"})
	assert.Error(t, err)
}

func TestClassifyStoreError(t *testing.T) {
	err := classifyStoreError(errors.New("attempt to write a readonly database"))
	assert.ErrorIs(t, err, ErrMetadataPermission)

	err = classifyStoreError(errors.New("disk I/O error"))
	assert.NotErrorIs(t, err, ErrMetadataPermission)
}
