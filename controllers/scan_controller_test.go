package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErfanAalam/MyFootFirst2-sub000/models"
)

func TestGetCustomerScan(t *testing.T) {
	f := newSessionFixture(t)

	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC).UnixMilli()
	scan := &models.ScanMetadata{
		RetailerID: testRetailer,
		CustomerID: testCustomer,
		Status:     models.ScanStatusCompleted,
		Images: []models.ScanImage{
			{Foot: "left", View: "left", RemoteURL: "https://expired.example/a", Timestamp: ts},
			{Foot: "left", View: "top", RemoteURL: "https://expired.example/b", Timestamp: ts},
		},
	}
	require.NoError(t, f.scans.MergeScan(context.Background(), scan))
	f.blobs.Seed(models.ScanObjectKey(testCustomer, ts, "left", "left"), []byte("a"))

	w, response := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/customers/"+testCustomer+"/scan", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := response["data"].(map[string]interface{})
	assert.Equal(t, "completed", data["status"])
	images := data["images"].([]interface{})
	require.Len(t, images, 2)

	first := images[0].(map[string]interface{})
	assert.Equal(t, "https://blobs.test/"+models.ScanObjectKey(testCustomer, ts, "left", "left"), first["url"])
	// a URL that cannot be refreshed keeps the stored one
	second := images[1].(map[string]interface{})
	assert.Equal(t, "https://expired.example/b", second["url"])
}

func TestGetCustomerScan_NotFound(t *testing.T) {
	f := newSessionFixture(t)

	w, response := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/customers/nobody/scan", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SCAN_NOT_FOUND", errorCode(response))
}

func TestGetCustomerScan_RequiresRetailer(t *testing.T) {
	f := newSessionFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/customers/"+testCustomer+"/scan", nil)
	req.Header.Set("X-Test-User", "none")
	w, response := f.do(req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "RETAILER_REQUIRED", errorCode(response))
}
