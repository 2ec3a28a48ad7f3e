package controllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ErfanAalam/MyFootFirst2-sub000/middleware"
	"github.com/ErfanAalam/MyFootFirst2-sub000/services"
)

// ScanController serves stored scan records
type ScanController struct {
	scans services.ScanStore
	blobs services.BlobStore
}

// NewScanController creates a ScanController
func NewScanController(scans services.ScanStore, blobs services.BlobStore) *ScanController {
	return &ScanController{scans: scans, blobs: blobs}
}

// RegisterRoutes mounts the scan endpoints under rg
func (sc *ScanController) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/customers/:customer_id/scan", sc.GetCustomerScan)
}

// GetCustomerScan handles GET /api/v1/customers/:customer_id/scan - returns the customer's latest scan
func (sc *ScanController) GetCustomerScan(c *gin.Context) {
	retailerID, err := middleware.GetRetailerID(c)
	if err != nil || retailerID == "" {
		respondError(c, http.StatusForbidden, services.CodeRetailerRequired, "No retailer is linked to your account.")
		return
	}
	customerID := c.Param("customer_id")

	scan, err := sc.scans.GetScan(c.Request.Context(), retailerID, customerID)
	if err != nil {
		if errors.Is(err, services.ErrScanNotFound) {
			respondError(c, http.StatusNotFound, "SCAN_NOT_FOUND", "No scan found for this customer")
			return
		}
		log.Printf("Failed to load scan for customer %s: %v", customerID, err)
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load scan")
		return
	}

	// Stored URLs may be presigned and expired
	for i := range scan.Images {
		url, err := sc.blobs.URL(c.Request.Context(), scan.Images[i].ObjectKey(customerID))
		if err != nil {
			log.Printf("warning: could not refresh URL for %s: %v", scan.Images[i].ObjectKey(customerID), err)
			continue
		}
		scan.Images[i].RemoteURL = url
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    scan,
	})
}
