package client

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradebook/tradebook-backend/pkg/activitylog"
	"github.com/tradebook/tradebook-backend/pkg/database"
)

type Handler struct {
	db    *gorm.DB
	audit *activitylog.Logger
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, audit: activitylog.NewLogger(db)}
}

type ClientRequest struct {
	Name            string `json:"name" binding:"required"`
	Phone           string `json:"phone"`
	Email           string `json:"email" binding:"omitempty,email"`
	BillingAddress  string `json:"billing_address"`
	ShippingAddress string `json:"shipping_address"`
	GSTIN           string `json:"gstin" binding:"gstin"`
}

// List returns all clients
func (h *Handler) List(c *gin.Context) {
	q := h.db.Order("name ASC")
	if c.Query("active") == "true" {
		q = q.Where("is_active = ?", true)
	}
	if search := c.Query("search"); search != "" {
		q = q.Where("name ILIKE ?", "%"+search+"%")
	}

	var clients []database.Client
	if err := q.Find(&clients).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch clients"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": clients})
}

// Get returns a single client
func (h *Handler) Get(c *gin.Context) {
	var client database.Client
	if err := h.db.Where("id = ?", c.Param("id")).First(&client).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": client})
}

// Create adds a client
func (h *Handler) Create(c *gin.Context) {
	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client := database.Client{
		Name:            req.Name,
		Phone:           req.Phone,
		Email:           req.Email,
		BillingAddress:  req.BillingAddress,
		ShippingAddress: req.ShippingAddress,
		GSTIN:           req.GSTIN,
		IsActive:        true,
	}
	if err := h.db.Create(&client).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create client"})
		return
	}

	h.audit.LogCreate(c, "client", client.ID, client)
	c.JSON(http.StatusCreated, gin.H{"data": client})
}

// Update edits client master data. The credit balance is never edited
// here; it only moves through sales and payments.
func (h *Handler) Update(c *gin.Context) {
	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var client database.Client
	if err := h.db.Where("id = ?", c.Param("id")).First(&client).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		return
	}

	updates := map[string]interface{}{
		"name":             req.Name,
		"phone":            req.Phone,
		"email":            req.Email,
		"billing_address":  req.BillingAddress,
		"shipping_address": req.ShippingAddress,
		"gstin":            req.GSTIN,
	}
	if err := h.db.Model(&client).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update client"})
		return
	}

	h.audit.LogUpdate(c, "client", client.ID, updates)
	c.JSON(http.StatusOK, gin.H{"data": client})
}

// ToggleActive flips the client's active flag
func (h *Handler) ToggleActive(c *gin.Context) {
	var client database.Client
	if err := h.db.Where("id = ?", c.Param("id")).First(&client).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		return
	}

	client.IsActive = !client.IsActive
	if err := h.db.Save(&client).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update client"})
		return
	}

	h.audit.LogUpdate(c, "client", client.ID, gin.H{"is_active": client.IsActive})
	c.JSON(http.StatusOK, gin.H{"data": client})
}

// GetStats returns sales totals and the open receivable position
func (h *Handler) GetStats(c *gin.Context) {
	var client database.Client
	if err := h.db.Where("id = ?", c.Param("id")).First(&client).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		return
	}

	var salesCount int64
	h.db.Model(&database.Sale{}).Where("client_id = ?", client.ID).Count(&salesCount)

	var totals struct {
		TotalSales decimal.Decimal
	}
	h.db.Model(&database.Sale{}).
		Select("COALESCE(SUM(total), 0) as total_sales").
		Where("client_id = ?", client.ID).
		Scan(&totals)

	var openOrders int64
	h.db.Model(&database.Order{}).
		Where("client_id = ? AND status = ?", client.ID, database.OrderPending).
		Count(&openOrders)

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"sales_count":    salesCount,
		"total_sales":    totals.TotalSales,
		"open_orders":    openOrders,
		"credit_balance": client.CreditBalance,
	}})
}
