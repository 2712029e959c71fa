package purchase

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tradebook/tradebook-backend/internal/stockledger"
	"github.com/tradebook/tradebook-backend/pkg/activitylog"
	"github.com/tradebook/tradebook-backend/pkg/database"
	"github.com/tradebook/tradebook-backend/pkg/numbering"
)

// ErrImmutable marks a purchase whose every line has been delivered;
// such purchases accept no further edits or deletion.
var ErrImmutable = errors.New("purchase is fully delivered and immutable")

type Handler struct {
	db    *gorm.DB
	audit *activitylog.Logger
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, audit: activitylog.NewLogger(db)}
}

type PurchaseItemRequest struct {
	ProductID uuid.UUID       `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price" binding:"required"`
}

type CreatePurchaseRequest struct {
	VendorID      uuid.UUID             `json:"vendor_id" binding:"required"`
	ClientID      *uuid.UUID            `json:"client_id"`
	PaymentMode   string                `json:"payment_mode"`
	Description   string                `json:"description"`
	FulfilsDemand bool                  `json:"fulfils_demand"`
	Items         []PurchaseItemRequest `json:"items" binding:"required,min=1,dive"`
}

type UpdatePurchaseRequest struct {
	PaymentMode *string `json:"payment_mode"`
	Description *string `json:"description"`
}

type DeliverRequest struct {
	ItemIDs       []uuid.UUID     `json:"item_ids" binding:"required,min=1"`
	FreightCharge decimal.Decimal `json:"freight_charge"`
}

// List returns purchases, newest first. Sales staff see only their own.
func (h *Handler) List(c *gin.Context) {
	q := h.db.Scopes(database.VisibleTo(c.GetString("role"), c.GetString("user_id"))).
		Preload("Items").
		Preload("Items.Product").
		Preload("Vendor").
		Preload("Client").
		Order("created_at DESC")
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var purchases []database.Purchase
	if err := q.Find(&purchases).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch purchases"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": purchases})
}

// Get returns a single purchase
func (h *Handler) Get(c *gin.Context) {
	purchase, ok := h.fetch(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": purchase})
}

// Create records a purchase receipt: header plus lines, every line's
// quantity landing as a new stock batch in the product's pooled bucket
// valued at quantity x unit price. When the purchase is flagged as
// fulfilling demand for the tagged client, each line also releases that
// much outstanding demand.
func (h *Handler) Create(c *gin.Context) {
	var req CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, item := range req.Items {
		if !item.Quantity.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Item quantity must be positive"})
			return
		}
	}

	userID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
		return
	}

	var vendor database.Vendor
	if err := h.db.Where("id = ? AND is_active = ?", req.VendorID, true).First(&vendor).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Vendor not found or inactive"})
		return
	}
	if req.ClientID != nil {
		var client database.Client
		if err := h.db.Where("id = ?", req.ClientID).First(&client).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Client not found"})
			return
		}
	}

	products := make(map[uuid.UUID]database.Product)
	for _, item := range req.Items {
		var product database.Product
		if err := h.db.Where("id = ? AND is_active = ?", item.ProductID, true).First(&product).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Product %s not found or inactive", item.ProductID)})
			return
		}
		products[item.ProductID] = product
	}

	now := time.Now()
	year := numbering.BusinessYear(now)

	var purchase database.Purchase
	for attempt := 0; attempt < numbering.MaxAttempts; attempt++ {
		seq, err := numbering.NextSequence(h.db, "purchases", numbering.PrefixPurchase, year)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to allocate purchase code"})
			return
		}
		seq += attempt

		purchase = database.Purchase{
			Code:        numbering.FormatCode(numbering.PrefixPurchase, year, seq),
			VendorID:    req.VendorID,
			ClientID:    req.ClientID,
			PaymentMode: req.PaymentMode,
			Description: req.Description,
			Status:      database.PurchaseOpen,
			CreatedByID: userID,
		}
		for _, item := range req.Items {
			product := products[item.ProductID]
			purchase.Items = append(purchase.Items, database.PurchaseItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Unit:      product.Unit,
				UnitPrice: item.UnitPrice,
				TaxRate:   product.TaxRate,
			})
		}

		err = h.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&purchase).Error; err != nil {
				return err
			}
			for _, item := range purchase.Items {
				value := item.Quantity.Mul(item.UnitPrice)
				if err := stockledger.ReceiveStock(tx, item.ProductID, item.Quantity, value, now); err != nil {
					return err
				}
				if req.FulfilsDemand {
					product := products[item.ProductID]
					scope := stockledger.Resolve(product.Classification, req.ClientID)
					if err := stockledger.ReleaseDemand(tx, item.ProductID, scope, item.Quantity, now); err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err == nil {
			break
		}
		if numbering.IsUniqueViolation(err) {
			logrus.WithField("code", purchase.Code).Info("purchase code collision, retrying")
			purchase = database.Purchase{}
			continue
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create purchase"})
		return
	}
	if purchase.ID == uuid.Nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Could not allocate a unique purchase code, please retry"})
		return
	}

	h.audit.LogCreate(c, "purchase", purchase.ID, gin.H{"code": purchase.Code})
	h.db.Preload("Items").Preload("Items.Product").Preload("Vendor").First(&purchase, purchase.ID)
	c.JSON(http.StatusCreated, gin.H{"data": purchase})
}

// Update edits header fields. Rejected once the purchase is fully
// delivered.
func (h *Handler) Update(c *gin.Context) {
	var req UpdatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	purchase, ok := h.fetch(c)
	if !ok {
		return
	}
	if fullyDelivered(purchase.Items) {
		c.JSON(http.StatusConflict, gin.H{"error": ErrImmutable.Error()})
		return
	}

	updates := map[string]interface{}{}
	if req.PaymentMode != nil {
		updates["payment_mode"] = *req.PaymentMode
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) > 0 {
		if err := h.db.Model(&purchase).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update purchase"})
			return
		}
	}

	h.audit.LogUpdate(c, "purchase", purchase.ID, updates)
	c.JSON(http.StatusOK, gin.H{"data": purchase})
}

// Delete soft-deletes a purchase. Rejected once fully delivered.
func (h *Handler) Delete(c *gin.Context) {
	purchase, ok := h.fetch(c)
	if !ok {
		return
	}
	if fullyDelivered(purchase.Items) {
		c.JSON(http.StatusConflict, gin.H{"error": ErrImmutable.Error()})
		return
	}

	if err := h.db.Delete(&purchase).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete purchase"})
		return
	}

	h.audit.LogDelete(c, "purchase", purchase.ID)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

// Deliver marks a subset of undelivered lines as delivered and splits
// the freight charge for this delivery event across only those lines,
// proportional to their subtotals; the split shares sum exactly to the
// charge. The purchase closes once every line is delivered.
func (h *Handler) Deliver(c *gin.Context) {
	var req DeliverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.FreightCharge.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Freight charge cannot be negative"})
		return
	}

	purchase, ok := h.fetch(c)
	if !ok {
		return
	}

	selected, err := selectUndelivered(purchase.Items, req.ItemIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	weights := make([]decimal.Decimal, len(selected))
	for i, item := range selected {
		weights[i] = item.Quantity.Mul(item.UnitPrice)
	}
	parts := stockledger.SplitProportional(weights, req.FreightCharge)

	deliveredCount := 0
	for _, item := range purchase.Items {
		if item.Delivered {
			deliveredCount++
		}
	}
	closing := deliveredCount+len(selected) == len(purchase.Items)

	err = h.db.Transaction(func(tx *gorm.DB) error {
		for i, item := range selected {
			err := tx.Model(&database.PurchaseItem{}).
				Where("id = ?", item.ID).
				Updates(map[string]interface{}{
					"delivered":            true,
					"freight_charge_split": item.FreightChargeSplit.Add(parts[i]),
				}).Error
			if err != nil {
				return err
			}
		}
		updates := map[string]interface{}{
			"freight_charge_total": purchase.FreightChargeTotal.Add(req.FreightCharge),
		}
		if closing {
			updates["status"] = database.PurchaseClosed
		}
		return tx.Model(&database.Purchase{}).
			Where("id = ?", purchase.ID).
			Updates(updates).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record delivery"})
		return
	}

	h.audit.LogActivity(c, "deliver", "purchase", &purchase.ID, gin.H{
		"code":           purchase.Code,
		"lines":          len(selected),
		"freight_charge": req.FreightCharge,
	})
	h.db.Preload("Items").Preload("Items.Product").Preload("Vendor").First(&purchase, purchase.ID)
	c.JSON(http.StatusOK, gin.H{"data": purchase})
}

// Demand returns the aggregated shortage view: every (product, scope)
// bucket whose outstanding demand exceeds available stock.
func (h *Handler) Demand(c *gin.Context) {
	var stocks []database.StockRecord
	if err := h.db.Find(&stocks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stock records"})
		return
	}
	var demands []database.DemandRecord
	if err := h.db.Preload("Product").Preload("Client").Find(&demands).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch demand records"})
		return
	}

	groups := stockledger.Aggregate(stocks, demands)

	type shortageRow struct {
		ProductID    uuid.UUID       `json:"product_id"`
		ProductName  string          `json:"product_name"`
		ClientID     *uuid.UUID      `json:"client_id"`
		ClientName   string          `json:"client_name,omitempty"`
		Available    decimal.Decimal `json:"available"`
		Demand       decimal.Decimal `json:"demand"`
		Shortage     decimal.Decimal `json:"shortage"`
		LastChangeAt *time.Time      `json:"last_change_at"`
	}

	names := lookupNames(demands)
	var rows []shortageRow
	for key, g := range groups {
		net := g.NetAvailable()
		if !net.IsNegative() {
			continue
		}
		row := shortageRow{
			ProductID:    key.ProductID,
			ProductName:  names.product[key.ProductID],
			ClientID:     key.Scope.ClientID(),
			Available:    g.Available,
			Demand:       g.Demand,
			Shortage:     net.Neg(),
			LastChangeAt: g.LastChangeAt,
		}
		if id := key.Scope.ClientID(); id != nil {
			row.ClientName = names.client[*id]
		}
		rows = append(rows, row)
	}

	c.JSON(http.StatusOK, gin.H{"data": rows})
}

type nameIndex struct {
	product map[uuid.UUID]string
	client  map[uuid.UUID]string
}

func lookupNames(demands []database.DemandRecord) nameIndex {
	idx := nameIndex{
		product: make(map[uuid.UUID]string),
		client:  make(map[uuid.UUID]string),
	}
	for _, d := range demands {
		idx.product[d.ProductID] = d.Product.Name
		if d.ClientID != nil && d.Client != nil {
			idx.client[*d.ClientID] = d.Client.Name
		}
	}
	return idx
}

func (h *Handler) fetch(c *gin.Context) (database.Purchase, bool) {
	var purchase database.Purchase
	err := h.db.Scopes(database.VisibleTo(c.GetString("role"), c.GetString("user_id"))).
		Where("id = ?", c.Param("id")).
		Preload("Items").
		Preload("Items.Product").
		Preload("Vendor").
		Preload("Client").
		First(&purchase).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Purchase not found"})
		return purchase, false
	}
	return purchase, true
}

// selectUndelivered resolves the requested line ids for a delivery
// event. Every id must belong to the purchase, be undelivered, and be
// listed only once; a repeated id would double its freight share and
// could close the purchase with other lines still open.
func selectUndelivered(items []database.PurchaseItem, ids []uuid.UUID) ([]database.PurchaseItem, error) {
	byID := make(map[uuid.UUID]database.PurchaseItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	var selected []database.PurchaseItem
	for _, id := range ids {
		if seen[id] {
			return nil, fmt.Errorf("Line %s is listed more than once", id)
		}
		seen[id] = true
		item, found := byID[id]
		if !found {
			return nil, fmt.Errorf("Line %s does not belong to this purchase", id)
		}
		if item.Delivered {
			return nil, fmt.Errorf("Line %s is already delivered", id)
		}
		selected = append(selected, item)
	}
	return selected, nil
}

func fullyDelivered(items []database.PurchaseItem) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if !item.Delivered {
			return false
		}
	}
	return true
}
