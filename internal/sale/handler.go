package sale

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

	"github.com/tradebook/tradebook-backend/internal/order"
	"github.com/tradebook/tradebook-backend/internal/stockledger"
	"github.com/tradebook/tradebook-backend/pkg/activitylog"
	"github.com/tradebook/tradebook-backend/pkg/database"
	"github.com/tradebook/tradebook-backend/pkg/numbering"
)

type Handler struct {
	db    *gorm.DB
	audit *activitylog.Logger
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, audit: activitylog.NewLogger(db)}
}

type SaleItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	// ScopeClientID selects the stock bucket to fulfil from; nil means
	// the pooled bucket.
	ScopeClientID *uuid.UUID      `json:"scope_client_id"`
	Quantity      decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
}

type CreateSaleRequest struct {
	ClientID uuid.UUID         `json:"client_id" binding:"required"`
	OrderID  *uuid.UUID        `json:"order_id"`
	WithTax  *bool             `json:"with_tax"`
	Items    []SaleItemRequest `json:"items" binding:"required,min=1,dive"`
}

type InvoiceMetaRequest struct {
	InvoiceDate    time.Time `json:"invoice_date" binding:"required"`
	InvoiceDueDate time.Time `json:"invoice_due_date" binding:"required"`
	WithGST        bool      `json:"with_gst"`
}

// List returns sales, newest first. Sales staff see only their own.
func (h *Handler) List(c *gin.Context) {
	q := h.db.Scopes(database.VisibleTo(c.GetString("role"), c.GetString("user_id"))).
		Preload("Items").
		Preload("Items.Product").
		Preload("Client").
		Order("created_at DESC")
	if c.Query("delivered") == "false" {
		q = q.Where("delivered = ?", false)
	}

	var sales []database.Sale
	if err := q.Find(&sales).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sales"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sales})
}

// Get returns a single sale
func (h *Handler) Get(c *gin.Context) {
	sale, ok := h.fetch(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sale})
}

// Create records a sale. Within a single transaction: every line is
// re-validated against the chosen bucket's current availability and
// deducted from it; a linked pending order is converted using the
// order's original line quantities (stock moves by what is sold, demand
// by what was promised — the two are independent deductions); and the
// client's running credit balance grows by the grand total.
func (h *Handler) Create(c *gin.Context) {
	var req CreateSaleRequest
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

	var client database.Client
	if err := h.db.Where("id = ? AND is_active = ?", req.ClientID, true).First(&client).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Client not found or inactive"})
		return
	}

	var linkedOrder *database.Order
	if req.OrderID != nil {
		var o database.Order
		if err := h.db.Where("id = ?", req.OrderID).Preload("Items").First(&o).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Linked order not found"})
			return
		}
		if o.Status != database.OrderPending {
			c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Linked order is already %s", o.Status)})
			return
		}
		if o.ClientID != req.ClientID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Linked order belongs to a different client"})
			return
		}
		linkedOrder = &o
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

	withTax := true
	if req.WithTax != nil {
		withTax = *req.WithTax
	}

	now := time.Now()
	year := numbering.BusinessYear(now)

	var sale database.Sale
	for attempt := 0; attempt < numbering.MaxAttempts; attempt++ {
		seq, err := numbering.NextSequence(h.db, "sales", numbering.PrefixSale, year)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to allocate sale code"})
			return
		}
		seq += attempt

		sale = database.Sale{
			Code:        numbering.FormatCode(numbering.PrefixSale, year, seq),
			ClientID:    req.ClientID,
			OrderID:     req.OrderID,
			WithTax:     withTax,
			CreatedByID: userID,
		}
		subtotal := decimal.Zero
		taxAmount := decimal.Zero
		for _, item := range req.Items {
			product := products[item.ProductID]
			unitPrice := item.UnitPrice
			if unitPrice.IsZero() {
				unitPrice = product.SellingPrice
			}
			lineSubtotal := item.Quantity.Mul(unitPrice)
			subtotal = subtotal.Add(lineSubtotal)
			if withTax {
				taxAmount = taxAmount.Add(lineSubtotal.Mul(product.TaxRatePercent()).Div(decimal.NewFromInt(100)))
			}
			sale.Items = append(sale.Items, database.SaleItem{
				ProductID:     item.ProductID,
				ScopeClientID: item.ScopeClientID,
				Quantity:      item.Quantity,
				Unit:          product.Unit,
				UnitPrice:     unitPrice,
				TaxRate:       product.TaxRate,
			})
		}
		sale.Subtotal = subtotal.Round(2)
		sale.TaxAmount = taxAmount.Round(2)
		sale.Total = subtotal.Add(taxAmount).Round(2)

		err = h.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&sale).Error; err != nil {
				return err
			}
			for _, item := range sale.Items {
				scope := stockledger.FromClientID(item.ScopeClientID)
				if err := stockledger.DeductStock(tx, item.ProductID, scope, item.Quantity); err != nil {
					return err
				}
			}
			if linkedOrder != nil {
				if err := order.CloseTx(tx, linkedOrder, database.OrderConverted, now); err != nil {
					return err
				}
			}
			return tx.Model(&database.Client{}).
				Where("id = ?", sale.ClientID).
				Update("credit_balance", gorm.Expr("credit_balance + ?", sale.Total)).Error
		})
		if err == nil {
			break
		}
		if numbering.IsUniqueViolation(err) {
			logrus.WithField("code", sale.Code).Info("sale code collision, retrying")
			sale = database.Sale{}
			continue
		}
		if errors.Is(err, order.ErrNotPending) {
			c.JSON(http.StatusConflict, gin.H{"error": "Linked order is no longer pending"})
			return
		}
		// Stock shortfall surfaces as a validation error, not a server one.
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if sale.ID == uuid.Nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Could not allocate a unique sale code, please retry"})
		return
	}

	h.audit.LogCreate(c, "sale", sale.ID, gin.H{"code": sale.Code, "total": sale.Total})
	h.db.Preload("Items").Preload("Items.Product").Preload("Client").First(&sale, sale.ID)
	c.JSON(http.StatusCreated, gin.H{"data": sale})
}

// MarkDelivered stamps the sale as delivered
func (h *Handler) MarkDelivered(c *gin.Context) {
	sale, ok := h.fetch(c)
	if !ok {
		return
	}
	if sale.Delivered {
		c.JSON(http.StatusConflict, gin.H{"error": "Sale is already delivered"})
		return
	}

	now := time.Now()
	err := h.db.Model(&database.Sale{}).
		Where("id = ?", sale.ID).
		Updates(map[string]interface{}{
			"delivered":    true,
			"delivered_at": now,
		}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark delivered"})
		return
	}

	h.audit.LogActivity(c, "deliver", "sale", &sale.ID, gin.H{"code": sale.Code})
	sale.Delivered = true
	sale.DeliveredAt = &now
	c.JSON(http.StatusOK, gin.H{"data": sale})
}

// SetInvoiceMeta records the invoice metadata the first time an invoice
// is generated for the sale. The with-GST flag here is deliberately
// independent of the tax mode used at sale time.
func (h *Handler) SetInvoiceMeta(c *gin.Context) {
	var req InvoiceMetaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sale, ok := h.fetch(c)
	if !ok {
		return
	}

	err := h.db.Model(&database.Sale{}).
		Where("id = ?", sale.ID).
		Updates(map[string]interface{}{
			"invoice_date":     req.InvoiceDate,
			"invoice_due_date": req.InvoiceDueDate,
			"invoice_with_gst": req.WithGST,
		}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to set invoice metadata"})
		return
	}

	h.audit.LogActivity(c, "invoice", "sale", &sale.ID, gin.H{"code": sale.Code})
	h.db.First(&sale, sale.ID)
	c.JSON(http.StatusOK, gin.H{"data": sale})
}

// Invoice is the stable read query an external invoice renderer
// consumes: sale header, line items with resolved product names and HSN
// codes, client details, and payment position.
func (h *Handler) Invoice(c *gin.Context) {
	sale, ok := h.fetch(c)
	if !ok {
		return
	}

	var paid struct {
		Total decimal.Decimal
	}
	h.db.Model(&database.Payment{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("kind = ? AND sale_id = ?", database.PaymentKindSale, sale.ID).
		Scan(&paid)

	type invoiceLine struct {
		ProductName string          `json:"product_name"`
		HSNCode     string          `json:"hsn_code"`
		Quantity    decimal.Decimal `json:"quantity"`
		Unit        string          `json:"unit"`
		UnitPrice   decimal.Decimal `json:"unit_price"`
		TaxRate     string          `json:"tax_rate"`
		Subtotal    decimal.Decimal `json:"subtotal"`
	}
	lines := make([]invoiceLine, 0, len(sale.Items))
	for _, item := range sale.Items {
		lines = append(lines, invoiceLine{
			ProductName: item.Product.Name,
			HSNCode:     item.Product.HSNCode,
			Quantity:    item.Quantity,
			Unit:        item.Unit,
			UnitPrice:   item.UnitPrice,
			TaxRate:     item.TaxRate,
			Subtotal:    item.Quantity.Mul(item.UnitPrice).Round(2),
		})
	}

	balance := sale.Total.Sub(paid.Total)
	if balance.IsNegative() {
		balance = decimal.Zero
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"sale":    sale,
		"client":  sale.Client,
		"lines":   lines,
		"paid":    paid.Total,
		"balance": balance,
	}})
}

func (h *Handler) fetch(c *gin.Context) (database.Sale, bool) {
	var sale database.Sale
	err := h.db.Scopes(database.VisibleTo(c.GetString("role"), c.GetString("user_id"))).
		Where("id = ?", c.Param("id")).
		Preload("Items").
		Preload("Items.Product").
		Preload("Client").
		First(&sale).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Sale not found"})
		return sale, false
	}
	return sale, true
}
