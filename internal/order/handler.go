package order

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

type Handler struct {
	db    *gorm.DB
	audit *activitylog.Logger
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, audit: activitylog.NewLogger(db)}
}

type OrderItemRequest struct {
	ProductID uuid.UUID       `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CreateOrderRequest struct {
	ClientID    uuid.UUID          `json:"client_id" binding:"required"`
	Description string             `json:"description"`
	Items       []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// List returns orders, newest first. Sales staff see only their own.
func (h *Handler) List(c *gin.Context) {
	q := h.db.Scopes(database.VisibleTo(c.GetString("role"), c.GetString("user_id"))).
		Preload("Items").
		Preload("Items.Product").
		Preload("Client").
		Order("created_at DESC")
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var orders []database.Order
	if err := q.Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders})
}

// Get returns a single order
func (h *Handler) Get(c *gin.Context) {
	var order database.Order
	err := h.db.Scopes(database.VisibleTo(c.GetString("role"), c.GetString("user_id"))).
		Where("id = ?", c.Param("id")).
		Preload("Items").
		Preload("Items.Product").
		Preload("Client").
		First(&order).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

// Create records a new order: a unique yearly code is assigned and every
// line raises demand in the bucket resolved for (product, order client).
// The whole write runs in one transaction per attempt; a code collision
// rolls back and retries with the next sequence, up to the retry bound.
func (h *Handler) Create(c *gin.Context) {
	var req CreateOrderRequest
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

	var order database.Order
	for attempt := 0; attempt < numbering.MaxAttempts; attempt++ {
		seq, err := numbering.NextSequence(h.db, "orders", numbering.PrefixOrder, year)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to allocate order code"})
			return
		}
		seq += attempt

		order = database.Order{
			Code:        numbering.FormatCode(numbering.PrefixOrder, year, seq),
			ClientID:    req.ClientID,
			Status:      database.OrderPending,
			IsActive:    true,
			Description: req.Description,
			CreatedByID: userID,
		}
		for _, item := range req.Items {
			product := products[item.ProductID]
			unitPrice := item.UnitPrice
			if unitPrice.IsZero() {
				unitPrice = product.SellingPrice
			}
			order.Items = append(order.Items, database.OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Unit:      product.Unit,
				UnitPrice: unitPrice,
				TaxRate:   product.TaxRate,
			})
		}

		err = h.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&order).Error; err != nil {
				return err
			}
			for _, item := range order.Items {
				product := products[item.ProductID]
				scope := stockledger.Resolve(product.Classification, &order.ClientID)
				if err := stockledger.AddDemand(tx, item.ProductID, scope, item.Quantity, now); err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			break
		}
		if numbering.IsUniqueViolation(err) {
			logrus.WithField("code", order.Code).Info("order code collision, retrying")
			order = database.Order{}
			continue
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}
	if order.ID == uuid.Nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Could not allocate a unique order code, please retry"})
		return
	}

	h.audit.LogCreate(c, "order", order.ID, gin.H{"code": order.Code})
	h.db.Preload("Items").Preload("Items.Product").Preload("Client").First(&order, order.ID)
	c.JSON(http.StatusCreated, gin.H{"data": order})
}

// Convert marks a pending order as converted and releases its demand
func (h *Handler) Convert(c *gin.Context) {
	h.close(c, database.OrderConverted)
}

// Cancel marks a pending order as cancelled and releases its demand
func (h *Handler) Cancel(c *gin.Context) {
	h.close(c, database.OrderCancelled)
}

func (h *Handler) close(c *gin.Context, status string) {
	var order database.Order
	err := h.db.Scopes(database.VisibleTo(c.GetString("role"), c.GetString("user_id"))).
		Where("id = ?", c.Param("id")).
		Preload("Items").
		First(&order).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		return CloseTx(tx, &order, status, time.Now())
	})
	if errors.Is(err, ErrNotPending) {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Order is already %s", order.Status)})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order"})
		return
	}

	h.audit.LogActivity(c, actionFor(status), "order", &order.ID, gin.H{"code": order.Code})
	c.JSON(http.StatusOK, gin.H{"data": order})
}

func actionFor(status string) string {
	if status == database.OrderCancelled {
		return "cancel"
	}
	return "convert"
}
