package product

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

type CreateProductRequest struct {
	Name           string          `json:"name" binding:"required"`
	Unit           string          `json:"unit" binding:"required"`
	HSNCode        string          `json:"hsn_code"`
	PurchasePrice  decimal.Decimal `json:"purchase_price"`
	SellingPrice   decimal.Decimal `json:"selling_price"`
	TaxRate        string          `json:"tax_rate" binding:"required,oneof=0 5 12 18 28 exempt"`
	Classification string          `json:"classification" binding:"required,oneof=generic customised"`
}

type UpdateProductRequest struct {
	Name          *string          `json:"name"`
	Unit          *string          `json:"unit"`
	HSNCode       *string          `json:"hsn_code"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	SellingPrice  *decimal.Decimal `json:"selling_price"`
	TaxRate       *string          `json:"tax_rate" binding:"omitempty,oneof=0 5 12 18 28 exempt"`
}

// List returns all products; pass ?active=true to filter
func (h *Handler) List(c *gin.Context) {
	q := h.db.Order("name ASC")
	if c.Query("active") == "true" {
		q = q.Where("is_active = ?", true)
	}
	if search := c.Query("search"); search != "" {
		q = q.Where("name ILIKE ?", "%"+search+"%")
	}

	var products []database.Product
	if err := q.Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": products})
}

// Get returns a single product
func (h *Handler) Get(c *gin.Context) {
	var product database.Product
	if err := h.db.Where("id = ?", c.Param("id")).First(&product).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": product})
}

// Create adds a product
func (h *Handler) Create(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product := database.Product{
		Name:           req.Name,
		Unit:           req.Unit,
		HSNCode:        req.HSNCode,
		PurchasePrice:  req.PurchasePrice,
		SellingPrice:   req.SellingPrice,
		TaxRate:        req.TaxRate,
		Classification: req.Classification,
		IsActive:       true,
	}
	if err := h.db.Create(&product).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}

	h.audit.LogCreate(c, "product", product.ID, product)
	c.JSON(http.StatusCreated, gin.H{"data": product})
}

// Update edits descriptive fields. Classification is immutable: stock and
// demand buckets are keyed by it, so changing it would orphan rows.
func (h *Handler) Update(c *gin.Context) {
	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var product database.Product
	if err := h.db.Where("id = ?", c.Param("id")).First(&product).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.HSNCode != nil {
		updates["hsn_code"] = *req.HSNCode
	}
	if req.PurchasePrice != nil {
		updates["purchase_price"] = *req.PurchasePrice
	}
	if req.SellingPrice != nil {
		updates["selling_price"] = *req.SellingPrice
	}
	if req.TaxRate != nil {
		updates["tax_rate"] = *req.TaxRate
	}
	if req.Unit != nil && *req.Unit != product.Unit {
		referenced, err := h.hasStockRows(product)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check stock references"})
			return
		}
		if referenced {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unit cannot change while stock records reference this product"})
			return
		}
		updates["unit"] = *req.Unit
	}

	if len(updates) > 0 {
		if err := h.db.Model(&product).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
			return
		}
	}

	h.audit.LogUpdate(c, "product", product.ID, updates)
	c.JSON(http.StatusOK, gin.H{"data": product})
}

// ToggleActive flips product availability
func (h *Handler) ToggleActive(c *gin.Context) {
	var product database.Product
	if err := h.db.Where("id = ?", c.Param("id")).First(&product).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	product.IsActive = !product.IsActive
	if err := h.db.Save(&product).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
		return
	}

	h.audit.LogUpdate(c, "product", product.ID, gin.H{"is_active": product.IsActive})
	c.JSON(http.StatusOK, gin.H{"data": product})
}

func (h *Handler) hasStockRows(product database.Product) (bool, error) {
	var count int64
	err := h.db.Model(&database.StockRecord{}).
		Where("product_id = ?", product.ID).
		Count(&count).Error
	return count > 0, err
}
