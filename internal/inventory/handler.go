package inventory

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradebook/tradebook-backend/internal/stockledger"
	"github.com/tradebook/tradebook-backend/pkg/database"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// StockGroup is the API shape of one aggregated (product, scope) bucket
type StockGroup struct {
	ProductID      uuid.UUID       `json:"product_id"`
	ProductName    string          `json:"product_name"`
	Unit           string          `json:"unit"`
	ClientID       *uuid.UUID      `json:"client_id"`
	ClientName     string          `json:"client_name,omitempty"`
	Available      decimal.Decimal `json:"available"`
	Demand         decimal.Decimal `json:"demand"`
	NetAvailable   decimal.Decimal `json:"net_available"`
	TotalValue     decimal.Decimal `json:"total_value"`
	AvgUnitCost    decimal.Decimal `json:"avg_unit_cost"`
	LastReceivedAt *time.Time      `json:"last_received_at"`
	LastChangeAt   *time.Time      `json:"last_change_at"`
}

type Summary struct {
	TotalProducts   int             `json:"total_products"`
	TotalStockValue decimal.Decimal `json:"total_stock_value"`
	ShortageCount   int             `json:"shortage_count"`
}

// GetStock returns the aggregated stock view; pass ?shortage=true to
// keep only buckets whose demand exceeds availability, ?product_id= to
// narrow to one product, or ?client_id= (a client id, or "generic" for
// the pooled bucket) to narrow to one scope.
func (h *Handler) GetStock(c *gin.Context) {
	groups, names, err := h.load(c.Query("product_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch inventory"})
		return
	}

	shortageOnly := c.Query("shortage") == "true"
	rows := buildRows(groups, names)
	if shortageOnly {
		filtered := rows[:0]
		for _, r := range rows {
			if r.NetAvailable.IsNegative() {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}
	if clientID := c.Query("client_id"); clientID != "" {
		filtered := rows[:0]
		for _, r := range rows {
			switch {
			case clientID == "generic" && r.ClientID == nil:
				filtered = append(filtered, r)
			case r.ClientID != nil && r.ClientID.String() == clientID:
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}

	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// GetAvailability answers "how much can I sell from this bucket": the
// figure for the bucket resolved from the product's classification and
// the optional client, falling back to the pooled bucket when the exact
// bucket has no records yet. The fallback is read-side only.
func (h *Handler) GetAvailability(c *gin.Context) {
	productID, err := uuid.Parse(c.Query("product_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id is required"})
		return
	}
	var product database.Product
	if err := h.db.Where("id = ?", productID).First(&product).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	var clientID *uuid.UUID
	if raw := c.Query("client_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client_id"})
			return
		}
		clientID = &id
	}

	groups, _, err := h.load(productID.String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch inventory"})
		return
	}

	scope := stockledger.Resolve(product.Classification, clientID)
	group := stockledger.Lookup(groups, productID, scope)
	if group == nil {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{
			"product_id":    productID,
			"client_id":     scope.ClientID(),
			"available":     decimal.Zero,
			"demand":        decimal.Zero,
			"net_available": decimal.Zero,
		}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"product_id":    productID,
		"client_id":     group.Scope.ClientID(),
		"available":     group.Available,
		"demand":        group.Demand,
		"net_available": group.NetAvailable(),
		"avg_unit_cost": group.AvgUnitCost().Round(4),
	}})
}

// GetSummary returns headline inventory stats
func (h *Handler) GetSummary(c *gin.Context) {
	groups, names, err := h.load("")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch inventory"})
		return
	}

	summary := Summary{TotalStockValue: decimal.Zero}
	products := map[uuid.UUID]bool{}
	for _, r := range buildRows(groups, names) {
		if r.Available.IsPositive() {
			products[r.ProductID] = true
		}
		summary.TotalStockValue = summary.TotalStockValue.Add(r.TotalValue)
		if r.NetAvailable.IsNegative() {
			summary.ShortageCount++
		}
	}
	summary.TotalProducts = len(products)

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (h *Handler) load(productID string) (map[stockledger.GroupKey]*stockledger.Group, nameIndex, error) {
	stockQuery := h.db.Preload("Product").Preload("Client")
	demandQuery := h.db.Preload("Product").Preload("Client")
	if productID != "" {
		stockQuery = stockQuery.Where("product_id = ?", productID)
		demandQuery = demandQuery.Where("product_id = ?", productID)
	}

	var stocks []database.StockRecord
	if err := stockQuery.Find(&stocks).Error; err != nil {
		return nil, nameIndex{}, err
	}
	var demands []database.DemandRecord
	if err := demandQuery.Find(&demands).Error; err != nil {
		return nil, nameIndex{}, err
	}

	names := nameIndex{
		productName: map[uuid.UUID]string{},
		productUnit: map[uuid.UUID]string{},
		clientName:  map[uuid.UUID]string{},
	}
	for _, s := range stocks {
		names.productName[s.ProductID] = s.Product.Name
		names.productUnit[s.ProductID] = s.Product.Unit
		if s.ClientID != nil && s.Client != nil {
			names.clientName[*s.ClientID] = s.Client.Name
		}
	}
	for _, d := range demands {
		names.productName[d.ProductID] = d.Product.Name
		names.productUnit[d.ProductID] = d.Product.Unit
		if d.ClientID != nil && d.Client != nil {
			names.clientName[*d.ClientID] = d.Client.Name
		}
	}

	return stockledger.Aggregate(stocks, demands), names, nil
}

type nameIndex struct {
	productName map[uuid.UUID]string
	productUnit map[uuid.UUID]string
	clientName  map[uuid.UUID]string
}

func buildRows(groups map[stockledger.GroupKey]*stockledger.Group, names nameIndex) []StockGroup {
	rows := make([]StockGroup, 0, len(groups))
	for key, g := range groups {
		row := StockGroup{
			ProductID:      key.ProductID,
			ProductName:    names.productName[key.ProductID],
			Unit:           names.productUnit[key.ProductID],
			ClientID:       key.Scope.ClientID(),
			Available:      g.Available,
			Demand:         g.Demand,
			NetAvailable:   g.NetAvailable(),
			TotalValue:     g.TotalValue,
			AvgUnitCost:    g.AvgUnitCost().Round(4),
			LastReceivedAt: g.LastReceivedAt,
			LastChangeAt:   g.LastChangeAt,
		}
		if id := key.Scope.ClientID(); id != nil {
			row.ClientName = names.clientName[*id]
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ProductName != rows[j].ProductName {
			return rows[i].ProductName < rows[j].ProductName
		}
		return rows[i].ClientName < rows[j].ClientName
	})
	return rows
}
