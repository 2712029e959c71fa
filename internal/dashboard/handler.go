package dashboard

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
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

type Stats struct {
	TodaySales     decimal.Decimal `json:"today_sales"`
	MonthSales     decimal.Decimal `json:"month_sales"`
	OpenOrders     int64           `json:"open_orders"`
	OpenPurchases  int64           `json:"open_purchases"`
	Receivables    decimal.Decimal `json:"receivables"`
	ShortageCount  int             `json:"shortage_count"`
}

// GetStats returns the headline figures for the dashboard
func (h *Handler) GetStats(c *gin.Context) {
	scope := database.VisibleTo(c.GetString("role"), c.GetString("user_id"))
	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var stats Stats

	var daily struct{ Total decimal.Decimal }
	h.db.Model(&database.Sale{}).Scopes(scope).
		Select("COALESCE(SUM(total), 0) as total").
		Where("created_at >= ?", startOfDay).
		Scan(&daily)
	stats.TodaySales = daily.Total

	var monthly struct{ Total decimal.Decimal }
	h.db.Model(&database.Sale{}).Scopes(scope).
		Select("COALESCE(SUM(total), 0) as total").
		Where("created_at >= ?", startOfMonth).
		Scan(&monthly)
	stats.MonthSales = monthly.Total

	h.db.Model(&database.Order{}).Scopes(scope).
		Where("status = ?", database.OrderPending).
		Count(&stats.OpenOrders)

	h.db.Model(&database.Purchase{}).Scopes(scope).
		Where("status = ?", database.PurchaseOpen).
		Count(&stats.OpenPurchases)

	var receivables struct{ Total decimal.Decimal }
	h.db.Model(&database.Client{}).
		Select("COALESCE(SUM(credit_balance), 0) as total").
		Scan(&receivables)
	stats.Receivables = receivables.Total

	var stocks []database.StockRecord
	var demands []database.DemandRecord
	h.db.Find(&stocks)
	h.db.Find(&demands)
	for _, g := range stockledger.Aggregate(stocks, demands) {
		if g.NetAvailable().IsNegative() {
			stats.ShortageCount++
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// GetRecentSales returns the latest sales for the landing view
func (h *Handler) GetRecentSales(c *gin.Context) {
	var sales []database.Sale
	err := h.db.Scopes(database.VisibleTo(c.GetString("role"), c.GetString("user_id"))).
		Preload("Client").
		Order("created_at DESC").
		Limit(10).
		Find(&sales).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch recent sales"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sales})
}
