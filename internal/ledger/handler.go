package ledger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
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

type CreatePaymentRequest struct {
	Kind       string          `json:"kind" binding:"required,oneof=SALE PURCHASE"`
	SaleID     *uuid.UUID      `json:"sale_id"`
	PurchaseID *uuid.UUID      `json:"purchase_id"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	PaidAt     *time.Time      `json:"paid_at"`
	Notes      string          `json:"notes"`
}

// CreatePayment appends a payment against a sale or purchase bill.
// A sale payment also reduces the client's running credit balance.
func (h *Handler) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be positive"})
		return
	}
	if req.Kind == database.PaymentKindSale && (req.SaleID == nil || req.PurchaseID != nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A SALE payment must reference exactly a sale"})
		return
	}
	if req.Kind == database.PaymentKindPurchase && (req.PurchaseID == nil || req.SaleID != nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A PURCHASE payment must reference exactly a purchase"})
		return
	}

	userID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
		return
	}

	var sale database.Sale
	if req.Kind == database.PaymentKindSale {
		if err := h.db.Where("id = ?", req.SaleID).First(&sale).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Sale not found"})
			return
		}
	} else {
		var purchase database.Purchase
		if err := h.db.Where("id = ?", req.PurchaseID).First(&purchase).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Purchase not found"})
			return
		}
	}

	paidAt := time.Now()
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}

	payment := database.Payment{
		Kind:        req.Kind,
		SaleID:      req.SaleID,
		PurchaseID:  req.PurchaseID,
		Amount:      req.Amount,
		PaidAt:      paidAt,
		Notes:       req.Notes,
		CreatedByID: userID,
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		if req.Kind == database.PaymentKindSale {
			return tx.Model(&database.Client{}).
				Where("id = ?", sale.ClientID).
				Update("credit_balance", gorm.Expr("credit_balance - ?", req.Amount)).Error
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record payment"})
		return
	}

	h.audit.LogCreate(c, "payment", payment.ID, gin.H{"kind": payment.Kind, "amount": payment.Amount})
	c.JSON(http.StatusCreated, gin.H{"data": payment})
}

// ListPayments returns payments, optionally filtered by bill
func (h *Handler) ListPayments(c *gin.Context) {
	q := h.db.Scopes(database.VisibleTo(c.GetString("role"), c.GetString("user_id"))).
		Preload("CreatedBy").
		Order("paid_at DESC")
	if saleID := c.Query("sale_id"); saleID != "" {
		q = q.Where("sale_id = ?", saleID)
	}
	if purchaseID := c.Query("purchase_id"); purchaseID != "" {
		q = q.Where("purchase_id = ?", purchaseID)
	}

	var payments []database.Payment
	if err := q.Find(&payments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payments})
}

// BillRow is one bill in a receivable/payable statement
type BillRow struct {
	BillID    uuid.UUID       `json:"bill_id"`
	Code      string          `json:"code"`
	CreatedAt time.Time       `json:"created_at"`
	Total     decimal.Decimal `json:"total"`
	Paid      decimal.Decimal `json:"paid"`
	Balance   decimal.Decimal `json:"balance"`
	Status    string          `json:"status"`
}

// PartyStatement groups a party's bills with its aggregate outstanding
type PartyStatement struct {
	PartyID     uuid.UUID       `json:"party_id"`
	PartyName   string          `json:"party_name"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Bills       []BillRow       `json:"bills"`
}

// Receivables returns per-client statements over sale bills
func (h *Handler) Receivables(c *gin.Context) {
	var sales []database.Sale
	q := h.db.Scopes(database.VisibleTo(c.GetString("role"), c.GetString("user_id"))).
		Preload("Client").
		Order("created_at ASC")
	if clientID := c.Query("client_id"); clientID != "" {
		q = q.Where("client_id = ?", clientID)
	}
	if err := q.Find(&sales).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sales"})
		return
	}

	paidBySale, err := h.paidTotals(database.PaymentKindSale)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payments"})
		return
	}

	statements := map[uuid.UUID]*PartyStatement{}
	var ordered []uuid.UUID
	for _, s := range sales {
		st, ok := statements[s.ClientID]
		if !ok {
			st = &PartyStatement{PartyID: s.ClientID, PartyName: s.Client.Name}
			statements[s.ClientID] = st
			ordered = append(ordered, s.ClientID)
		}
		paid := paidBySale[s.ID]
		balance := Balance(s.Total, paid)
		st.Bills = append(st.Bills, BillRow{
			BillID:    s.ID,
			Code:      s.Code,
			CreatedAt: s.CreatedAt,
			Total:     s.Total,
			Paid:      paid,
			Balance:   balance,
			Status:    Classify(s.Total, paid),
		})
		st.Outstanding = st.Outstanding.Add(balance)
	}

	out := make([]*PartyStatement, 0, len(ordered))
	for _, id := range ordered {
		out = append(out, statements[id])
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// Payables returns per-vendor statements over purchase bills. A purchase
// bill totals its line values plus line tax plus accumulated freight.
func (h *Handler) Payables(c *gin.Context) {
	var purchases []database.Purchase
	q := h.db.Scopes(database.VisibleTo(c.GetString("role"), c.GetString("user_id"))).
		Preload("Vendor").
		Preload("Items").
		Order("created_at ASC")
	if vendorID := c.Query("vendor_id"); vendorID != "" {
		q = q.Where("vendor_id = ?", vendorID)
	}
	if err := q.Find(&purchases).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch purchases"})
		return
	}

	paidByPurchase, err := h.paidTotals(database.PaymentKindPurchase)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payments"})
		return
	}

	statements := map[uuid.UUID]*PartyStatement{}
	var ordered []uuid.UUID
	for _, p := range purchases {
		st, ok := statements[p.VendorID]
		if !ok {
			st = &PartyStatement{PartyID: p.VendorID, PartyName: p.Vendor.Name}
			statements[p.VendorID] = st
			ordered = append(ordered, p.VendorID)
		}
		total := purchaseTotal(p)
		paid := paidByPurchase[p.ID]
		balance := Balance(total, paid)
		st.Bills = append(st.Bills, BillRow{
			BillID:    p.ID,
			Code:      p.Code,
			CreatedAt: p.CreatedAt,
			Total:     total,
			Paid:      paid,
			Balance:   balance,
			Status:    Classify(total, paid),
		})
		st.Outstanding = st.Outstanding.Add(balance)
	}

	out := make([]*PartyStatement, 0, len(ordered))
	for _, id := range ordered {
		out = append(out, statements[id])
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (h *Handler) paidTotals(kind string) (map[uuid.UUID]decimal.Decimal, error) {
	var payments []database.Payment
	if err := h.db.Where("kind = ?", kind).Find(&payments).Error; err != nil {
		return nil, err
	}
	totals := make(map[uuid.UUID]decimal.Decimal)
	for _, p := range payments {
		var billID *uuid.UUID
		if kind == database.PaymentKindSale {
			billID = p.SaleID
		} else {
			billID = p.PurchaseID
		}
		if billID == nil {
			continue
		}
		totals[*billID] = totals[*billID].Add(p.Amount)
	}
	return totals, nil
}

func purchaseTotal(p database.Purchase) decimal.Decimal {
	total := decimal.Zero
	for _, item := range p.Items {
		line := item.Quantity.Mul(item.UnitPrice)
		total = total.Add(line)
		// Tax from the line's snapshotted rate, not the product's
		// current slab, so later slab changes never move old bills.
		total = total.Add(line.Mul(database.TaxRatePercent(item.TaxRate)).Div(decimal.NewFromInt(100)))
	}
	return total.Add(p.FreightChargeTotal).Round(2)
}
