package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Base model for all entities
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User roles
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleSales   = "sales"
)

// User represents a back-office staff account
type User struct {
	BaseModel
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `json:"-"`
	Name         string `gorm:"not null" json:"name"`
	Role         string `gorm:"default:'sales'" json:"role"` // admin, manager, sales
	IsActive     bool   `gorm:"default:true" json:"is_active"`
}

// Product classification
const (
	ClassificationGeneric    = "generic"
	ClassificationCustomised = "customised"
)

// TaxRates are the allowed categorical GST slabs; "exempt" means no tax
var TaxRates = []string{"0", "5", "12", "18", "28", "exempt"}

// Product represents a tradeable item. Classification decides whether
// stock and demand for the product are pooled or tracked per client.
type Product struct {
	BaseModel
	Name           string          `gorm:"not null" json:"name"`
	Unit           string          `gorm:"not null" json:"unit"` // kg, pcs, mtr, etc.
	HSNCode        string          `json:"hsn_code"`
	PurchasePrice  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchase_price"`
	SellingPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"selling_price"`
	TaxRate        string          `gorm:"size:10;default:'0'" json:"tax_rate"`
	Classification string          `gorm:"size:20;default:'generic'" json:"classification"` // generic, customised
	IsActive       bool            `gorm:"default:true" json:"is_active"`
}

// TaxRatePercent returns the numeric percentage for a categorical tax
// rate. Exempt or unparseable rates are 0. Line items snapshot the rate
// string at document creation, so historical totals must go through the
// snapshot, not the product's current slab.
func TaxRatePercent(rate string) decimal.Decimal {
	if rate == "" || rate == "exempt" {
		return decimal.Zero
	}
	percent, err := decimal.NewFromString(rate)
	if err != nil {
		return decimal.Zero
	}
	return percent
}

// TaxRatePercent returns the product's current numeric tax percentage.
func (p *Product) TaxRatePercent() decimal.Decimal {
	return TaxRatePercent(p.TaxRate)
}

// Client represents a customer. CreditBalance is a running receivable
// figure: increased by sale totals, decreased by recorded payments.
type Client struct {
	BaseModel
	Name            string          `gorm:"not null" json:"name"`
	Phone           string          `json:"phone"`
	Email           string          `json:"email"`
	BillingAddress  string          `json:"billing_address"`
	ShippingAddress string          `json:"shipping_address"`
	GSTIN           string          `gorm:"size:15" json:"gstin"`
	CreditBalance   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit_balance"`
	IsActive        bool            `gorm:"default:true" json:"is_active"`
}

// Vendor represents a supplier
type Vendor struct {
	BaseModel
	Name     string `gorm:"not null" json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	GSTIN    string `gorm:"size:15" json:"gstin"`
	IsActive bool   `gorm:"default:true" json:"is_active"`
}

// StockRecord is one physical inventory row for a (product, client-scope)
// bucket. ClientID nil means the pooled bucket. Multiple rows may exist
// per bucket, one per receiving batch; a row whose quantity reaches zero
// is deleted, never kept.
type StockRecord struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ProductID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_bucket" json:"product_id"`
	Product        Product         `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	ClientID       *uuid.UUID      `gorm:"type:uuid;index:idx_stock_bucket" json:"client_id"`
	Client         *Client         `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	TotalValue     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_value"`
	LastReceivedAt *time.Time      `json:"last_received_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// DemandRecord tracks outstanding order quantity for a (product,
// client-scope) bucket. One logical row per bucket, upheld by the
// mutation layer via read-then-upsert; concurrent creation races are
// tolerated and resolved by the next mutation.
type DemandRecord struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ProductID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_demand_bucket" json:"product_id"`
	Product        Product         `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	ClientID       *uuid.UUID      `gorm:"type:uuid;index:idx_demand_bucket" json:"client_id"`
	Client         *Client         `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	QtyOutstanding decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty_outstanding"`
	LastChangeAt   *time.Time      `json:"last_change_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Order statuses
const (
	OrderPending   = "Pending"
	OrderConverted = "Converted"
	OrderCancelled = "Cancelled"
)

// Order represents a client order awaiting conversion to a sale.
// Converted and Cancelled are terminal.
type Order struct {
	BaseModel
	Code        string      `gorm:"uniqueIndex;not null" json:"code"` // ORD-<year>-<seq>
	ClientID    uuid.UUID   `gorm:"type:uuid;not null" json:"client_id"`
	Client      Client      `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Status      string      `gorm:"default:'Pending'" json:"status"`
	IsActive    bool        `gorm:"default:true" json:"is_active"` // true only while Pending
	Description string      `gorm:"type:text" json:"description"`
	Items       []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
	CreatedByID uuid.UUID   `gorm:"type:uuid;not null" json:"created_by_id"`
	CreatedBy   User        `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
}

// OrderItem represents a line item on an order
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null" json:"order_id"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	Product   Product         `gorm:"foreignKey:ProductID" json:"product"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	TaxRate   string          `gorm:"size:10" json:"tax_rate"`
}

// Purchase statuses
const (
	PurchaseOpen   = "Open"
	PurchaseClosed = "Closed"
)

// Purchase represents goods bought from a vendor. Soft-deleted; immutable
// once every line item is delivered.
type Purchase struct {
	BaseModel
	DeletedAt          gorm.DeletedAt  `gorm:"index" json:"-"`
	Code               string          `gorm:"uniqueIndex;not null" json:"code"` // PUR-<year>-<seq>
	VendorID           uuid.UUID       `gorm:"type:uuid;not null" json:"vendor_id"`
	Vendor             Vendor          `gorm:"foreignKey:VendorID" json:"vendor,omitempty"`
	ClientID           *uuid.UUID      `gorm:"type:uuid" json:"client_id"` // optional client tag on the header
	Client             *Client         `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	PaymentMode        string          `json:"payment_mode"`
	Description        string          `gorm:"type:text" json:"description"`
	FreightChargeTotal decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"freight_charge_total"`
	Status             string          `gorm:"default:'Open'" json:"status"`
	Items              []PurchaseItem  `gorm:"foreignKey:PurchaseID" json:"items"`
	CreatedByID        uuid.UUID       `gorm:"type:uuid;not null" json:"created_by_id"`
	CreatedBy          User            `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
}

// PurchaseItem represents a line item on a purchase. FreightChargeSplit
// accumulates this line's share of freight across partial deliveries.
type PurchaseItem struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	PurchaseID         uuid.UUID       `gorm:"type:uuid;not null" json:"purchase_id"`
	ProductID          uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	Product            Product         `gorm:"foreignKey:ProductID" json:"product"`
	Quantity           decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Unit               string          `json:"unit"`
	UnitPrice          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	TaxRate            string          `gorm:"size:10" json:"tax_rate"`
	Delivered          bool            `gorm:"default:false" json:"delivered"`
	FreightChargeSplit decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"freight_charge_split"`
}

// Sale represents goods sold to a client. Invoice metadata is set lazily
// the first time an invoice is generated, decoupled from WithTax.
type Sale struct {
	BaseModel
	Code           string          `gorm:"uniqueIndex;not null" json:"code"` // SAL-<year>-<seq>
	ClientID       uuid.UUID       `gorm:"type:uuid;not null" json:"client_id"`
	Client         Client          `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	OrderID        *uuid.UUID      `gorm:"type:uuid" json:"order_id"` // originating order, if any
	Order          *Order          `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	WithTax        bool            `gorm:"default:true" json:"with_tax"`
	Delivered      bool            `gorm:"default:false" json:"delivered"`
	DeliveredAt    *time.Time      `json:"delivered_at"`
	InvoiceDate    *time.Time      `json:"invoice_date"`
	InvoiceDueDate *time.Time      `json:"invoice_due_date"`
	InvoiceWithGST *bool           `json:"invoice_with_gst"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	Total          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total"`
	Items          []SaleItem      `gorm:"foreignKey:SaleID" json:"items"`
	CreatedByID    uuid.UUID       `gorm:"type:uuid;not null" json:"created_by_id"`
	CreatedBy      User            `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
}

// SaleItem represents a line item on a sale. ScopeClientID records which
// stock bucket the line was fulfilled from (nil = pooled bucket).
type SaleItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	SaleID        uuid.UUID       `gorm:"type:uuid;not null" json:"sale_id"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	Product       Product         `gorm:"foreignKey:ProductID" json:"product"`
	ScopeClientID *uuid.UUID      `gorm:"type:uuid" json:"scope_client_id"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Unit          string          `json:"unit"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	TaxRate       string          `gorm:"size:10" json:"tax_rate"`
}

// Payment kinds
const (
	PaymentKindSale     = "SALE"
	PaymentKindPurchase = "PURCHASE"
)

// Payment is an append-only record against a sale or purchase bill.
// Exactly one of SaleID/PurchaseID is set, matching Kind.
type Payment struct {
	BaseModel
	Kind        string          `gorm:"size:10;not null" json:"kind"`
	SaleID      *uuid.UUID      `gorm:"type:uuid;index" json:"sale_id"`
	PurchaseID  *uuid.UUID      `gorm:"type:uuid;index" json:"purchase_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	PaidAt      time.Time       `gorm:"not null" json:"paid_at"`
	Notes       string          `gorm:"type:text" json:"notes"`
	CreatedByID uuid.UUID       `gorm:"type:uuid;not null" json:"created_by_id"`
	CreatedBy   User            `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
}

// ActivityLog tracks staff actions for audit trail
type ActivityLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null" json:"user_id"`
	User       User       `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"not null" json:"action"` // create, update, delete, deliver, convert, cancel
	EntityType string     `json:"entity_type"`            // order, purchase, sale, product, etc.
	EntityID   *uuid.UUID `gorm:"type:uuid" json:"entity_id"`
	Details    string     `gorm:"type:text" json:"details"` // JSON details
	IPAddress  string     `json:"ip_address"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Product{},
		&Client{},
		&Vendor{},
		&StockRecord{},
		&DemandRecord{},
		&Order{},
		&OrderItem{},
		&Purchase{},
		&PurchaseItem{},
		&Sale{},
		&SaleItem{},
		&Payment{},
		&ActivityLog{},
	)
}
