package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleSales   Role = "sales"
	RoleManager Role = "manager"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSales, RoleManager:
		return true
	}
	return false
}

type RiceType string

const (
	RiceBasmati RiceType = "Basmati"
	RiceRaw     RiceType = "Raw Rice"
	RiceSteam   RiceType = "Steam Rice"
	RiceHMT     RiceType = "HMT"
)

var RiceTypes = []RiceType{RiceBasmati, RiceRaw, RiceSteam, RiceHMT}

func (t RiceType) Valid() bool {
	for _, known := range RiceTypes {
		if t == known {
			return true
		}
	}
	return false
}

type PaymentMode string

const (
	PaymentCash   PaymentMode = "Cash"
	PaymentOnline PaymentMode = "Online"
)

func (m PaymentMode) Valid() bool {
	return m == PaymentCash || m == PaymentOnline
}

// Product is the only mutable entity. Stock is kept in whole 25 kg bags.
type Product struct {
	ID               string          `json:"_id"`
	Name             string          `json:"name"`
	Type             RiceType        `json:"type"`
	CurrentStockBags int             `json:"currentStockBags"`
	PricePerBag      decimal.Decimal `json:"pricePerBag"`
	CostPricePerBag  decimal.Decimal `json:"costPricePerBag"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

type ProductRequest struct {
	Name             string           `json:"name" validate:"required,min=3"`
	Type             RiceType         `json:"type" validate:"required"`
	CurrentStockBags *int             `json:"currentStockBags" validate:"required,min=0,max=1000000"`
	PricePerBag      *decimal.Decimal `json:"pricePerBag" validate:"required"`
	CostPricePerBag  *decimal.Decimal `json:"costPricePerBag,omitempty"`
}

type SaleItem struct {
	ProductID             string          `json:"productId"`
	ProductName           string          `json:"productName"`
	QuantitySoldBags      int             `json:"quantitySoldBags"`
	QuantitySoldLooseKg   decimal.Decimal `json:"quantitySoldLooseKg"`
	PricePerBagAtSale     decimal.Decimal `json:"pricePerBagAtSale"`
	PricePerKgLooseAtSale decimal.Decimal `json:"pricePerKgLooseAtSale"`
	CostPricePerBagAtSale decimal.Decimal `json:"costPricePerBagAtSale"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	ProfitPerItem         decimal.Decimal `json:"profitPerItem"`
}

// Sale is append-only; items carry the prices in force when it was recorded.
type Sale struct {
	ID                 string          `json:"_id"`
	SaleItems          []SaleItem      `json:"saleItems"`
	TotalAmount        decimal.Decimal `json:"totalAmount"`
	TotalProfit        decimal.Decimal `json:"totalProfit"`
	RecordedBy         string          `json:"recordedBy"`
	RecordedByUsername string          `json:"recordedByUsername,omitempty"`
	PaymentMode        PaymentMode     `json:"paymentMode"`
	CreatedAt          time.Time       `json:"createdAt"`
}

// CartItem tolerates the extra display fields a POS client sends along with each line.
type CartItem struct {
	ProductID             string           `json:"productId" validate:"required"`
	ProductName           string           `json:"productName,omitempty"`
	QuantitySoldBags      int              `json:"quantitySoldBags" validate:"min=0"`
	QuantitySoldLooseKg   decimal.Decimal  `json:"quantitySoldLooseKg"`
	PricePerKgLooseAtSale *decimal.Decimal `json:"pricePerKgLooseAtSale,omitempty"`
}

type SaleRequest struct {
	CartItems   []CartItem  `json:"cartItems" validate:"dive"`
	PaymentMode PaymentMode `json:"paymentMode"`
}

type ReturnItem struct {
	ProductID               string          `json:"productId"`
	ProductName             string          `json:"productName"`
	QuantityReturnedBags    int             `json:"quantityReturnedBags"`
	QuantityReturnedLooseKg decimal.Decimal `json:"quantityReturnedLooseKg"`
	PricePerBagAtReturn     decimal.Decimal `json:"pricePerBagAtReturn"`
	PricePerKgLooseAtReturn decimal.Decimal `json:"pricePerKgLooseAtReturn"`
	CostPricePerBagAtReturn decimal.Decimal `json:"costPricePerBagAtReturn"`
	RefundAmount            decimal.Decimal `json:"refundAmount"`
	ProfitReversed          decimal.Decimal `json:"profitReversed"`
}

type Return struct {
	ID                  string          `json:"_id"`
	SaleID              string          `json:"saleId,omitempty"`
	ReturnItems         []ReturnItem    `json:"returnItems"`
	TotalRefundAmount   decimal.Decimal `json:"totalRefundAmount"`
	Reason              string          `json:"reason"`
	ProcessedBy         string          `json:"processedBy"`
	ProcessedByUsername string          `json:"processedByUsername,omitempty"`
	ReturnDate          time.Time       `json:"returnDate"`
}

type ReturnLine struct {
	ProductID               string           `json:"productId" validate:"required"`
	ProductName             string           `json:"productName,omitempty"`
	QuantityReturnedBags    int              `json:"quantityReturnedBags" validate:"min=0"`
	QuantityReturnedLooseKg decimal.Decimal  `json:"quantityReturnedLooseKg"`
	PricePerKgLooseAtReturn *decimal.Decimal `json:"pricePerKgLooseAtReturn,omitempty"`
}

type ReturnRequest struct {
	ReturnItems []ReturnLine `json:"returnItems" validate:"dive"`
	SaleID      string       `json:"saleId,omitempty"`
	Reason      string       `json:"reason,omitempty"`
}

type User struct {
	ID           string    `json:"_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Role     Role   `json:"role"`
	Username string `json:"username"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=6"`
	Role     Role   `json:"role,omitempty"`
}

type UserUpdateRequest struct {
	Username *string `json:"username,omitempty"`
	Role     *Role   `json:"role,omitempty"`
}

// Actor is the authenticated caller, taken from the token.
type Actor struct {
	ID       string
	Username string
	Role     Role
}

type ReportPeriod struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type DailyBucket struct {
	TotalSales   decimal.Decimal `json:"totalSales"`
	TotalProfit  decimal.Decimal `json:"totalProfit"`
	TotalCash    decimal.Decimal `json:"totalCash"`
	TotalOnline  decimal.Decimal `json:"totalOnline"`
	Transactions []Sale          `json:"transactions"`
}

type SalesSummary struct {
	ReportPeriod      ReportPeriod           `json:"reportPeriod"`
	TotalPeriodSales  decimal.Decimal        `json:"totalPeriodSales"`
	TotalPeriodProfit decimal.Decimal        `json:"totalPeriodProfit"`
	TotalCashSales    decimal.Decimal        `json:"totalCashSales"`
	TotalOnlineSales  decimal.Decimal        `json:"totalOnlineSales"`
	DailyBreakdown    map[string]DailyBucket `json:"dailyBreakdown"`
}

type ProductProfit struct {
	ProductID           string          `json:"_id"`
	ProductName         string          `json:"productName"`
	TotalProfit         decimal.Decimal `json:"totalProfit"`
	TotalQuantitySoldKg decimal.Decimal `json:"totalQuantitySoldKg"`
	TotalRevenue        decimal.Decimal `json:"totalRevenue"`
}

type TrendPoint struct {
	Period      string          `json:"_id"`
	TotalSales  decimal.Decimal `json:"totalSales"`
	TotalProfit decimal.Decimal `json:"totalProfit"`
}

type TypePerformance struct {
	Type                RiceType        `json:"_id"`
	TotalSales          decimal.Decimal `json:"totalSales"`
	TotalProfit         decimal.Decimal `json:"totalProfit"`
	TotalQuantitySoldKg decimal.Decimal `json:"totalQuantitySoldKg"`
}
