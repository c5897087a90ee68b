// Package catalog defines the grocery admin entities and the in-memory
// repository that owns them. Every operation passes through a Simulator so
// callers observe network-like latency and failures.
package catalog

import (
	"github.com/shopspring/decimal"
)

// Placeholder images applied when a record is created without one.
const (
	DefaultCategoryImage    = "assets/images/categories/grains.png"
	DefaultSubCategoryImage = "assets/images/categories/all_grains.png"
	DefaultProductImage     = "assets/images/products.png"
	DefaultOfferBanner      = "assets/images/OfferBanner1.png"
	DefaultBgColor          = "#F0F0F0"
	DefaultUnit             = "kg"
)

// LowStockThreshold is the highest stock level still reported as low stock.
const LowStockThreshold = 20

// ExpiryDateLayout formats offer expiry dates as day/month/year.
const ExpiryDateLayout = "02/01/2006"

// StockStatus classifies a product's stock level.
type StockStatus string

const (
	InStock    StockStatus = "In Stock"
	LowStock   StockStatus = "Low Stock"
	OutOfStock StockStatus = "Out of Stock"
)

// DeriveStockStatus maps a stock level to its label.
func DeriveStockStatus(stock int) StockStatus {
	switch {
	case stock > LowStockThreshold:
		return InStock
	case stock > 0:
		return LowStock
	default:
		return OutOfStock
	}
}

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderInTransit OrderStatus = "In Transit"
	OrderDelivered OrderStatus = "Delivered"
)

// OrderStatuses lists the known order statuses in fulfilment order.
var OrderStatuses = []OrderStatus{OrderPending, OrderInTransit, OrderDelivered}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// OfferStatus marks whether an offer is shown to buyers.
type OfferStatus string

const (
	OfferActive   OfferStatus = "Active"
	OfferInactive OfferStatus = "Inactive"
)

// Valid reports whether s is a known offer status.
func (s OfferStatus) Valid() bool {
	return s == OfferActive || s == OfferInactive
}

// CustomerStatus is the verification state of a business customer.
type CustomerStatus string

const (
	CustomerVerified CustomerStatus = "Verified"
	CustomerPending  CustomerStatus = "Pending"
)

// Valid reports whether s is a known customer status.
func (s CustomerStatus) Valid() bool {
	return s == CustomerVerified || s == CustomerPending
}

// HomepageItem is a slot on the storefront home screen.
type HomepageItem struct {
	ID string `json:"id" yaml:"id"`
}

// MainCategory is a top-level catalog grouping. SubCategoryCount is computed
// from the sub-category collection on every read.
type MainCategory struct {
	ID               string `json:"id" yaml:"id"`
	Name             string `json:"name" yaml:"name"`
	SubCategoryCount int    `json:"subCategoryCount" yaml:"subCategoryCount,omitempty"`
	Image            string `json:"image" yaml:"image"`
	BgColor          string `json:"bgColor" yaml:"bgColor"`
}

// SubCategory is nested under exactly one main category. MainCategoryName
// is joined from the parent on every read and is empty for an orphan.
type SubCategory struct {
	ID               string `json:"id" yaml:"id"`
	MainCategoryID   string `json:"mainCategoryId" yaml:"mainCategoryId"`
	MainCategoryName string `json:"mainCategoryName" yaml:"mainCategoryName,omitempty"`
	Name             string `json:"name" yaml:"name"`
	Image            string `json:"image" yaml:"image"`
}

// Product is a sellable catalog item.
type Product struct {
	ID           string          `json:"id" yaml:"id"`
	Name         string          `json:"name" yaml:"name"`
	Category     string          `json:"category" yaml:"category"`
	SubCategory  string          `json:"subCategory,omitempty" yaml:"subCategory,omitempty"`
	Price        decimal.Decimal `json:"price" yaml:"price"`
	Stock        int             `json:"stock" yaml:"stock"`
	StockStatus  StockStatus     `json:"stockStatus" yaml:"stockStatus,omitempty"`
	Unit         string          `json:"unit" yaml:"unit"`
	PackagingQty int             `json:"packagingQty,omitempty" yaml:"packagingQty,omitempty"`
	Origin       string          `json:"origin,omitempty" yaml:"origin,omitempty"`
	Variety      string          `json:"variety,omitempty" yaml:"variety,omitempty"`
	FSSAI        string          `json:"fssai,omitempty" yaml:"fssai,omitempty"`
	Description  string          `json:"description,omitempty" yaml:"description,omitempty"`
	Image        string          `json:"image" yaml:"image"`
}

// InventoryValue is price times stock.
func (p Product) InventoryValue() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(p.Stock)))
}

// Order is a customer purchase.
type Order struct {
	ID             string          `json:"id" yaml:"id"`
	Date           string          `json:"date" yaml:"date"`
	CustomerName   string          `json:"customerName" yaml:"customerName"`
	CustomerEmail  string          `json:"customerEmail" yaml:"customerEmail"`
	CustomerPhone  string          `json:"customerPhone" yaml:"customerPhone"`
	Items          int             `json:"items" yaml:"items"`
	Amount         decimal.Decimal `json:"amount" yaml:"amount"`
	PaymentMethod  string          `json:"paymentMethod" yaml:"paymentMethod"`
	Status         OrderStatus     `json:"status" yaml:"status"`
	InvoiceURL     *string         `json:"invoiceUrl" yaml:"invoiceUrl"`
	ShippingMethod string          `json:"shippingMethod" yaml:"shippingMethod"`
	CardLast4      string          `json:"cardLast4,omitempty" yaml:"cardLast4,omitempty"`
	ProductName    string          `json:"productName" yaml:"productName"`
	UnitPrice      decimal.Decimal `json:"unitPrice" yaml:"unitPrice"`
}

// Offer is a promotional banner.
type Offer struct {
	ID          string      `json:"id" yaml:"id"`
	Title       string      `json:"title" yaml:"title"`
	Subtitle    string      `json:"subtitle" yaml:"subtitle"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Status      OfferStatus `json:"status" yaml:"status"`
	ExpiryDate  string      `json:"expiryDate" yaml:"expiryDate"`
	BannerImage string      `json:"bannerImage" yaml:"bannerImage"`
}

// Customer is a registered business buyer.
type Customer struct {
	ID           string         `json:"id" yaml:"id"`
	Name         string         `json:"name" yaml:"name"`
	Email        string         `json:"email" yaml:"email"`
	BusinessName string         `json:"businessName" yaml:"businessName"`
	Phone        string         `json:"phone" yaml:"phone"`
	Status       CustomerStatus `json:"status" yaml:"status"`
	BusinessType string         `json:"businessType" yaml:"businessType"`
	Location     string         `json:"location" yaml:"location"`
	CreditDays   int            `json:"creditDays" yaml:"creditDays"`
}

// Ptr returns a pointer to v. Patches use nil to mean "leave unchanged".
func Ptr[T any](v T) *T {
	return &v
}

// CategoryPatch carries main category fields for create and update.
type CategoryPatch struct {
	Name    *string `json:"name,omitempty"`
	Image   *string `json:"image,omitempty"`
	BgColor *string `json:"bgColor,omitempty"`
}

// SubCategoryPatch carries sub-category fields for create and update.
type SubCategoryPatch struct {
	Name           *string `json:"name,omitempty"`
	MainCategoryID *string `json:"mainCategoryId,omitempty"`
	Image          *string `json:"image,omitempty"`
}

// ProductPatch carries product fields for create and update. StockStatus is
// not settable; it is derived from Stock.
type ProductPatch struct {
	Name         *string          `json:"name,omitempty"`
	Category     *string          `json:"category,omitempty"`
	SubCategory  *string          `json:"subCategory,omitempty"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	Stock        *int             `json:"stock,omitempty"`
	Unit         *string          `json:"unit,omitempty"`
	PackagingQty *int             `json:"packagingQty,omitempty"`
	Origin       *string          `json:"origin,omitempty"`
	Variety      *string          `json:"variety,omitempty"`
	FSSAI        *string          `json:"fssai,omitempty"`
	Description  *string          `json:"description,omitempty"`
	Image        *string          `json:"image,omitempty"`
}

// OrderPatch carries the editable order fields.
type OrderPatch struct {
	Status         *OrderStatus `json:"status,omitempty"`
	InvoiceURL     *string      `json:"invoiceUrl,omitempty"`
	ShippingMethod *string      `json:"shippingMethod,omitempty"`
	PaymentMethod  *string      `json:"paymentMethod,omitempty"`
	CustomerEmail  *string      `json:"customerEmail,omitempty"`
	CustomerPhone  *string      `json:"customerPhone,omitempty"`
}

// OfferPatch carries offer fields for create and update.
type OfferPatch struct {
	Title       *string      `json:"title,omitempty"`
	Subtitle    *string      `json:"subtitle,omitempty"`
	Description *string      `json:"description,omitempty"`
	Status      *OfferStatus `json:"status,omitempty"`
	ExpiryDate  *string      `json:"expiryDate,omitempty"`
	BannerImage *string      `json:"bannerImage,omitempty"`
}

// CustomerPatch carries the editable customer fields.
type CustomerPatch struct {
	Status     *CustomerStatus `json:"status,omitempty"`
	CreditDays *int            `json:"creditDays,omitempty"`
}

// DocumentRef is a picked file, e.g. an invoice.
type DocumentRef struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// orDefault returns *p unless p is nil or empty.
func orDefault(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}
