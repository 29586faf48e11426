package tools

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed dataset.yaml
var datasetYAML []byte

// User is an account keyed by email
type User struct {
	UserID        string `yaml:"user_id" json:"user_id"`
	Name          string `yaml:"name" json:"name"`
	AccountType   string `yaml:"account_type" json:"account_type"`
	CustomerSince string `yaml:"customer_since" json:"customer_since"`
}

// Order is one entry in a user's order list
type Order struct {
	OrderID string  `yaml:"order_id" json:"order_id"`
	Date    string  `yaml:"date" json:"date"`
	Total   float64 `yaml:"total" json:"total"`
	Status  string  `yaml:"status" json:"status"`
}

// OrderItem is a product line in an order
type OrderItem struct {
	ProductID string  `yaml:"product_id" json:"product_id"`
	Name      string  `yaml:"name" json:"name"`
	Quantity  int     `yaml:"quantity" json:"quantity"`
	Price     float64 `yaml:"price" json:"price"`
}

// OrderDetails holds the items and shipping info of an order
type OrderDetails struct {
	Items           []OrderItem `yaml:"items" json:"items"`
	ShippingAddress string      `yaml:"shipping_address" json:"shipping_address"`
	WarehouseID     string      `yaml:"warehouse_id" json:"warehouse_id"`
}

// StockLevel is the inventory record of a product
type StockLevel struct {
	Stock        int    `yaml:"stock" json:"stock"`
	SupplierID   string `yaml:"supplier_id" json:"supplier_id"`
	ReorderPoint int    `yaml:"reorder_point" json:"reorder_point"`
}

// BelowReorderPoint reports whether the product needs restocking
func (s StockLevel) BelowReorderPoint() bool {
	return s.Stock < s.ReorderPoint
}

// Supplier is a product supplier
type Supplier struct {
	Name         string  `yaml:"name" json:"name"`
	ContactID    string  `yaml:"contact_id" json:"contact_id"`
	LeadTimeDays int     `yaml:"lead_time_days" json:"lead_time_days"`
	Rating       float64 `yaml:"rating" json:"rating"`
}

// Contact is a supplier contact person
type Contact struct {
	Name        string `yaml:"name" json:"name"`
	Email       string `yaml:"email" json:"email"`
	Phone       string `yaml:"phone" json:"phone"`
	TerritoryID string `yaml:"territory_id" json:"territory_id"`
}

// Territory is a sales territory
type Territory struct {
	Name      string   `yaml:"name" json:"name"`
	ManagerID string   `yaml:"manager_id" json:"manager_id"`
	Coverage  []string `yaml:"coverage" json:"coverage"`
}

// Manager is a territory manager
type Manager struct {
	Name         string `yaml:"name" json:"name"`
	Title        string `yaml:"title" json:"title"`
	DepartmentID string `yaml:"department_id" json:"department_id"`
}

// Dataset is the linked customer/supply data the chain tools read from
type Dataset struct {
	Users        map[string]User         `yaml:"users"`
	Orders       map[string][]Order      `yaml:"orders"`
	OrderDetails map[string]OrderDetails `yaml:"order_details"`
	Inventory    map[string]StockLevel   `yaml:"inventory"`
	Suppliers    map[string]Supplier     `yaml:"suppliers"`
	Contacts     map[string]Contact      `yaml:"contacts"`
	Territories  map[string]Territory    `yaml:"territories"`
	Managers     map[string]Manager      `yaml:"managers"`
}

// LoadDataset parses a dataset from YAML
func LoadDataset(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	return &ds, nil
}

// DefaultDataset returns the embedded dataset
func DefaultDataset() *Dataset {
	ds, err := LoadDataset(datasetYAML)
	if err != nil {
		panic(err)
	}
	return ds
}
