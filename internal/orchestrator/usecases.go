package orchestrator

import (
	"context"
	"fmt"
)

// InventoryQuery asks the model to walk the inventory and fetch suppliers for low stock
const InventoryQuery = "Check all products in inventory. For any below reorder point, get supplier contact details."

// SupportAgent answers customer questions about their orders
type SupportAgent struct {
	orch *Orchestrator
}

// NewSupportAgent creates a support agent on top of an orchestrator
func NewSupportAgent(orch *Orchestrator) *SupportAgent {
	return &SupportAgent{orch: orch}
}

// HandleOrderInquiry looks up the customer's account and answers their question
func (a *SupportAgent) HandleOrderInquiry(ctx context.Context, email, question string) (string, error) {
	query := fmt.Sprintf("Customer %s asks: %s. Please look up their account and help answer.", email, question)
	return a.orch.ProcessQuery(ctx, query)
}

// Inquiry is one customer question
type Inquiry struct {
	Email    string
	Question string
}

// DemoInquiries are the sample customer questions used by the support demo
var DemoInquiries = []Inquiry{
	{Email: "sarah.chen@techcorp.com", Question: "What's the status of my recent order?"},
	{Email: "sarah.chen@techcorp.com", Question: "What items did I order?"},
	{Email: "mike.rodriguez@startup.io", Question: "When will my order arrive?"},
}

// DemoQueries are the sample queries used by the continuous demo
var DemoQueries = []string{
	"Who is the supplier for wireless keyboards?",
	"What's the stock level of USB-C cables?",
	"Get contact info for the Logitech supplier",
}

// InventoryMonitor checks stock levels and gathers supplier contacts
type InventoryMonitor struct {
	orch *Orchestrator
}

// NewInventoryMonitor creates an inventory monitor on top of an orchestrator
func NewInventoryMonitor(orch *Orchestrator) *InventoryMonitor {
	return &InventoryMonitor{orch: orch}
}

// CheckLowStock reports products below their reorder point with supplier contacts
func (m *InventoryMonitor) CheckLowStock(ctx context.Context) (string, error) {
	return m.orch.ProcessQuery(ctx, InventoryQuery)
}
