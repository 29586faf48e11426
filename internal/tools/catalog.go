package tools

import (
	"github.com/s33g/omni-probe/internal/llm"
)

// ChainStep is one hop of the customer-data chain
type ChainStep struct {
	Tool  string
	Query string
}

// ChainSteps walks email -> user -> order -> product -> supplier -> contact -> territory -> manager
var ChainSteps = []ChainStep{
	{"lookup_user", "Look up the user with email sarah.chen@techcorp.com"},
	{"get_user_orders", "Get all orders for this user"},
	{"get_order_details", "Get details of the first order"},
	{"check_inventory", "Check inventory for the first product in that order"},
	{"get_supplier_info", "Get the supplier information for this product"},
	{"get_contact_details", "Get the contact details for this supplier"},
	{"get_territory_info", "Get the territory information for this contact"},
	{"get_manager_info", "Get the manager information for this territory"},
}

// Chain returns the eight chain tools
func Chain() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		Function("lookup_user", "Find user account by email address",
			Param{"email", "User's email address"}),
		Function("get_user_orders", "Get all orders for a user",
			Param{"user_id", "User ID from lookup_user"}),
		Function("get_order_details", "Get detailed information about an order",
			Param{"order_id", "Order ID from get_user_orders"}),
		Function("check_inventory", "Check inventory levels for a product",
			Param{"product_id", "Product ID from order details"}),
		Function("get_supplier_info", "Get information about a supplier",
			Param{"supplier_id", "Supplier ID from inventory"}),
		Function("get_contact_details", "Get contact person details for a supplier",
			Param{"contact_id", "Contact ID from supplier info"}),
		Function("get_territory_info", "Get information about a sales territory",
			Param{"territory_id", "Territory ID from contact details"}),
		Function("get_manager_info", "Get information about a territory manager",
			Param{"manager_id", "Manager ID from territory info"}),
	}
}

// Demo tools used by the tool-cycle demos
var (
	Weather   = Function("get_weather", "Get current weather for a city", Param{Name: "city"})
	Stock     = Function("get_stock", "Get stock price for a symbol", Param{Name: "symbol"})
	Search    = Function("search_web", "Search the web", Param{Name: "query"})
	Calculate = Function("calculate", "Evaluate an arithmetic expression", Param{Name: "expression"})
)

// Demo returns all demo tools
func Demo() []llm.ToolDefinition {
	return []llm.ToolDefinition{Weather, Stock, Search, Calculate}
}
