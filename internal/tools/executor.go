package tools

import (
	"encoding/json"
	"fmt"

	"github.com/s33g/omni-probe/internal/toolcall"
)

// Executor answers a raw name(args) call with a JSON result string
type Executor interface {
	Execute(call string) string
}

// ExecutorFunc adapts a function to Executor
type ExecutorFunc func(call string) string

// Execute calls f
func (f ExecutorFunc) Execute(call string) string {
	return f(call)
}

// GenericMockResult is returned for every call by GenericMock
const GenericMockResult = `{"status":"success","data":"mocked_result"}`

// GenericMock answers every call with the same success payload
var GenericMock Executor = ExecutorFunc(func(string) string {
	return GenericMockResult
})

func errorResult(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func marshal(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(data)
}

// DemoMock answers the weather, stock, search and calculate demo tools
var DemoMock Executor = ExecutorFunc(func(call string) string {
	c, err := toolcall.Parse(call)
	if err != nil {
		return marshal(errorResult("Unknown tool"))
	}

	switch c.Name {
	case "get_weather":
		city := c.FirstString()
		if city == "" {
			city = "Unknown"
		}
		return marshal(map[string]any{"city": city, "temperature": 22, "condition": "sunny", "humidity": 65})
	case "get_stock":
		symbol := c.FirstString()
		if symbol == "" {
			symbol = "UNKNOWN"
		}
		return marshal(map[string]any{"symbol": symbol, "price": 150.25, "change": 2.5, "change_percent": 1.69})
	case "search_web":
		return marshal(map[string]any{"results": []string{
			"AI breakthrough in language models",
			"New machine learning framework released",
			"Tech company announces AI product",
		}})
	case "calculate":
		return marshal(map[string]int{"result": 42})
	default:
		return marshal(errorResult("Unknown tool"))
	}
})

// DatasetExecutor routes the chain tools to a Dataset
type DatasetExecutor struct {
	data *Dataset
}

// NewDatasetExecutor creates an executor over ds
func NewDatasetExecutor(ds *Dataset) *DatasetExecutor {
	return &DatasetExecutor{data: ds}
}

// Dataset returns the backing data
func (e *DatasetExecutor) Dataset() *Dataset {
	return e.data
}

// Execute looks up the first quoted argument of call in the matching table
func (e *DatasetExecutor) Execute(call string) string {
	c, err := toolcall.Parse(call)
	if err != nil {
		return marshal(errorResult(err.Error()))
	}
	return marshal(e.lookup(c.Name, ParamValue(call)))
}

func (e *DatasetExecutor) lookup(tool, key string) any {
	d := e.data
	switch tool {
	case "lookup_user":
		return find(d.Users, key, "User not found")
	case "get_user_orders":
		if orders, ok := d.Orders[key]; ok {
			return orders
		}
		return []Order{}
	case "get_order_details":
		return find(d.OrderDetails, key, "Order not found")
	case "check_inventory":
		return find(d.Inventory, key, "Product not found")
	case "get_supplier_info":
		return find(d.Suppliers, key, "Supplier not found")
	case "get_contact_details":
		return find(d.Contacts, key, "Contact not found")
	case "get_territory_info":
		return find(d.Territories, key, "Territory not found")
	case "get_manager_info":
		return find(d.Managers, key, "Manager not found")
	default:
		return errorResult("Unknown tool: " + tool)
	}
}

func find[T any](table map[string]T, key, notFound string) any {
	if v, ok := table[key]; ok {
		return v
	}
	return errorResult(notFound)
}

// ParamValue returns the value of the first key="..." or key='...' argument.
// Positional and unquoted arguments are ignored, so the lookup reports not found.
func ParamValue(call string) string {
	c, err := toolcall.Parse(call)
	if err != nil {
		return ""
	}
	for _, k := range c.Order {
		if k[0] != '$' && c.Quoted[k] {
			return c.Args[k]
		}
	}
	return ""
}
