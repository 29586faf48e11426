package toolcall

import (
	"errors"
	"reflect"
	"testing"
)

func TestBetween(t *testing.T) {
	input := `Sure. <|tool_call_start|>[get_weather(city="Paris")]<|tool_call_end|> done`

	got, ok := Between(input)
	if !ok {
		t.Fatal("Between() found no markers")
	}
	if want := `[get_weather(city="Paris")]`; got != want {
		t.Errorf("Between() = %q, want %q", got, want)
	}

	if _, ok := Between("<|tool_call_start|>[a()]"); ok {
		t.Error("Between() should fail without an end marker")
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "single call",
			content: `<|tool_call_start|>[get_weather(city="Paris")]<|tool_call_end|>`,
			want:    []string{`get_weather(city="Paris")`},
		},
		{
			name:    "multiple calls with spaces",
			content: "text <|tool_call_start|> [tool_1(input='test'), tool_2(input='x')] <|tool_call_end|>",
			want:    []string{`tool_1(input='test')`, `tool_2(input='x')`},
		},
		{
			name:    "no arguments",
			content: `<|tool_call_start|>[list_tools()]<|tool_call_end|>`,
			want:    []string{"list_tools()"},
		},
		{
			name:    "no start marker",
			content: `get_weather(city="Paris")<|tool_call_end|>`,
			want:    nil,
		},
		{
			name:    "no end marker",
			content: `<|tool_call_start|>[get_weather(city="Paris")]`,
			want:    nil,
		},
		{
			name:    "empty list",
			content: `<|tool_call_start|>[]<|tool_call_end|>`,
			want:    nil,
		},
		{
			name:    "plain answer",
			content: "The weather in Paris is sunny.",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.content)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Extract() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	calls := []string{`lookup_user(email="sarah.chen@techcorp.com")`, `get_user_orders(user_id="usr_8k2m9p4")`}
	if got := Extract(Format(calls...)); !reflect.DeepEqual(got, calls) {
		t.Errorf("Extract(Format()) = %v, want %v", got, calls)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		call      string
		wantName  string
		wantArgs  map[string]string
		wantFirst string
	}{
		{"double quoted", `lookup_user(email="sarah.chen@techcorp.com")`, "lookup_user",
			map[string]string{"email": "sarah.chen@techcorp.com"}, "sarah.chen@techcorp.com"},
		{"single quoted", `tool_1(input='test')`, "tool_1",
			map[string]string{"input": "test"}, "test"},
		{"several args", `test_tool(param_1="a, b", param_2=3)`, "test_tool",
			map[string]string{"param_1": "a, b", "param_2": "3"}, "a, b"},
		{"positional", `get_stock("AAPL")`, "get_stock",
			map[string]string{"$0": "AAPL"}, "AAPL"},
		{"empty", `list_tools()`, "list_tools", map[string]string{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse(tt.call)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if c.Name != tt.wantName {
				t.Errorf("Name = %s, want %s", c.Name, tt.wantName)
			}
			if !reflect.DeepEqual(c.Args, tt.wantArgs) {
				t.Errorf("Args = %v, want %v", c.Args, tt.wantArgs)
			}
			if got := c.FirstString(); got != tt.wantFirst {
				t.Errorf("FirstString() = %q, want %q", got, tt.wantFirst)
			}
		})
	}

	c, err := Parse(`test_tool(param_1="a", param_2=3)`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !c.Quoted["param_1"] || c.Quoted["param_2"] {
		t.Errorf("Quoted = %v, want only param_1", c.Quoted)
	}

	if _, err := Parse("not a call"); !errors.Is(err, ErrNoToolCall) {
		t.Errorf("Parse() error = %v, want ErrNoToolCall", err)
	}
}

func TestExtractInvocations(t *testing.T) {
	content := `I will turn on the AC.
<invoke>
{"name": "car_ac_control", "arguments": {"temperature": 22, "ac_on": true}}
</invoke>
<invoke>not json</invoke>`

	got := ExtractInvocations(content)
	if len(got) != 1 {
		t.Fatalf("Invocations = %d, want 1", len(got))
	}
	if got[0].Name != "car_ac_control" || got[0].Arguments["ac_on"] != true {
		t.Errorf("Invocation = %+v", got[0])
	}
}
