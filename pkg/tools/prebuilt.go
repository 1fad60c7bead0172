package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/dieharders/ai-text-server-sub000/pkg/registry"
)

// PrebuiltSource serves the tools compiled into the binary.
type PrebuiltSource struct {
	tools *registry.BaseRegistry[Tool]
}

// Builtins returns every prebuilt tool keyed by name.
func Builtins() map[string]Tool {
	return map[string]Tool{
		CalculatorName: Calculator(),
		ClockName:      Clock(time.Now),
	}
}

// NewPrebuiltSource exposes the named builtins. An empty list exposes all.
func NewPrebuiltSource(enabled []string) (*PrebuiltSource, error) {
	builtins := Builtins()
	src := &PrebuiltSource{tools: registry.NewBaseRegistry[Tool]()}

	if len(enabled) == 0 {
		src.tools.Replace(builtins)
		return src, nil
	}
	for _, name := range enabled {
		t, ok := builtins[name]
		if !ok {
			return nil, fmt.Errorf("unknown prebuilt tool %q", name)
		}
		if err := src.tools.Register(name, t); err != nil {
			return nil, err
		}
	}
	return src, nil
}

func (s *PrebuiltSource) Name() string { return SourcePrebuilt }

func (s *PrebuiltSource) Lookup(name string) (Tool, bool) {
	return s.tools.Get(name)
}

func (s *PrebuiltSource) List() []Tool {
	return s.tools.List()
}

// CalculatorName and ClockName are the prebuilt tool names.
const (
	CalculatorName = "calculator"
	ClockName      = "clock"
)

type calculatorArgs struct {
	ValueA    int    `json:"valueA" jsonschema:"required" jsonschema_description:"First operand"`
	ValueB    int    `json:"valueB" jsonschema:"required" jsonschema_description:"Second operand"`
	Operation string `json:"operation" jsonschema:"required,enum=multiply,enum=add,enum=subtract,enum=divide" jsonschema_description:"Arithmetic operation to apply"`
}

var operationAliases = map[string]string{
	"add":            "+",
	"+":              "+",
	"addition":       "+",
	"plus":           "+",
	"-":              "-",
	"subtract":       "-",
	"subtraction":    "-",
	"minus":          "-",
	"*":              "*",
	"mul":            "*",
	"multiple":       "*",
	"x":              "*",
	"X":              "*",
	"times":          "*",
	"multiplication": "*",
	"multiply":       "*",
	"/":              "/",
	"divide":         "/",
	"div":            "/",
	"division":       "/",
}

// Calculator performs integer arithmetic on two operands. Division returns
// a float.
func Calculator() Tool {
	return MustFunction(CalculatorName,
		"Perform simple arithmetic on numbers (operands) according to the specified operation.",
		calculatorArgs{ValueA: 2, ValueB: 6, Operation: "add"},
		func(_ context.Context, args calculatorArgs) (any, error) {
			op, ok := operationAliases[args.Operation]
			if !ok {
				return nil, fmt.Errorf("invalid value %q specified for tool parameter 'operation'", args.Operation)
			}
			switch op {
			case "+":
				return args.ValueA + args.ValueB, nil
			case "-":
				return args.ValueA - args.ValueB, nil
			case "*":
				return args.ValueA * args.ValueB, nil
			default:
				if args.ValueB == 0 {
					return nil, fmt.Errorf("division by zero")
				}
				return float64(args.ValueA) / float64(args.ValueB), nil
			}
		})
}

type clockArgs struct {
	Timezone string `json:"timezone" jsonschema:"required" jsonschema_description:"IANA time zone name such as UTC or Europe/Berlin"`
}

// Clock reports the current time in a time zone. now is injectable for tests.
func Clock(now func() time.Time) Tool {
	return MustFunction(ClockName,
		"Return the current date and time in the requested time zone.",
		clockArgs{Timezone: "UTC"},
		func(_ context.Context, args clockArgs) (any, error) {
			tz := args.Timezone
			if tz == "" {
				tz = "UTC"
			}
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return nil, fmt.Errorf("unknown timezone %q", tz)
			}
			return now().In(loc).Format("Monday, 2006-01-02 15:04:05 MST"), nil
		})
}
