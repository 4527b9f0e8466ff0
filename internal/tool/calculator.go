package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// Calculator performs a basic arithmetic operation on two numbers.
type Calculator struct{}

// NewCalculator creates the calculator tool.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Name returns the stable tool identifier.
func (c *Calculator) Name() string {
	return "calculator"
}

// Description returns the tool description shown to the model.
func (c *Calculator) Description() string {
	return "Perform a basic arithmetic operation on two numbers. Supported operations: add, sub, mul, div."
}

// Parameters returns the JSON schema for the tool arguments.
func (c *Calculator) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"first_num": map[string]any{
				"type":        "number",
				"description": "The first operand",
			},
			"second_num": map[string]any{
				"type":        "number",
				"description": "The second operand",
			},
			"operation": map[string]any{
				"type": "string",
				"enum": []string{"add", "sub", "mul", "div"},
			},
		},
		"required": []string{"first_num", "second_num", "operation"},
	}
}

type calculatorArgs struct {
	FirstNum  float64 `json:"first_num"`
	SecondNum float64 `json:"second_num"`
	Operation string  `json:"operation"`
}

type calculatorResult struct {
	FirstNum  float64 `json:"first_num"`
	SecondNum float64 `json:"second_num"`
	Operation string  `json:"operation"`
	Result    float64 `json:"result"`
}

// Invoke evaluates the operation. Division by zero and unsupported
// operations produce error payloads, not failures.
func (c *Calculator) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	var in calculatorArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return ErrorPayload(fmt.Sprintf("Invalid arguments: %v", err)), nil
	}

	var result float64
	switch in.Operation {
	case "add":
		result = in.FirstNum + in.SecondNum
	case "sub":
		result = in.FirstNum - in.SecondNum
	case "mul":
		result = in.FirstNum * in.SecondNum
	case "div":
		if in.SecondNum == 0 {
			return ErrorPayload("Division by zero is not allowed"), nil
		}
		result = in.FirstNum / in.SecondNum
	default:
		return ErrorPayload(fmt.Sprintf("Unsupported operation '%s'", in.Operation)), nil
	}

	out, err := json.Marshal(calculatorResult{
		FirstNum:  in.FirstNum,
		SecondNum: in.SecondNum,
		Operation: in.Operation,
		Result:    result,
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
