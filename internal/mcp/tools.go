package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool name constants.
const (
	ToolNameRun      = "lmp2_run"
	ToolNameValidate = "lmp2_validate"
	ToolNameEstimate = "lmp2_estimate"
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptySystemPath indicates the system_path parameter is empty.
	ErrEmptySystemPath = errors.New("system_path parameter is required and must not be empty")
	// ErrEmptyPath indicates the path parameter is empty.
	ErrEmptyPath = errors.New("path parameter is required and must not be empty")
	// ErrNegativeWorkers indicates a negative worker count.
	ErrNegativeWorkers = errors.New("workers must not be negative")
)

// Input types (JSON schemas are generated from the struct tags).

// RunInput is the input schema for the lmp2_run tool.
type RunInput struct {
	SystemPath   string `json:"system_path"             jsonschema:"path to a serialized pair-system YAML file"`
	SettingsPath string `json:"settings_path,omitempty" jsonschema:"optional settings YAML path (default: defaults plus environment)"`
	Workers      int    `json:"workers,omitempty"       jsonschema:"optional coupling-reduction worker count (default: from settings)"`
}

// ValidateInput is the input schema for the lmp2_validate tool.
type ValidateInput struct {
	Path string `json:"path" jsonschema:"path to a system or settings YAML file"`
}

// EstimateInput is the input schema for the lmp2_estimate tool.
type EstimateInput struct {
	SystemPath string `json:"system_path" jsonschema:"path to a serialized pair-system YAML file"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
