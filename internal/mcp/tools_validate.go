package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nabbelbabbel/serenity/internal/sysio"
)

// handleValidate processes lmp2_validate tool calls. Schema violations
// are part of the verdict, not a tool error; only unreadable or
// unclassifiable documents fail the call.
func handleValidate(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input ValidateInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Path == "" {
		return errorResult(ErrEmptyPath)
	}

	result, err := sysio.ValidateFile(input.Path)
	if err != nil {
		return errorResult(fmt.Errorf("validate %s: %w", input.Path, err))
	}

	return jsonResult(result)
}
