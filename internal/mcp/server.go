// Package mcp implements a Model Context Protocol server exposing the
// correction solver as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nabbelbabbel/serenity/pkg/version"
)

// serverName is the MCP server implementation name.
const serverName = "serenity"

// toolCount is the expected number of registered tools.
const toolCount = 3

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil
	// disables tracing.
	Tracer trace.Tracer
}

// Server wraps the MCP SDK server with the solver tool registrations.
type Server struct {
	inner  *mcpsdk.Server
	mu     sync.RWMutex
	tools  []string
	tracer trace.Tracer
}

// NewServer creates a new MCP server with all solver tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		opts,
	)

	srv := &Server{
		inner:  inner,
		tools:  make([]string, 0, toolCount),
		tracer: deps.Tracer,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the
// context is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	err := s.inner.Run(ctx, &mcpsdk.StdioTransport{})
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// RunWithTransport starts the MCP server on the given transport. It
// blocks until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// registerTools adds all solver MCP tools to the server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameRun,
		Description: runToolDescription,
	}, withTracing(s.tracer, ToolNameRun, handleRun))
	s.trackTool(ToolNameRun)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameValidate,
		Description: validateToolDescription,
	}, withTracing(s.tracer, ToolNameValidate, handleValidate))
	s.trackTool(ToolNameValidate)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameEstimate,
		Description: estimateToolDescription,
	}, withTracing(s.tracer, ToolNameEstimate, handleEstimate))
	s.trackTool(ToolNameEstimate)
}

// mcpSpanPrefix is the prefix for MCP tool span names.
const mcpSpanPrefix = "mcp."

// withTracing wraps an MCP tool handler to create an OTel span per
// invocation and include the trace id in the response when sampled.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			traceContent := &mcpsdk.TextContent{Text: "trace_id=" + sc.TraceID().String()}
			result.Content = append(result.Content, traceContent)
		}

		return result, output, err
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

// Tool description constants.
const (
	runToolDescription = "Run a local MP2 pair correction on a serialized system file. " +
		"Accepts a system path, an optional settings path and an optional worker count; " +
		"returns the energy report with cycle and pair diagnostics as JSON."

	validateToolDescription = "Validate a system or settings YAML file against its schema. " +
		"The document kind is detected from its top-level keys; returns the verdict and field errors."

	estimateToolDescription = "Compute semicanonical per-pair energy estimates for a system file " +
		"without iterating. A quick triage of which pairs matter."
)
