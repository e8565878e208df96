// Package mcpserver exposes the calculator catalog as Model Context Protocol
// tools so assistants can discover and run calculators over stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator"
	"github.com/matiasleandrokruk/calcatalog/internal/version"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverName = "calcatalog"

const (
	ToolSearch   = "search_calculators"
	ToolDescribe = "describe_calculator"
	ToolExecute  = "execute_calculator"
)

// Executor runs one calculator. *calculator.Dispatcher implements it.
type Executor interface {
	Execute(ctx context.Context, id string, raw map[string]any) calculator.Result
}

type SearchArgs struct {
	Query    string `json:"query,omitempty" jsonschema:"free text matched against id, title, description and tags"`
	Category string `json:"category,omitempty" jsonschema:"restrict results to one category"`
}

type SearchResult struct {
	Calculators []Summary `json:"calculators"`
}

// Summary is the short listing form of a descriptor.
type Summary struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Tags     []string `json:"tags,omitempty"`
}

type DescribeArgs struct {
	ID string `json:"id" jsonschema:"calculator id"`
}

type DescribeResult struct {
	Calculator calculator.Descriptor `json:"calculator"`
}

type ExecuteArgs struct {
	ID    string         `json:"id" jsonschema:"calculator id"`
	Input map[string]any `json:"input,omitempty" jsonschema:"input values keyed by field name"`
}

// Server binds a resolver and an executor to an MCP server.
type Server struct {
	resolver calculator.Resolver
	executor Executor
	logger   *slog.Logger
	mcp      *mcp.Server
}

// New builds the MCP server and registers the catalog tools.
func New(resolver calculator.Resolver, executor Executor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		resolver: resolver,
		executor: executor,
		logger:   logger,
		mcp:      mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version.Version}, nil),
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolSearch,
		Description: "Searches the calculator catalog. An empty query lists every calculator.",
	}, s.search)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolDescribe,
		Description: "Returns the full descriptor of a calculator including its input schema.",
	}, s.describe)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolExecute,
		Description: "Validates input against a calculator's schema and runs it.",
	}, s.execute)
	return s
}

// Serve runs the server on stdio until the client disconnects or ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.ServeTransport(ctx, &mcp.StdioTransport{})
}

// ServeTransport runs the server on transport.
func (s *Server) ServeTransport(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("mcp server starting", "tools", 3)
	err := s.mcp.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve mcp: %w", err)
	}
	return nil
}

func (s *Server) search(_ context.Context, _ *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, SearchResult, error) {
	var found []calculator.Descriptor
	switch {
	case args.Query != "":
		found = s.resolver.Search(args.Query)
	case args.Category != "":
		for d := range s.resolver.ListByCategory(args.Category) {
			found = append(found, d)
		}
	default:
		found = s.resolver.All()
	}

	out := SearchResult{Calculators: make([]Summary, 0, len(found))}
	for _, d := range found {
		if args.Query != "" && args.Category != "" && d.Category != args.Category {
			continue
		}
		out.Calculators = append(out.Calculators, Summary{ID: d.ID, Title: d.Title, Category: d.Category, Tags: d.Tags})
	}
	return nil, out, nil
}

func (s *Server) describe(_ context.Context, _ *mcp.CallToolRequest, args DescribeArgs) (*mcp.CallToolResult, DescribeResult, error) {
	d, err := s.resolver.GetByID(args.ID)
	if err != nil {
		return nil, DescribeResult{}, fmt.Errorf("%s: %w", args.ID, err)
	}
	return nil, DescribeResult{Calculator: d}, nil
}

// execute reports calculator failures as a structured Result rather than a
// tool error so callers can branch on errorKind.
func (s *Server) execute(ctx context.Context, _ *mcp.CallToolRequest, args ExecuteArgs) (*mcp.CallToolResult, calculator.Result, error) {
	res := s.executor.Execute(ctx, args.ID, args.Input)
	if !res.OK {
		s.logger.Debug("mcp execution failed", "id", args.ID, "kind", res.ErrorKind, "message", res.Message)
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%s: %s", res.ErrorKind, res.Message)}},
		}, res, nil
	}
	return nil, res, nil
}
