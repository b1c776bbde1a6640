// Package mcp serves vendor search and its operational reports as MCP tools
// over stdio (newline-delimited JSON-RPC 2.0).
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/vendorsearch/pkg/logging"
	"github.com/pario-ai/vendorsearch/pkg/models"
)

// Searcher runs one search. *search.Engine implements it.
type Searcher interface {
	Search(ctx context.Context, req models.SearchRequest) (models.SearchResponse, error)
}

// CacheStatter reports cache statistics. *cache.Store implements it.
type CacheStatter interface {
	Stats(ctx context.Context) (models.CacheStats, error)
}

// SpendReader summarizes provider spend. tracker.Tracker implements it.
type SpendReader interface {
	DailySummary(ctx context.Context, since time.Time) ([]models.SpendSummary, error)
}

// BudgetReporter reports spend against policies. *budget.Enforcer implements it.
type BudgetReporter interface {
	Status(ctx context.Context) ([]models.BudgetStatus, error)
}

// LogQuerier reads the search log. *searchlog.Logger implements it.
type LogQuerier interface {
	Query(ctx context.Context, opts models.SearchLogQueryOpts) ([]models.SearchLogEntry, error)
}

// Options wires the tool backends. Only Searcher is required; tools whose
// backend is nil answer that the feature is not configured.
type Options struct {
	Cache     CacheStatter
	Spend     SpendReader
	Budget    BudgetReporter
	SearchLog LogQuerier
	Version   string
	Logger    *zap.Logger
}

// Server is a minimal MCP server.
type Server struct {
	searcher Searcher
	opts     Options
	log      *zap.Logger
}

// New creates a Server.
func New(searcher Searcher, opts Options) *Server {
	return &Server{
		searcher: searcher,
		opts:     opts,
		log:      logging.Named(opts.Logger, "mcp"),
	}
}

// Run reads requests from r line by line and writes responses to w. It
// returns when r is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(w, errorResponse(nil, CodeParseError, "parse error"))
			continue
		}

		if resp := s.dispatch(ctx, &req); resp != nil {
			s.write(w, resp)
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: "vendorsearch", Version: s.opts.Version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		})
	case "notifications/initialized":
		return nil
	case "ping":
		return resultResponse(req.ID, map[string]any{})
	case "tools/list":
		return resultResponse(req.ID, ToolsListResult{Tools: allTools})
	case "tools/call":
		var params ToolCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, CodeInvalidParams, "invalid params")
		}
		handler, ok := toolHandlers[params.Name]
		if !ok {
			return resultResponse(req.ID, errorResult("unknown tool: "+params.Name))
		}
		return resultResponse(req.ID, handler(ctx, s, params.Arguments))
	default:
		return errorResponse(req.ID, CodeMethodNotFound, "unknown method: "+req.Method)
	}
}

func (s *Server) write(w io.Writer, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("marshal response", zap.Error(err))
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.log.Error("write response", zap.Error(err))
	}
}
