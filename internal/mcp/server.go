package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/sf2809-filler/internal/config"
	"github.com/a3tai/sf2809-filler/internal/descriptions"
	"github.com/a3tai/sf2809-filler/internal/mapping"
	"github.com/a3tai/sf2809-filler/internal/pdf/fill"
	"github.com/a3tai/sf2809-filler/internal/pdf/security"
)

// Filler fills the form into a directory and leaves the document there
type Filler interface {
	Fill(ctx context.Context, values fill.Values, destDir string) (string, error)
	Table() *mapping.Table
}

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	filler    Filler
	paths     *security.PathValidator
	mcpServer *server.MCPServer
	logger    log.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, filler Filler, logger log.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if filler == nil {
		return nil, fmt.Errorf("filler cannot be nil")
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	paths, err := security.NewPathValidator(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("invalid output directory: %w", err)
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		filler:    filler,
		paths:     paths,
		mcpServer: mcpServer,
		logger:    log.With(logger, "component", "mcp"),
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	fillTool := mcp.NewTool(
		"sf2809_fill",
		mcp.WithDescription(descriptions.GetToolDescription("sf2809_fill")),
		mcp.WithObject("values",
			mcp.Required(),
			mcp.Description("Field values keyed by api name"),
		),
		mcp.WithString("directory",
			mcp.Description("Sub-directory of the output directory (uses the output directory if empty)"),
		),
	)
	s.mcpServer.AddTool(fillTool, s.handleFill)

	fieldsTool := mcp.NewTool(
		"sf2809_fields",
		mcp.WithDescription(descriptions.GetToolDescription("sf2809_fields")),
	)
	s.mcpServer.AddTool(fieldsTool, s.handleFields)
}

func (s *Server) handleFill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	values, err := decodeValues(args["values"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	directory := ""
	if dir, ok := args["directory"].(string); ok {
		directory = dir
	}
	destDir, err := s.paths.EnsureDirectory(directory, config.DefaultDirPerm)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	path, err := s.filler.Fill(ctx, values, destDir)
	if err != nil {
		level.Info(s.logger).Log("method", "handleFill", "msg", "fill", "err", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("Filled SF2809 written to: %s\n", path)
	responseText += fmt.Sprintf("Fields set: %d\n", len(values))
	if info, err := os.Stat(path); err == nil {
		responseText += fmt.Sprintf("Size: %d bytes\n", info.Size())
	}
	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.formatFields(s.filler.Table())), nil
}

// decodeValues accepts the values argument as an object or as a JSON string
func decodeValues(arg interface{}) (fill.Values, error) {
	switch v := arg.(type) {
	case nil:
		return nil, fmt.Errorf("required argument \"values\" not found")
	case string:
		return fill.DecodeValues(strings.NewReader(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("invalid values: %w", err)
		}
		return fill.DecodeValues(strings.NewReader(string(data)))
	}
}

// Formatting methods
func (s *Server) formatFields(table *mapping.Table) string {
	records := table.Records()
	text := fmt.Sprintf("SF2809 fields (%d):\n", len(records))
	for i, r := range records {
		text += fmt.Sprintf("%d. %s (%s)", i+1, r.APIName, r.Type)
		if r.AltText != "" {
			text += fmt.Sprintf(": %s", r.AltText)
		}
		if len(r.Options) > 0 {
			text += fmt.Sprintf(" [options: %s]", strings.Join(r.Options, ", "))
		}
		text += "\n"
	}
	return text
}

// Run serves MCP over the process's standard input and output until ctx is done
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve serves MCP over in and out
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	if s.config.IsDebug() {
		level.Debug(s.logger).Log("msg", "serving stdio", "output_dir", s.paths.BaseDirectory())
	}

	stdio := server.NewStdioServer(s.mcpServer)
	if err := stdio.Listen(ctx, literalReader(in), out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// literalReader passes in through line by line, applying keepNumberLiterals
// to every message
func literalReader(in io.Reader) io.Reader {
	pr, pw := io.Pipe()
	go func() {
		r := bufio.NewReader(in)
		for {
			line, err := r.ReadBytes('\n')
			if len(line) > 0 {
				if _, werr := pw.Write(keepNumberLiterals(line)); werr != nil {
					return
				}
			}
			if err != nil {
				pw.CloseWithError(err)
				return
			}
		}
	}()
	return pr
}

// keepNumberLiterals turns the numbers in an sf2809_fill "values" argument
// into strings holding their JSON text. mcp-go decodes arguments into
// float64, which would print 12345678901234567890 as 1.2345678901234567e+19.
// Any other message is returned unchanged.
func keepNumberLiterals(message []byte) []byte {
	dec := json.NewDecoder(bytes.NewReader(message))
	dec.UseNumber()

	var msg map[string]interface{}
	if err := dec.Decode(&msg); err != nil || msg["method"] != string(mcp.MethodToolsCall) {
		return message
	}
	params, _ := msg["params"].(map[string]interface{})
	if params["name"] != "sf2809_fill" {
		return message
	}
	args, _ := params["arguments"].(map[string]interface{})
	values, _ := args["values"].(map[string]interface{})

	changed := false
	for k, v := range values {
		if n, ok := v.(json.Number); ok {
			values[k] = n.String()
			changed = true
		}
	}
	if !changed {
		return message
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return message
	}
	return append(data, '\n')
}
