package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
)

const (
	serverName      = "rigwatch-mcp"
	serverVersion   = "0.1.0"
	protocolVersion = "2024-11-05"
)

// MCPServer bridges stdio JSON-RPC to the rigwatch REST API.
type MCPServer struct {
	client *APIClient
	tools  []Tool
	logger *log.Logger
}

// NewMCPServer creates a new MCPServer with the given API base URL.
func NewMCPServer(baseURL string) *MCPServer {
	return &MCPServer{
		client: NewAPIClient(baseURL),
		tools:  AllTools(),
		logger: log.New(os.Stderr, "[rigwatch-mcp] ", log.LstdFlags),
	}
}

// Run starts the stdio JSON-RPC loop. It blocks until stdin is closed.
func (s *MCPServer) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve reads newline-delimited requests from r, dispatches them, and writes
// responses to w. It returns nil once r reaches EOF.
func (s *MCPServer) Serve(r io.Reader, w io.Writer) error {
	reader := bufio.NewReader(r)

	s.logger.Println("MCP server starting")

	for {
		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			s.handleLine(w, line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Println("input closed, shutting down")
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
	}
}

func (s *MCPServer) handleLine(w io.Writer, line []byte) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.writeError(w, nil, ErrCodeParseError, "Parse error: "+err.Error())
		return
	}

	s.logger.Printf("received method=%s id=%s", req.Method, string(req.ID))

	s.writeResponse(w, s.dispatch(&req))
}

// dispatch routes a JSON-RPC request to the appropriate handler.
func (s *MCPServer) dispatch(req *Request) *Response {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "initialized", "notifications/initialized":
		// Notification; nil means no response is written.
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &RPCError{
				Code:    ErrCodeMethodNotFound,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize handles the "initialize" method.
func (s *MCPServer) handleInitialize(req *Request) *Response {
	result := InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities: ServerCaps{
			Tools: &ToolsCap{},
		},
		ServerInfo: ServerInfo{
			Name:    serverName,
			Version: serverVersion,
		},
		Instructions: "rigwatch MCP server. Provides tools to inspect a rented GPU mining fleet: per-instance hash rate and cost, fleet totals, under-performing rigs, and account runway. Connect to a running rigwatch instance to use these tools.",
	}
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
	}
}

// handleToolsList handles the "tools/list" method.
func (s *MCPServer) handleToolsList(req *Request) *Response {
	result := ToolsListResult{
		Tools: s.tools,
	}
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
	}
}

// handleToolsCall handles the "tools/call" method.
func (s *MCPServer) handleToolsCall(req *Request) *Response {
	var params ToolCallParams
	if req.Params != nil {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return &Response{
				JSONRPC: "2.0",
				ID:      req.ID,
				Error: &RPCError{
					Code:    ErrCodeInvalidParams,
					Message: "Invalid params: " + err.Error(),
				},
			}
		}
	}

	if params.Name == "" {
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &RPCError{
				Code:    ErrCodeInvalidParams,
				Message: "Missing required parameter: name",
			},
		}
	}

	s.logger.Printf("calling tool: %s", params.Name)

	result, apiErr := s.executeTool(params.Name, params.Arguments)
	if apiErr != nil {
		s.logger.Printf("tool %s error: %v", params.Name, apiErr)
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: ToolCallResult{
				Content: []TextContent{
					{Type: "text", Text: fmt.Sprintf("Error: %s", apiErr.Error())},
				},
				IsError: true,
			},
		}
	}

	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: ToolCallResult{
			Content: []TextContent{
				{Type: "text", Text: string(result)},
			},
		},
	}
}

// executeTool dispatches to the correct API client method based on the tool name.
func (s *MCPServer) executeTool(name string, args map[string]interface{}) (json.RawMessage, error) {
	getString := func(key string) (string, error) {
		v, ok := args[key]
		if !ok {
			return "", fmt.Errorf("missing required argument: %s", key)
		}
		str, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("argument %s must be a string", key)
		}
		return str, nil
	}
	optString := func(key string) (string, error) {
		if _, ok := args[key]; !ok {
			return "", nil
		}
		return getString(key)
	}

	switch name {
	// ── Fleet ──
	case "get_fleet_summary":
		return s.client.GetFleetSummary()
	case "list_instances":
		sort, err := optString("sort")
		if err != nil {
			return nil, err
		}
		order, err := optString("order")
		if err != nil {
			return nil, err
		}
		return s.client.ListInstances(sort, order)
	case "get_instance":
		id, err := getString("id")
		if err != nil {
			return nil, err
		}
		return s.client.GetInstance(id)
	case "list_outliers":
		return s.client.ListOutliers()
	case "list_hardware_classes":
		return s.client.ListHardwareClasses()
	case "get_runway":
		return s.client.GetRunway()
	case "list_issues":
		kind, err := optString("kind")
		if err != nil {
			return nil, err
		}
		return s.client.ListIssues(kind)
	case "get_cycle_history":
		return s.client.GetCycleHistory()
	case "list_tripped_breakers":
		return s.client.ListTrippedBreakers()
	case "refresh_fleet":
		return s.client.RefreshFleet()

	// ── Config ──
	case "get_config":
		return s.client.GetConfig()

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// writeResponse writes a JSON-RPC response to the writer as a single JSON line.
func (s *MCPServer) writeResponse(w io.Writer, resp *Response) {
	if resp == nil {
		// Notifications don't get a response.
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Printf("ERROR: failed to marshal response: %v", err)
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.logger.Printf("ERROR: failed to write response: %v", err)
	}
}

// writeError writes a JSON-RPC error response to the writer.
func (s *MCPServer) writeError(w io.Writer, id json.RawMessage, code int, message string) {
	resp := &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &RPCError{
			Code:    code,
			Message: message,
		},
	}
	s.writeResponse(w, resp)
}
