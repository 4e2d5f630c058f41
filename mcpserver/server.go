package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/sessionbox/config"
	"github.com/isdmx/sessionbox/sandbox"
	"github.com/isdmx/sessionbox/session"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	engine    *sandbox.Engine
	store     *session.Store
	mcpServer *server.MCPServer
}

// executeResponse reshapes an engine result for workflow hosts
type executeResponse struct {
	Success       bool              `json:"success"`
	Status        string            `json:"status"`
	ReturnCode    int               `json:"returncode"`
	Output        string            `json:"output"`
	Stdout        string            `json:"stdout"`
	Stderr        string            `json:"stderr"`
	ExecutionTime float64           `json:"execution_time"`
	Timestamp     string            `json:"timestamp"`
	Artifacts     sandbox.Artifacts `json:"artifacts"`
	HasArtifacts  bool              `json:"has_artifacts"`
	ArtifactFiles []string          `json:"artifact_files"`
	SessionDir    string            `json:"session_dir"`
	HasOutput     bool              `json:"has_output"`
	HasError      bool              `json:"has_error"`
	ErrorMessage  string            `json:"error_message,omitempty"`
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, engine *sandbox.Engine, store *session.Store) (*MCPServer, error) {
	s := &MCPServer{
		config: cfg,
		logger: logger,
		engine: engine,
		store:  store,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", cfg.Server.Transport),
		zap.Int("server.http_port", cfg.Server.HTTPPort),
		zap.String("sessions.base_dir", cfg.Sessions.BaseDir),
		zap.Int("engine.default_timeout_sec", cfg.Engine.DefaultTimeoutSec),
		zap.String("engine.python_bin", cfg.Engine.PythonBin),
		zap.Bool("safety.enabled", cfg.Safety.Enabled),
	)

	s.mcpServer = server.NewMCPServer("sessionbox", "A session-isolated code execution server")

	s.registerExecuteCodeTool()
	s.registerSessionTools()

	return s, nil
}

// registerExecuteCodeTool registers the execute_code tool
func (s *MCPServer) registerExecuteCodeTool() {
	tool := mcp.Tool{
		Name:        "execute_code",
		Description: "Execute Python code in a session-isolated working directory",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Python code to execute",
				},
				"session_id": map[string]any{
					"type":        "string",
					"description": "Session identifier selecting the durable working directory",
				},
				"timeout_sec": map[string]any{
					"type":        "number",
					"description": "Execution deadline in seconds (0 = unbounded, default from config)",
				},
				"context": map[string]any{
					"type":        "object",
					"description": "JSON-serializable values bound as top-level variables (optional)",
				},
				"capture_artifacts": map[string]any{
					"type":        "boolean",
					"description": "Report newly created session files (default true)",
				},
				"workdir_tar": map[string]any{
					"type":        "string",
					"description": "Base64-encoded tar.gz seeded into the session directory before execution (optional)",
				},
			},
			Required: []string{"code", "session_id"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecuteCode)
}

// registerSessionTools registers the session management tools
func (s *MCPServer) registerSessionTools() {
	sessionIDSchema := map[string]any{
		"type":        "string",
		"description": "Session identifier",
	}

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all session identifiers",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, s.handleListSessions)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "clear_session",
		Description: "Delete a session directory and all files in it",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionIDSchema},
			Required:   []string{"session_id"},
		},
	}, s.handleClearSession)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "session_info",
		Description: "Get a session's directory path and file listing",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionIDSchema},
			Required:   []string{"session_id"},
		},
	}, s.handleSessionInfo)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "export_session",
		Description: "Download a session directory as a base64-encoded tar.gz archive",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionIDSchema},
			Required:   []string{"session_id"},
		},
	}, s.handleExportSession)
}

// handleExecuteCode handles the execute_code tool
func (s *MCPServer) handleExecuteCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return nil, fmt.Errorf("session_id parameter is required: %w", err)
	}

	timeoutSec := request.GetFloat("timeout_sec", float64(s.config.Engine.DefaultTimeoutSec))
	captureArtifacts := request.GetBool("capture_artifacts", true)

	var contextVars map[string]any
	if raw, ok := request.GetArguments()["context"].(map[string]any); ok {
		contextVars = raw
	}

	// Seed the session directory before execution so seeded files count as
	// pre-existing, not artifacts.
	if workdirTarStr := request.GetString("workdir_tar", ""); workdirTarStr != "" {
		tarData, decodeErr := base64.StdEncoding.DecodeString(workdirTarStr)
		if decodeErr != nil {
			return nil, fmt.Errorf("failed to decode workdir_tar: %w", decodeErr)
		}

		dir, resolveErr := s.store.Resolve(sessionID)
		if resolveErr != nil {
			return nil, fmt.Errorf("failed to resolve session: %w", resolveErr)
		}

		if extractErr := session.ExtractArchive(&session.RealFileSystem{}, tarData, dir); extractErr != nil {
			return nil, fmt.Errorf("failed to extract workdir_tar: %w", extractErr)
		}
	}

	s.logger.Info("code execution requested",
		zap.String("session_id", sessionID),
		zap.Int("code_len", len(code)),
		zap.Float64("timeout_sec", timeoutSec))

	result, err := s.engine.Execute(ctx, sandbox.Request{
		Code:             strings.TrimSpace(code),
		SessionID:        strings.TrimSpace(sessionID),
		Timeout:          time.Duration(timeoutSec * float64(time.Second)),
		Context:          contextVars,
		CaptureArtifacts: captureArtifacts,
	})
	if err != nil {
		s.logger.Error("execution infrastructure failure",
			zap.Error(err),
			zap.String("session_id", sessionID))
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf("Execution failed: %v", err),
				},
			},
			IsError: true,
		}, nil
	}

	s.logger.Info("code execution completed",
		zap.String("session_id", sessionID),
		zap.String("status", result.Status),
		zap.Int("returncode", result.ReturnCode),
		zap.Int("artifacts", len(result.Artifacts.Files)))

	return jsonToolResult(formatResult(result))
}

// formatResult reshapes an engine result into the workflow-host record
func formatResult(result sandbox.Result) executeResponse {
	var errorMessage string
	if result.Stderr != "" {
		errorMessage = result.Stderr
	}

	return executeResponse{
		Success:       result.Status == sandbox.StatusSuccess && result.ReturnCode == 0,
		Status:        result.Status,
		ReturnCode:    result.ReturnCode,
		Output:        result.Stdout,
		Stdout:        result.Stdout,
		Stderr:        result.Stderr,
		ExecutionTime: result.ExecutionTime,
		Timestamp:     result.Timestamp,
		Artifacts:     result.Artifacts,
		HasArtifacts:  len(result.Artifacts.Files) > 0,
		ArtifactFiles: result.Artifacts.Files,
		SessionDir:    result.Artifacts.SessionDir,
		HasOutput:     strings.TrimSpace(result.Stdout) != "",
		HasError:      strings.TrimSpace(result.Stderr) != "" || result.ReturnCode != 0,
		ErrorMessage:  errorMessage,
	}
}

// handleListSessions handles the list_sessions tool
func (s *MCPServer) handleListSessions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions, err := s.store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	sort.Strings(sessions)

	return jsonToolResult(map[string]any{
		"success":  true,
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// handleClearSession handles the clear_session tool
func (s *MCPServer) handleClearSession(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return nil, fmt.Errorf("session_id parameter is required: %w", err)
	}

	deleted, err := s.store.Clear(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to clear session: %w", err)
	}

	message := fmt.Sprintf("Session '%s' not found", sessionID)
	if deleted {
		message = fmt.Sprintf("Session '%s' cleared successfully", sessionID)
	}

	return jsonToolResult(map[string]any{
		"success": deleted,
		"message": message,
	})
}

// handleSessionInfo handles the session_info tool
func (s *MCPServer) handleSessionInfo(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return nil, fmt.Errorf("session_id parameter is required: %w", err)
	}

	exists, err := s.store.Exists(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to stat session: %w", err)
	}

	files := []string{}
	if exists {
		files, err = s.store.ListFiles(sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to list session files: %w", err)
		}
	}

	dir, err := s.store.Resolve(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}

	return jsonToolResult(map[string]any{
		"session_id":  sessionID,
		"session_dir": dir,
		"files":       files,
		"exists":      exists,
	})
}

// handleExportSession handles the export_session tool
func (s *MCPServer) handleExportSession(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return nil, fmt.Errorf("session_id parameter is required: %w", err)
	}

	exists, err := s.store.Exists(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to stat session: %w", err)
	}
	if !exists {
		return jsonToolResult(map[string]any{
			"success": false,
			"message": fmt.Sprintf("Session '%s' not found", sessionID),
		})
	}

	dir, err := s.store.Resolve(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}

	data, err := session.ArchiveDir(dir, sandbox.IsTransientScript)
	if err != nil {
		return nil, fmt.Errorf("failed to archive session: %w", err)
	}

	return jsonToolResult(map[string]any{
		"success":     true,
		"session_id":  sessionID,
		"archive_tar": base64.StdEncoding.EncodeToString(data),
	})
}

// jsonToolResult marshals v into a text tool result
func jsonToolResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(data),
			},
		},
	}, nil
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
