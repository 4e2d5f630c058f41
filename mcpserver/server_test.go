package mcpserver

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/sessionbox/config"
	"github.com/isdmx/sessionbox/sandbox"
	"github.com/isdmx/sessionbox/session"
)

func newTestServer(t *testing.T) *MCPServer {
	t.Helper()
	logger := zaptest.NewLogger(t)

	cfg := &config.Config{
		Server: config.ServerConfig{
			Transport: "stdio",
			HTTPPort:  8080,
		},
		Sessions: config.SessionsConfig{BaseDir: t.TempDir()},
		Engine: config.EngineConfig{
			DefaultTimeoutSec: 10,
			PythonBin:         "python3",
		},
		Logging: config.LoggingConfig{Mode: "production", Level: "info"},
	}

	store, err := session.New(logger, cfg.Sessions.BaseDir)
	require.NoError(t, err)

	engine := sandbox.NewEngine(logger, store, sandbox.NewProcessRunner(logger))

	srv, err := New(cfg, logger, engine, store)
	require.NoError(t, err)
	require.NotNil(t, srv)

	return srv
}

func TestNewMCPServer(t *testing.T) {
	srv := newTestServer(t)

	assert.NotNil(t, srv.config)
	assert.NotNil(t, srv.logger)
	assert.NotNil(t, srv.engine)
	assert.NotNil(t, srv.store)
	assert.NotNil(t, srv.mcpServer)
	assert.NotNil(t, srv.GetMCPServer())
}

func TestFormatResult(t *testing.T) {
	t.Run("SuccessfulResult", func(t *testing.T) {
		formatted := formatResult(sandbox.Result{
			Status:     sandbox.StatusSuccess,
			ReturnCode: 0,
			Stdout:     "hello\n",
			Artifacts: sandbox.Artifacts{
				Files:      []string{"out.txt"},
				SessionDir: "/sessions/s1",
			},
			ExecutionTime: 0.12,
			Timestamp:     "2026-08-23T10:00:00Z",
		})

		assert.True(t, formatted.Success)
		assert.Equal(t, "hello\n", formatted.Output)
		assert.True(t, formatted.HasOutput)
		assert.False(t, formatted.HasError)
		assert.True(t, formatted.HasArtifacts)
		assert.Equal(t, []string{"out.txt"}, formatted.ArtifactFiles)
		assert.Equal(t, "/sessions/s1", formatted.SessionDir)
		assert.Empty(t, formatted.ErrorMessage)
	})

	t.Run("FailedResult", func(t *testing.T) {
		formatted := formatResult(sandbox.Result{
			Status:     sandbox.StatusError,
			ReturnCode: 1,
			Stderr:     "ZeroDivisionError: division by zero",
			Artifacts:  sandbox.Artifacts{Files: []string{}},
		})

		assert.False(t, formatted.Success)
		assert.True(t, formatted.HasError)
		assert.False(t, formatted.HasOutput)
		assert.False(t, formatted.HasArtifacts)
		assert.Equal(t, "ZeroDivisionError: division by zero", formatted.ErrorMessage)
	})

	t.Run("NonzeroExitWithoutStderrIsStillAnError", func(t *testing.T) {
		formatted := formatResult(sandbox.Result{
			Status:     sandbox.StatusError,
			ReturnCode: 2,
		})

		assert.False(t, formatted.Success)
		assert.True(t, formatted.HasError)
		assert.Empty(t, formatted.ErrorMessage)
	})
}

func TestJSONToolResult(t *testing.T) {
	result, err := jsonToolResult(map[string]any{"success": true, "count": 2})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.JSONEq(t, `{"success":true,"count":2}`, text.Text)
}
