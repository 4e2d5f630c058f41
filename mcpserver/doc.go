// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the execution engine as MCP tools using the
// mark3labs/mcp-go library. The execute_code tool is the primary interface;
// list_sessions, clear_session, session_info and export_session expose
// session management.
//
// The adapter validates and coerces caller input, applies the configured
// default deadline, and reshapes the engine's result record with the
// convenience fields workflow hosts key on (success, output, has_error,
// error_message, artifact_files).
//
// The server supports both stdio and HTTP transports as configured by the
// application configuration.
package mcpserver
