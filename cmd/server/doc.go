// Package main is the entry point for the Sessionbox MCP server.
//
// Sessionbox executes untrusted Python code as child processes rooted in
// durable per-session working directories, with deadline enforcement,
// output capture, and artifact tracking. The server supports both stdio
// and HTTP transports.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main
