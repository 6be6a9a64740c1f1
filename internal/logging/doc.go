// Package logging configures structured slog output for webrecall.
//
// CLI commands log to stderr; long-running modes (serve, mcp) log to a
// rotating file under the state directory. MCP mode never writes to
// stdout or stderr because stdout carries the JSON-RPC stream.
package logging
