// Package report renders probe reports.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text for terminal display
//   - JSONWriter and FullJSONWriter: structured JSON for tool integration
//   - MarkdownWriter: tables, alerts and a mermaid chart for sharing
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
