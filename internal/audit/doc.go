// Package audit inspects a finished probe report and turns what the page
// revealed into findings: insecure cookies, error statuses, mixed content,
// failed subresources, third-party hosts and baseline mismatches.
//
// Each check is a CheckAnalyzer; Analyzer runs them all and removes
// duplicates.
package audit
