// Package main provides the entry point for the pageprobe CLI.
//
// pageprobe opens a page in Chrome over the DevTools protocol, waits for
// the network to go idle, saves a screenshot and reports the title, the
// cookies and the viewport of the page.
//
// Usage:
//
//	pageprobe probe [url]
//	pageprobe probe --list <file>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
