// Package browser wraps chromedp: it launches (or connects to) Chrome,
// opens tabs, applies device emulation and runs the individual page
// actions a probe needs. It also watches the network to decide when a
// page has settled and can trace every DevTools event to a file.
package browser
