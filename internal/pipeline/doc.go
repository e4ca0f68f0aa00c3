// Package pipeline runs a probe as a sequence of steps.
//
// A probe is launch, navigate, wait, screenshot, title, cookies, viewport
// and close; optional steps (device emulation, cookies and headers,
// interception, PDF, baseline comparison) slot in around them. Each step
// receives the report accumulated so far and the browser Page it drives.
//
// By default the first failing step stops the pipeline. In keep-going mode
// only critical steps (navigation) stop it; other failures are recorded in
// the report and Execute returns ErrProbeIncomplete at the end, so a
// partial probe never looks like a successful one.
//
// BatchProcessor probes several URLs concurrently, each in its own tab,
// with concurrency control using errgroup.
package pipeline
