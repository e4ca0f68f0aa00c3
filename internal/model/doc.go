// Package model defines the data structures shared by the probe pipeline,
// the report writers and the history database.
//
// The main type is ProbeReport: one URL, everything read from the page
// (title, cookies, viewport, requests), the artifacts written to disk and
// the findings of the audit step. All types serialize to JSON.
package model
