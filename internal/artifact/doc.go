// Package artifact names, writes and inspects the files a probe leaves
// behind: the screenshot, the printed PDF and the intercepted HTML dump.
//
// Writes are verified by reading the file metadata back, so a caller that
// gets a nil error knows the file exists and is not empty.
package artifact
