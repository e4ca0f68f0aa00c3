// Package log provides slog loggers that mask sensitive values.
//
// Cookie values, authorization headers and tokens are replaced with
// MaskValue before they reach the output, even in verbose mode:
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("cookie read",
//	    slog.Group("cookie", "name", c.Name, "value", c.Value), // value is masked
//	)
//
// Printf bridges the browser driver's printf-style diagnostics into the
// same logger.
package log
