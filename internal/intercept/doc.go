// Package intercept rewrites HTML documents on their way into the browser.
//
// An Interceptor enables the DevTools Fetch domain for document responses,
// inspects every paused response and either lets it continue untouched or
// fulfills it with a copy that carries a fixed banner right after the
// opening <body> tag. Any failure while rewriting falls back to continuing
// the original response, so interception never blocks a page load.
package intercept
