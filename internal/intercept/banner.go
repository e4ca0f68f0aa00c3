package intercept

import (
	"bytes"
	"html"
	"strconv"
	"strings"

	"github.com/chromedp/cdproto/fetch"
	xhtml "golang.org/x/net/html"
)

// bannerStyle pins the banner to the top of the viewport above everything else.
const bannerStyle = "position:fixed;top:0;left:0;width:100%;" +
	"background-color:#ff5722;color:white;padding:20px;text-align:center;" +
	"font-size:24px;z-index:2147483647;font-family:Arial,sans-serif;" +
	"box-shadow:0 2px 10px rgba(0,0,0,0.5);"

// BannerHTML returns the banner element for text. The text is escaped.
func BannerHTML(text string) string {
	return `<div data-pageprobe-banner style="` + bannerStyle + `">` + html.EscapeString(text) + `</div>`
}

// InjectBanner inserts banner right after the first <body ...> start tag.
// When the document has no body tag the banner is prepended and the
// second return value is false.
func InjectBanner(body []byte, banner string) ([]byte, bool) {
	offset, ok := bodyTagEnd(body)
	if !ok {
		out := make([]byte, 0, len(banner)+len(body))
		out = append(out, banner...)
		return append(out, body...), false
	}

	out := make([]byte, 0, len(body)+len(banner))
	out = append(out, body[:offset]...)
	out = append(out, banner...)
	return append(out, body[offset:]...), true
}

// bodyTagEnd returns the byte offset just past the first <body> start tag.
// Tags inside comments, scripts or attribute values are not matched.
func bodyTagEnd(doc []byte) (int, bool) {
	z := xhtml.NewTokenizer(bytes.NewReader(doc))
	offset := 0
	for {
		tt := z.Next()
		if tt == xhtml.ErrorToken {
			return 0, false
		}
		offset += len(z.Raw())
		if tt != xhtml.StartTagToken && tt != xhtml.SelfClosingTagToken {
			continue
		}
		if name, _ := z.TagName(); string(name) == "body" {
			return offset, true
		}
	}
}

// IsHTML reports whether the Content-Type header denotes an HTML document.
func IsHTML(headers []*fetch.HeaderEntry) bool {
	ct := headerValue(headers, "Content-Type")
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// RewriteContentLength returns a copy of headers with Content-Length set
// to length, appending the header when it is missing.
func RewriteContentLength(headers []*fetch.HeaderEntry, length int) []*fetch.HeaderEntry {
	out := make([]*fetch.HeaderEntry, 0, len(headers)+1)
	found := false
	for _, h := range headers {
		entry := &fetch.HeaderEntry{Name: h.Name, Value: h.Value}
		if strings.EqualFold(h.Name, "Content-Length") {
			entry.Value = strconv.Itoa(length)
			found = true
		}
		out = append(out, entry)
	}
	if !found {
		out = append(out, &fetch.HeaderEntry{Name: "Content-Length", Value: strconv.Itoa(length)})
	}
	return out
}

func headerValue(headers []*fetch.HeaderEntry, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return strings.ToLower(h.Value)
		}
	}
	return ""
}
