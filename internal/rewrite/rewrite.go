// Package rewrite converts relative upload references in the processed
// body part into absolute, plain-text-friendly Markdown.
package rewrite

import "regexp"

// The patterns are literal contracts with the compose stage: attachment
// anchors carry class="attachment" and upload paths always start with
// /uploads/default/. Already-absolute URLs never match, which makes the
// rewrite idempotent.
var (
	attachmentAnchor = regexp.MustCompile(`<a class="attachment" href="(/uploads/default/[^"]+)">([^<]*)</a>`)
	uploadImage      = regexp.MustCompile(`<img src="(/uploads/default/[^"]+)"([^>]*)>`)
)

// UploadLinks rewrites relative upload anchors and images in a body to
// Markdown with absolute URLs, prefixing baseURL. Plain-text renderers
// cannot resolve relative paths, so the first (processed) body part gets
// this treatment before sending.
func UploadLinks(body, baseURL string) string {
	body = attachmentAnchor.ReplaceAllString(body, `[$2|attachment](`+baseURL+`$1)`)
	body = uploadImage.ReplaceAllString(body, `![](`+baseURL+`$1)`)
	return body
}
