// Package styles post-processes the final HTML part of an outbound email:
// size policy for short notifications and inlining of redacted secure
// images. This is a real HTML pass, unlike the regex upload rewrites.
package styles

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ignite/mailroom/internal/message"
)

// SecureMediaSelector matches the redaction placeholder the compose stage
// leaves in place of an access-controlled image.
const SecureMediaSelector = "[data-secure-media-id]"

// Processor holds a parsed HTML part for final mutations before sending.
type Processor struct {
	doc     *goquery.Document
	doctype string
}

// NewProcessor parses an HTML body. The doctype (if any) survives
// re-serialization.
func NewProcessor(htmlBody string) (*Processor, error) {
	doctype := ""
	trimmed := strings.TrimSpace(htmlBody)
	if strings.HasPrefix(strings.ToLower(trimmed), "<!doctype") {
		if i := strings.IndexByte(trimmed, '>'); i >= 0 {
			doctype = trimmed[:i+1] + "\n"
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return nil, fmt.Errorf("styles: parse html: %w", err)
	}
	return &Processor{doc: doc, doctype: doctype}, nil
}

// HasImages reports whether the document contains any img tags.
func (p *Processor) HasImages() bool {
	return p.doc.Find("img").Length() > 0
}

// StripAvatarsAndEmojis removes avatar and emoji images. Short
// notification emails drop them to keep the payload small; the
// surrounding text carries the meaning anyway.
func (p *Processor) StripAvatarsAndEmojis() {
	p.doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if img.HasClass("avatar") || img.HasClass("emoji") ||
			strings.Contains(src, "/user_avatar/") || strings.Contains(src, "/images/emoji/") {
			img.Remove()
		}
	})
}

// InlineSecureImages replaces each secure-media redaction placeholder
// with the actual image, embedded as a base64 data URI from the matching
// attachment. Placeholders without a matching attachment are left alone.
func (p *Processor) InlineSecureImages(attachments []message.Attachment) {
	byID := make(map[string]message.Attachment, len(attachments))
	for _, att := range attachments {
		if att.SecureID != "" {
			byID[att.SecureID] = att
		}
	}
	if len(byID) == 0 {
		return
	}

	p.doc.Find(SecureMediaSelector).Each(func(_ int, placeholder *goquery.Selection) {
		id, _ := placeholder.Attr("data-secure-media-id")
		att, ok := byID[id]
		if !ok {
			return
		}
		ct := att.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		uri := fmt.Sprintf("data:%s;base64,%s", ct, base64.StdEncoding.EncodeToString(att.Content))
		placeholder.ReplaceWithHtml(fmt.Sprintf(`<img src="%s" alt="%s">`, uri, att.Filename))
	})
}

// HTML serializes the processed document.
func (p *Processor) HTML() (string, error) {
	out, err := p.doc.Html()
	if err != nil {
		return "", fmt.Errorf("styles: serialize html: %w", err)
	}
	return p.doctype + out, nil
}
