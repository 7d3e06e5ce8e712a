// Package annotate builds the one-click mailto action links and the
// instructional HTML fragments spliced into notification emails.
package annotate

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
)

// Actions is the fixed, ordered set of reply-by-email actions. "like"
// targets the post the notification is about; the rest target its topic.
var Actions = []string{"like", "watch", "track", "mute"}

// ActionTarget returns what an action applies to: "post" or "topic".
func ActionTarget(action string) string {
	if action == "like" {
		return "post"
	}
	return "topic"
}

// MailtoURI builds the mailto URI for one action. The subject is
// percent-encoded; the body is the literal action keyword so the inbound
// mail poller can parse it.
func MailtoURI(replyAddress, subject, action string) string {
	encoded := strings.ReplaceAll(url.QueryEscape(subject), "+", "%20")
	return fmt.Sprintf("mailto:%s?subject=%s&body=%s", replyAddress, encoded, action)
}

// BuildActionLinks returns the HTML and plain-text fragments carrying one
// line per action. The HTML fragment is line-level only (joined with
// <br/>) so the caller can splice it into an open paragraph; the caller
// closes the block. An empty reply address still renders: suppression is
// the caller's policy decision, not ours.
func BuildActionLinks(subject, replyAddress string) (htmlFragment, textFragment string) {
	htmlLines := make([]string, 0, len(Actions))
	textLines := make([]string, 0, len(Actions))
	for _, action := range Actions {
		uri := MailtoURI(replyAddress, subject, action)
		htmlLines = append(htmlLines,
			fmt.Sprintf(`To %s the %s, <a href="%s">click here</a>.`, action, ActionTarget(action), uri))
		textLines = append(textLines,
			fmt.Sprintf("To %s the %s: %s", action, ActionTarget(action), uri))
	}
	return strings.Join(htmlLines, "<br/>"), strings.Join(textLines, "\n")
}

var markdownLink = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)

// Cook converts instructional markup (plain text with markdown-style
// links) into a safe HTML paragraph. Substitution placeholders like
// %{reply_key} survive untouched.
func Cook(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}
	escaped := html.EscapeString(markup)
	linked := markdownLink.ReplaceAllString(escaped, `<a href="$2">$1</a>`)
	paragraphs := strings.Split(linked, "\n\n")
	for i, p := range paragraphs {
		paragraphs[i] = "<p>" + strings.ReplaceAll(strings.TrimSpace(p), "\n", "<br>") + "</p>"
	}
	return strings.Join(paragraphs, "\n")
}

// UnsubscribeBlock combines cooked unsubscribe instructions with the
// action links inside one paragraph. When instructions exist their
// closing </p> is held open so the links land in the same block.
func UnsubscribeBlock(instructions, actionLinksHTML string) string {
	if strings.TrimSpace(instructions) == "" {
		return "<p>" + actionLinksHTML + "</p>"
	}
	cooked := Cook(instructions)
	if i := strings.LastIndex(cooked, "</p>"); i >= 0 {
		cooked = cooked[:i] + cooked[i+len("</p>"):]
	}
	return cooked + "<br/>" + actionLinksHTML + "</p>"
}
