package message

import (
	"fmt"
	"strings"

	"github.com/ignite/mailroom/internal/annotate"
	"github.com/ignite/mailroom/internal/render"
)

// BuildInput carries everything needed to compose one outbound message
// before the pipeline takes over. Body and HTMLOverride are template
// strings rendered against Locals.
type BuildInput struct {
	From    string
	To      []string
	CC      []string
	BCC     []string
	Subject string

	Body         string
	HTMLOverride string
	Locals       map[string]interface{}

	// UnsubscribeInstructions is instructional markup appended to the
	// text body and, combined with the action links, substituted for
	// the unsubscribe placeholder in the HTML override.
	UnsubscribeInstructions string

	// HeaderInstructions and RespondInstructions are instructional
	// markup cooked into the HTML override's matching placeholders.
	HeaderInstructions  string
	RespondInstructions string

	// ReplyAddress enables the one-click mailto action links. Empty
	// leaves the composed bodies without them.
	ReplyAddress string

	PostID  int64
	TopicID int64
	UserID  int64

	MessageID string
	Headers   []Header
}

// Builder composes outbound messages from templates. It owns no
// delivery policy; the pipeline decides what happens to the result.
type Builder struct {
	render *render.Service
}

// NewBuilder creates a builder backed by the given render service.
func NewBuilder(r *render.Service) *Builder {
	return &Builder{render: r}
}

// Build renders the templates and assembles the message. The text body
// always exists; the HTML part is composed only when an override
// template was given, since the pipeline generates a default HTML part
// for text-only messages anyway.
func (b *Builder) Build(in BuildInput) (*OutboundMessage, error) {
	body, err := b.render.Render(in.Body, in.Locals)
	if err != nil {
		return nil, fmt.Errorf("build: render body: %w", err)
	}

	var actionsHTML, actionsText string
	if in.ReplyAddress != "" {
		actionsHTML, actionsText = annotate.BuildActionLinks(in.Subject, in.ReplyAddress)
	}

	if block := textUnsubscribe(in.UnsubscribeInstructions, actionsText); block != "" {
		body = strings.TrimRight(body, "\n") + "\n\n" + block
	}

	msg := &OutboundMessage{
		From:      in.From,
		To:        in.To,
		CC:        in.CC,
		BCC:       in.BCC,
		Subject:   in.Subject,
		TextBody:  body,
		PostID:    in.PostID,
		TopicID:   in.TopicID,
		UserID:    in.UserID,
		MessageID: in.MessageID,
		Headers:   append([]Header(nil), in.Headers...),
	}

	if in.HTMLOverride != "" {
		htmlBody, err := b.render.Render(in.HTMLOverride, in.Locals)
		if err != nil {
			return nil, fmt.Errorf("build: render html override: %w", err)
		}
		msg.HTMLBody = substituteInstructions(htmlBody, in, actionsHTML)
	}

	return msg, nil
}

// Placeholders an HTML override template may carry. Each is replaced
// with its cooked instruction fragment, or removed when the input has
// none, so a template never ships a literal placeholder to recipients.
const (
	UnsubscribePlaceholder = "%{unsubscribe_instructions}"
	HeaderPlaceholder      = "%{header_instructions}"
	RespondPlaceholder     = "%{respond_instructions}"
)

func substituteInstructions(htmlBody string, in BuildInput, actionsHTML string) string {
	unsubscribe := ""
	if in.UnsubscribeInstructions != "" || actionsHTML != "" {
		unsubscribe = annotate.UnsubscribeBlock(in.UnsubscribeInstructions, actionsHTML)
	}
	htmlBody = strings.ReplaceAll(htmlBody, UnsubscribePlaceholder, unsubscribe)
	htmlBody = strings.ReplaceAll(htmlBody, HeaderPlaceholder, annotate.Cook(in.HeaderInstructions))
	return strings.ReplaceAll(htmlBody, RespondPlaceholder, annotate.Cook(in.RespondInstructions))
}

// textUnsubscribe joins the plain-text unsubscribe material: raw
// instructions first, one action link per line after.
func textUnsubscribe(instructions, actionsText string) string {
	parts := make([]string, 0, 2)
	if strings.TrimSpace(instructions) != "" {
		parts = append(parts, strings.TrimSpace(instructions))
	}
	if actionsText != "" {
		parts = append(parts, actionsText)
	}
	return strings.Join(parts, "\n\n")
}
