package pipeline

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/mailroom/internal/config"
	"github.com/ignite/mailroom/internal/lookup"
	"github.com/ignite/mailroom/internal/message"
	"github.com/ignite/mailroom/internal/render"
)

// Enricher mutates a gated message's headers and metadata in place:
// charset, HTML part, Message-ID, mailing-list identification, bounce
// routing, reply-key substitution, custom headers and provider metadata.
type Enricher struct {
	render *render.Service
}

// NewEnricher creates an enricher backed by the given render service.
func NewEnricher(r *render.Service) *Enricher {
	return &Enricher{render: r}
}

// Enrichment reports values the enricher generated that the delivery
// log needs later.
type Enrichment struct {
	BounceKey string
}

// Enrich applies every header and metadata step, in order. Lookup
// misses have already been resolved into dctx; absent entities degrade
// each step to a no-op rather than aborting the send.
func (e *Enricher) Enrich(msg *message.OutboundMessage, dctx *DeliveryContext) (*Enrichment, error) {
	out := &Enrichment{}
	host := dctx.Site.Host()

	// 1. Everything leaves as UTF-8
	msg.Charset = "UTF-8"

	// 2. Ensure an HTML part exists
	if strings.TrimSpace(msg.HTMLBody) == "" {
		htmlBody, err := e.render.RenderLayout(render.TextToHTML(msg.TextBody), dctx.Site.Title, dctx.Site.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("enrich: render html part: %w", err)
		}
		msg.HTMLBody = htmlBody
	}

	// 3. Default Message-ID
	if msg.MessageID == "" {
		msg.MessageID = fmt.Sprintf("<%s@%s>", uuid.NewString(), host)
	}

	// 4. Mailing-list identification headers. Only messages about a
	// concrete post are list traffic, and group mailbox conversations
	// never are.
	if msg.ReferencesPost() && dctx.Topic != nil && dctx.SMTPGroupID == nil {
		msg.SetHeader("Precedence", "list")
		msg.SetHeader("List-ID", ListID(dctx.Site.Title, dctx.Category, dctx.ParentCategory, host))
		if dctx.Site.PrivateEmail {
			msg.SetHeader("List-Archive", dctx.Topic.SluglessURL(dctx.Site.BaseURL))
		} else {
			msg.SetHeader("List-Archive", dctx.Topic.URL(dctx.Site.BaseURL))
		}
	}

	// 5. Bounce correlation via the envelope return path
	if dctx.Site.BounceableReplyAddress {
		id := uuid.New()
		out.BounceKey = hex.EncodeToString(id[:])
		// The MTA uses this as the envelope-from, so bounces come back
		// to an address that identifies this send.
		msg.SetHeader("Return-Path", dctx.Site.BounceAddress(out.BounceKey))
	}

	// 6. Reply-by-email key substitution
	if dctx.ReplyKey != "" {
		if replyTo := msg.Header("Reply-To"); strings.Contains(replyTo, message.ReplyKeyPlaceholder) {
			msg.SetHeader("Reply-To", strings.ReplaceAll(replyTo, message.ReplyKeyPlaceholder, dctx.ReplyKey))
		}
		msg.HTMLBody = strings.ReplaceAll(msg.HTMLBody, message.ReplyKeyPlaceholder, dctx.ReplyKey)
		msg.DeleteHeader(message.AllowReplyByEmailHeader)
	}

	// 7. Site custom headers, one effective value per name
	e.mergeCustomHeaders(msg, dctx)

	// 8. Provider metadata carrying our message-id
	e.addProviderMetadata(msg, dctx.Provider)

	return out, nil
}

// mergeCustomHeaders applies the site's configured headers. Values the
// pipeline computed always win over the configured ones, and every name
// ends up with exactly one value even though RFC 5322 would allow more.
func (e *Enricher) mergeCustomHeaders(msg *message.OutboundMessage, dctx *DeliveryContext) {
	for _, raw := range dctx.Site.CustomHeaders {
		name, value, ok := strings.Cut(raw, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" {
			continue
		}

		// Auto-Submitted hurts deliverability scoring on group
		// conversations, which are direct replies, not automation.
		if strings.EqualFold(name, "Auto-Submitted") && dctx.SMTPGroupID != nil {
			msg.DeleteHeader(name)
			continue
		}

		effective := msg.Header(name)
		if effective == "" {
			effective = value
		}

		if strings.Contains(effective, message.ReplyKeyPlaceholder) {
			if dctx.ReplyKey == "" {
				msg.DeleteHeader(name)
				continue
			}
			effective = strings.ReplaceAll(effective, message.ReplyKeyPlaceholder, dctx.ReplyKey)
		}

		msg.SetHeader(name, effective)
	}
}

// addProviderMetadata attaches the provider-specific header that echoes
// our message-id back in delivery events. Provider identity comes from
// explicit configuration, never from sniffing the transport endpoint.
func (e *Enricher) addProviderMetadata(msg *message.OutboundMessage, provider string) {
	switch provider {
	case config.ProviderMailjet:
		msg.SetHeader("X-MJ-CustomID", msg.MessageID)
	case config.ProviderMandrill:
		mergeJSONHeader(msg, "X-MC-Metadata", map[string]interface{}{"message_id": msg.MessageID})
	case config.ProviderSparkPost:
		mergeJSONHeader(msg, "X-MSYS-API", map[string]interface{}{
			"metadata": map[string]interface{}{"message_id": msg.MessageID},
		})
	}
}

func mergeJSONHeader(msg *message.OutboundMessage, name string, fields map[string]interface{}) {
	merged := map[string]interface{}{}
	if existing := msg.Header(name); existing != "" {
		json.Unmarshal([]byte(existing), &merged)
	}
	for k, v := range fields {
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return
	}
	msg.SetHeader(name, string(data))
}

// ListID computes the RFC 2919 List-ID for a topic's category placement.
// Subcategories extend both the display name and the id host with the
// parent; uncategorized topics fall back to the plain site form.
func ListID(siteTitle string, cat, parent *lookup.Category, host string) string {
	if cat == nil {
		return fmt.Sprintf("%s <%s>", siteTitle, host)
	}
	if parent != nil {
		return fmt.Sprintf("%s | %s %s <%s.%s.%s>",
			siteTitle, parent.Name, cat.Name, categorySlug(cat.Name), categorySlug(parent.Name), host)
	}
	return fmt.Sprintf("%s | %s <%s.%s>", siteTitle, cat.Name, categorySlug(cat.Name), host)
}

func categorySlug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}
