package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/mailroom/internal/config"
	"github.com/ignite/mailroom/internal/lookup"
	"github.com/ignite/mailroom/internal/maillog"
	"github.com/ignite/mailroom/internal/message"
	"github.com/ignite/mailroom/internal/pkg/logger"
	"github.com/ignite/mailroom/internal/rewrite"
	"github.com/ignite/mailroom/internal/styles"
	"github.com/ignite/mailroom/internal/transport"
)

// Pipeline runs a message through the full outbound path: gatekeeping,
// enrichment, body rewriting, style processing, delivery and logging.
// One call, one outcome.
type Pipeline struct {
	site      config.SiteConfig
	provider  string
	lookup    *lookup.Store
	maillog   *maillog.Store
	transport transport.Transport
	enricher  *Enricher
}

// New wires a pipeline from its collaborators.
func New(site config.SiteConfig, provider string, ls *lookup.Store, ml *maillog.Store, t transport.Transport, e *Enricher) *Pipeline {
	return &Pipeline{
		site:      site,
		provider:  provider,
		lookup:    ls,
		maillog:   ml,
		transport: t,
		enricher:  e,
	}
}

// Send processes one outbound message. The returned outcome is either
// Sent with the transport's receipt, or Skipped with the recorded
// reason. An error return means the pipeline itself failed and nothing
// was logged as sent.
func (p *Pipeline) Send(ctx context.Context, msg *message.OutboundMessage, emailType string) (*Outcome, error) {
	dctx := &DeliveryContext{Site: p.site, Provider: p.provider}

	if msg != nil && msg.UserID != 0 {
		user, err := p.lookup.GetUser(ctx, msg.UserID)
		if err != nil {
			return nil, fmt.Errorf("pipeline: lookup user %d: %w", msg.UserID, err)
		}
		dctx.User = user
	}

	if d := Evaluate(msg, dctx, emailType); d.Skip {
		return p.skip(ctx, msg, emailType, d)
	}

	if d, err := p.resolveReferences(ctx, msg, dctx); err != nil {
		return nil, err
	} else if d != nil {
		return p.skip(ctx, msg, emailType, *d)
	}

	enrichment, err := p.enricher.Enrich(msg, dctx)
	if err != nil {
		return nil, err
	}

	msg.TextBody = rewrite.UploadLinks(msg.TextBody, p.site.BaseURL)

	if err := p.processStyles(msg); err != nil {
		return nil, err
	}

	resp, d, err := deliver(ctx, p.transport, msg)
	if err != nil {
		return nil, fmt.Errorf("pipeline: deliver via %s: %w", p.transport.Name(), err)
	}
	if d != nil {
		return p.skip(ctx, msg, emailType, *d)
	}

	entry, err := p.buildEntry(ctx, msg, emailType, dctx, enrichment, resp)
	if err != nil {
		return nil, err
	}
	if err := p.maillog.InsertSent(ctx, entry); err != nil {
		return nil, fmt.Errorf("pipeline: record sent: %w", err)
	}

	logger.Info("email sent",
		"email_type", emailType,
		"to_address", msg.PrimaryRecipient(),
		"message_id", msg.MessageID,
	)

	return &Outcome{
		Status:            StatusSent,
		MessageID:         msg.MessageID,
		TransportResponse: resp.Line,
	}, nil
}

// resolveReferences loads the post, topic and surrounding context the
// message points at. A reference to a deleted entity is a recorded
// skip, returned as a non-nil decision.
func (p *Pipeline) resolveReferences(ctx context.Context, msg *message.OutboundMessage, dctx *DeliveryContext) (*Decision, error) {
	if msg.PostID != 0 {
		post, err := p.lookup.GetPost(ctx, msg.PostID)
		if err != nil {
			return nil, fmt.Errorf("pipeline: lookup post %d: %w", msg.PostID, err)
		}
		if post == nil {
			return &Decision{Skip: true, Reason: SkipPostDeleted}, nil
		}
		dctx.Post = post
		if msg.TopicID == 0 {
			msg.TopicID = post.TopicID
		}
	}

	// Topic context only matters for messages about a concrete post:
	// those get mailing-list headers and must not go out when their
	// topic is gone. A topic id without a post reference is carried
	// through untouched.
	if msg.ReferencesPost() {
		topic, err := p.lookup.GetTopic(ctx, msg.TopicID)
		if err != nil {
			return nil, fmt.Errorf("pipeline: lookup topic %d: %w", msg.TopicID, err)
		}
		if topic == nil {
			return &Decision{Skip: true, Reason: SkipTopicDeleted}, nil
		}
		dctx.Topic = topic

		if topic.CategoryID.Valid {
			cat, err := p.lookup.GetCategory(ctx, topic.CategoryID.Int64)
			if err != nil {
				return nil, fmt.Errorf("pipeline: lookup category %d: %w", topic.CategoryID.Int64, err)
			}
			dctx.Category = cat
			if cat != nil && cat.ParentID.Valid {
				parent, err := p.lookup.GetCategory(ctx, cat.ParentID.Int64)
				if err != nil {
					return nil, fmt.Errorf("pipeline: lookup parent category %d: %w", cat.ParentID.Int64, err)
				}
				dctx.ParentCategory = parent
			}
		}
	}

	groupID, err := p.lookup.SMTPGroupID(ctx, msg.From)
	if err != nil {
		return nil, fmt.Errorf("pipeline: lookup smtp group: %w", err)
	}
	dctx.SMTPGroupID = groupID

	if msg.PostID != 0 && msg.UserID != 0 && p.wantsReplyKey(msg) {
		key, err := p.lookup.ReplyKey(ctx, msg.PostID, msg.UserID)
		if err != nil {
			return nil, fmt.Errorf("pipeline: reply key: %w", err)
		}
		dctx.ReplyKey = key
	}

	return nil, nil
}

func (p *Pipeline) wantsReplyKey(msg *message.OutboundMessage) bool {
	if msg.Header(message.AllowReplyByEmailHeader) == "" {
		return false
	}
	return p.site.ReplyByEmailAddress != ""
}

// processStyles runs the HTML part through the DOM processors. Short
// digest-style emails lose their avatar and emoji images when the site
// asks for it; secure uploads get inlined as data URIs when embedding
// is allowed.
func (p *Pipeline) processStyles(msg *message.OutboundMessage) error {
	if msg.HTMLBody == "" {
		return nil
	}

	strip := p.site.StripImagesFromShortEmails &&
		len(msg.HTMLBody) <= p.site.ShortEmailThresholdBytes
	inline := p.site.SecureMediaAllowEmbed && len(msg.Attachments) > 0

	if !strip && !inline {
		return nil
	}

	proc, err := styles.NewProcessor(msg.HTMLBody)
	if err != nil {
		return fmt.Errorf("pipeline: parse html part: %w", err)
	}

	if strip && proc.HasImages() {
		proc.StripAvatarsAndEmojis()
	}
	if inline {
		proc.InlineSecureImages(msg.Attachments)
	}

	html, err := proc.HTML()
	if err != nil {
		return fmt.Errorf("pipeline: serialize html part: %w", err)
	}
	msg.HTMLBody = html
	return nil
}

// buildEntry assembles the delivery log row for a successful send.
func (p *Pipeline) buildEntry(ctx context.Context, msg *message.OutboundMessage, emailType string, dctx *DeliveryContext, en *Enrichment, resp *transport.Response) (*maillog.Entry, error) {
	entry := &maillog.Entry{
		EmailType:         emailType,
		ToAddress:         maillog.JoinAddresses(msg.To),
		CCAddresses:       maillog.JoinAddresses(msg.CC),
		BCCAddresses:      maillog.JoinAddresses(msg.BCC),
		PostID:            nonZero(msg.PostID),
		TopicID:           nonZero(msg.TopicID),
		UserID:            nonZero(msg.UserID),
		BounceKey:         en.BounceKey,
		SMTPGroupID:       dctx.SMTPGroupID,
		MessageID:         msg.MessageID,
		TransportResponse: resp.Line,
	}

	if len(msg.CC) > 0 {
		ids, err := p.lookup.UserIDsByEmail(ctx, lowerAll(msg.CC))
		if err != nil {
			return nil, fmt.Errorf("pipeline: resolve cc users: %w", err)
		}
		entry.CCUserIDs = ids
	}

	// Group conversations keep the full wire form so replies can be
	// threaded against exactly what went out.
	if dctx.SMTPGroupID != nil {
		raw, err := msg.Encode()
		if err != nil {
			return nil, fmt.Errorf("pipeline: encode raw message: %w", err)
		}
		entry.Raw = string(raw)
	}

	return entry, nil
}

// skip records the decision and returns the skipped outcome. Silent
// skips leave no trace in the log.
func (p *Pipeline) skip(ctx context.Context, msg *message.OutboundMessage, emailType string, d Decision) (*Outcome, error) {
	out := &Outcome{
		Status: StatusSkipped,
		Reason: d.Reason,
		Detail: d.Detail,
		Silent: d.Silent,
	}
	if d.Silent {
		return out, nil
	}

	to := ""
	if msg != nil {
		to = msg.PrimaryRecipient()
	}
	if err := p.maillog.InsertSkip(ctx, &maillog.SkipEntry{
		EmailType: emailType,
		ToAddress: to,
		Reason:    string(d.Reason),
		Detail:    d.Detail,
	}); err != nil {
		return nil, fmt.Errorf("pipeline: record skip: %w", err)
	}

	logger.Info("email skipped",
		"email_type", emailType,
		"to_address", to,
		"reason", string(d.Reason),
	)
	return out, nil
}

func nonZero(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

func lowerAll(addrs []string) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = strings.ToLower(a)
	}
	return out
}
