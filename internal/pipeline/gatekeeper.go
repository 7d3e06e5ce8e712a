package pipeline

import (
	"strings"

	"github.com/ignite/mailroom/internal/config"
	"github.com/ignite/mailroom/internal/message"
)

// InvalidDomainSuffix marks recipient addresses that must never be
// delivered to (used by fixtures and anonymized accounts).
const InvalidDomainSuffix = ".invalid"

// Evaluate runs the ordered guard checks for one message. First match
// wins; a Continue verdict means the message may proceed to enrichment
// and delivery.
func Evaluate(msg *message.OutboundMessage, dctx *DeliveryContext, emailType string) Decision {
	bypassDisable := AlwaysAllowedTypes[emailType]

	// 1. Sending globally disabled
	if dctx.Site.EmailsDisabled == config.EmailsDisabledAll && !bypassDisable {
		return Decision{Skip: true, Reason: SkipDisabled, Detail: "emails disabled sitewide"}
	}

	// 2. The "nothing to send" sentinel aborts without any record
	if msg.IsNull() {
		return Decision{Skip: true, Silent: true}
	}

	// 3. No body at all
	if msg.BodyBlank() {
		return Decision{Skip: true, Reason: SkipBodyBlank}
	}

	// 4. Nobody to send to
	if len(msg.To) == 0 || strings.TrimSpace(msg.PrimaryRecipient()) == "" {
		return Decision{Skip: true, Reason: SkipToBlank}
	}

	// 5. Staff-only mode
	if dctx.Site.EmailsDisabled == config.EmailsNonStaff && !bypassDisable {
		if dctx.User == nil || !dctx.User.Staff {
			return Decision{Skip: true, Reason: SkipDisabled, Detail: "emails restricted to staff"}
		}
	}

	// 6. Marker domain for addresses that must never receive mail
	if strings.HasSuffix(strings.ToLower(msg.PrimaryRecipient()), InvalidDomainSuffix) {
		return Decision{Skip: true, Reason: SkipToInvalid}
	}

	// 7. A present-but-blank text part is a compose bug upstream; an
	// absent text part is fine as long as something remains to send.
	if msg.TextBody != "" {
		if strings.TrimSpace(msg.TextBody) == "" {
			return Decision{Skip: true, Reason: SkipTextPartBlank}
		}
	} else if strings.TrimSpace(msg.HTMLBody) == "" {
		return Decision{Skip: true, Reason: SkipBodyBlank}
	}

	return Continue
}
