// Package pipeline runs one outbound message through the delivery
// decision sequence: gatekeeper guards, header enrichment, body
// rewriting, transport execution and logging. One message, one pass,
// one terminal outcome.
package pipeline

import (
	"github.com/ignite/mailroom/internal/config"
	"github.com/ignite/mailroom/internal/lookup"
)

// SkipReason is the fixed enumeration of policy-driven non-send causes.
type SkipReason string

const (
	SkipDisabled      SkipReason = "disabled"
	SkipBodyBlank     SkipReason = "body_blank"
	SkipToBlank       SkipReason = "to_blank"
	SkipToInvalid     SkipReason = "to_invalid"
	SkipTextPartBlank SkipReason = "text_part_blank"
	SkipPostDeleted   SkipReason = "post_deleted"
	SkipTopicDeleted  SkipReason = "topic_deleted"
	SkipCustom        SkipReason = "custom"
)

// AlwaysAllowedTypes are email types that bypass the disabled-email
// policy: operational mail that must flow even with sending switched off.
var AlwaysAllowedTypes = map[string]bool{
	"admin_login":  true,
	"test_message": true,
	"critical":     true,
}

// Status is the terminal state of a pipeline run.
type Status string

const (
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped"
)

// Outcome is the single terminal result of one pipeline run.
type Outcome struct {
	Status Status     `json:"status"`
	Reason SkipReason `json:"reason,omitempty"`
	Detail string     `json:"detail,omitempty"`

	// Silent marks a skip that intentionally left no log record, such as
	// the null-message sentinel.
	Silent bool `json:"silent,omitempty"`

	MessageID         string `json:"message_id,omitempty"`
	TransportResponse string `json:"transport_response,omitempty"`
}

// Sent reports whether the transport accepted the message.
func (o *Outcome) Sent() bool { return o.Status == StatusSent }

// Decision is the gatekeeper's verdict for one message.
type Decision struct {
	Skip   bool
	Silent bool
	Reason SkipReason
	Detail string
}

// Continue is the pass verdict.
var Continue = Decision{}

// DeliveryContext is the immutable per-send context resolved once at
// pipeline entry. Every stage reads from it; none writes to it.
type DeliveryContext struct {
	Site     config.SiteConfig
	Provider string

	User           *lookup.User
	Post           *lookup.Post
	Topic          *lookup.Topic
	Category       *lookup.Category
	ParentCategory *lookup.Category

	// SMTPGroupID is set when the from address belongs to a group
	// mailbox with its own SMTP credentials. Group conversations are
	// person-to-person, not list traffic, so mailing-list headers are
	// suppressed.
	SMTPGroupID *int64

	// ReplyKey routes an emailed reply back to the right post/user.
	ReplyKey string
}
