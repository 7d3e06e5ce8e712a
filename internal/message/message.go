// Package message defines the outbound email aggregate owned by the
// delivery pipeline for the duration of one send attempt.
package message

import (
	"strings"
)

// AllowReplyByEmailHeader marks a message whose Reply-To carries a
// %{reply_key} placeholder. It is internal routing state and is stripped
// before the message reaches the transport.
const AllowReplyByEmailHeader = "X-Mailroom-Allow-Reply-By-Email"

// ReplyKeyPlaceholder is substituted with the resolved reply key in the
// Reply-To header, custom headers and the HTML body.
const ReplyKeyPlaceholder = "%{reply_key}"

// Header is a single name/value pair. A message keeps headers ordered and
// allows repeated names; most pipeline operations collapse to one value.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Attachment is a file attached to an outbound message. SecureID is set
// for access-controlled uploads that were redacted at compose time.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
	SecureID    string `json:"secure_id,omitempty"`
}

// OutboundMessage is one email in flight. It is mutable and owned
// exclusively by a single pipeline run; independent sends never share one.
type OutboundMessage struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	CC      []string `json:"cc,omitempty"`
	BCC     []string `json:"bcc,omitempty"`
	Subject string   `json:"subject"`

	// TextBody is the first body part by convention; upload-link rewriting
	// applies to it only.
	TextBody string `json:"text_body"`
	HTMLBody string `json:"html_body,omitempty"`
	Charset  string `json:"charset,omitempty"`

	Headers     []Header     `json:"headers,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`

	// Forum identifiers carried for the delivery log and header enrichment.
	// Zero means the message does not reference that entity.
	PostID  int64 `json:"post_id,omitempty"`
	TopicID int64 `json:"topic_id,omitempty"`
	UserID  int64 `json:"user_id,omitempty"`

	MessageID string `json:"message_id,omitempty"`

	null bool
}

// NullMessage returns the "nothing to send" sentinel. The gatekeeper
// aborts silently on it, producing no outcome log at all.
func NullMessage() *OutboundMessage {
	return &OutboundMessage{null: true}
}

// IsNull reports whether the message is the no-op sentinel.
func (m *OutboundMessage) IsNull() bool {
	return m == nil || m.null
}

// Header returns the effective (last) value for a header name, or "".
func (m *OutboundMessage) Header(name string) string {
	for i := len(m.Headers) - 1; i >= 0; i-- {
		if strings.EqualFold(m.Headers[i].Name, name) {
			return m.Headers[i].Value
		}
	}
	return ""
}

// HeaderValues returns every value present for a header name, in order.
func (m *OutboundMessage) HeaderValues(name string) []string {
	var vals []string
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			vals = append(vals, h.Value)
		}
	}
	return vals
}

// SetHeader replaces every instance of name with a single value.
func (m *OutboundMessage) SetHeader(name, value string) {
	m.DeleteHeader(name)
	m.Headers = append(m.Headers, Header{Name: name, Value: value})
}

// AddHeader appends a value without removing existing instances.
func (m *OutboundMessage) AddHeader(name, value string) {
	m.Headers = append(m.Headers, Header{Name: name, Value: value})
}

// DeleteHeader removes every instance of a header name.
func (m *OutboundMessage) DeleteHeader(name string) {
	kept := m.Headers[:0]
	for _, h := range m.Headers {
		if !strings.EqualFold(h.Name, name) {
			kept = append(kept, h)
		}
	}
	m.Headers = kept
}

// BodyBlank reports whether the message has no usable body at all.
func (m *OutboundMessage) BodyBlank() bool {
	return strings.TrimSpace(m.TextBody) == "" && strings.TrimSpace(m.HTMLBody) == ""
}

// PrimaryRecipient returns the first To address, or "".
func (m *OutboundMessage) PrimaryRecipient() string {
	if len(m.To) == 0 {
		return ""
	}
	return m.To[0]
}

// ReferencesPost reports whether the message points at a concrete forum
// post inside a topic.
func (m *OutboundMessage) ReferencesPost() bool {
	return m.PostID > 0 && m.TopicID > 0
}
