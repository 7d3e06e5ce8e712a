package message

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// Encode renders the message in wire form: headers followed by a
// multipart/alternative body, wrapped in multipart/mixed when attachments
// are present. Used for the raw-content audit trail on group-mailbox
// sends and for the SES raw send path.
func (m *OutboundMessage) Encode() ([]byte, error) {
	var buf bytes.Buffer

	charset := m.Charset
	if charset == "" {
		charset = "UTF-8"
	}

	writeAddressHeader(&buf, "From", []string{m.From})
	writeAddressHeader(&buf, "To", m.To)
	writeAddressHeader(&buf, "Cc", m.CC)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	if m.MessageID != "" {
		fmt.Fprintf(&buf, "Message-ID: %s\r\n", m.MessageID)
	}
	for _, h := range m.Headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", textproto.CanonicalMIMEHeaderKey(h.Name), h.Value)
	}
	buf.WriteString("MIME-Version: 1.0\r\n")

	outer := multipart.NewWriter(&buf)
	if len(m.Attachments) > 0 {
		fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", outer.Boundary())
		if err := m.writeBodyParts(outer, charset); err != nil {
			return nil, err
		}
		for _, att := range m.Attachments {
			if err := writeAttachment(outer, att); err != nil {
				return nil, err
			}
		}
	} else {
		fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", outer.Boundary())
		if err := writeTextParts(outer, m, charset); err != nil {
			return nil, err
		}
	}
	if err := outer.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (m *OutboundMessage) writeBodyParts(outer *multipart.Writer, charset string) error {
	var alt bytes.Buffer
	inner := multipart.NewWriter(&alt)
	if err := writeTextParts(inner, m, charset); err != nil {
		return err
	}
	if err := inner.Close(); err != nil {
		return err
	}

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", inner.Boundary()))
	part, err := outer.CreatePart(hdr)
	if err != nil {
		return err
	}
	_, err = part.Write(alt.Bytes())
	return err
}

func writeTextParts(w *multipart.Writer, m *OutboundMessage, charset string) error {
	if m.TextBody != "" {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Type", "text/plain; charset="+charset)
		part, err := w.CreatePart(hdr)
		if err != nil {
			return err
		}
		if _, err := part.Write([]byte(m.TextBody)); err != nil {
			return err
		}
	}
	if m.HTMLBody != "" {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Type", "text/html; charset="+charset)
		part, err := w.CreatePart(hdr)
		if err != nil {
			return err
		}
		if _, err := part.Write([]byte(m.HTMLBody)); err != nil {
			return err
		}
	}
	return nil
}

func writeAttachment(w *multipart.Writer, att Attachment) error {
	hdr := textproto.MIMEHeader{}
	ct := att.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	hdr.Set("Content-Type", ct)
	hdr.Set("Content-Transfer-Encoding", "base64")
	hdr.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
	part, err := w.CreatePart(hdr)
	if err != nil {
		return err
	}
	enc := base64.StdEncoding.EncodeToString(att.Content)
	// RFC 2045 line length limit
	for len(enc) > 76 {
		if _, err := fmt.Fprintf(part, "%s\r\n", enc[:76]); err != nil {
			return err
		}
		enc = enc[76:]
	}
	_, err = fmt.Fprintf(part, "%s\r\n", enc)
	return err
}

func writeAddressHeader(buf *bytes.Buffer, name string, addrs []string) {
	var present []string
	for _, a := range addrs {
		if strings.TrimSpace(a) != "" {
			present = append(present, a)
		}
	}
	if len(present) == 0 {
		return
	}
	fmt.Fprintf(buf, "%s: %s\r\n", name, strings.Join(present, ", "))
}
