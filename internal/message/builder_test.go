package message

import (
	"strings"
	"testing"

	"github.com/ignite/mailroom/internal/render"
)

func TestBuildRendersBodyWithLocals(t *testing.T) {
	b := NewBuilder(render.NewService())

	msg, err := b.Build(BuildInput{
		From:    "noreply@acme.example.com",
		To:      []string{"user@example.com"},
		Subject: "New reply",
		Body:    "Hello {{ username }},\n\n{{ excerpt }}",
		Locals:  map[string]interface{}{"username": "sam", "excerpt": "the reply text"},
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if !strings.Contains(msg.TextBody, "Hello sam,") {
		t.Errorf("TextBody = %q, want rendered greeting", msg.TextBody)
	}
	if !strings.Contains(msg.TextBody, "the reply text") {
		t.Errorf("TextBody = %q, want rendered excerpt", msg.TextBody)
	}
	if msg.HTMLBody != "" {
		t.Errorf("HTMLBody = %q, want empty without an override", msg.HTMLBody)
	}
}

func TestBuildAppendsUnsubscribeToTextBody(t *testing.T) {
	b := NewBuilder(render.NewService())

	msg, err := b.Build(BuildInput{
		To:                      []string{"user@example.com"},
		Subject:                 "New reply",
		Body:                    "body text",
		UnsubscribeInstructions: "To stop these emails, [click here](https://acme.example.com/u/prefs).",
		ReplyAddress:            "replies@acme.example.com",
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if !strings.Contains(msg.TextBody, "To stop these emails") {
		t.Errorf("TextBody missing instructions: %q", msg.TextBody)
	}
	for _, action := range []string{"like", "watch", "track", "mute"} {
		if !strings.Contains(msg.TextBody, "body="+action) {
			t.Errorf("TextBody missing %s action link", action)
		}
	}
	if i := strings.Index(msg.TextBody, "To stop these emails"); i < strings.Index(msg.TextBody, "body text") {
		t.Error("instructions must come after the rendered body")
	}
}

func TestBuildSplicesUnsubscribeIntoHTMLOverride(t *testing.T) {
	b := NewBuilder(render.NewService())

	msg, err := b.Build(BuildInput{
		To:                      []string{"user@example.com"},
		Subject:                 "New reply",
		Body:                    "text",
		HTMLOverride:            "<p>{{ excerpt }}</p>\n%{unsubscribe_instructions}",
		Locals:                  map[string]interface{}{"excerpt": "rich body"},
		UnsubscribeInstructions: "To stop these emails, visit your preferences.",
		ReplyAddress:            "replies@acme.example.com",
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if !strings.Contains(msg.HTMLBody, "<p>rich body</p>") {
		t.Errorf("HTMLBody = %q, want rendered override", msg.HTMLBody)
	}
	if !strings.Contains(msg.HTMLBody, "To stop these emails") {
		t.Errorf("HTMLBody missing instructions: %q", msg.HTMLBody)
	}
	if strings.Count(msg.HTMLBody, `<a href="mailto:replies@acme.example.com`) != 4 {
		t.Errorf("HTMLBody should carry 4 action links: %q", msg.HTMLBody)
	}
	if strings.Contains(msg.HTMLBody, "%{") {
		t.Errorf("HTMLBody still carries a placeholder: %q", msg.HTMLBody)
	}
}

func TestBuildSubstitutesAllInstructionPlaceholders(t *testing.T) {
	b := NewBuilder(render.NewService())

	msg, err := b.Build(BuildInput{
		To:      []string{"user@example.com"},
		Subject: "New reply",
		Body:    "text",
		HTMLOverride: "%{header_instructions}\n<p>body</p>\n" +
			"%{respond_instructions}\n%{unsubscribe_instructions}",
		UnsubscribeInstructions: "To stop these emails, visit your preferences.",
		HeaderInstructions:      "You received this because you watch [the topic](https://acme.example.com/t/42).",
		RespondInstructions:     "Reply to this email to respond.",
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if !strings.Contains(msg.HTMLBody, `<a href="https://acme.example.com/t/42">the topic</a>`) {
		t.Errorf("HTMLBody missing cooked header instructions: %q", msg.HTMLBody)
	}
	if !strings.Contains(msg.HTMLBody, "<p>Reply to this email to respond.</p>") {
		t.Errorf("HTMLBody missing cooked respond instructions: %q", msg.HTMLBody)
	}
	if !strings.Contains(msg.HTMLBody, "To stop these emails") {
		t.Errorf("HTMLBody missing unsubscribe instructions: %q", msg.HTMLBody)
	}
	if strings.Contains(msg.HTMLBody, "%{") {
		t.Errorf("HTMLBody still carries a placeholder: %q", msg.HTMLBody)
	}
}

func TestBuildBlanksPlaceholdersWithoutInstructions(t *testing.T) {
	b := NewBuilder(render.NewService())

	msg, err := b.Build(BuildInput{
		To:      []string{"user@example.com"},
		Subject: "Digest",
		Body:    "text",
		HTMLOverride: "%{header_instructions}<p>body</p>" +
			"%{respond_instructions}%{unsubscribe_instructions}",
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if msg.HTMLBody != "<p>body</p>" {
		t.Errorf("HTMLBody = %q, want bare body with placeholders removed", msg.HTMLBody)
	}
}

func TestBuildWithoutReplyAddressOmitsActionLinks(t *testing.T) {
	b := NewBuilder(render.NewService())

	msg, err := b.Build(BuildInput{
		To:      []string{"user@example.com"},
		Subject: "Digest",
		Body:    "digest text",
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if strings.Contains(msg.TextBody, "mailto:") {
		t.Errorf("TextBody = %q, want no mailto links", msg.TextBody)
	}
}

func TestBuildCopiesHeaders(t *testing.T) {
	b := NewBuilder(render.NewService())
	headers := []Header{{Name: "X-Campaign", Value: "digest"}}

	msg, err := b.Build(BuildInput{
		To:      []string{"user@example.com"},
		Subject: "Digest",
		Body:    "x",
		Headers: headers,
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	headers[0].Value = "mutated"
	if got := msg.Header("X-Campaign"); got != "digest" {
		t.Errorf("Header(X-Campaign) = %q, want copy isolated from caller slice", got)
	}
}
