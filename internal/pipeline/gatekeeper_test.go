package pipeline

import (
	"testing"

	"github.com/ignite/mailroom/internal/config"
	"github.com/ignite/mailroom/internal/lookup"
	"github.com/ignite/mailroom/internal/message"
)

func baseSite() config.SiteConfig {
	return config.SiteConfig{
		Title:   "Acme",
		BaseURL: "https://acme.example.com",
	}
}

func TestEvaluateOrdering(t *testing.T) {
	tests := []struct {
		name       string
		msg        *message.OutboundMessage
		site       func(*config.SiteConfig)
		user       *lookup.User
		emailType  string
		wantSkip   bool
		wantSilent bool
		wantReason SkipReason
	}{
		{
			name:     "healthy message passes",
			msg:      &message.OutboundMessage{To: []string{"user@example.com"}, TextBody: "hello"},
			wantSkip: false,
		},
		{
			name:       "disabled sitewide",
			msg:        &message.OutboundMessage{To: []string{"user@example.com"}, TextBody: "hello"},
			site:       func(s *config.SiteConfig) { s.EmailsDisabled = config.EmailsDisabledAll },
			wantSkip:   true,
			wantReason: SkipDisabled,
		},
		{
			name:      "critical mail bypasses disable",
			msg:       &message.OutboundMessage{To: []string{"user@example.com"}, TextBody: "hello"},
			site:      func(s *config.SiteConfig) { s.EmailsDisabled = config.EmailsDisabledAll },
			emailType: "admin_login",
			wantSkip:  false,
		},
		{
			name:       "null sentinel skips silently",
			msg:        message.NullMessage(),
			wantSkip:   true,
			wantSilent: true,
		},
		{
			name:       "nil message treated as null",
			msg:        nil,
			wantSkip:   true,
			wantSilent: true,
		},
		{
			name:       "blank body wins over blank recipient",
			msg:        &message.OutboundMessage{To: nil, TextBody: "   "},
			wantSkip:   true,
			wantReason: SkipBodyBlank,
		},
		{
			name:       "no recipient",
			msg:        &message.OutboundMessage{To: []string{"  "}, TextBody: "hello"},
			wantSkip:   true,
			wantReason: SkipToBlank,
		},
		{
			name:       "non-staff mode blocks anonymous recipient",
			msg:        &message.OutboundMessage{To: []string{"user@example.com"}, TextBody: "hello"},
			site:       func(s *config.SiteConfig) { s.EmailsDisabled = config.EmailsNonStaff },
			wantSkip:   true,
			wantReason: SkipDisabled,
		},
		{
			name:     "non-staff mode allows staff",
			msg:      &message.OutboundMessage{To: []string{"admin@example.com"}, TextBody: "hello"},
			site:     func(s *config.SiteConfig) { s.EmailsDisabled = config.EmailsNonStaff },
			user:     &lookup.User{ID: 1, Staff: true},
			wantSkip: false,
		},
		{
			name:       "invalid marker domain",
			msg:        &message.OutboundMessage{To: []string{"ghost@anon.INVALID"}, TextBody: "hello"},
			wantSkip:   true,
			wantReason: SkipToInvalid,
		},
		{
			name:       "whitespace text part with html present",
			msg:        &message.OutboundMessage{To: []string{"user@example.com"}, TextBody: " \n ", HTMLBody: "<p>hi</p>"},
			wantSkip:   true,
			wantReason: SkipTextPartBlank,
		},
		{
			name:     "html-only message passes",
			msg:      &message.OutboundMessage{To: []string{"user@example.com"}, HTMLBody: "<p>hi</p>"},
			wantSkip: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := baseSite()
			if tt.site != nil {
				tt.site(&site)
			}
			dctx := &DeliveryContext{Site: site, User: tt.user}

			d := Evaluate(tt.msg, dctx, tt.emailType)
			if d.Skip != tt.wantSkip {
				t.Fatalf("Evaluate() skip = %v, want %v (decision %+v)", d.Skip, tt.wantSkip, d)
			}
			if d.Silent != tt.wantSilent {
				t.Errorf("Evaluate() silent = %v, want %v", d.Silent, tt.wantSilent)
			}
			if tt.wantSkip && !tt.wantSilent && d.Reason != tt.wantReason {
				t.Errorf("Evaluate() reason = %q, want %q", d.Reason, tt.wantReason)
			}
		})
	}
}

func TestEvaluateInvalidDomainNeverDelivered(t *testing.T) {
	// The marker domain must be caught even when every other property of
	// the message is fine.
	msg := &message.OutboundMessage{
		To:       []string{"someone@example.invalid"},
		TextBody: "perfectly good body",
		HTMLBody: "<p>perfectly good body</p>",
	}
	d := Evaluate(msg, &DeliveryContext{Site: baseSite()}, "notification")
	if !d.Skip || d.Reason != SkipToInvalid {
		t.Fatalf("Evaluate() = %+v, want skip with reason %q", d, SkipToInvalid)
	}
}
