package mailer

import (
	"strings"
	"testing"
)

func TestDetectProvider(t *testing.T) {
	cases := []struct {
		email string
		want  Provider
	}{
		{"sarah@gmail.com", ProviderGmail},
		{"sarah@GMAIL.COM", ProviderGmail},
		{"rep@googlemail.com", ProviderGmail},
		{"rep@outlook.com", ProviderOutlook},
		{"rep@hotmail.com", ProviderOutlook},
		{"rep@live.com", ProviderOutlook},
		{"rep@yahoo.com", ProviderYahoo},
		{"rep@icloud.com", ProviderICloud},
		{"rep@me.com", ProviderICloud},
		{"rep@contoso.onmicrosoft.com", ProviderOffice365},
		{"rep@medicalsupplies.com", ProviderOther},
		{"no-at-sign", ProviderOther},
	}
	for _, tc := range cases {
		if got := DetectProvider(tc.email); got != tc.want {
			t.Errorf("DetectProvider(%q) = %q, want %q", tc.email, got, tc.want)
		}
	}
}

func TestDetectProviderIdempotent(t *testing.T) {
	for i := 0; i < 3; i++ {
		if got := DetectProvider("rep@yahoo.com"); got != ProviderYahoo {
			t.Fatalf("run %d: got %q", i, got)
		}
	}
}

func TestDefaultsFor(t *testing.T) {
	d, ok := DefaultsFor(ProviderGmail)
	if !ok {
		t.Fatal("expected gmail defaults")
	}
	if d.Host != "smtp.gmail.com" || d.Port != 587 || d.Secure {
		t.Fatalf("unexpected gmail defaults: %+v", d)
	}
	if _, ok := DefaultsFor(ProviderOther); ok {
		t.Fatal("unknown provider must not have defaults")
	}
}

func TestGuideForGmailRequiresAppPassword(t *testing.T) {
	guide := GuideFor("sarah@gmail.com")
	if guide.Provider != ProviderGmail {
		t.Fatalf("unexpected provider: %q", guide.Provider)
	}
	if !guide.AppPasswordRequired {
		t.Fatal("gmail must require an app password")
	}
	if guide.Defaults.Host != "smtp.gmail.com" {
		t.Fatalf("unexpected host: %q", guide.Defaults.Host)
	}
	if len(guide.Instructions) == 0 {
		t.Fatal("expected setup instructions")
	}
}

func TestGuideForOutlookAllowsAccountPassword(t *testing.T) {
	guide := GuideFor("rep@outlook.com")
	if guide.AppPasswordRequired {
		t.Fatal("outlook should not require an app password")
	}
}

func TestGuideForUnknownDomain(t *testing.T) {
	guide := GuideFor("rep@medicalsupplies.com")
	if guide.Provider != ProviderOther {
		t.Fatalf("unexpected provider: %q", guide.Provider)
	}
	if guide.Defaults.Host != "" {
		t.Fatalf("unknown provider must not prefill a host: %q", guide.Defaults.Host)
	}
}

func TestValidAddress(t *testing.T) {
	valid := []string{"a@b.co", "sarah.chen@gmail.com", "x+tag@sub.domain.org", " padded@example.com "}
	for _, addr := range valid {
		if !ValidAddress(addr) {
			t.Errorf("expected %q to be valid", addr)
		}
	}
	invalid := []string{"not-an-email", "missing@tld", "@nouser.com", "two@@signs.com", "spaces in@mail.com", ""}
	for _, addr := range invalid {
		if ValidAddress(addr) {
			t.Errorf("expected %q to be invalid", addr)
		}
	}
}

func TestValidateRecipientsNamesFirstInvalid(t *testing.T) {
	err := ValidateRecipients([]string{"a@b.com", "bad-address", "also@bad"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "bad-address") {
		t.Fatalf("error should name the first invalid address: %v", err)
	}
}

func TestValidateRecipientsEmptyList(t *testing.T) {
	if err := ValidateRecipients(nil); err == nil {
		t.Fatal("expected error for empty recipient list")
	}
}
