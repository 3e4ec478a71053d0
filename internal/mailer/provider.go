package mailer

import "strings"

// Provider identifies the mailbox provider guessed from an email domain.
type Provider string

// Provider constants name the mailbox providers with known SMTP defaults.
const (
	ProviderGmail     Provider = "gmail"
	ProviderOutlook   Provider = "outlook"
	ProviderYahoo     Provider = "yahoo"
	ProviderICloud    Provider = "icloud"
	ProviderOffice365 Provider = "office365"
	ProviderOther     Provider = "other"
)

// SMTPDefaults holds the connection defaults for one provider.
type SMTPDefaults struct {
	Host   string `json:"host"`   // SMTP host.
	Port   int    `json:"port"`   // SMTP port.
	Secure bool   `json:"secure"` // Implicit TLS instead of STARTTLS.
}

// SetupGuide carries the onboarding hints shown for a provider.
type SetupGuide struct {
	Provider            Provider     `json:"provider"`              // Detected provider.
	Defaults            SMTPDefaults `json:"defaults"`              // Prefilled SMTP settings.
	AppPasswordRequired bool         `json:"app_password_required"` // Whether the account password will not work.
	Instructions        []string     `json:"instructions"`          // Ordered setup steps.
}

var smtpDefaults = map[Provider]SMTPDefaults{
	ProviderGmail:     {Host: "smtp.gmail.com", Port: 587},
	ProviderOutlook:   {Host: "smtp-mail.outlook.com", Port: 587},
	ProviderYahoo:     {Host: "smtp.mail.yahoo.com", Port: 587},
	ProviderICloud:    {Host: "smtp.mail.me.com", Port: 587},
	ProviderOffice365: {Host: "smtp.office365.com", Port: 587},
}

// DetectProvider guesses the mailbox provider from an email address domain.
// Unknown domains map to ProviderOther.
func DetectProvider(email string) Provider {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ProviderOther
	}
	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))

	switch domain {
	case "gmail.com", "googlemail.com":
		return ProviderGmail
	case "outlook.com", "hotmail.com", "live.com", "msn.com":
		return ProviderOutlook
	case "yahoo.com", "ymail.com":
		return ProviderYahoo
	case "icloud.com", "me.com", "mac.com":
		return ProviderICloud
	}
	if strings.Contains(domain, "onmicrosoft") || strings.Contains(domain, "sharepoint") {
		return ProviderOffice365
	}
	return ProviderOther
}

// DefaultsFor returns the SMTP defaults for a provider. Providers without a
// known endpoint return ok == false and the caller must collect settings.
func DefaultsFor(provider Provider) (SMTPDefaults, bool) {
	d, ok := smtpDefaults[provider]
	return d, ok
}

// GuideFor builds the onboarding guide for an email address.
func GuideFor(email string) SetupGuide {
	provider := DetectProvider(email)
	defaults, _ := DefaultsFor(provider)
	guide := SetupGuide{Provider: provider, Defaults: defaults}

	switch provider {
	case ProviderGmail:
		guide.AppPasswordRequired = true
		guide.Instructions = []string{
			"Enable 2-step verification on your Google account",
			"Create an app password at myaccount.google.com/apppasswords",
			"Use the 16-character app password here instead of your account password",
		}
	case ProviderOutlook:
		guide.Instructions = []string{
			"Sign in with your regular account password",
			"If sign-in fails, create an app password under account security settings",
		}
	case ProviderYahoo:
		guide.AppPasswordRequired = true
		guide.Instructions = []string{
			"Generate an app password under Yahoo account security",
			"Use the generated app password here",
		}
	case ProviderICloud:
		guide.AppPasswordRequired = true
		guide.Instructions = []string{
			"Generate an app-specific password at appleid.apple.com",
			"Use the app-specific password here",
		}
	case ProviderOffice365:
		guide.Instructions = []string{
			"Ask your Microsoft 365 administrator to enable authenticated SMTP for your mailbox",
			"Sign in with your work account password",
		}
	default:
		guide.Instructions = []string{
			"Ask your email provider for its SMTP host and port",
			"Enter the settings manually below",
		}
	}
	return guide
}
