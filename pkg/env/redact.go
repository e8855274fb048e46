package env

import (
	"net/url"
	"strings"
)

// RedactAPIKey masks an API key, showing only the first 4 and last 4 characters.
func RedactAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// RedactURL masks the password and the path of a URL. Webhook URLs
// carry their secret in the path.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return RedactAPIKey(rawURL)
	}
	if u.User != nil {
		if password, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), RedactAPIKey(password))
		}
	}
	if u.Path != "" && u.Path != "/" {
		u.Path = "/redacted"
	}
	u.RawQuery = ""
	return u.String()
}

// Redacted returns the credentials as printable key/value pairs.
func (c Credentials) Redacted() map[string]string {
	return map[string]string{
		KeySite:       c.Site,
		KeyAPIKey:     RedactAPIKey(c.APIKey),
		KeyWebhook:    RedactURL(c.WebhookURL),
		KeyProduction: boolString(c.Production),
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
