package logger

import (
	"regexp"
	"strings"
)

// emailRegex finds addresses embedded in free text such as error messages
// and tracking paths.
var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// recipientKeys are field names whose whole value is an address.
var recipientKeys = []string{"email", "recipient", "reply_to", "from_email"}

// RedactEmail keeps the first character of the mailbox and the domain, so
// log lines for one recipient can still be correlated:
//
//	"Jane.Doe+promo@Example.com" -> "j***@example.com"
//
// Anything without exactly one usable "@" is masked entirely.
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return "***"
	}
	return strings.ToLower(local[:1]) + "***@" + strings.ToLower(domain)
}

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	for _, k := range recipientKeys {
		if strings.Contains(key, k) {
			if emailRegex.MatchString(val) && !strings.ContainsAny(val, " ,;") {
				return RedactEmail(val)
			}
			break
		}
	}
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
