package tracking

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
)

// hrefRe matches double-quoted, single-quoted and bare href attributes.
var hrefRe = regexp.MustCompile(`(?i)\bhref\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'>]+))`)

// OpenURL is the open-beacon URL of one recipient.
func OpenURL(baseURL, campaignID, email string) string {
	return fmt.Sprintf("%s/tracking/open/%s/%s.png", trimBase(baseURL), url.PathEscape(campaignID), url.PathEscape(email))
}

// ClickURL is the click-redirect URL for target.
func ClickURL(baseURL, campaignID, email, target string) string {
	return fmt.Sprintf("%s/tracking/click/%s/%s?url=%s&linkId=%s",
		trimBase(baseURL), url.PathEscape(campaignID), url.PathEscape(email), url.QueryEscape(target), LinkID(target))
}

// UnsubscribeURL is the one-click unsubscribe URL of one recipient.
func UnsubscribeURL(baseURL, campaignID, email string) string {
	return fmt.Sprintf("%s/tracking/unsubscribe/%s/%s", trimBase(baseURL), url.PathEscape(campaignID), url.PathEscape(email))
}

// LinkID is a short stable identifier of a URL: the first 12 hex characters
// of its SHA-256.
func LinkID(target string) string {
	sum := sha256.Sum256([]byte(target))
	return hex.EncodeToString(sum[:])[:12]
}

// Instrument injects the open beacon, rewrites links through the click
// redirect and appends an unsubscribe footer when the content has no
// unsubscribe link of its own. It is pure: the same input always yields the
// same output.
func Instrument(content, campaignID, email, baseURL string) string {
	hasUnsubscribe := false

	out := hrefRe.ReplaceAllStringFunc(content, func(match string) string {
		idx := hrefRe.FindStringSubmatchIndex(match)
		var raw string
		quote := `"`
		switch {
		case idx[2] >= 0:
			raw = match[idx[2]:idx[3]]
		case idx[4] >= 0:
			raw, quote = match[idx[4]:idx[5]], `'`
		default:
			raw = match[idx[6]:idx[7]]
		}

		target := html.UnescapeString(strings.TrimSpace(raw))
		if isUnsubscribeLink(target) {
			hasUnsubscribe = true
			return match
		}
		if !rewritable(target) {
			return match
		}
		tracked := html.EscapeString(ClickURL(baseURL, campaignID, email, target))
		return "href=" + quote + tracked + quote
	})

	if !hasUnsubscribe {
		out = insertBeforeBody(out, unsubscribeFooter(UnsubscribeURL(baseURL, campaignID, email)))
	}

	pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" alt="" style="display:none;width:1px;height:1px;border:0" />`,
		html.EscapeString(OpenURL(baseURL, campaignID, email)))
	return insertBeforeBody(out, pixel)
}

func isUnsubscribeLink(target string) bool {
	return strings.Contains(strings.ToLower(target), "unsubscribe")
}

// rewritable excludes links that already point at the tracker and links
// that do not navigate anywhere.
func rewritable(target string) bool {
	l := strings.ToLower(target)
	switch {
	case l == "":
		return false
	case strings.HasPrefix(l, "#"):
		return false
	case strings.HasPrefix(l, "mailto:"), strings.HasPrefix(l, "tel:"):
		return false
	case strings.Contains(l, "/tracking/"):
		return false
	case strings.Contains(l, "{{") || strings.Contains(l, "{%"):
		return false
	}
	return true
}

func unsubscribeFooter(unsubURL string) string {
	return fmt.Sprintf(`<div style="text-align:center;font-size:12px;color:#888;margin-top:24px">`+
		`<a href="%s" style="color:#888">Unsubscribe</a></div>`, html.EscapeString(unsubURL))
}

// insertBeforeBody places fragment before the last closing body tag, or
// appends it when there is none.
func insertBeforeBody(content, fragment string) string {
	if idx := strings.LastIndex(strings.ToLower(content), "</body>"); idx >= 0 {
		return content[:idx] + fragment + content[idx:]
	}
	return content + fragment
}

func trimBase(baseURL string) string {
	return strings.TrimRight(baseURL, "/")
}
