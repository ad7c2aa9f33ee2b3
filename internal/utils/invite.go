package utils

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var inviteRegex = regexp.MustCompile(`(?i)(https?://)?(www\.)?(discord\.gg|discord(app)?\.com/invite)/([A-Za-z0-9-]+)`)

var inviteHosts = map[string]struct{}{
	"discord.gg":     {},
	"discord.com":    {},
	"discordapp.com": {},
}

// InviteCodes extracts Discord invite codes from message content. Hosts are
// punycode-normalized before matching so lookalike domains do not pass as
// invite links.
func InviteCodes(content string) []string {
	matches := inviteRegex.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	codes := make([]string, 0, len(matches))
	for _, match := range matches {
		raw := match[0]
		if !strings.HasPrefix(strings.ToLower(raw), "http") {
			raw = "https://" + raw
		}
		if _, ok := inviteHosts[HostOf(raw)]; !ok {
			continue
		}
		codes = append(codes, match[len(match)-1])
	}
	return codes
}

// HostOf returns the lowercase ASCII host of a raw URL, or "" if unparseable.
func HostOf(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	if ascii, err := idna.ToASCII(host); err == nil {
		host = ascii
	}
	return host
}

// ContainsLink reports whether content carries a bare URL scheme marker.
func ContainsLink(content string) bool {
	return strings.Contains(content, "http://") || strings.Contains(content, "https://")
}
