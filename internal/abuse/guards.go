package abuse

import "strings"

// Substrings that mark a request as hostile before any token work happens.
// Matching is case-insensitive and intentionally coarse; legitimate clients
// never send these.
var suspiciousAgentMarkers = []string{
	"sqlmap",
	"nikto",
	"nessus",
	"masscan",
	"dirbuster",
	"wpscan",
	"nmap",
}

var suspiciousPathMarkers = []string{
	"../",
	"..\\",
	"/etc/passwd",
	"<script",
	"%3cscript",
	"union select",
	"information_schema",
	".php",
	"wp-admin",
	"wp-login",
	".env",
	".git",
}

// SuspiciousUserAgent reports whether the user agent belongs to a known
// scanner.
func SuspiciousUserAgent(agent string) bool {
	agent = strings.ToLower(agent)
	for _, marker := range suspiciousAgentMarkers {
		if strings.Contains(agent, marker) {
			return true
		}
	}
	return false
}

// SuspiciousPath reports whether the raw request path or query carries a
// traversal or injection pattern.
func SuspiciousPath(rawPath string) bool {
	lowered := strings.ToLower(rawPath)
	for _, marker := range suspiciousPathMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// OriginAllowed checks a browser origin against the configured allow list.
// Requests without an Origin header pass; non-browser clients do not send
// one.
func OriginAllowed(origin string, allowed []string) bool {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, candidate := range allowed {
		if strings.EqualFold(origin, strings.TrimRight(strings.TrimSpace(candidate), "/")) {
			return true
		}
	}
	return false
}
