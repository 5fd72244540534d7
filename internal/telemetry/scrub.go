package telemetry

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Pre-compiled patterns; scrubbing runs on every outgoing event.
var (
	// urlPattern matches any scheme://rest token. Delivery endpoints use
	// arbitrary provider schemes (discord://, telegram://, generic://),
	// so the scheme set cannot be enumerated.
	urlPattern = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9+.-]*://\S+`)

	// bearerPattern matches Authorization-style bearer credentials.
	bearerPattern = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/-]+=*`)

	// secretParamPattern matches key=value pairs whose key names a secret.
	secretParamPattern = regexp.MustCompile(`(?i)\b(token|tokens|password|secret|apikey|api_key)=[^\s&"']+`)

	ipv4Pattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
)

// ScrubMessage removes sensitive material from a telemetry message.
// URLs are replaced with structure-preserving hashes and credential
// fragments are redacted outright.
func ScrubMessage(message string) string {
	message = urlPattern.ReplaceAllStringFunc(message, AnonymizeURL)
	message = bearerPattern.ReplaceAllString(message, "bearer [redacted]")
	message = secretParamPattern.ReplaceAllString(message, "$1=[redacted]")
	return message
}

// AnonymizeURL converts a URL to an anonymized form that still carries
// debugging value: the scheme and a coarse host category survive, while
// credentials, hostnames, and paths collapse into a stable hash so the
// same endpoint produces the same token across events.
func AnonymizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		hash := sha256.Sum256([]byte(rawURL))
		return fmt.Sprintf("url-hash-%x", hash[:8])
	}

	var parts []string
	if parsed.Scheme != "" {
		parts = append(parts, parsed.Scheme)
	}
	if host := parsed.Hostname(); host != "" {
		parts = append(parts, categorizeHost(host))
	}
	if port := parsed.Port(); port != "" {
		parts = append(parts, "port-"+port)
	}
	if parsed.Path != "" && parsed.Path != "/" {
		parts = append(parts, fmt.Sprintf("path-%d", strings.Count(strings.Trim(parsed.Path, "/"), "/")+1))
	}

	normalized := strings.Join(parts, ":")
	hash := sha256.Sum256([]byte(normalized))

	scheme := parsed.Scheme
	if scheme == "" {
		scheme = "url"
	}
	return fmt.Sprintf("%s-%x", scheme, hash[:12])
}

// categorizeHost buckets a hostname without revealing it.
func categorizeHost(host string) string {
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return "localhost"
	}
	if isPrivateIP(host) {
		return "private-ip"
	}
	if isIPAddress(host) {
		return "public-ip"
	}
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return "domain-" + parts[len(parts)-1]
	}
	return "unknown-host"
}

func isPrivateIP(host string) bool {
	privatePrefixes := []string{
		"10.", "192.168.", "169.254.",
		"172.16.", "172.17.", "172.18.", "172.19.", "172.20.", "172.21.",
		"172.22.", "172.23.", "172.24.", "172.25.", "172.26.", "172.27.",
		"172.28.", "172.29.", "172.30.", "172.31.",
		"fc00:", "fd00:", "fe80:",
	}
	lower := strings.ToLower(host)
	for _, prefix := range privatePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func isIPAddress(host string) bool {
	if ipv4Pattern.MatchString(host) {
		return true
	}
	// IPv6 literals contain colons.
	return strings.Contains(host, ":")
}
