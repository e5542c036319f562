package collector

import (
	"net"
	"net/netip"
	"regexp"
	"strings"
	"time"
)

// Log formats a source can be configured with
const (
	FormatAuto     = "auto"
	FormatVelocity = "velocity"
	FormatBungee   = "bungee"
	FormatPlain    = "plain"
)

// ConnectEvent is one player connection read from a proxy log
type ConnectEvent struct {
	Timestamp time.Time
	Account   string
	Address   string
	Format    string
}

var (
	// Matches ISO 8601 timestamp at start of line: 2026-01-12T10:58:23 or 2026-01-12T10:58:23.456789Z
	timestampRegex = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})?)\s+`)

	// [12:00:00 INFO]: [connected player] Steve (/1.2.3.4:5678) has connected
	velocityRegex = regexp.MustCompile(`\[connected player\] (\S+) \(/?([^)\s]+)\) has connected`)

	// [12:00:00 INFO]: [Steve|/1.2.3.4:5678] <-> InitialHandler has connected
	bungeeRegex = regexp.MustCompile(`\[([^|\]\s]+)\|/?([^\]\s]+)\] <-> InitialHandler has connected`)

	// connect Steve 1.2.3.4
	plainRegex = regexp.MustCompile(`^connect (\S+) (\S+)$`)
)

var formatRegexes = map[string]*regexp.Regexp{
	FormatVelocity: velocityRegex,
	FormatBungee:   bungeeRegex,
	FormatPlain:    plainRegex,
}

// ValidFormat reports whether format names a known log format
func ValidFormat(format string) bool {
	if format == FormatAuto {
		return true
	}
	_, ok := formatRegexes[format]
	return ok
}

// ParseLine parses a single log line. It returns nil for lines that are
// not connection events or whose address is not an IP literal.
func ParseLine(line, format string) *ConnectEvent {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var timestamp time.Time
	content := line
	if match := timestampRegex.FindStringSubmatch(line); match != nil {
		ts, err := time.Parse(time.RFC3339Nano, match[1])
		if err != nil {
			ts, err = time.ParseInLocation("2006-01-02T15:04:05", match[1], time.Local)
		}
		if err == nil {
			timestamp = ts
			content = line[len(match[0]):]
		}
	}
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	formats := []string{format}
	if format == "" || format == FormatAuto {
		formats = []string{FormatVelocity, FormatBungee, FormatPlain}
	}

	for _, f := range formats {
		re, ok := formatRegexes[f]
		if !ok {
			continue
		}
		match := re.FindStringSubmatch(content)
		if match == nil {
			continue
		}
		address, ok := hostOnly(match[2])
		if !ok {
			return nil
		}
		return &ConnectEvent{
			Timestamp: timestamp,
			Account:   match[1],
			Address:   address,
			Format:    f,
		}
	}
	return nil
}

// hostOnly strips the port from a proxy's socket address rendering.
// It accepts "1.2.3.4:5678", "[::1]:5678", bare IPs, and the unbracketed
// "0:0:0:0:0:0:0:1:5678" form older JVMs print.
func hostOnly(s string) (string, bool) {
	s = strings.TrimPrefix(s, "/")
	if _, err := netip.ParseAddr(s); err == nil {
		return s, true
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		if _, err := netip.ParseAddr(host); err == nil {
			return host, true
		}
	}
	if i := strings.LastIndexByte(s, ':'); i > 0 {
		host := s[:i]
		if _, err := netip.ParseAddr(host); err == nil && isPort(s[i+1:]) {
			return host, true
		}
	}
	return "", false
}

func isPort(s string) bool {
	if s == "" || len(s) > 5 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
