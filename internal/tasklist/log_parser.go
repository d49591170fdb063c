package tasklist

import "strings"

// ParseLogLevel extracts the level from a tasklist.exe diagnostic line.
// tasklist.exe prefixes its messages with "ERROR:", "WARNING:" or "INFO:"
// (e.g. "INFO: No tasks are running which match the specified criteria.").
// The prefix is stripped from the returned message.
func ParseLogLevel(line string) (level, msg string) {
	prefix, rest, ok := strings.Cut(line, ":")
	if !ok {
		return "info", line
	}

	switch strings.ToUpper(strings.TrimSpace(prefix)) {
	case "ERROR":
		return "error", strings.TrimSpace(rest)
	case "WARNING":
		return "warning", strings.TrimSpace(rest)
	case "INFO":
		return "info", strings.TrimSpace(rest)
	}
	return "info", line
}
