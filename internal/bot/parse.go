package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseIDArg extracts a numeric ID from a command argument string.
func ParseIDArg(args string) (int64, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("scan ID is required")
	}
	id, err := strconv.ParseInt(strings.Fields(s)[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid scan ID %q", s)
	}
	return id, nil
}

// ParseAddArgs extracts the scan target from /add arguments.
func ParseAddArgs(args string) (string, error) {
	target := strings.TrimSpace(args)
	if target == "" {
		return "", fmt.Errorf("scan target is required")
	}
	if strings.ContainsAny(target, " \t") {
		return "", fmt.Errorf("scan target must be a single link or @name")
	}
	return target, nil
}

// ParseKeywordArgs extracts a scan ID and a keyword term. The term may
// contain spaces; everything after the ID belongs to it.
func ParseKeywordArgs(args string) (int64, string, error) {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if len(parts) < 2 {
		return 0, "", fmt.Errorf("usage: <scan_id> <word or phrase>")
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid scan ID %q", parts[0])
	}
	term := strings.TrimSpace(parts[1])
	if term == "" {
		return 0, "", fmt.Errorf("keyword cannot be empty")
	}
	return id, term, nil
}

// ParseToggleArgs extracts a scan ID and an on/off flag.
func ParseToggleArgs(args string) (int64, bool, error) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return 0, false, fmt.Errorf("usage: <scan_id> on|off")
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid scan ID %q", parts[0])
	}
	switch parts[1] {
	case "on":
		return id, true, nil
	case "off":
		return id, false, nil
	default:
		return 0, false, fmt.Errorf("invalid value %q, use: on, off", parts[1])
	}
}

// ParseLimitArgs extracts a scan ID and a message limit.
func ParseLimitArgs(args string) (int64, int, error) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("usage: /limit <id> <n>")
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid scan ID %q", parts[0])
	}
	limit, err := strconv.Atoi(parts[1])
	if err != nil || limit < 1 || limit > 100000 {
		return 0, 0, fmt.Errorf("limit must be between 1 and 100000 messages")
	}
	return id, limit, nil
}

// ParseRunArgs extracts a scan ID and an optional monitor window in
// seconds. Zero seconds means the configured default.
func ParseRunArgs(args string) (int64, int, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return 0, 0, fmt.Errorf("usage: /run <id> [seconds]")
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid scan ID %q", parts[0])
	}
	if len(parts) == 1 {
		return id, 0, nil
	}
	seconds, err := strconv.Atoi(parts[1])
	if err != nil || seconds < 1 || seconds > 86400 {
		return 0, 0, fmt.Errorf("monitor window must be between 1 and 86400 seconds")
	}
	return id, seconds, nil
}
