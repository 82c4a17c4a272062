package logs

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"petscan/internal/logging"
	"petscan/internal/textutil"
)

// ParseLine decodes one JSON line written by the file handler. Lines that are
// not JSON objects report false so callers can print them verbatim.
func ParseLine(line string) (logging.LogEvent, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return logging.LogEvent{}, false
	}
	evt := logging.LogEvent{
		Level:         strings.ToLower(takeString(raw, "level")),
		Message:       takeString(raw, "msg"),
		Component:     takeString(raw, logging.FieldComponent),
		SessionID:     takeString(raw, logging.FieldSessionID),
		AttemptID:     takeString(raw, logging.FieldAttemptID),
		CorrelationID: takeString(raw, logging.FieldCorrelationID),
	}
	if ts, err := time.Parse(time.RFC3339Nano, takeString(raw, "time")); err == nil {
		evt.Timestamp = ts
	}
	if len(raw) > 0 {
		evt.Fields = make(map[string]string, len(raw))
		for key, value := range raw {
			evt.Fields[key] = fmt.Sprint(value)
		}
	}
	return evt, true
}

func takeString(raw map[string]any, key string) string {
	value, ok := raw[key]
	if !ok {
		return ""
	}
	delete(raw, key)
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// FormatEvent renders an event as a single console line:
// "15:04:05 WARN  [scan] message key=value ...".
func FormatEvent(evt logging.LogEvent) string {
	var b strings.Builder
	if !evt.Timestamp.IsZero() {
		b.WriteString(evt.Timestamp.Local().Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s", strings.ToUpper(textutil.Fallback(evt.Level, "info")))
	if evt.Component != "" {
		fmt.Fprintf(&b, " [%s]", evt.Component)
	}
	b.WriteByte(' ')
	b.WriteString(evt.Message)

	extras := map[string]string{}
	maps.Copy(extras, evt.Fields)
	if evt.SessionID != "" {
		extras[logging.FieldSessionID] = evt.SessionID
	}
	if evt.AttemptID != "" {
		extras[logging.FieldAttemptID] = evt.AttemptID
	}
	for _, key := range slices.Sorted(maps.Keys(extras)) {
		value := extras[key]
		if strings.ContainsAny(value, " \t") {
			value = fmt.Sprintf("%q", value)
		}
		fmt.Fprintf(&b, " %s=%s", key, value)
	}
	return b.String()
}

// LevelAtLeast reports whether level is at or above floor. Unknown levels pass.
func LevelAtLeast(level, floor string) bool {
	want, ok := levelRank(floor)
	if !ok {
		return true
	}
	got, ok := levelRank(level)
	return !ok || got >= want
}

func levelRank(level string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return 0, true
	case "info":
		return 1, true
	case "warn", "warning":
		return 2, true
	case "error":
		return 3, true
	default:
		return 0, false
	}
}
