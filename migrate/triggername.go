package migrate

import "strings"

// TriggerSpec is the parsed shape of a planner-managed trigger name.
type TriggerSpec struct {
	Timing       string // BEFORE | AFTER
	Event        string // INSERT | UPDATE | DELETE
	Source       string
	SourceField  string
	Target       string
	TargetField  string
	Policy       string
}

const triggerPrefix = "ST_TRIGGER:"

// FormatTriggerName renders spec's trigger-name grammar:
// ST_TRIGGER:{timing}:{event}:{source}@{field}:{target}@{field}:{policy}
func FormatTriggerName(spec TriggerSpec) string {
	return triggerPrefix + strings.Join([]string{
		spec.Timing, spec.Event,
		spec.Source + "@" + spec.SourceField,
		spec.Target + "@" + spec.TargetField,
		spec.Policy,
	}, ":")
}

// ParseTriggerName parses a trigger name produced by FormatTriggerName.
// Names that don't match the grammar are reported via ok=false so the
// caller leaves them untouched (spec §4.7: "unrecognised names are left
// untouched exactly as spec requires").
func ParseTriggerName(name string) (TriggerSpec, bool) {
	if !strings.HasPrefix(name, triggerPrefix) {
		return TriggerSpec{}, false
	}
	parts := strings.Split(strings.TrimPrefix(name, triggerPrefix), ":")
	if len(parts) != 5 {
		return TriggerSpec{}, false
	}
	source, sourceField, ok := splitAt(parts[2], '@')
	if !ok {
		return TriggerSpec{}, false
	}
	target, targetField, ok := splitAt(parts[3], '@')
	if !ok {
		return TriggerSpec{}, false
	}
	return TriggerSpec{
		Timing:      parts[0],
		Event:       parts[1],
		Source:      source,
		SourceField: sourceField,
		Target:      target,
		TargetField: targetField,
		Policy:      parts[4],
	}, true
}

func splitAt(s string, sep byte) (string, string, bool) {
	i := strings.IndexByte(s, sep)
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}
