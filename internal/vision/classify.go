package vision

import "strings"

// NormalizeLabel maps a raw model reply onto exactly one label.
// Negative phrasings ("no accident", "safe") take precedence over a bare
// "accident" substring so that replies like "no accident detected" do
// not register as positives.
func NormalizeLabel(reply string) Label {
	text := strings.ToLower(strings.TrimSpace(reply))

	if strings.Contains(text, "no accident") ||
		strings.Contains(text, "no_accident") ||
		strings.Contains(text, "safe") {
		return LabelNoAccident
	}
	if strings.Contains(text, "accident") {
		return LabelAccident
	}
	return LabelNoAccident
}
