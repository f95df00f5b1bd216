package vision

import "testing"

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  Label
	}{
		{"bare accident", "accident", LabelAccident},
		{"bare no accident", "no accident", LabelNoAccident},
		{"underscore form", "no_accident", LabelNoAccident},
		{"negative phrase wins over substring", "no accident detected in this frame", LabelNoAccident},
		{"both substrings present", "accident? no accident visible", LabelNoAccident},
		{"safe keyword", "the road looks safe", LabelNoAccident},
		{"accident in sentence", "there is an accident on the shoulder", LabelAccident},
		{"mixed case", "ACCIDENT", LabelAccident},
		{"surrounding whitespace", "  accident  ", LabelAccident},
		{"unrelated reply", "a highway at dusk", LabelNoAccident},
		{"empty reply", "", LabelNoAccident},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeLabel(tt.reply); got != tt.want {
				t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.reply, got, tt.want)
			}
		})
	}
}
