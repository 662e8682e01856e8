package summarize

import "testing"

func TestFill(t *testing.T) {
	tests := []struct {
		name string
		tpl  string
		text string
		want string
	}{
		{"placeholder", "Summarize:\n%s", "paper", "Summarize:\npaper"},
		{"literal percent", "Keep it under 20% of length.\n%s", "paper", "Keep it under 20% of length.\npaper"},
		{"second placeholder kept", "%s then %s", "a", "a then %s"},
		{"text with verbs", "Text: %s", "100%d %s", "Text: 100%d %s"},
		{"no placeholder", "Summarize the paper.", "paper", "Summarize the paper.\n\npaper"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fill(tt.tpl, tt.text); got != tt.want {
				t.Errorf("fill() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWithDefaultsKeepsOverrides(t *testing.T) {
	p := Prompts{Map: "Notes, 50% shorter:\n%s"}.withDefaults()
	def := DefaultPrompts()
	if p.Map != "Notes, 50% shorter:\n%s" {
		t.Errorf("Map override lost: %q", p.Map)
	}
	if p.System != def.System || p.Reduce != def.Reduce || p.Direct != def.Direct {
		t.Error("unset prompts should take defaults")
	}
}
