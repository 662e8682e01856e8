package chunk

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"nbsp and crlf", "Hello\u00a0 world\r\n\r\n\r\n\tNext\x00 line  ", "Hello world\n\nNext line"},
		{"fullwidth", "ＡＢＣ tariffs", "ABC tariffs"},
		{"single newline kept", "line one\nline two", "line one\nline two"},
		{"empty", "  \n\n ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCharEstimator(t *testing.T) {
	e := CharEstimator{CharsPerToken: 4}
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcde", 2},
		{"ééé", 1},
	}
	for _, tt := range tests {
		if got := e.Count(tt.text); got != tt.want {
			t.Errorf("Count(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}

	if got := (CharEstimator{}).Count("abcdefgh"); got != 2 {
		t.Errorf("default estimator Count = %d, want 2", got)
	}
}
