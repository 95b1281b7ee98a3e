package download

import "testing"

func TestEscapeCSV(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{"a,b", `"a,b"`},
		{`a,b"c`, `"a,b""c"`},
		{`say "hi"`, `"say ""hi"""`},
		{"x\ny", "x y"},
		{"x\r\n\ny", "x y"},
		{"line\nwith, comma", `"line with, comma"`},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := EscapeCSV(tt.input); got != tt.want {
				t.Errorf("EscapeCSV(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCSVRow(t *testing.T) {
	got := csvRow(csvHeader...)
	want := "#,Title,Artist,Album,Duration,URL\n"
	if got != want {
		t.Errorf("csvRow(header) = %q, want %q", got, want)
	}
}
