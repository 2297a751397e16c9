package wire

import "testing"

func TestUnescape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "plain"},
		{in: `\u041f\u0440\u0438\u0432\u0435\u0442`, want: "Привет"},
		{in: `a\u0020b`, want: "a b"},
		{in: `\uD83D\ude00!`, want: "😀!"},
		{in: `\u12`, want: `\u12`},
		{in: `\uzzzz`, want: `\uzzzz`},
		{in: `tail\`, want: `tail\`},
	}
	for _, tt := range tests {
		if got := Unescape(tt.in); got != tt.want {
			t.Fatalf("Unescape(%q)=%q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBodyTextUnescapes(t *testing.T) {
	m := Message{Text: &Text{Data: `\u0414\u0430`}}
	got, ok := m.BodyText()
	if !ok || got != "Да" {
		t.Fatalf("BodyText=(%q,%v), want (%q,true)", got, ok, "Да")
	}
}
