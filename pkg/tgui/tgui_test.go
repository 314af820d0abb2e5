package tgui

import (
	"strings"
	"testing"
)

func TestCallbackDataRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		scope, action, payload string
	}{
		{"boss", "confirm", "Hydra"},
		{"boss", "dismiss", ""},
		{"boss", "confirm", "Name:With:Colons"},
	}
	for _, tt := range tests {
		s, a, p := Split(Data(tt.scope, tt.action, tt.payload))
		if s != tt.scope || a != tt.action || p != tt.payload {
			t.Fatalf("round trip (%q,%q,%q) -> (%q,%q,%q)",
				tt.scope, tt.action, tt.payload, s, a, p)
		}
	}
}

func TestSplitMalformed(t *testing.T) {
	t.Parallel()
	if s, a, p := Split("justscope"); s != "justscope" || a != "" || p != "" {
		t.Fatalf("got (%q,%q,%q)", s, a, p)
	}
	if s, a, p := Split(""); s != "" || a != "" || p != "" {
		t.Fatalf("got (%q,%q,%q)", s, a, p)
	}
}

func TestEscapesHTML(t *testing.T) {
	t.Parallel()
	m := New().Title("📜", "a <b> & c").Line("<script>").Build()
	if strings.Contains(m.Text, "<script>") {
		t.Fatalf("unescaped input leaked: %q", m.Text)
	}
	if !strings.Contains(m.Text, "&lt;script&gt;") {
		t.Fatalf("expected escaped line in %q", m.Text)
	}
}

func TestBuilderLayout(t *testing.T) {
	t.Parallel()
	kb := NewInline().Row(Btn("✅ Killed", Data("boss", "confirm", "Hydra")))
	m := New().
		Title("📜", "Hydra").
		KV("Status", "waiting").
		Pre("[####------]").
		Inline(kb).
		Build()

	if m.Opt == nil || m.Opt.ParseMode != "HTML" {
		t.Fatalf("opt = %+v", m.Opt)
	}
	if m.Opt.ReplyMarkupAdapter == nil {
		t.Fatal("keyboard not attached")
	}
	for _, want := range []string{"Hydra", "Status", "waiting", "[####------]", "<pre>"} {
		if !strings.Contains(m.Text, want) {
			t.Fatalf("missing %q in %q", want, m.Text)
		}
	}
}
