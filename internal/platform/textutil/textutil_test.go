package textutil

import "testing"

func TestFold(t *testing.T) {
	cases := map[string]string{
		"João":         "joao",
		"  AÇÃO ":      "acao",
		"Conceição":    "conceicao",
		"":             "",
		"PZ-2025-0001": "pz-2025-0001",
	}
	for input, want := range cases {
		if got := Fold(input); got != want {
			t.Fatalf("Fold(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestContainsFold(t *testing.T) {
	if !ContainsFold("Maria Conceição", "conceicao") {
		t.Fatalf("expected accent-insensitive match")
	}
	if ContainsFold("Maria", "jose") {
		t.Fatalf("unexpected match")
	}
	if !ContainsFold("anything", "  ") {
		t.Fatalf("blank needle must match")
	}
}

func TestSanitize(t *testing.T) {
	if got := Sanitize("<b>Feliz</b>   aniversário\n<script>x</script>", 0); got != "Feliz aniversário" {
		t.Fatalf("unexpected sanitized value %q", got)
	}
	if got := Sanitize("Tom & Jerry", 0); got != "Tom & Jerry" {
		t.Fatalf("expected entities to be unescaped, got %q", got)
	}
	if got := Sanitize("ééééé", 3); got != "ééé" {
		t.Fatalf("expected rune truncation, got %q", got)
	}
}
