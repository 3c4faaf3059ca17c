package normalize

import "testing"

func TestEmail(t *testing.T) {
	in := "  John.DOE@Example.COM  "
	want := "john.doe@example.com"
	got := Email(in)
	if got != want {
		t.Fatalf("Normalize.Email(%q) = %q, want %q", in, got, want)
	}
}

func TestBlank(t *testing.T) {
	for _, in := range []string{"", " ", "\n\t  "} {
		if !Blank(in) {
			t.Fatalf("Blank(%q) = false, want true", in)
		}
	}
	if Blank(" hi ") {
		t.Fatal("Blank(\" hi \") = true, want false")
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("  hello  ", 10); got != "hello" {
		t.Fatalf("Preview short = %q", got)
	}
	if got := Preview("héllo world", 5); got != "héllo…" {
		t.Fatalf("Preview cut = %q", got)
	}
}
