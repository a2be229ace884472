package masking

import "testing"

func TestMaskSecretKeepsPrefixAndSuffix(t *testing.T) {
	got := MaskSecret("qb_1234567890abcdef")
	if got != "qb_****cdef" {
		t.Fatalf("unexpected masked value %q", got)
	}
}

func TestMaskSecretShortValue(t *testing.T) {
	got := MaskSecret("abcd")
	if got != "****" {
		t.Fatalf("unexpected masked value %q", got)
	}
}

func TestMaskJSONMasksNestedStrings(t *testing.T) {
	masked := MaskJSON(map[string]any{
		"access_token": "tok_9876543210",
		"meta": map[string]any{
			"secret": "deadbeefcafe",
		},
		"count": 3,
	})

	if masked["access_token"] != "tok_****3210" {
		t.Fatalf("unexpected token mask %v", masked["access_token"])
	}
	inner, ok := masked["meta"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested map, got %T", masked["meta"])
	}
	if inner["secret"] != "****cafe" {
		t.Fatalf("unexpected nested mask %v", inner["secret"])
	}
	if masked["count"] != 3 {
		t.Fatalf("expected non-string values untouched, got %v", masked["count"])
	}
}
