package docs

import (
	"strings"
	"testing"
)

func TestTopics(t *testing.T) {
	topics := Topics()
	want := map[string]bool{"config": false, "journal": false, "keys": false}
	for _, tp := range topics {
		if _, ok := want[tp]; ok {
			want[tp] = true
		}
	}
	for tp, seen := range want {
		if !seen {
			t.Fatalf("expected topic %q in %v", tp, topics)
		}
	}
}

func TestGet(t *testing.T) {
	body, ok := Get(" KEYS ")
	if !ok || !strings.Contains(body, "ctrl+s") {
		t.Fatalf("expected keys topic, ok=%v", ok)
	}
	if _, ok := Get("../docs"); ok {
		t.Fatalf("expected path-like topics to be rejected")
	}
	if _, ok := Get("nope"); ok {
		t.Fatalf("expected unknown topic to be missing")
	}
}
