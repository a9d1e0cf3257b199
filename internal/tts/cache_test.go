package tts

import (
	"testing"
	"time"
)

func TestKeyIsDeterministicAndParameterSensitive(t *testing.T) {
	v := DefaultVoice("aura-2-thalia-en")
	k1 := Key("Hola mundo.", v)
	k2 := Key("Hola mundo.", v)
	if k1 != k2 {
		t.Fatalf("identical inputs produced different keys: %s vs %s", k1, k2)
	}
	// Whitespace normalization folds into the same key.
	if k3 := Key("  Hola   mundo. ", v); k3 != k1 {
		t.Fatalf("normalized text should share the key: %s vs %s", k3, k1)
	}
	other := v
	other.Speed = 1.25
	if Key("Hola mundo.", other) == k1 {
		t.Fatal("differing voice parameters must not share a key")
	}
	if Key("Hola mundo", v) == k1 {
		t.Fatal("differing text must not share a key")
	}
}

func TestCachePutGet(t *testing.T) {
	c := NewCache(time.Minute)
	data := []byte{1, 2, 3}
	c.Put("k", data, "http://x/audio/k")

	got, url, ok := c.Get("k")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(got) != string(data) || url != "http://x/audio/k" {
		t.Fatalf("unexpected entry: %v %q", got, url)
	}
	if _, _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestCacheExpiredEntryIsAbsentAndPurged(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	c.Put("k", []byte{1}, "")
	time.Sleep(25 * time.Millisecond)

	if _, _, ok := c.Get("k"); ok {
		t.Fatal("expired entry returned as live")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not purged on access, len=%d", c.Len())
	}
}
