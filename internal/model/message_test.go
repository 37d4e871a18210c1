package model

import "testing"

func TestContentDigestDeterministic(t *testing.T) {
	a := ContentDigest("the defendant breached the contract")
	b := ContentDigest("the defendant breached the contract")
	if a != b {
		t.Fatalf("same content produced different digests")
	}
	if len(a) != 64 {
		t.Fatalf("digest length = %d, want 64 hex chars", len(a))
	}
	if a == ContentDigest("different content") {
		t.Fatalf("different content must not collide on digest")
	}
}

func TestSealAndVerify(t *testing.T) {
	msg := Message{Role: "user", Content: "what are my chances on appeal"}
	if msg.VerifyIntegrity() {
		t.Fatalf("unsealed message must not verify")
	}

	msg.SealContent()
	if !msg.VerifyIntegrity() {
		t.Fatalf("sealed message must verify")
	}

	// Sealing twice is a no-op.
	hash := msg.ContentHash
	msg.SealContent()
	if msg.ContentHash != hash {
		t.Fatalf("re-sealing changed the hash")
	}
}

func TestVerifyDetectsTamper(t *testing.T) {
	msg := Message{Role: "assistant", Content: "original answer"}
	msg.SealContent()

	msg.Content = "edited answer"
	if msg.VerifyIntegrity() {
		t.Fatalf("tampered content must fail verification")
	}
}
