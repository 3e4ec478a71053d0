package security

import "testing"

func TestSealerRoundTrip(t *testing.T) {
	sealer, err := NewSealer("test-credential-key")
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	sealed, errSeal := sealer.Seal([]byte("app-password"))
	if errSeal != nil {
		t.Fatalf("Seal: %v", errSeal)
	}
	if string(sealed) == "app-password" {
		t.Fatalf("expected ciphertext, got plaintext")
	}

	plain, errUnseal := sealer.Unseal(sealed)
	if errUnseal != nil {
		t.Fatalf("Unseal: %v", errUnseal)
	}
	if string(plain) != "app-password" {
		t.Fatalf("expected round trip, got %q", plain)
	}
}

func TestSealerRejectsWrongKey(t *testing.T) {
	sealer, err := NewSealer("key-one")
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	sealed, errSeal := sealer.Seal([]byte("secret"))
	if errSeal != nil {
		t.Fatalf("Seal: %v", errSeal)
	}

	other, errOther := NewSealer("key-two")
	if errOther != nil {
		t.Fatalf("NewSealer: %v", errOther)
	}
	if _, errUnseal := other.Unseal(sealed); errUnseal == nil {
		t.Fatalf("expected unseal failure with wrong key")
	}
}

func TestNewSealerRequiresSecret(t *testing.T) {
	if _, err := NewSealer(""); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
