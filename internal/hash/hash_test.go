package hash

import "testing"

func TestHashAndVerify(t *testing.T) {
	password := "my-secret-password-123"

	encoded, err := Hash(password)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if encoded == "" {
		t.Fatal("expected non-empty hash")
	}

	// Correct password should verify.
	if !Verify(password, encoded) {
		t.Error("expected correct password to verify")
	}

	// Wrong password should not verify.
	if Verify("wrong-password", encoded) {
		t.Error("expected wrong password to fail verification")
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty string", ""},
		{"random text", "not-a-hash"},
		{"too few parts", "$argon2id$v=19$m=65536"},
		{"corrupted salt", "$argon2id$v=19$m=65536,t=3,p=4$!!!invalid$aGFzaA"},
		{"corrupted hash", "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$!!!invalid"},
		{"garbage params", "$argon2id$v=19$nonsense$c2FsdA$aGFzaA"},
		{"zero parallelism", "$argon2id$v=19$m=65536,t=3,p=0$c2FsdA$aGFzaA"},
		{"zero iterations", "$argon2id$v=19$m=65536,t=0,p=4$c2FsdA$aGFzaA"},
		{"memory below lane minimum", "$argon2id$v=19$m=4,t=3,p=4$c2FsdA$aGFzaA"},
		{"empty digest", "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Verify("password", tt.hash) {
				t.Error("expected invalid hash to fail verification")
			}
		})
	}
}

func TestHash_UniqueSalts(t *testing.T) {
	hash1, err := Hash("same-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	hash2, err := Hash("same-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if hash1 == hash2 {
		t.Error("expected different salts to produce different hashes")
	}
}

func TestVerify_EmptyPassword(t *testing.T) {
	encoded, err := Hash("")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !Verify("", encoded) {
		t.Error("expected empty password to verify against its own hash")
	}
	if Verify("not-empty", encoded) {
		t.Error("expected non-empty password to fail against empty-password hash")
	}
}
