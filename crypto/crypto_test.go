package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

type testPayload struct {
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
}

func (p *testPayload) Validate() error {
	if p.Title == "" {
		return errors.New("title is required")
	}
	return nil
}

func TestDeriveKey(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt failed: %v", err)
	}
	if len(salt) != SaltSize {
		t.Fatalf("expected %d byte salt, got %d", SaltSize, len(salt))
	}

	k1, err := DeriveKey([]byte("Sup3rSecret!"), salt)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	k2, _ := DeriveKey([]byte("Sup3rSecret!"), salt)
	if !bytes.Equal(k1, k2) {
		t.Error("DeriveKey should be deterministic")
	}
	if len(k1) != KeySize {
		t.Errorf("expected %d byte key, got %d", KeySize, len(k1))
	}

	k3, _ := DeriveKey([]byte("Sup3rSecret?"), salt)
	if bytes.Equal(k1, k3) {
		t.Error("different secrets should produce different keys")
	}

	t.Run("ShortSalt", func(t *testing.T) {
		if _, err := DeriveKey([]byte("secret"), []byte("short")); err == nil {
			t.Error("expected error for short salt")
		}
	})

	t.Run("EmptySecret", func(t *testing.T) {
		if _, err := DeriveKey(nil, salt); !errors.Is(err, ErrEmptySecret) {
			t.Errorf("expected ErrEmptySecret, got %v", err)
		}
	})

	if KDFIterations() < 100_000 {
		t.Errorf("KDF iteration count %d is too low", KDFIterations())
	}
}

func TestSealOpen(t *testing.T) {
	secret := []byte("Sup3rSecret!")
	plaintext := []byte(`{"title":"Mail"}`)

	env, err := Seal(plaintext, secret, PurposeEntry)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	t.Run("RoundTrip", func(t *testing.T) {
		got, err := Open(env, secret, PurposeEntry)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Errorf("expected %s, got %s", plaintext, got)
		}
	})

	t.Run("WrongSecret", func(t *testing.T) {
		_, err := Open(env, []byte("Sup3rSecret?"), PurposeEntry)
		if !errors.Is(err, ErrIntegrity) {
			t.Errorf("expected ErrIntegrity, got %v", err)
		}
	})

	t.Run("WrongPurpose", func(t *testing.T) {
		_, err := Open(env, secret, PurposeSession)
		if !errors.Is(err, ErrIntegrity) {
			t.Errorf("expected ErrIntegrity, got %v", err)
		}
	})

	t.Run("TamperedCiphertext", func(t *testing.T) {
		bad := env.Clone()
		bad.Ciphertext[0] ^= 0xFF
		_, err := Open(bad, secret, PurposeEntry)
		if !errors.Is(err, ErrIntegrity) {
			t.Errorf("expected ErrIntegrity, got %v", err)
		}
	})

	t.Run("SwappedSalt", func(t *testing.T) {
		other, err := Seal(plaintext, secret, PurposeEntry)
		if err != nil {
			t.Fatalf("Seal failed: %v", err)
		}
		bad := env.Clone()
		bad.Salt = other.Salt
		_, err = Open(bad, secret, PurposeEntry)
		if !errors.Is(err, ErrIntegrity) {
			t.Errorf("expected ErrIntegrity, got %v", err)
		}
	})

	t.Run("MalformedEnvelope", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(e *Envelope)
		}{
			{"Version", func(e *Envelope) { e.Ver = 9 }},
			{"ShortIV", func(e *Envelope) { e.IV = e.IV[:4] }},
			{"ShortTag", func(e *Envelope) { e.Tag = e.Tag[:8] }},
			{"NoSalt", func(e *Envelope) { e.Salt = nil }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				bad := env.Clone()
				tt.mutate(bad)
				_, err := Open(bad, secret, PurposeEntry)
				if !errors.Is(err, ErrFormat) {
					t.Errorf("expected ErrFormat, got %v", err)
				}
			})
		}
		if _, err := Open(nil, secret, PurposeEntry); !errors.Is(err, ErrFormat) {
			t.Errorf("expected ErrFormat for nil envelope, got %v", err)
		}
	})

	t.Run("UnknownPurpose", func(t *testing.T) {
		if _, err := Seal(plaintext, secret, Purpose(99)); err == nil {
			t.Error("expected error for unknown purpose")
		}
	})
}

func TestSeal_FreshMaterialPerEnvelope(t *testing.T) {
	secret := []byte("Sup3rSecret!")
	plaintext := []byte("identical plaintext")

	a, err := Seal(plaintext, secret, PurposeEntry)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	b, err := Seal(plaintext, secret, PurposeEntry)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	if bytes.Equal(a.Salt, b.Salt) {
		t.Error("salts must differ between envelopes")
	}
	if bytes.Equal(a.IV, b.IV) {
		t.Error("IVs must differ between envelopes")
	}
	if bytes.Equal(a.Tag, b.Tag) {
		t.Error("tags must differ between envelopes")
	}
	if bytes.Equal(a.Ciphertext, b.Ciphertext) {
		t.Error("ciphertexts must differ between envelopes")
	}
}

func TestSealOpenJSON(t *testing.T) {
	secret := []byte("Sup3rSecret!")

	t.Run("RoundTrip", func(t *testing.T) {
		in := testPayload{Title: "Mail", Labels: []string{"a", "b"}}
		env, err := SealJSON(in, secret, PurposeEntry)
		if err != nil {
			t.Fatalf("SealJSON failed: %v", err)
		}
		var out testPayload
		if err := OpenJSON(env, secret, PurposeEntry, &out); err != nil {
			t.Fatalf("OpenJSON failed: %v", err)
		}
		if out.Title != in.Title || len(out.Labels) != 2 {
			t.Errorf("unexpected payload %+v", out)
		}
	})

	t.Run("NotJSON", func(t *testing.T) {
		env, _ := Seal([]byte("not json"), secret, PurposeEntry)
		var out testPayload
		if err := OpenJSON(env, secret, PurposeEntry, &out); !errors.Is(err, ErrFormat) {
			t.Errorf("expected ErrFormat, got %v", err)
		}
	})

	t.Run("UnknownField", func(t *testing.T) {
		env, _ := Seal([]byte(`{"title":"x","extra":1}`), secret, PurposeEntry)
		var out testPayload
		if err := OpenJSON(env, secret, PurposeEntry, &out); !errors.Is(err, ErrFormat) {
			t.Errorf("expected ErrFormat, got %v", err)
		}
	})

	t.Run("TrailingData", func(t *testing.T) {
		env, _ := Seal([]byte(`{"title":"x"} {"title":"y"}`), secret, PurposeEntry)
		var out testPayload
		if err := OpenJSON(env, secret, PurposeEntry, &out); !errors.Is(err, ErrFormat) {
			t.Errorf("expected ErrFormat, got %v", err)
		}
	})

	t.Run("ValidatorRejects", func(t *testing.T) {
		env, _ := Seal([]byte(`{"labels":[]}`), secret, PurposeEntry)
		var out testPayload
		if err := OpenJSON(env, secret, PurposeEntry, &out); !errors.Is(err, ErrFormat) {
			t.Errorf("expected ErrFormat, got %v", err)
		}
	})

	t.Run("WrongSecretIsIntegrity", func(t *testing.T) {
		env, _ := SealJSON(testPayload{Title: "x"}, secret, PurposeEntry)
		var out testPayload
		if err := OpenJSON(env, []byte("nope"), PurposeEntry, &out); !errors.Is(err, ErrIntegrity) {
			t.Errorf("expected ErrIntegrity, got %v", err)
		}
	})
}

func TestHashVerifySecret(t *testing.T) {
	secret := []byte("Sup3rSecret!")

	hashed, salt, err := HashSecret(secret)
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}
	if bytes.Contains(hashed, secret) {
		t.Fatal("hash must not contain the secret")
	}
	if len(salt) != 22 {
		t.Errorf("expected 22 character bcrypt salt, got %d", len(salt))
	}
	if !bytes.Contains(hashed, salt) {
		t.Error("salt should be the salt component of the hash")
	}

	if !VerifySecret(secret, hashed) {
		t.Error("VerifySecret should accept the original secret")
	}
	if VerifySecret([]byte("Sup3rSecret?"), hashed) {
		t.Error("VerifySecret should reject a different secret")
	}
	if VerifySecret(nil, hashed) {
		t.Error("VerifySecret should reject an empty secret")
	}

	again, _, err := HashSecret(secret)
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}
	if bytes.Equal(hashed, again) {
		t.Error("hashes of the same secret should be salted differently")
	}

	t.Run("TooLong", func(t *testing.T) {
		_, _, err := HashSecret([]byte(strings.Repeat("a", MaxSecretLen+1)))
		if !errors.Is(err, ErrSecretTooLong) {
			t.Errorf("expected ErrSecretTooLong, got %v", err)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		_, _, err := HashSecret(nil)
		if !errors.Is(err, ErrEmptySecret) {
			t.Errorf("expected ErrEmptySecret, got %v", err)
		}
	})
}
