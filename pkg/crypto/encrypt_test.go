package crypto

import (
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{"base58 secret", "5HueCGU8rMjxEXxiPuD5BDku4MkFqeZyd4dZ1jvhTVqvbTLvyTJ"},
		{"empty string", ""},
		{"unicode", "ключ подписанта"},
		{"long payload", strings.Repeat("x", 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := Encrypt(tt.plaintext, key)
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}
			if encrypted == tt.plaintext && tt.plaintext != "" {
				t.Error("ciphertext must differ from plaintext")
			}

			decrypted, err := Decrypt(encrypted, key)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}
			if decrypted != tt.plaintext {
				t.Errorf("round trip broken: got %q, want %q", decrypted, tt.plaintext)
			}
		})
	}
}

func TestEncryptNonceIsRandom(t *testing.T) {
	key, _ := GenerateKey()

	c1, _ := Encrypt("same secret", key)
	c2, _ := Encrypt("same secret", key)
	if c1 == c2 {
		t.Error("two encryptions of the same plaintext must differ (random nonce)")
	}
}

func TestEncryptKeyLength(t *testing.T) {
	tests := []struct {
		name   string
		keyLen int
	}{
		{"empty key", 0},
		{"short key", 16},
		{"long key", 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := make([]byte, tt.keyLen)
			if _, err := Encrypt("data", key); err != ErrInvalidKeyLength {
				t.Errorf("Encrypt: err = %v, want ErrInvalidKeyLength", err)
			}
			if _, err := Decrypt("data", key); err != ErrInvalidKeyLength {
				t.Errorf("Decrypt: err = %v, want ErrInvalidKeyLength", err)
			}
		})
	}
}

func TestDecryptWrongKey(t *testing.T) {
	key1, _ := GenerateKey()
	key2, _ := GenerateKey()

	encrypted, _ := Encrypt("fee payer secret", key1)
	if _, err := Decrypt(encrypted, key2); err != ErrDecryptionFailed {
		t.Errorf("err = %v, want ErrDecryptionFailed", err)
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	key, _ := GenerateKey()
	encrypted, _ := Encrypt("fee payer secret", key)

	// Подмена одного символа base64 ломает аутентификацию
	tampered := []byte(encrypted)
	if tampered[len(tampered)-5] == 'A' {
		tampered[len(tampered)-5] = 'B'
	} else {
		tampered[len(tampered)-5] = 'A'
	}

	if _, err := Decrypt(string(tampered), key); err == nil {
		t.Error("tampered ciphertext must not decrypt")
	}
}

func TestDecryptMalformedInput(t *testing.T) {
	key, _ := GenerateKey()

	if _, err := Decrypt("not-base64!!!", key); err != ErrInvalidCiphertext {
		t.Errorf("err = %v, want ErrInvalidCiphertext", err)
	}
	if _, err := Decrypt("YWJj", key); err != ErrCiphertextTooShort {
		t.Errorf("err = %v, want ErrCiphertextTooShort", err)
	}
}

func TestGenerateKey(t *testing.T) {
	key1, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	if len(key1) != 32 {
		t.Errorf("key length = %d, want 32", len(key1))
	}

	key2, _ := GenerateKey()
	if string(key1) == string(key2) {
		t.Error("two generated keys must differ")
	}
}
