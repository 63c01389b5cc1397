package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testSecret() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func TestTokenCodec_RoundTrip(t *testing.T) {
	c, err := NewTokenCodec(testSecret())
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}

	ids := []string{
		"b6a7e1de-1111-4222-8333-444455556666",
		"s",
		"a-very-long-session-identifier-with-dashes-and-more",
	}
	for _, id := range ids {
		token, err := c.Encode(id)
		if err != nil {
			t.Fatalf("Encode(%q): %v", id, err)
		}
		got, err := c.Decode(token)
		if err != nil {
			t.Fatalf("Decode(Encode(%q)): %v", id, err)
		}
		if got != id {
			t.Errorf("round trip = %q, want %q", got, id)
		}
	}
}

func TestTokenCodec_TokenIsOpaque(t *testing.T) {
	c, _ := NewTokenCodec(testSecret())
	id := "b6a7e1de-1111-4222-8333-444455556666"

	token, err := c.Encode(id)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if token == id {
		t.Fatal("token must not equal the session id")
	}
	// Two encodings of the same id must differ (random nonce).
	token2, _ := c.Encode(id)
	if token == token2 {
		t.Error("two tokens for the same id should not be identical")
	}
}

func TestTokenCodec_ForeignSecretFailsCleanly(t *testing.T) {
	c1, _ := NewTokenCodec(testSecret())
	c2, _ := NewTokenCodec([]byte("another-secret-of-sufficient-len"))

	token, err := c1.Encode("session-1")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c2.Decode(token)
	if !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("Decode with foreign secret: err = %v, want ErrDecodeFailure", err)
	}
	if got != "" {
		t.Errorf("Decode with foreign secret returned %q, want empty", got)
	}
}

func TestTokenCodec_MalformedTokens(t *testing.T) {
	c, _ := NewTokenCodec(testSecret())

	for _, token := range []string{"", "!!!not-base64!!!", "AAAA", "YWJjZGVmZ2hpamtsbW5vcHFyc3R1dnd4eXo"} {
		if _, err := c.Decode(token); !errors.Is(err, ErrDecodeFailure) {
			t.Errorf("Decode(%q): err = %v, want ErrDecodeFailure", token, err)
		}
	}
}

func TestTokenCodec_TamperedTokenFails(t *testing.T) {
	c, _ := NewTokenCodec(testSecret())
	token, _ := c.Encode("session-1")

	b := []byte(token)
	if b[len(b)-1] == 'A' {
		b[len(b)-1] = 'B'
	} else {
		b[len(b)-1] = 'A'
	}
	if _, err := c.Decode(string(b)); !errors.Is(err, ErrDecodeFailure) {
		t.Errorf("Decode(tampered): err = %v, want ErrDecodeFailure", err)
	}
}

func TestNewTokenCodec_RejectsShortSecret(t *testing.T) {
	if _, err := NewTokenCodec([]byte("short")); !errors.Is(err, ErrInvalidSecret) {
		t.Errorf("err = %v, want ErrInvalidSecret", err)
	}
	if _, err := NewTokenCodec(nil); !errors.Is(err, ErrInvalidSecret) {
		t.Errorf("err = %v, want ErrInvalidSecret", err)
	}
}

func TestLoadSecret_Inline(t *testing.T) {
	got, err := LoadSecret("  inline-secret-value  ")
	if err != nil {
		t.Fatalf("LoadSecret: %v", err)
	}
	if string(got) != "inline-secret-value" {
		t.Errorf("LoadSecret = %q", got)
	}
}

func TestLoadSecret_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("file-secret-0123456789\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := LoadSecret("file:" + path)
	if err != nil {
		t.Fatalf("LoadSecret: %v", err)
	}
	if string(got) != "file-secret-0123456789" {
		t.Errorf("LoadSecret = %q", got)
	}
}

func TestLoadSecret_Empty(t *testing.T) {
	if _, err := LoadSecret(""); !errors.Is(err, ErrInvalidSecret) {
		t.Errorf("err = %v, want ErrInvalidSecret", err)
	}
}
