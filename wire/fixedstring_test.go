package wire

import "testing"

func TestFixedStringCreation(t *testing.T) {
	s, err := NewDeviceName("hello")
	if err != nil {
		t.Fatalf("NewDeviceName: %v", err)
	}
	if s.String() != "hello" || s.Len() != 5 {
		t.Errorf("got %q len %d", s.String(), s.Len())
	}

	_, err = NewDeviceName("this name is definitely too long")
	var tooLong *StringTooLong
	if err == nil {
		t.Fatal("expected error for too-long name")
	}
	if !asStringTooLong(err, &tooLong) {
		t.Fatalf("expected *StringTooLong, got %T", err)
	}
	if tooLong.MaxLen != DeviceNameMaxLength {
		t.Errorf("max len: got %d want %d", tooLong.MaxLen, DeviceNameMaxLength)
	}
}

func asStringTooLong(err error, target **StringTooLong) bool {
	if e, ok := err.(*StringTooLong); ok {
		*target = e
		return true
	}
	return false
}

func TestFixedStringTruncate(t *testing.T) {
	s := TruncateKeyName("this key name is much too long to fit")
	if s.Len() != KeyNameMaxLength {
		t.Errorf("truncated length: got %d want %d", s.Len(), KeyNameMaxLength)
	}
}

func TestFixedStringUnicodeCounting(t *testing.T) {
	emoji := "Hello 👋 世界"
	s, err := NewFixedString[deviceNameWidth](emoji)
	if err != nil {
		t.Fatalf("NewFixedString: %v", err)
	}
	if s.Len() != 10 {
		t.Errorf("rune count: got %d want 10", s.Len())
	}

	truncated := TruncateFixedString[keyNameWidth]("Hello 👋 世界 🎉 Test")
	if truncated.Len() != KeyNameMaxLength {
		t.Errorf("truncated rune count: got %d want %d", truncated.Len(), KeyNameMaxLength)
	}
}

func TestFixedStringMarshalRoundtrip(t *testing.T) {
	name, _ := NewKeyName("vault-key")
	b, err := name.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	var decoded KeyName
	if err := decoded.UnmarshalBinary(b); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if decoded.String() != "vault-key" {
		t.Errorf("roundtrip: got %q", decoded.String())
	}
}

func TestFixedStringDecodeNeverFails(t *testing.T) {
	// A too-long string marshalled raw (bypassing NewKeyName) must be
	// truncated, not rejected, on decode.
	raw := encodeBytesLP([]byte("a string that is far too long to be a valid key name at all"))
	var decoded KeyName
	if err := decoded.UnmarshalBinary(raw); err != nil {
		t.Fatalf("UnmarshalBinary should never fail, got %v", err)
	}
	if decoded.Len() != KeyNameMaxLength {
		t.Errorf("decode should truncate: got len %d", decoded.Len())
	}
}
