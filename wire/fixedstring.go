package wire

import "fmt"

// StringTooLong is returned by NewFixedString when s has more runes than the
// fixed width allows.
type StringTooLong struct {
	MaxLen    int
	ActualLen int
}

func (e *StringTooLong) Error() string {
	return fmt.Sprintf("string too long: max length is %d but got %d", e.MaxLen, e.ActualLen)
}

// widthTag lets a zero-sized marker type stand in for Rust's const generic
// parameter: Go generics only parameterize over types, so each fixed width
// is represented by a distinct marker type whose MaxLen method supplies the
// bound.
type widthTag interface {
	MaxLen() int
}

// FixedString is a string truncated to at most W.MaxLen() runes. Width is
// counted in runes, not bytes, so multi-byte UTF-8 sequences are never split
// across the truncation boundary.
type FixedString[W widthTag] struct {
	inner string
}

// NewFixedString validates s against the width bound, returning
// *StringTooLong if it doesn't fit.
func NewFixedString[W widthTag](s string) (FixedString[W], error) {
	var tag W
	max := tag.MaxLen()
	count := len([]rune(s))
	if count > max {
		return FixedString[W]{}, &StringTooLong{MaxLen: max, ActualLen: count}
	}
	return FixedString[W]{inner: s}, nil
}

// TruncateFixedString truncates s to the width bound rather than failing;
// used when decoding untrusted wire data, mirroring the never-fail decode
// contract.
func TruncateFixedString[W widthTag](s string) FixedString[W] {
	var tag W
	max := tag.MaxLen()
	runes := []rune(s)
	if len(runes) <= max {
		return FixedString[W]{inner: s}
	}
	return FixedString[W]{inner: string(runes[:max])}
}

func (f FixedString[W]) String() string { return f.inner }

func (f FixedString[W]) Len() int { return len([]rune(f.inner)) }

func (f FixedString[W]) IsEmpty() bool { return f.inner == "" }

func (f FixedString[W]) MarshalBinary() ([]byte, error) {
	return encodeBytesLP([]byte(f.inner)), nil
}

func (f *FixedString[W]) UnmarshalBinary(data []byte) error {
	raw, _, err := decodeBytesLP(data)
	if err != nil {
		return err
	}
	*f = TruncateFixedString[W](string(raw))
	return nil
}

// DeviceNameMaxLength and KeyNameMaxLength are the two fixed widths carried
// on the wire, per the handshake and keygen message shapes.
const (
	DeviceNameMaxLength = 14
	KeyNameMaxLength    = 15
)

// deviceNameWidth and keyNameWidth carry those widths as type parameters.
type deviceNameWidth struct{}

func (deviceNameWidth) MaxLen() int { return DeviceNameMaxLength }

type keyNameWidth struct{}

func (keyNameWidth) MaxLen() int { return KeyNameMaxLength }

// DeviceName truncates/validates against a 14-rune bound.
type DeviceName = FixedString[deviceNameWidth]

// KeyName truncates/validates against a 15-rune bound.
type KeyName = FixedString[keyNameWidth]

// NewDeviceName validates name against the device name width.
func NewDeviceName(name string) (DeviceName, error) { return NewFixedString[deviceNameWidth](name) }

// TruncateDeviceName truncates name to the device name width.
func TruncateDeviceName(name string) DeviceName { return TruncateFixedString[deviceNameWidth](name) }

// NewKeyName validates name against the key name width.
func NewKeyName(name string) (KeyName, error) { return NewFixedString[keyNameWidth](name) }

// TruncateKeyName truncates name to the key name width.
func TruncateKeyName(name string) KeyName { return TruncateFixedString[keyNameWidth](name) }
