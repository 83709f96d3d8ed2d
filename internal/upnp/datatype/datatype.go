package datatype

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Type is a UDA built-in datatype name as it appears in service descriptors.
type Type string

// UDA built-in datatypes.
const (
	UI1        Type = "ui1"
	UI2        Type = "ui2"
	UI4        Type = "ui4"
	UI8        Type = "ui8"
	I1         Type = "i1"
	I2         Type = "i2"
	I4         Type = "i4"
	I8         Type = "i8"
	Int        Type = "int"
	R4         Type = "r4"
	R8         Type = "r8"
	Number     Type = "number"
	Fixed144   Type = "fixed.14.4"
	Float      Type = "float"
	Char       Type = "char"
	String     Type = "string"
	Date       Type = "date"
	DateTime   Type = "dateTime"
	DateTimeTZ Type = "dateTime.tz"
	Time       Type = "time"
	TimeTZ     Type = "time.tz"
	Boolean    Type = "boolean"
	BinBase64  Type = "bin.base64"
	BinHex     Type = "bin.hex"
	URI        Type = "uri"
	UUID       Type = "uuid"
)

// Wire layouts for the temporal types.
const (
	layoutDate       = "2006-01-02"
	layoutDateTime   = "2006-01-02T15:04:05"
	layoutDateTimeTZ = "2006-01-02T15:04:05Z07:00"
	layoutTime       = "15:04:05"
	layoutTimeTZ     = "15:04:05Z07:00"
)

// fixed144Limit is the largest magnitude representable by fixed.14.4.
const fixed144Limit = 1e14

// AllTypes returns every UDA built-in datatype.
func AllTypes() []Type {
	return []Type{
		UI1, UI2, UI4, UI8, I1, I2, I4, I8, Int,
		R4, R8, Number, Fixed144, Float,
		Char, String,
		Date, DateTime, DateTimeTZ, Time, TimeTZ,
		Boolean, BinBase64, BinHex, URI, UUID,
	}
}

// byLowerName indexes built-ins by lower-cased name for tolerant lookup.
var byLowerName map[string]Type

func init() {
	byLowerName = make(map[string]Type, len(AllTypes()))
	for _, t := range AllTypes() {
		byLowerName[strings.ToLower(string(t))] = t
	}
}

// Parse resolves a descriptor datatype name to a built-in Type.
//
// Matching is case-insensitive and ignores surrounding whitespace, since
// descriptors in the wild use "DateTime" or " ui4 " as often as the
// canonical spelling.
//
// Returns:
//   - Type: The canonical built-in
//   - error: ErrUnknownType if the name is not a UDA built-in
func Parse(name string) (Type, error) {
	if t, ok := byLowerName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// Valid reports whether t is a UDA built-in.
func (t Type) Valid() bool {
	_, ok := byLowerName[strings.ToLower(string(t))]
	return ok
}

// Numeric reports whether t is an integer or floating point type.
func (t Type) Numeric() bool {
	return t.Integer() || t.Floating()
}

// Integer reports whether t is a signed or unsigned integer type.
func (t Type) Integer() bool {
	switch t {
	case UI1, UI2, UI4, UI8, I1, I2, I4, I8, Int:
		return true
	}
	return false
}

// Floating reports whether t is a floating point type.
func (t Type) Floating() bool {
	switch t {
	case R4, R8, Number, Fixed144, Float:
		return true
	}
	return false
}

// ValueOf coerces a wire string to the Go value for t.
//
// Parameters:
//   - s: Text content from a SOAP argument or GENA property element
//
// Returns:
//   - any: The Go value (nil for empty non-string input)
//   - error: ErrInvalidValue if s cannot be represented
func (t Type) ValueOf(s string) (any, error) {
	if t == String {
		return s, nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	switch t {
	case UI1:
		return parseUnsigned[uint8](t, s, math.MaxUint8)
	case UI2:
		return parseUnsigned[uint16](t, s, math.MaxUint16)
	case UI4:
		return parseUnsigned[uint32](t, s, math.MaxUint32)
	case UI8:
		return parseUnsigned[uint64](t, s, math.MaxUint64)
	case I1:
		return parseSigned[int8](t, s, math.MinInt8, math.MaxInt8)
	case I2:
		return parseSigned[int16](t, s, math.MinInt16, math.MaxInt16)
	case I4, Int:
		return parseSigned[int32](t, s, math.MinInt32, math.MaxInt32)
	case I8:
		return parseSigned[int64](t, s, math.MinInt64, math.MaxInt64)
	case R4:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, invalid(t, s, err)
		}
		return float32(f), nil
	case R8, Number, Float:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, invalid(t, s, err)
		}
		return f, nil
	case Fixed144:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, invalid(t, s, err)
		}
		if math.Abs(f) >= fixed144Limit {
			return nil, invalid(t, s, nil)
		}
		return f, nil
	case Char:
		if utf8.RuneCountInString(s) != 1 {
			return nil, invalid(t, s, nil)
		}
		r, _ := utf8.DecodeRuneInString(s)
		return r, nil
	case Boolean:
		return parseBoolean(s)
	case Date:
		return parseTime(t, s, layoutDate)
	case DateTime:
		return parseTime(t, s, layoutDateTime, layoutDate)
	case DateTimeTZ:
		return parseTime(t, s, layoutDateTimeTZ, layoutDateTime, layoutDate)
	case Time:
		return parseTime(t, s, layoutTime)
	case TimeTZ:
		return parseTime(t, s, layoutTimeTZ, layoutTime)
	case BinBase64:
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, invalid(t, s, err)
		}
		return b, nil
	case BinHex:
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, invalid(t, s, err)
		}
		return b, nil
	case URI:
		u, err := url.Parse(s)
		if err != nil {
			return nil, invalid(t, s, err)
		}
		return u, nil
	case UUID:
		u, err := uuid.Parse(strings.TrimPrefix(s, "uuid:"))
		if err != nil {
			return nil, invalid(t, s, err)
		}
		return u, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownType, string(t))
}

// Format renders a Go value as wire text for t.
//
// A nil value renders as the empty string. The value is converted first, so
// any integer kind is accepted for integer types as long as it fits.
//
// Returns:
//   - string: Wire representation
//   - error: ErrInvalidValue if v does not fit t
func (t Type) Format(v any) (string, error) {
	v, err := t.Convert(v)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}

	switch val := v.(type) {
	case string:
		return val, nil
	case bool:
		if val {
			return "1", nil
		}
		return "0", nil
	case uint8:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case int8:
		return strconv.FormatInt(int64(val), 10), nil
	case int16:
		return strconv.FormatInt(int64(val), 10), nil
	case int32:
		if t == Char {
			return string(rune(val)), nil
		}
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), nil
	case float64:
		if t == Fixed144 {
			return strconv.FormatFloat(val, 'f', 4, 64), nil
		}
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case time.Time:
		return val.Format(t.layout()), nil
	case []byte:
		if t == BinHex {
			return hex.EncodeToString(val), nil
		}
		return base64.StdEncoding.EncodeToString(val), nil
	case *url.URL:
		return val.String(), nil
	case uuid.UUID:
		return val.String(), nil
	}

	return "", invalid(t, fmt.Sprint(v), nil)
}

// IsValid reports whether v is already a valid Go value for t.
// A nil value is valid for every type.
func (t Type) IsValid(v any) bool {
	if v == nil {
		return true
	}
	switch v.(type) {
	case uint8:
		return t == UI1
	case uint16:
		return t == UI2
	case uint32:
		return t == UI4
	case uint64:
		return t == UI8
	case int8:
		return t == I1
	case int16:
		return t == I2
	case int32:
		return t == I4 || t == Int || t == Char
	case int64:
		return t == I8
	case float32:
		return t == R4
	case float64:
		return t == R8 || t == Number || t == Float || t == Fixed144
	case string:
		return t == String
	case bool:
		return t == Boolean
	case time.Time:
		return t == Date || t == DateTime || t == DateTimeTZ || t == Time || t == TimeTZ
	case []byte:
		return t == BinBase64 || t == BinHex
	case *url.URL:
		return t == URI
	case uuid.UUID:
		return t == UUID
	}
	return false
}

// Convert normalises a Go value to the canonical representation of t.
//
// Strings are parsed with ValueOf; integer and float kinds are range checked
// and converted. Values that are already canonical pass through unchanged.
//
// Returns:
//   - any: Canonical value (nil stays nil)
//   - error: ErrInvalidValue if v cannot be represented
func (t Type) Convert(v any) (any, error) {
	if v == nil || t.IsValid(v) {
		return v, nil
	}
	if s, ok := v.(string); ok {
		return t.ValueOf(s)
	}
	if t.Integer() {
		return t.convertInteger(v)
	}
	if t.Floating() {
		f, ok := toFloat(v)
		if !ok {
			return nil, invalid(t, fmt.Sprint(v), nil)
		}
		if t == R4 {
			return float32(f), nil
		}
		return f, nil
	}
	return nil, invalid(t, fmt.Sprint(v), nil)
}

func (t Type) convertInteger(v any) (any, error) {
	var (
		i      int64
		u      uint64
		signed bool
	)
	switch val := v.(type) {
	case int:
		i, signed = int64(val), true
	case int8:
		i, signed = int64(val), true
	case int16:
		i, signed = int64(val), true
	case int32:
		i, signed = int64(val), true
	case int64:
		i, signed = val, true
	case uint:
		u = uint64(val)
	case uint8:
		u = uint64(val)
	case uint16:
		u = uint64(val)
	case uint32:
		u = uint64(val)
	case uint64:
		u = val
	default:
		return nil, invalid(t, fmt.Sprint(v), nil)
	}

	if signed && i < 0 {
		return t.ValueOf(strconv.FormatInt(i, 10))
	}
	if signed {
		u = uint64(i)
	}
	return t.ValueOf(strconv.FormatUint(u, 10))
}

func (t Type) layout() string {
	switch t {
	case Date:
		return layoutDate
	case DateTimeTZ:
		return layoutDateTimeTZ
	case Time:
		return layoutTime
	case TimeTZ:
		return layoutTimeTZ
	default:
		return layoutDateTime
	}
}

// Float64 converts a numeric Go value to float64. It reports false for
// non-numeric values.
func Float64(v any) (float64, bool) { return toFloat(v) }

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	}
	return 0, false
}

type unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

type signed interface {
	~int8 | ~int16 | ~int32 | ~int64
}

func parseUnsigned[T unsigned](t Type, s string, maxValue uint64) (any, error) {
	// Some devices prefix positive numbers with '+'.
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "+"), 10, 64)
	if err != nil || n > maxValue {
		return nil, invalid(t, s, err)
	}
	return T(n), nil
}

func parseSigned[T signed](t Type, s string, minValue, maxValue int64) (any, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < minValue || n > maxValue {
		return nil, invalid(t, s, err)
	}
	return T(n), nil
}

func parseBoolean(s string) (any, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes":
		return true, nil
	case "0", "false", "no":
		return false, nil
	}
	return nil, invalid(Boolean, s, nil)
}

func parseTime(t Type, s string, layouts ...string) (any, error) {
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return nil, invalid(t, s, nil)
}

func invalid(t Type, s string, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: %q is not a valid %s: %w", ErrInvalidValue, s, t, cause)
	}
	return fmt.Errorf("%w: %q is not a valid %s", ErrInvalidValue, s, t)
}
