// Package datatype implements the UPnP Device Architecture built-in state
// variable datatypes.
//
// Every state variable and action argument carries one of these types. The
// package converts between the textual wire representation used in SOAP and
// GENA bodies and native Go values:
//
//	typ, err := datatype.Parse("ui4")
//	v, err := typ.ValueOf("42")      // uint32(42)
//	s, err := typ.Format(uint32(42)) // "42"
//
// # Value Mapping
//
//	ui1, ui2, ui4, ui8        uint8, uint16, uint32, uint64
//	i1, i2, i4, int, i8       int8, int16, int32, int32, int64
//	r4                        float32
//	r8, number, float,
//	fixed.14.4                float64
//	char                      rune
//	string                    string
//	boolean                   bool
//	date, dateTime(.tz),
//	time(.tz)                 time.Time
//	bin.base64, bin.hex       []byte
//	uri                       *url.URL
//	uuid                      uuid.UUID
//
// An empty wire string is treated as an absent value (nil) for every type
// except string; devices in the field routinely send empty elements for
// numeric arguments they do not support.
package datatype
