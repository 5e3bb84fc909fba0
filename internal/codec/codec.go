// Package codec defines the serializer capability used to turn catalog
// records into opaque byte payloads and back. Codecs are pure and
// stateless; each cache table is bound to exactly one codec, and a
// payload written with one codec must be read back with the same one.
package codec

// Codec converts a record to and from an opaque byte payload.
//
// Implementations must round-trip: Unmarshal(Marshal(x)) yields a value
// equal to x for every valid record x.
type Codec interface {
	// Name identifies the codec in logs and diagnostics.
	Name() string
	// Marshal encodes v into a byte payload.
	Marshal(v any) ([]byte, error)
	// Unmarshal decodes a payload produced by Marshal into out, which
	// must be a non-nil pointer.
	Unmarshal(data []byte, out any) error
}
