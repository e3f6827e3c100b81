// Package compress holds the codecs used for stored document content.
package compress

import "fmt"

type Compress interface {
	// Name is recorded next to the encoded bytes so rows written with another codec still decode.
	Name() string
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// New returns the codec registered under name. An empty name selects Nop.
func New(name string) (Compress, error) {
	switch name {
	case "", NopName:
		return NewNop(), nil
	case GZipName:
		return NewGZip(), nil
	case LZ4Name:
		return NewLZ4(), nil
	case BrotliName:
		return NewBrotli(), nil
	}
	return nil, fmt.Errorf("unknown compression %q", name)
}
