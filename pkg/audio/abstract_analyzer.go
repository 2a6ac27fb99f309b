package audio

import (
	"context"
	"io"
)

// AbstractAnalyzer is anything consuming PCM of a fixed encoding and
// amount of channels.
type AbstractAnalyzer interface {
	io.Closer

	Encoding(context.Context) (Encoding, error)
	Channels(context.Context) (Channel, error)
}
