// internal/agent/encoder/encoder.go
// Package encoder converts a folded-text snapshot into a serialised byte
// representation ready for transport by exporters. Two formats are
// supported:
//   - Folded — the canonical, stable wire format pkg/folded and
//     internal/render already speak (default).
//   - Pprof  — the same aggregation parsed into a
//     github.com/google/pprof/profile.Profile (via internal/render) and
//     gzip-marshalled, for consumers that prefer `go tool pprof`.
//
// A wire format keyed on a FlamegraphChunk protobuf message was considered
// and dropped: no .proto definition for it exists anywhere in reach (see
// DESIGN.md), so Pprof leans on a dependency with a full definition instead.
package encoder

import (
	"strings"

	"github.com/flamecore/flamecore/internal/render"
)

// Format enumeration.
const (
	Folded = "folded"
	Pprof  = "pprof"
)

// Encoder serialises a folded-text snapshot to bytes.
type Encoder interface {
	Encode(foldedText string) ([]byte, error)
	// ContentType describes the MIME that exporters should set (optional).
	ContentType() string
}

// New returns an encoder for the given format; defaults to Folded.
func New(format string) Encoder {
	switch format {
	case Pprof:
		return &pprofEncoder{}
	case Folded:
		fallthrough
	default:
		return &foldedEncoder{}
	}
}

type foldedEncoder struct{}

func (foldedEncoder) Encode(foldedText string) ([]byte, error) { return []byte(foldedText), nil }
func (foldedEncoder) ContentType() string                      { return "text/plain; format=folded" }

type pprofEncoder struct{}

func (pprofEncoder) Encode(foldedText string) ([]byte, error) {
	tree, _, err := render.Parse(strings.NewReader(foldedText))
	if err != nil {
		return nil, err
	}
	prof := render.BuildPprofProfile(tree)

	data, err := prof.Marshal()
	if err != nil {
		return nil, err
	}
	return data, nil
}
func (pprofEncoder) ContentType() string { return "application/x-protobuf; proto=perftools.profiles.Profile" }
