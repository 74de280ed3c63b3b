package downlink

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"particletriage/internal/imageproc"
)

// Source loads frames by their sequence number.
type Source interface {
	Load(index int) (*imageproc.Grid, error)
}

// Sink stores frames by their sequence number.
type Sink interface {
	Save(index int, g *imageproc.Grid) error
}

// TransferError records a selected frame that could not be copied.
type TransferError struct {
	Frame int
	Err   error
}

func (e TransferError) Error() string {
	return fmt.Sprintf("frame %d: %v", e.Frame, e.Err)
}

func (e TransferError) Unwrap() error { return e.Err }

// Transmit copies every selected frame from src to dst. Selection indices are
// offsets from firstFrame. Frames that fail are reported and skipped; the
// returned slice lists the frame numbers that were copied.
func Transmit(ctx context.Context, src Source, dst Sink, sel Selection, firstFrame int) ([]int, []TransferError) {
	var sent []int
	var failed []TransferError
	for _, idx := range sel.Indices {
		frame := firstFrame + idx
		if err := ctx.Err(); err != nil {
			failed = append(failed, TransferError{Frame: frame, Err: err})
			continue
		}
		g, err := src.Load(frame)
		if err != nil {
			log.Printf("Warning: downlink of frame %d failed: %v", frame, err)
			failed = append(failed, TransferError{Frame: frame, Err: err})
			continue
		}
		if err := dst.Save(frame, g); err != nil {
			log.Printf("Warning: downlink of frame %d failed: %v", frame, err)
			failed = append(failed, TransferError{Frame: frame, Err: err})
			continue
		}
		sent = append(sent, frame)
	}
	return sent, failed
}

// Manifest summarises one downlink pass. It is CBOR encoded to keep the
// record small next to the frames themselves.
type Manifest struct {
	RunID     string    `cbor:"run_id"`
	CreatedAt time.Time `cbor:"created_at"`
	Threshold int       `cbor:"threshold"`
	Percent   int       `cbor:"pct"`
	Quota     int       `cbor:"quota"`
	Attempts  int       `cbor:"attempts"`
	Partial   bool      `cbor:"partial"`
	Frames    []int     `cbor:"frames"`
	Failed    []int     `cbor:"failed,omitempty"`
}

// WriteManifest encodes m to path.
func WriteManifest(path string, m Manifest) error {
	data, err := cbor.Marshal(m)
	if err != nil {
		return fmt.Errorf("error encoding manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing manifest: %w", err)
	}
	return nil
}

// ReadManifest decodes a manifest written by WriteManifest.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("error reading manifest: %w", err)
	}
	if err := cbor.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("error decoding manifest: %w", err)
	}
	return m, nil
}
