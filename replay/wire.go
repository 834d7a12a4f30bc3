package replay

import (
	"encoding/json"
	"fmt"
	"io"
)

// tapeHeader peeks the version field before full decoding so foreign or
// future formats fail with a clear reason instead of a partial tape.
type tapeHeader struct {
	Version int `json:"tape_version"`
}

// Encode writes the stable on-disk/over-wire form of a tape.
func Encode(w io.Writer, tape *Tape) error {
	if tape.Version == 0 {
		return fmt.Errorf("refusing to encode tape without version")
	}
	enc := json.NewEncoder(w)
	return enc.Encode(tape)
}

// Decode reads a tape, rejecting unsupported versions.
func Decode(r io.Reader) (*Tape, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var hdr tapeHeader
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return nil, fmt.Errorf("decode tape header: %w", err)
	}
	if hdr.Version != TapeVersion {
		return nil, &ReplayError{
			StepIndex: -1,
			Reason:    "unsupported_version",
			Message:   fmt.Sprintf("tape version %d, engine supports %d", hdr.Version, TapeVersion),
		}
	}
	var tape Tape
	if err := json.Unmarshal(raw, &tape); err != nil {
		return nil, fmt.Errorf("decode tape: %w", err)
	}
	return &tape, nil
}
