package vm

import "fmt"

// A FrameStore is the physical memory: a fixed number of fixed-size frames.
// The bytes are never interpreted by the simulation.
type FrameStore struct {
	frameSize uint64
	numFrames int
	data      []byte
}

// NewFrameStore allocates numFrames frames of frameSize bytes each.
func NewFrameStore(numFrames int, frameSize uint64) (*FrameStore, error) {
	if numFrames <= 0 {
		return nil, fmt.Errorf("frame store needs at least one frame, got %d",
			numFrames)
	}

	if frameSize == 0 {
		return nil, fmt.Errorf("frame size must be greater than 0")
	}

	total := uint64(numFrames) * frameSize
	if total/frameSize != uint64(numFrames) || total > uint64(maxInt) {
		return nil, fmt.Errorf("cannot allocate %d frames of %d bytes",
			numFrames, frameSize)
	}

	return &FrameStore{
		frameSize: frameSize,
		numFrames: numFrames,
		data:      make([]byte, total),
	}, nil
}

const maxInt = int(^uint(0) >> 1)

// FrameSize returns the number of bytes in each frame.
func (s *FrameStore) FrameSize() uint64 {
	return s.frameSize
}

// NumFrames returns the number of frames.
func (s *FrameStore) NumFrames() int {
	return s.numFrames
}

// Frame returns the bytes of a whole frame.
func (s *FrameStore) Frame(frame int) ([]byte, error) {
	return s.Locate(frame, 0)
}

// Locate returns the bytes of a frame starting at offset.
func (s *FrameStore) Locate(frame int, offset uint64) ([]byte, error) {
	if frame < 0 || frame >= s.numFrames {
		return nil, fmt.Errorf("frame %d out of range [0, %d)",
			frame, s.numFrames)
	}

	if offset >= s.frameSize {
		return nil, fmt.Errorf("offset 0x%x out of range for frame size %d",
			offset, s.frameSize)
	}

	start := uint64(frame)*s.frameSize + offset
	end := uint64(frame+1) * s.frameSize

	return s.data[start:end:end], nil
}
