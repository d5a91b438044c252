// Package dicomframe turns decoded rasters into uncompressed DICOM pixel data
// so they can be passed to DICOM codecs.
package dicomframe

import (
	"errors"
	"fmt"
	"math"

	"github.com/cocosip/go-dicom/pkg/dicom/transfer"
	"github.com/cocosip/go-dicom/pkg/imaging/imagetypes"

	"github.com/cocosip/go-imageloader/codec"
)

// ErrFrameIndex is returned by GetFrame for an index outside the frame list
var ErrFrameIndex = errors.New("frame index out of range")

// PixelData is an uncompressed, natively encoded imagetypes.PixelData
type PixelData struct {
	frames    [][]byte
	frameInfo *imagetypes.FrameInfo
}

var _ imagetypes.PixelData = (*PixelData)(nil)

// NewPixelData creates an empty PixelData described by frameInfo
func NewPixelData(frameInfo *imagetypes.FrameInfo) *PixelData {
	return &PixelData{frameInfo: frameInfo}
}

// GetFrame returns the pixel data of a frame (0-indexed)
func (p *PixelData) GetFrame(frameIndex int) ([]byte, error) {
	if frameIndex < 0 || frameIndex >= len(p.frames) {
		return nil, fmt.Errorf("%w: %d of %d", ErrFrameIndex, frameIndex, len(p.frames))
	}
	return p.frames[frameIndex], nil
}

// AddFrame appends a frame; its length must match the frame info
func (p *PixelData) AddFrame(frameData []byte) error {
	if want := FrameSize(p.frameInfo); len(frameData) != want {
		return fmt.Errorf("frame is %d bytes, expected %d", len(frameData), want)
	}
	p.frames = append(p.frames, frameData)
	return nil
}

// FrameCount returns the number of frames
func (p *PixelData) FrameCount() int {
	return len(p.frames)
}

// GetFrameInfo returns the frame metadata
func (p *PixelData) GetFrameInfo() *imagetypes.FrameInfo {
	return p.frameInfo
}

// IsEncapsulated always returns false
func (p *PixelData) IsEncapsulated() bool {
	return false
}

// TransferSyntaxUID is the transfer syntax of the frames built here
func TransferSyntaxUID() string {
	return transfer.ExplicitVRLittleEndian.UID().UID()
}

// NewFrameInfo describes an 8-bit unsigned frame of the given geometry:
// MONOCHROME2 for one component, interleaved RGB for three.
func NewFrameInfo(width, height, components int) (*imagetypes.FrameInfo, error) {
	if width <= 0 || height <= 0 || width > math.MaxUint16 || height > math.MaxUint16 {
		return nil, codec.Errorf(codec.ErrInvalidParameter, "image %dx%d does not fit a DICOM frame", width, height)
	}
	photometric := ""
	switch components {
	case 1:
		photometric = "MONOCHROME2"
	case 3:
		photometric = "RGB"
	default:
		return nil, codec.Errorf(codec.ErrInvalidParameter, "%d components not supported", components)
	}
	return &imagetypes.FrameInfo{
		Width:                     uint16(width),
		Height:                    uint16(height),
		BitsAllocated:             8,
		BitsStored:                8,
		HighBit:                   7,
		SamplesPerPixel:           uint16(components),
		PixelRepresentation:       0,
		PlanarConfiguration:       0,
		PhotometricInterpretation: photometric,
	}, nil
}

// FrameSize returns the byte length of one native frame
func FrameSize(fi *imagetypes.FrameInfo) int {
	if fi == nil {
		return 0
	}
	return int(fi.Width) * int(fi.Height) * int(fi.SamplesPerPixel) * int((fi.BitsAllocated+7)/8)
}

// FromDecoder reads every remaining row of a started decoder into a single frame
func FromDecoder(d *codec.Decoder) (*PixelData, error) {
	frameInfo, err := NewFrameInfo(d.Width(), d.Height(), d.Components())
	if err != nil {
		return nil, err
	}

	width, components := d.Width(), d.Components()
	frame := make([]byte, 0, FrameSize(frameInfo))
	row := make([]uint32, width)
	for y := d.Row(); y < d.Height(); y++ {
		if err := d.NextRow(row); err != nil {
			return nil, fmt.Errorf("failed to decode row %d: %w", y, err)
		}
		for _, p := range row {
			if components == 1 {
				frame = append(frame, uint8(p))
				continue
			}
			frame = append(frame, uint8(p>>16), uint8(p>>8), uint8(p))
		}
	}

	pd := NewPixelData(frameInfo)
	if err := pd.AddFrame(frame); err != nil {
		return nil, fmt.Errorf("failed to add frame: %w", err)
	}
	return pd, nil
}
