package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ChannelOrder is the memory layout of a model input tensor.
type ChannelOrder string

const (
	// ChannelOrderCHW stores one full plane per channel (ONNX exports).
	ChannelOrderCHW ChannelOrder = "chw"
	// ChannelOrderHWC interleaves channels per pixel (TFLite exports).
	ChannelOrderHWC ChannelOrder = "hwc"
)

// DecodeImage decodes encoded image bytes in the given format.
//
// Arguments:
//   - b: The encoded image.
//   - format: The container format of b.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if the bytes cannot be decoded.
func DecodeImage(b []byte, format ImageFormat) (image.Image, error) {
	var (
		img image.Image
		err error
	)
	switch format {
	case FormatJPEG:
		img, err = jpeg.Decode(bytes.NewReader(b))
	case FormatPNG:
		img, err = png.Decode(bytes.NewReader(b))
	default:
		return nil, errors.Errorf("unsupported image format: %q", format)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}
	return img, nil
}

// PrepareInput stretches img to size x size and writes its RGB channels,
// scaled to [0, 1], into dst.
//
// Box coordinates produced by the model are normalized, so the stretch does not
// need to be undone; the decoder scales them by the original frame size.
//
// Arguments:
//   - img: The frame to prepare.
//   - size: The model's square input size (eg 640).
//   - order: The layout expected by the model.
//   - dst: The destination buffer. Must hold at least size*size*3 floats.
//
// Returns:
//   - error: An error if dst is too small or the arguments are invalid.
func PrepareInput(img image.Image, size int, order ChannelOrder, dst []float32) error {
	if img == nil {
		return errors.New("nil image")
	}
	if size <= 0 {
		return errors.Errorf("invalid input size %d", size)
	}
	channelSize := size * size
	if len(dst) < channelSize*3 {
		return errors.Errorf("destination only holds %d floats, needs %d", len(dst), channelSize*3)
	}

	b := img.Bounds()
	if b.Dx() != size || b.Dy() != size {
		img = resize.Resize(uint(size), uint(size), img, resize.Bilinear)
		b = img.Bounds()
	}

	i := 0
	for y := b.Min.Y; y < b.Min.Y+size; y++ {
		for x := b.Min.X; x < b.Min.X+size; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			rf := float32(r>>8) / 255.0
			gf := float32(g>>8) / 255.0
			bf := float32(bl>>8) / 255.0
			switch order {
			case ChannelOrderHWC:
				dst[i*3] = rf
				dst[i*3+1] = gf
				dst[i*3+2] = bf
			default:
				dst[i] = rf
				dst[channelSize+i] = gf
				dst[channelSize*2+i] = bf
			}
			i++
		}
	}
	return nil
}
