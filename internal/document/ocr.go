package document

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/ledongthuc/pdf"
)

// Image is one rasterized page.
type Image struct {
	Page int
	MIME string
	Data []byte
}

// Recognizer reads text from a page image.
type Recognizer interface {
	Recognize(ctx context.Context, img Image) (string, error)
}

// Rasterizer renders document pages to images, at most pageCap of them.
type Rasterizer interface {
	Rasterize(ctx context.Context, data []byte, pageCap int) ([]Image, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, img Image) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context, img Image) (string, error) {
	return f(ctx, img)
}

// EmbeddedImages is the default Rasterizer. Scanned menus are usually one
// image per page, so it returns the largest image XObject of each page
// without rendering: DCT images as JPEG, 8-bit gray or RGB Flate images as
// PNG. Other encodings are skipped.
type EmbeddedImages struct{}

func (EmbeddedImages) Rasterize(ctx context.Context, data []byte, pageCap int) (out []Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("document: unreadable images: %v", r)
		}
	}()
	r, err := openPDF(data)
	if err != nil {
		return nil, err
	}
	raw := newStreamIndex(data)
	for i := 1; i <= r.NumPage(); i++ {
		if pageCap > 0 && i > pageCap {
			break
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		xobjects := p.Resources().Key("XObject")
		var best *Image
		for _, name := range xobjects.Keys() {
			v := xobjects.Key(name)
			if v.Key("Subtype").Name() != "Image" {
				continue
			}
			img, ok := pageImage(v, raw)
			if ok && (best == nil || len(img.Data) > len(best.Data)) {
				img.Page = i
				best = &img
			}
		}
		if best != nil {
			out = append(out, *best)
		}
	}
	return out, nil
}

func pageImage(v pdf.Value, raw *streamIndex) (Image, bool) {
	filter := v.Key("Filter")
	if filter.Kind() == pdf.Array {
		if filter.Len() != 1 {
			return Image{}, false
		}
		filter = filter.Index(0)
	}
	switch filter.Name() {
	case "DCTDecode":
		b, ok := raw.find(v.Key("Length").Int64())
		if !ok {
			return Image{}, false
		}
		return Image{MIME: "image/jpeg", Data: b}, true
	case "FlateDecode":
		b, ok := flateImage(v, raw)
		if !ok {
			return Image{}, false
		}
		return Image{MIME: "image/png", Data: b}, true
	}
	return Image{}, false
}

// flateImage re-encodes an 8-bit DeviceGray or DeviceRGB sample stream as PNG.
// Streams already carrying PNG row predictors become the IDAT chunk as-is.
func flateImage(v pdf.Value, raw *streamIndex) ([]byte, bool) {
	w, h := int(v.Key("Width").Int64()), int(v.Key("Height").Int64())
	if w <= 0 || h <= 0 || v.Key("BitsPerComponent").Int64() != 8 {
		return nil, false
	}
	var colors int
	var colorType byte
	switch v.Key("ColorSpace").Name() {
	case "DeviceGray":
		colors, colorType = 1, 0
	case "DeviceRGB":
		colors, colorType = 3, 2
	default:
		return nil, false
	}
	parms := v.Key("DecodeParms")
	if parms.Key("Predictor").Int64() >= 10 {
		if c := parms.Key("Colors").Int64(); c != 0 && int(c) != colors {
			return nil, false
		}
		idat, ok := raw.find(v.Key("Length").Int64())
		if !ok {
			return nil, false
		}
		return wrapPNG(w, h, colorType, idat), true
	}
	if parms.Key("Predictor").Int64() > 1 {
		return nil, false
	}
	rc := v.Reader()
	defer rc.Close()
	samples, err := io.ReadAll(rc)
	if err != nil || len(samples) < w*h*colors {
		return nil, false
	}
	var img image.Image
	if colors == 1 {
		img = &image.Gray{Pix: samples[:w*h], Stride: w, Rect: image.Rect(0, 0, w, h)}
	} else {
		rgba := image.NewRGBA(image.Rect(0, 0, w, h))
		for i := 0; i < w*h; i++ {
			rgba.Set(i%w, i/w, color.RGBA{samples[3*i], samples[3*i+1], samples[3*i+2], 0xff})
		}
		img = rgba
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func wrapPNG(w, h int, colorType byte, idat []byte) []byte {
	var buf bytes.Buffer
	buf.Write(pngSignature)
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(w))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(h))
	ihdr[8], ihdr[9] = 8, colorType
	writeChunk(&buf, "IHDR", ihdr)
	writeChunk(&buf, "IDAT", idat)
	writeChunk(&buf, "IEND", nil)
	return buf.Bytes()
}

func writeChunk(buf *bytes.Buffer, kind string, data []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(data)))
	buf.Write(n[:])
	crc := crc32.NewIEEE()
	crc.Write([]byte(kind))
	crc.Write(data)
	buf.WriteString(kind)
	buf.Write(data)
	binary.BigEndian.PutUint32(n[:], crc.Sum32())
	buf.Write(n[:])
}

// streamIndex locates undecoded stream bodies by their declared length. The
// PDF reader only exposes decoded streams, and JPEG data must pass through
// unchanged.
type streamIndex struct {
	data   []byte
	starts []int
	used   map[int]bool
}

func newStreamIndex(data []byte) *streamIndex {
	idx := &streamIndex{data: data, used: map[int]bool{}}
	for off := 0; ; {
		i := bytes.Index(data[off:], []byte("stream"))
		if i < 0 {
			break
		}
		start := off + i + len("stream")
		off = start
		if bytes.HasSuffix(data[:start-len("stream")], []byte("end")) {
			continue
		}
		switch {
		case bytes.HasPrefix(data[start:], []byte("\r\n")):
			start += 2
		case bytes.HasPrefix(data[start:], []byte("\n")):
			start++
		default:
			continue
		}
		idx.starts = append(idx.starts, start)
	}
	return idx
}

// find returns the first unused stream body of exactly n bytes followed by
// endstream.
func (s *streamIndex) find(n int64) ([]byte, bool) {
	if n <= 0 {
		return nil, false
	}
	for _, start := range s.starts {
		end := start + int(n)
		if s.used[start] || end > len(s.data) {
			continue
		}
		if bytes.HasPrefix(bytes.TrimLeft(s.data[end:], "\r\n \t"), []byte("endstream")) {
			s.used[start] = true
			return s.data[start:end], true
		}
	}
	return nil, false
}
