package pdfinfo

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// maxInflated bounds decompressed stream size (64 MB); xref and object
// streams are tiny, so anything larger is treated as hostile.
const maxInflated = 64 << 20

// decode applies the stream's filter. Only FlateDecode (with or without a
// PNG predictor) is supported; that is what Chrome and fpdf emit for the
// structural streams this package reads.
func decode(o *object) ([]byte, error) {
	f, ok := o.dict["Filter"]
	if !ok {
		return o.stream, nil
	}
	name := f.name
	if f.kind == kArray {
		if len(f.array) != 1 {
			return nil, fmt.Errorf("filter chains are not supported")
		}
		name = f.array[0].name
	}
	if name != "FlateDecode" && name != "Fl" {
		return nil, fmt.Errorf("unsupported filter %q", name)
	}

	r, err := zlib.NewReader(bytes.NewReader(o.stream))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, maxInflated+1))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	if len(out) > maxInflated {
		return nil, fmt.Errorf("stream inflates beyond %d bytes", maxInflated)
	}

	parms := dict(nil)
	if p, ok := o.dict["DecodeParms"]; ok {
		switch p.kind {
		case kDict:
			parms = p.dict
		case kArray:
			if len(p.array) > 0 && p.array[0].kind == kDict {
				parms = p.array[0].dict
			}
		}
	}
	if pred, _ := parms.integer("Predictor"); pred >= 10 {
		cols, ok := parms.integer("Columns")
		if !ok || cols < 1 {
			cols = 1
		}
		return unpredictPNG(out, int(cols))
	}
	return out, nil
}

// unpredictPNG reverses PNG row filters for one-byte-per-sample data of
// the given row width.
func unpredictPNG(data []byte, cols int) ([]byte, error) {
	stride := cols + 1
	if len(data)%stride != 0 {
		return nil, fmt.Errorf("predicted data length %d is not a multiple of %d", len(data), stride)
	}
	rows := len(data) / stride
	out := make([]byte, rows*cols)
	prev := make([]byte, cols)
	for r := 0; r < rows; r++ {
		src := data[r*stride+1 : (r+1)*stride]
		dst := out[r*cols : (r+1)*cols]
		for i := range dst {
			var left, upLeft byte
			if i > 0 {
				left, upLeft = dst[i-1], prev[i-1]
			}
			up := prev[i]
			switch data[r*stride] {
			case 0:
				dst[i] = src[i]
			case 1:
				dst[i] = src[i] + left
			case 2:
				dst[i] = src[i] + up
			case 3:
				dst[i] = src[i] + byte((int(left)+int(up))/2)
			case 4:
				dst[i] = src[i] + paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("unknown PNG filter %d", data[r*stride])
			}
		}
		copy(prev, dst)
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := absInt(p-int(a)), absInt(p-int(b)), absInt(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
