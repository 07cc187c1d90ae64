// Package wire encodes conversion requests as protobuf messages without
// generated code. The layout is described by api/proto/v1/conversion.proto.
package wire

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"pointconv/internal/conversion"
	"pointconv/internal/dataset"
)

const (
	fieldName          protowire.Number = 1
	fieldKind          protowire.Number = 2
	fieldFactor        protowire.Number = 3
	fieldNumPoints     protowire.Number = 4
	fieldNumDimensions protowire.Number = 5
	fieldValues        protowire.Number = 6
)

var ErrMalformed = errors.New("wire: malformed message")

// Request is a dataset plus the transform to apply to it. The converted
// dataset travels back in the same shape. HasKind distinguishes an explicit
// Log2 (kind 0) from a message that leaves the choice to the receiver.
type Request struct {
	Kind    conversion.Kind
	HasKind bool
	Factor  float32
	Dataset *dataset.Points
}

// Marshal snapshots r.Dataset and encodes it.
func Marshal(r Request) ([]byte, error) {
	if !r.Dataset.Valid() {
		return nil, fmt.Errorf("wire: invalid dataset")
	}
	values := r.Dataset.Snapshot()

	b := make([]byte, 0, 32+len(r.Dataset.Name())+4*len(values))
	if name := r.Dataset.Name(); name != "" {
		b = protowire.AppendTag(b, fieldName, protowire.BytesType)
		b = protowire.AppendString(b, name)
	}
	if r.HasKind || r.Kind != 0 {
		b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(r.Kind)))
	}
	if r.Factor != 0 {
		b = protowire.AppendTag(b, fieldFactor, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(r.Factor))
	}
	b = protowire.AppendTag(b, fieldNumPoints, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Dataset.NumPoints()))
	b = protowire.AppendTag(b, fieldNumDimensions, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Dataset.NumDimensions()))
	if len(values) > 0 {
		b = protowire.AppendTag(b, fieldValues, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(4*len(values)))
		for _, v := range values {
			b = protowire.AppendFixed32(b, math.Float32bits(v))
		}
	}
	return b, nil
}

// Unmarshal decodes a message into a fresh dataset. Unknown fields are skipped.
func Unmarshal(b []byte) (Request, error) {
	var (
		r          Request
		name       string
		points     uint64
		dimensions uint64
		values     []float32
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return r, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldName && typ == protowire.BytesType:
			name, n = protowire.ConsumeString(b)
		case num == fieldKind && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			r.Kind, r.HasKind = conversion.Kind(int32(v)), true
		case num == fieldFactor && typ == protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			r.Factor = math.Float32frombits(v)
		case num == fieldNumPoints && typ == protowire.VarintType:
			points, n = protowire.ConsumeVarint(b)
		case num == fieldNumDimensions && typ == protowire.VarintType:
			dimensions, n = protowire.ConsumeVarint(b)
		case num == fieldValues && typ == protowire.BytesType:
			var packed []byte
			packed, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				var ok bool
				if values, ok = appendPacked(values, packed); !ok {
					return r, fmt.Errorf("%w: packed values are not 4-byte aligned", ErrMalformed)
				}
			}
		case num == fieldValues && typ == protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			values = append(values, math.Float32frombits(v))
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return r, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]
	}

	if points > math.MaxInt32 || dimensions > math.MaxInt32 || points*dimensions != uint64(len(values)) {
		return r, fmt.Errorf("%w: %d values for %d x %d", ErrMalformed, len(values), points, dimensions)
	}
	ds, err := dataset.NewPoints(name, int(points), int(dimensions), values)
	if err != nil {
		return r, err
	}
	r.Dataset = ds
	return r, nil
}

func appendPacked(dst []float32, packed []byte) ([]float32, bool) {
	if len(packed)%4 != 0 {
		return dst, false
	}
	for len(packed) > 0 {
		v, n := protowire.ConsumeFixed32(packed)
		if n < 0 {
			return dst, false
		}
		dst = append(dst, math.Float32frombits(v))
		packed = packed[n:]
	}
	return dst, true
}
