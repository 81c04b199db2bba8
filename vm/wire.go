package vm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// wireValue is the CBOR form of a value. The element buffer rides in
// the field matching the kind; boxes nest.
type wireValue struct {
	Kind  string      `cbor:"1,keyasint"`
	Shape []int       `cbor:"2,keyasint,omitempty"`
	Nums  []float64   `cbor:"3,keyasint,omitempty"`
	Bytes []byte      `cbor:"4,keyasint,omitempty"`
	Chars string      `cbor:"5,keyasint,omitempty"`
	Boxes []wireValue `cbor:"6,keyasint,omitempty"`
}

const (
	wireNum  = "n"
	wireByte = "b"
	wireChar = "c"
	wireBox  = "x"
)

// EncodeValue serializes a value to canonical CBOR. Functions do not
// serialize.
func EncodeValue(v Value) ([]byte, error) {
	w, err := toWire(v)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(w)
}

// DecodeValue deserializes a value from CBOR bytes.
func DecodeValue(data []byte) (Value, error) {
	var w wireValue
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("vm: unmarshal value: %w", err)
	}
	return fromWire(&w)
}

func toWire(v Value) (*wireValue, error) {
	switch a := v.(type) {
	case *Array[float64]:
		return &wireValue{Kind: wireNum, Shape: a.Shape().Clone(), Nums: append([]float64(nil), a.elems()...)}, nil
	case *Array[byte]:
		return &wireValue{Kind: wireByte, Shape: a.Shape().Clone(), Bytes: append([]byte(nil), a.elems()...)}, nil
	case *Array[rune]:
		return &wireValue{Kind: wireChar, Shape: a.Shape().Clone(), Chars: string(a.elems())}, nil
	case *Array[Boxed]:
		boxes := make([]wireValue, a.FlatLen())
		for i, b := range a.elems() {
			w, err := toWire(b.V)
			if err != nil {
				return nil, err
			}
			boxes[i] = *w
		}
		return &wireValue{Kind: wireBox, Shape: a.Shape().Clone(), Boxes: boxes}, nil
	}
	return nil, fmt.Errorf("vm: cannot serialize a %s", v.Kind())
}

func fromWire(w *wireValue) (Value, error) {
	shape := Shape(w.Shape).Clone()
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("vm: negative dimension in wire shape %s", shape)
		}
	}
	n := shape.Elements()
	switch w.Kind {
	case wireNum:
		if len(w.Nums) != n {
			return nil, fmt.Errorf("vm: shape %s needs %d numbers, have %d", shape, n, len(w.Nums))
		}
		return NewArray(shape, append([]float64(nil), w.Nums...)), nil
	case wireByte:
		if len(w.Bytes) != n {
			return nil, fmt.Errorf("vm: shape %s needs %d bytes, have %d", shape, n, len(w.Bytes))
		}
		return NewArray(shape, append([]byte(nil), w.Bytes...)), nil
	case wireChar:
		rs := []rune(w.Chars)
		if len(rs) != n {
			return nil, fmt.Errorf("vm: shape %s needs %d characters, have %d", shape, n, len(rs))
		}
		return NewArray(shape, rs), nil
	case wireBox:
		if len(w.Boxes) != n {
			return nil, fmt.Errorf("vm: shape %s needs %d boxes, have %d", shape, n, len(w.Boxes))
		}
		elems := make([]Boxed, n)
		for i := range w.Boxes {
			inner, err := fromWire(&w.Boxes[i])
			if err != nil {
				return nil, err
			}
			elems[i] = Boxed{V: inner}
		}
		return NewArray(shape, elems), nil
	}
	return nil, fmt.Errorf("vm: unknown wire kind %q", w.Kind)
}
