package datastore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

func encode[T Element](values []T, order binary.ByteOrder) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(values) * DataTypeOf[T]().Size())
	if err := binary.Write(&buf, order, values); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeInto[T Element](raw []byte, order binary.ByteOrder, dst []T) error {
	want := len(dst) * DataTypeOf[T]().Size()
	if len(raw) != want {
		return fmt.Errorf("payload is %d bytes, want %d", len(raw), want)
	}
	return binary.Read(bytes.NewReader(raw), order, dst)
}

func toFloat64[T Element](v T) float64 {
	switch x := any(v).(type) {
	case int8:
		return float64(x)
	case uint8:
		return float64(x)
	case int16:
		return float64(x)
	case uint16:
		return float64(x)
	case int32:
		return float64(x)
	case uint32:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case float64:
		return x
	case bool:
		if x {
			return 1
		}
		return 0
	}
	return math.NaN()
}

// fromFloat64 converts with Go conversion semantics; integer targets truncate.
func fromFloat64[T Element](v float64) T {
	var out T
	switch p := any(&out).(type) {
	case *int8:
		*p = int8(v)
	case *uint8:
		*p = uint8(v)
	case *int16:
		*p = int16(v)
	case *uint16:
		*p = uint16(v)
	case *int32:
		*p = int32(v)
	case *uint32:
		*p = uint32(v)
	case *int64:
		*p = int64(v)
	case *uint64:
		*p = uint64(v)
	case *float32:
		*p = float32(v)
	case *float64:
		*p = v
	case *bool:
		*p = v != 0
	}
	return out
}
