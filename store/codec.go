package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"reflect"

	"github.com/sbl8/evolver/core"
)

// Header describes one encoded array.
type Header struct {
	Magic     uint32 // "EVOL" magic number
	Version   uint16 // format version
	Precision uint8  // bytes per element: 4 or 8
	Reserved  uint8  // padding for future use
	Rows      uint32
	Cols      uint32
	Checksum  uint32 // CRC-32 (IEEE) of the element bytes
}

const (
	Magic      = 0x4C4F5645 // "EVOL" in little endian
	Version    = 1
	HeaderSize = 20 // sizeof(Header)
)

var (
	ErrCorrupt           = errors.New("data corruption detected")
	ErrPrecisionMismatch = errors.New("stored precision does not match")
)

// precision returns the element width of F in bytes.
func precision[F core.Float]() uint8 {
	if reflect.TypeFor[F]().Kind() == reflect.Float32 {
		return 4
	}
	return 8
}

// EncodeArray writes a rows×cols row-major array with header and checksum.
func EncodeArray[F core.Float](rows, cols int, data []F) ([]byte, error) {
	if rows < 0 || cols < 0 || len(data) != rows*cols {
		return nil, core.NewDimensionError("encoded array", rows*cols, len(data))
	}
	width := precision[F]()
	body := make([]byte, len(data)*int(width))
	for i, v := range data {
		if width == 4 {
			binary.LittleEndian.PutUint32(body[i*4:], math.Float32bits(float32(v)))
		} else {
			binary.LittleEndian.PutUint64(body[i*8:], math.Float64bits(float64(v)))
		}
	}

	header := Header{
		Magic:     Magic,
		Version:   Version,
		Precision: width,
		Rows:      uint32(rows),
		Cols:      uint32(cols),
		Checksum:  crc32.ChecksumIEEE(body),
	}
	buffer := bytes.NewBuffer(make([]byte, 0, HeaderSize+len(body)))
	if err := binary.Write(buffer, binary.LittleEndian, header); err != nil {
		return nil, err
	}
	buffer.Write(body)
	return buffer.Bytes(), nil
}

// DecodeArray reads an array written by EncodeArray. Data written at a
// different precision than F is rejected with ErrPrecisionMismatch.
func DecodeArray[F core.Float](data []byte) (rows, cols int, values []F, err error) {
	if len(data) < HeaderSize {
		return 0, 0, nil, errors.New("data too short for header")
	}
	var header Header
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.LittleEndian, &header); err != nil {
		return 0, 0, nil, err
	}
	if header.Magic != Magic {
		return 0, 0, nil, errors.New("invalid magic number")
	}
	if header.Version != Version {
		return 0, 0, nil, fmt.Errorf("unsupported serialization version %d", header.Version)
	}
	width := precision[F]()
	if header.Precision != width {
		return 0, 0, nil, fmt.Errorf("%w: stored %d-byte elements, want %d", ErrPrecisionMismatch, header.Precision, width)
	}

	body := data[HeaderSize:]
	n := int(header.Rows) * int(header.Cols)
	if len(body) != n*int(width) {
		return 0, 0, nil, fmt.Errorf("%w: %d bytes for %dx%d elements", ErrCorrupt, len(body), header.Rows, header.Cols)
	}
	if crc32.ChecksumIEEE(body) != header.Checksum {
		return 0, 0, nil, ErrCorrupt
	}

	values = make([]F, n)
	for i := range values {
		if width == 4 {
			values[i] = F(math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:])))
		} else {
			values[i] = F(math.Float64frombits(binary.LittleEndian.Uint64(body[i*8:])))
		}
	}
	return int(header.Rows), int(header.Cols), values, nil
}
