package results

import (
	"encoding/binary"
	"errors"
)

var (
	ErrShortBuffer  = errors.New("results: buffer shorter than the fault word")
	ErrRaggedBuffer = errors.New("results: buffer is not a whole number of words")
)

// Split separates a raw little-endian result buffer into its leading
// fault word and the row-major samples x columns value matrix.
//
// A buffer truncated on a word boundary is still decodable: every
// complete row present is returned and complete reports false. Trailing
// bytes beyond the expected matrix are ignored.
func Split(raw []byte, columns, samples int) (fault uint32, matrix [][]uint32, complete bool, err error) {
	if len(raw) < 4 {
		return 0, nil, false, ErrShortBuffer
	}
	if len(raw)%4 != 0 {
		return 0, nil, false, ErrRaggedBuffer
	}
	fault = binary.LittleEndian.Uint32(raw[0:4])
	if columns == 0 || samples == 0 {
		return fault, nil, true, nil
	}
	avail := (len(raw) - 4) / 4
	rows := avail / columns
	if rows > samples {
		rows = samples
	}
	matrix = make([][]uint32, rows)
	for r := 0; r < rows; r++ {
		row := make([]uint32, columns)
		for c := 0; c < columns; c++ {
			off := 4 + 4*(r*columns+c)
			row[c] = binary.LittleEndian.Uint32(raw[off : off+4])
		}
		matrix[r] = row
	}
	return fault, matrix, rows == samples, nil
}
