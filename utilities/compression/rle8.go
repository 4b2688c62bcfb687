package compression

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// maxRLE8Run is the longest run a single RLE8 group can encode: the two literal
// bytes plus a repeat count of 255.
const maxRLE8Run = 257

// rle8Encoder accumulates runs of identical bytes and writes them out as RLE8
// groups.
type rle8Encoder struct {
	output       *bufio.Writer
	current      byte
	runLength    int
	bytesWritten int64
}

// emit writes out the pending run, splitting it into as many groups as needed.
func (enc *rle8Encoder) emit() error {
	for enc.runLength > 0 {
		var group []byte
		if enc.runLength == 1 {
			group = []byte{enc.current}
			enc.runLength = 0
		} else {
			length := enc.runLength
			if length > maxRLE8Run {
				length = maxRLE8Run
			}
			group = []byte{enc.current, enc.current, byte(length - 2)}
			enc.runLength -= length
		}

		n, err := enc.output.Write(group)
		enc.bytesWritten += int64(n)
		if err != nil {
			return err
		}
	}
	return nil
}

func (enc *rle8Encoder) add(b byte) error {
	if enc.runLength > 0 && b == enc.current {
		enc.runLength++
		return nil
	}

	err := enc.emit()
	if err != nil {
		return err
	}
	enc.current = b
	enc.runLength = 1
	return nil
}

// CompressRLE8 reads bytes from the input and writes compressed data to the
// output until the input is exhausted. The return value is the number of bytes
// written, only valid if no error occurred.
func CompressRLE8(input io.Reader, output io.Writer) (int64, error) {
	source := bufio.NewReader(input)
	encoder := rle8Encoder{output: bufio.NewWriter(output)}

	for {
		b, err := source.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return encoder.bytesWritten, fmt.Errorf("error reading input: %w", err)
		}

		err = encoder.add(b)
		if err != nil {
			return encoder.bytesWritten, fmt.Errorf("failed to write to output: %w", err)
		}
	}

	err := encoder.emit()
	if err == nil {
		err = encoder.output.Flush()
	}
	if err != nil {
		return encoder.bytesWritten, fmt.Errorf("failed to write to output: %w", err)
	}
	return encoder.bytesWritten, nil
}

// DecompressRLE8 expands RLE8-encoded data from the input into the output. The
// return value is the number of bytes written.
func DecompressRLE8(input io.Reader, output io.Writer) (int64, error) {
	source := bufio.NewReader(input)
	sink := bufio.NewWriter(output)
	totalBytesWritten := int64(0)

	// -1 means the next byte can't complete a pair, either because we're at
	// the start or because the previous group just ended.
	previous := -1

	for {
		b, err := source.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return totalBytesWritten, fmt.Errorf("error reading input: %w", err)
		}

		if int(b) != previous {
			previous = int(b)
			err = sink.WriteByte(b)
			if err != nil {
				return totalBytesWritten, fmt.Errorf("failed to write to output: %w", err)
			}
			totalBytesWritten++
			continue
		}

		// Second byte of a pair; the next one is the number of extra repeats.
		repeatCount, err := source.ReadByte()
		if errors.Is(err, io.EOF) {
			return totalBytesWritten, fmt.Errorf(
				"%w: missing repeat count after two %02x bytes", io.ErrUnexpectedEOF, b,
			)
		} else if err != nil {
			return totalBytesWritten, fmt.Errorf("error reading input: %w", err)
		}

		// The first byte of the pair was already written.
		for i := 0; i < int(repeatCount)+1; i++ {
			err = sink.WriteByte(b)
			if err != nil {
				return totalBytesWritten, fmt.Errorf("failed to write to output: %w", err)
			}
		}
		totalBytesWritten += int64(repeatCount) + 1
		previous = -1
	}

	err := sink.Flush()
	if err != nil {
		return totalBytesWritten, fmt.Errorf("failed to write to output: %w", err)
	}
	return totalBytesWritten, nil
}
