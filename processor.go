package filedex

import (
	"context"
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

const defaultChunkSize = 64 * 1024

// DefaultFileProcessor reads a regular file in chunks, streams each chunk
// through a TokenizationSession, and numbers tokens sequentially in the
// order the session emits them across ProcessText calls and the final
// Finalize call. The position counter is never reset mid-file — it only
// starts over because a new file gets a fresh processing run.
//
// Grounded on imicola-notebit's pkg/files/manager.go scoped-handle
// convention (open, defer close, return an error rather than panic on
// partial reads), generalized into a streaming chunk loop since the
// session contract requires per-chunk calls rather than one whole-file
// read.
type DefaultFileProcessor struct {
	tokenizer Tokenizer
	chunkSize int
}

// NewDefaultFileProcessor creates a processor using tokenizer. A
// non-positive chunkSize defaults to 64KiB.
func NewDefaultFileProcessor(tokenizer Tokenizer, chunkSize int) *DefaultFileProcessor {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &DefaultFileProcessor{tokenizer: tokenizer, chunkSize: chunkSize}
}

func (p *DefaultFileProcessor) CanProcess(path FilePath) bool {
	info, err := os.Stat(string(path))
	return err == nil && info.Mode().IsRegular()
}

func (p *DefaultFileProcessor) ProcessFile(ctx context.Context, path FilePath) (map[Token]PositionList, error) {
	f, err := os.Open(string(path))
	if err != nil {
		return nil, nil
	}
	defer f.Close()

	session := p.tokenizer.CreateSession()
	result := make(map[Token]PositionList)
	pos := Position(0)
	emit := func(tokens []Token) {
		for _, t := range tokens {
			result[t] = append(result[t], pos)
			pos++
		}
	}

	buf := make([]byte, p.chunkSize)
	var leftover []byte
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		n, rerr := f.Read(buf)
		if n > 0 {
			data := append(leftover, buf[:n]...)
			cut := lastValidUTF8Boundary(data)
			leftover = append([]byte(nil), data[cut:]...)
			emit(session.ProcessText(string(data[:cut])))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("filedex: read %s: %w", path, rerr)
		}
	}
	emit(session.Finalize())

	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

// lastValidUTF8Boundary returns len(data) if data is valid UTF-8; otherwise
// the length left after dropping the fewest trailing bytes (1 to 3) that
// makes it valid, so a multi-byte rune split across two reads is carried
// into the next chunk instead of being tokenized as mojibake. If no such
// cut makes data valid, it returns len(data).
func lastValidUTF8Boundary(data []byte) int {
	if utf8.Valid(data) {
		return len(data)
	}
	for cut := 1; cut <= 3 && cut < len(data); cut++ {
		if utf8.Valid(data[:len(data)-cut]) {
			return len(data) - cut
		}
	}
	return len(data)
}
