package session

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

type lineResult struct {
	text string
	err  error
}

// lineReader reads lines on a background goroutine so a blocked read can be
// abandoned when the context is cancelled.
type lineReader struct {
	r     io.Reader
	once  sync.Once
	lines chan lineResult
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: r, lines: make(chan lineResult)}
}

func (lr *lineReader) start() {
	go func() {
		defer close(lr.lines)
		br := bufio.NewReader(lr.r)
		for {
			line, err := br.ReadString('\n')
			if line != "" {
				lr.lines <- lineResult{text: strings.TrimRight(line, "\r\n")}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				lr.lines <- lineResult{err: err}
				return
			}
		}
	}()
}

// readLine returns the next line without its newline, io.EOF at end of
// input, or the context error if ctx is cancelled first.
func (lr *lineReader) readLine(ctx context.Context) (string, error) {
	lr.once.Do(lr.start)
	select {
	case res, ok := <-lr.lines:
		if !ok {
			return "", io.EOF
		}
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
