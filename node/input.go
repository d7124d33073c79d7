package node

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/mezonai/textchain/exception"
	"github.com/mezonai/textchain/logx"
)

const (
	CommandExit = "exit"
	CommandSize = "size"
)

// ReadLines feeds r to the returned channel one line at a time, without the
// line terminator. Lines have no length limit. The channel closes at EOF or
// when ctx ends.
func ReadLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	exception.SafeGo("InputReader", func() {
		defer close(lines)

		reader := bufio.NewReader(r)
		for {
			line, err := reader.ReadString('\n')
			if len(line) > 0 || err == nil {
				line = strings.TrimRight(line, "\r\n")
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					logx.Error("INPUT", "Failed to read line: ", err)
				}
				return
			}
		}
	})
	return lines
}
