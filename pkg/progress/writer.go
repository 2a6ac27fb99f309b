package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
)

const (
	PrefixProgress    = "PROGRESS|"
	PrefixResultSaved = "RESULT_SAVED|"
	PrefixError       = "ERROR|"
)

// Writer renders events into the host protocol:
//
//	PROGRESS|{"stage":"...","progress":N,"message":"..."}   (out)
//	RESULT_SAVED|<path>                                     (out)
//	ERROR|<message>                                         (errOut)
type Writer struct {
	locker sync.Mutex
	out    io.Writer
	errOut io.Writer
}

var _ Handler = (*Writer)(nil)

func NewWriter(out, errOut io.Writer) *Writer {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	return &Writer{
		out:    out,
		errOut: errOut,
	}
}

// FormatEvent returns the protocol line of ev without the trailing newline.
func FormatEvent(ev Event) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return "", fmt.Errorf("unable to serialize the progress event: %w", err)
	}
	return PrefixProgress + strings.TrimRight(buf.String(), "\n"), nil
}

func (w *Writer) OnProgress(ctx context.Context, ev Event) {
	line, err := FormatEvent(ev)
	if err != nil {
		logger.Errorf(ctx, "%v", err)
		return
	}
	w.writeLine(ctx, w.out, line)
}

func (w *Writer) ResultSaved(ctx context.Context, path string) {
	w.writeLine(ctx, w.out, PrefixResultSaved+path)
}

// Error writes the message on a single line; newlines are replaced with spaces.
func (w *Writer) Error(ctx context.Context, message string) {
	message = strings.ReplaceAll(message, "\n", " ")
	w.writeLine(ctx, w.errOut, PrefixError+message)
}

func (w *Writer) writeLine(ctx context.Context, out io.Writer, line string) {
	w.locker.Lock()
	defer w.locker.Unlock()
	if _, err := io.WriteString(out, line+"\n"); err != nil {
		logger.Debugf(ctx, "unable to write the protocol line '%s': %v", line, err)
	}
}
