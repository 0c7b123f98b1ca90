package loader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
)

var chunkHeader = regexp.MustCompile(`(?m)^@@ ([\w.]+)[ \t]*\r?$`)

// Inline reads several templates from the tail of a single file. Starting
// at offset, each line of the form "@@ name" opens a template that runs
// until the next such line:
//
//	@@ hello
//	Hello, {{planet}}!
//
//	@@ goodbye
//	Goodbye, cruel {{planet}}
type Inline struct {
	file   string
	offset int64

	once      sync.Once
	templates map[string]string
	err       error
}

func NewInline(file string, offset int64) (*Inline, error) {
	st, err := os.Stat(file)
	if err != nil {
		return nil, fmt.Errorf("inline loader: %w", err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("inline loader: %s is a directory", file)
	}
	if offset < 0 {
		return nil, errors.New("inline loader: offset must not be negative")
	}
	return &Inline{file: file, offset: offset}, nil
}

func (l *Inline) Load(name string) (string, error) {
	l.once.Do(l.read)
	if l.err != nil {
		return "", l.err
	}
	if s, ok := l.templates[name]; ok {
		return s, nil
	}
	return "", &NotFoundError{Name: name}
}

func (l *Inline) read() {
	f, err := os.Open(l.file)
	if err != nil {
		l.err = fmt.Errorf("inline loader: %w", err)
		return
	}
	defer f.Close()
	if _, err := f.Seek(l.offset, io.SeekStart); err != nil {
		l.err = fmt.Errorf("inline loader: %w", err)
		return
	}
	b, err := io.ReadAll(f)
	if err != nil {
		l.err = fmt.Errorf("inline loader: %w", err)
		return
	}
	l.templates = ParseInline(string(b))
}

// ParseInline splits data into its "@@ name" sections. Text before the
// first header is ignored and section bodies are trimmed.
func ParseInline(data string) map[string]string {
	out := map[string]string{}
	headers := chunkHeader.FindAllStringSubmatchIndex(data, -1)
	for i, h := range headers {
		end := len(data)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		name := data[h[2]:h[3]]
		out[name] = strings.TrimSpace(data[h[1]:end])
	}
	return out
}
