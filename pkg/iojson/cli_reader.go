package iojson

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// TextReader reads free text from a file flag or piped stdin.
type TextReader struct {
	name  string
	usage string
	path  string
	stdin io.Reader
	isTTY func() bool
}

// NewTextReader creates a reader bound to a --<name> file flag.
func NewTextReader(name, usage string) *TextReader {
	return &TextReader{
		name:  name,
		usage: usage,
		stdin: os.Stdin,
		isTTY: func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
	}
}

// Flag returns the file flag to register on a command.
func (tr *TextReader) Flag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:        tr.name,
		Usage:       tr.usage + " (reads from stdin if not provided)",
		Destination: &tr.path,
	}
}

// Read returns the trimmed contents of the file, or of stdin when no file was
// given. An interactive stdin is rejected rather than blocking.
func (tr *TextReader) Read() (string, error) {
	var reader io.Reader

	if tr.path != "" {
		f, err := os.Open(tr.path)
		if err != nil {
			return "", fmt.Errorf("open file: %w", err)
		}
		defer func() { _ = f.Close() }()
		reader = f
	} else {
		if tr.isTTY() {
			return "", fmt.Errorf("no input provided (stdin is a terminal); use --%s or pipe input", tr.name)
		}
		reader = tr.stdin
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}
