package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// errAborted is returned when the user cancels a prompt.
var errAborted = errors.New("aborted")

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// promptInput asks for a value when it was not given as a flag. check, when
// set, is enforced by the prompt before it returns.
func promptInput(title string, value *string, secret bool, check func(string) error) error {
	if *value != "" {
		return nil
	}
	if !stdinIsTerminal() {
		return fmt.Errorf("%s is required", strings.ToLower(title))
	}

	in := huh.NewInput().Title(title).Value(value)
	if secret {
		in = in.EchoMode(huh.EchoModePassword)
	}
	if check != nil {
		in = in.Validate(check)
	}
	if err := in.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errAborted
		}
		return fmt.Errorf("prompt: %w", err)
	}
	return nil
}

// readSecretLine reads the first line of r, for --password-stdin.
func readSecretLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password from stdin is empty")
	}
	return line, nil
}
