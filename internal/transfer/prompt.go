package transfer

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// AskPassword reads a password from the terminal without echoing it.
// Used when a non-anonymous user is configured without a password, so
// credentials never have to live in a config file.
func AskPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Enter password: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}
