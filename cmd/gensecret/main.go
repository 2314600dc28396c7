// Command gensecret prints random value suitable for SESSION_SECRET
package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

const defaultSecretLen = 32

func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, args []string) error {
	fs := pflag.NewFlagSet("gensecret", pflag.ContinueOnError)
	length := fs.IntP("length", "n", defaultSecretLen, "secret length in bytes")
	format := fs.StringP("format", "f", "hex", "output format: hex or base64")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *length < 16 {
		return fmt.Errorf("secret must be at least 16 bytes, got %d", *length)
	}

	b := make([]byte, *length)
	if _, err := rand.Read(b); err != nil {
		return err
	}

	switch *format {
	case "hex":
		_, err := fmt.Fprintln(w, hex.EncodeToString(b))
		return err
	case "base64":
		_, err := fmt.Fprintln(w, base64.RawURLEncoding.EncodeToString(b))
		return err
	default:
		return fmt.Errorf("unknown format %q", *format)
	}
}
