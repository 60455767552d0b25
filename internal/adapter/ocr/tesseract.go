// Package ocr recognizes text in raster images by invoking the
// tesseract binary as an external tool.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var ErrToolNotFound = errors.New("tesseract not found in PATH")

// Runner executes the OCR command. Injectable so tests can avoid a
// real tesseract install.
type Runner interface {
	Run(ctx context.Context, bin string, stdin []byte, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, bin string, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", bin, err, strings.TrimSpace(errOut.String()))
	}
	return out.Bytes(), nil
}

type Tesseract struct {
	bin    string
	runner Runner
}

// NewTesseract returns an OCR engine backed by the given tesseract
// binary. The binary must be resolvable in PATH.
func NewTesseract(bin string) (*Tesseract, error) {
	if bin == "" {
		bin = "tesseract"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, bin)
	}
	return &Tesseract{bin: bin, runner: execRunner{}}, nil
}

// NewTesseractWithRunner skips the PATH check; used in tests.
func NewTesseractWithRunner(bin string, r Runner) *Tesseract {
	return &Tesseract{bin: bin, runner: r}
}

func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	out, err := t.runner.Run(ctx, t.bin, image, "stdin", "stdout")
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return string(out), nil
}
