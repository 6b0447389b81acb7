package extract

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"unicode/utf8"
)

// ErrNoText reports that no extraction strategy produced text for the
// document. This is a hard failure for that document.
var ErrNoText = errors.New("no extraction strategy produced text")

// Strategy converts raw document bytes to text. Strategies are tried in
// order until one succeeds; OCR- or format-specific strategies plug in
// behind this interface.
type Strategy interface {
	Name() string
	Extract(raw []byte) (string, error)
}

// Chain tries its strategies in order and returns the first non-empty
// extraction.
type Chain struct {
	strategies []Strategy
	logger     *log.Logger
}

// NewChain creates a Chain. With no strategies given it defaults to
// plain-text extraction.
func NewChain(strategies ...Strategy) *Chain {
	if len(strategies) == 0 {
		strategies = []Strategy{PlainText{}}
	}
	return &Chain{
		strategies: strategies,
		logger:     log.New(os.Stderr, "[EXTRACT] ", log.LstdFlags),
	}
}

// ExtractText runs the strategy chain over raw. Failures of individual
// strategies are logged and the next strategy is tried; if none yields
// text the chain fails with ErrNoText.
func (c *Chain) ExtractText(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: empty input", ErrNoText)
	}
	for _, s := range c.strategies {
		text, err := s.Extract(raw)
		if err != nil {
			c.logger.Printf("strategy %s failed: %v", s.Name(), err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	return "", ErrNoText
}

// PlainText extracts UTF-8 text directly from the input bytes. Invalid
// sequences fail the strategy rather than producing mojibake.
type PlainText struct{}

// Name implements Strategy.
func (PlainText) Name() string { return "plaintext" }

// Extract implements Strategy.
func (PlainText) Extract(raw []byte) (string, error) {
	// Strip a UTF-8 BOM if present.
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	if !utf8.Valid(raw) {
		return "", errors.New("input is not valid UTF-8")
	}
	if bytes.IndexByte(raw, 0) >= 0 {
		return "", errors.New("input appears to be binary")
	}
	return string(raw), nil
}
