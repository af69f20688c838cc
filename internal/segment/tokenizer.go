package segment

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrMalformedInput is returned when a body cannot be read as quoted segments.
	// Every other tokenizer error wraps it.
	ErrMalformedInput = errors.New("malformed input")

	// ErrUnterminatedToken is returned in strict mode when a quote is never closed
	ErrUnterminatedToken = fmt.Errorf("%w: unterminated token", ErrMalformedInput)

	// ErrUnpairedToken is returned in strict mode when an origin has no destination
	ErrUnpairedToken = fmt.Errorf("%w: origin without destination", ErrMalformedInput)

	// ErrTooManySegments is returned when the body exceeds MaxSegments
	ErrTooManySegments = fmt.Errorf("%w: too many segments", ErrMalformedInput)
)

// state of the tokenizer between two bytes
type state int

const (
	// OutsideToken skips bytes until an opening quote
	OutsideToken state = iota
	// InsideToken collects bytes until the closing quote
	InsideToken
)

// Tokenizer turns a request body into segments.
// The zero value is lenient, scans the whole body and has no segment limit;
// use NewTokenizer for the service defaults.
type Tokenizer struct {
	// ExcludeLastByte leaves the final body byte unscanned.
	// Clients terminate bodies with a newline that is not part of any token.
	ExcludeLastByte bool

	// Strict turns silently dropped tokens into errors.
	Strict bool

	// MaxSegments bounds the output length; 0 means unbounded.
	MaxSegments int
}

// NewTokenizer returns a lenient tokenizer that skips the trailing byte
func NewTokenizer(maxSegments int) *Tokenizer {
	return &Tokenizer{
		ExcludeLastByte: true,
		MaxSegments:     maxSegments,
	}
}

// Tokenize reads body left to right. Each quoted run is one token; odd
// tokens are origins, even tokens complete a segment with the preceding origin.
func (t *Tokenizer) Tokenize(body []byte) (List, error) {
	if !utf8.Valid(body) {
		return nil, fmt.Errorf("%w: body is not valid UTF-8", ErrMalformedInput)
	}

	scan := body
	if t.ExcludeLastByte && len(scan) > 0 {
		scan = scan[:len(scan)-1]
	}

	var (
		out     List
		st      = OutsideToken
		start   int
		origin  string
		pending bool
	)
	for i, b := range scan {
		if b != Quote {
			continue
		}
		switch st {
		case OutsideToken:
			st = InsideToken
			start = i + 1
		case InsideToken:
			st = OutsideToken
			token := string(scan[start:i])
			if !pending {
				origin, pending = token, true
				continue
			}
			if t.MaxSegments > 0 && len(out) == t.MaxSegments {
				return nil, fmt.Errorf("%w (limit %d)", ErrTooManySegments, t.MaxSegments)
			}
			out = append(out, New(origin, token))
			pending = false
		}
	}

	if t.Strict {
		if st == InsideToken {
			return nil, fmt.Errorf("%w at byte %d", ErrUnterminatedToken, start-1)
		}
		if pending {
			return nil, fmt.Errorf("%w %q", ErrUnpairedToken, origin)
		}
	}
	return out, nil
}
