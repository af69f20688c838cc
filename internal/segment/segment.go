package segment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Quote is the sole field delimiter of the wire format.
const Quote = '\''

// Segment is one directed leg between two opaque endpoints
type Segment struct {
	Origin      string
	Destination string
}

// List is an ordered sequence of segments
type List []Segment

// New returns the segment (origin, destination)
func New(origin, destination string) Segment {
	return Segment{Origin: origin, Destination: destination}
}

// String renders the segment as origin->destination
func (s Segment) String() string {
	return s.Origin + "->" + s.Destination
}

// Chains reports whether next continues where s ends
func (s Segment) Chains(next Segment) bool {
	return s.Destination == next.Origin
}

// MarshalJSON encodes the segment as a two element array
func (s Segment) MarshalJSON() ([]byte, error) {
	return marshal([2]string{s.Origin, s.Destination})
}

// UnmarshalJSON decodes a two element array into the segment
func (s *Segment) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("segment: want 2 endpoints, got %d", len(pair))
	}
	s.Origin, s.Destination = pair[0], pair[1]
	return nil
}

// MarshalJSON keeps an empty list as [] rather than null
func (l List) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return marshal([]Segment(l))
}

// marshal encodes v leaving <, > and & unescaped
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Clone returns a copy that shares no backing array with l
func (l List) Clone() List {
	out := make(List, len(l))
	copy(out, l)
	return out
}

// Encode writes the wire form of l: every endpoint wrapped in quotes,
// followed by one trailing newline that the tokenizer skips.
// Endpoints containing a quote cannot be represented and yield an error.
func Encode(l List) ([]byte, error) {
	var buf bytes.Buffer
	for _, s := range l {
		for _, endpoint := range [2]string{s.Origin, s.Destination} {
			if strings.IndexByte(endpoint, Quote) >= 0 {
				return nil, fmt.Errorf("segment: endpoint %q contains the delimiter", endpoint)
			}
			buf.WriteByte(Quote)
			buf.WriteString(endpoint)
			buf.WriteByte(Quote)
		}
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
