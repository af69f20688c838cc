// Package segment defines the leg model of the flights service and the
// tokenizer that reads legs from a request body.
//
// # Wire format
//
// A body is a stream of quoted endpoints. The quote character (') is the
// only delimiter and cannot be escaped, so endpoints never contain it:
//
//	'SFO''ATL''ATL''GSO'\n
//
// Tokens are counted from one. Odd tokens are origins, even tokens are
// destinations, and every destination completes one Segment. Bytes between
// tokens are ignored. The last byte of the body is not scanned by default;
// clients end the body with a newline.
//
// # Tokenizer states
//
//	OutsideToken --'--> InsideToken --'--> OutsideToken
//
// A body that ends in InsideToken has an unterminated token, and a body with
// an odd token count leaves an origin without destination. The lenient
// tokenizer drops both; the strict tokenizer reports ErrUnterminatedToken and
// ErrUnpairedToken. Every error wraps ErrMalformedInput so callers can map
// them to a client error with a single errors.Is check.
package segment
