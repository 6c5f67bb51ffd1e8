// Package dnserrors defines the structured error kinds used throughout the
// codec, zone store, and server loop, ordered by locality per spec.md §7:
// Truncation, Malformed, Unsupported, Timeout/IO (Network), and Zone.
//
// Every kind carries an Operation string (what was being attempted) and
// wraps an underlying error where one exists, so callers can use
// errors.As/errors.Is across the chain instead of string matching.
package dnserrors

import "fmt"

// Truncation means the buffer was exhausted mid-parse: there were fewer
// bytes available than the format requires at this point. Over UDP this
// maps to setting the TC bit on a response too large to fit; over TCP the
// caller can read more and retry.
type Truncation struct {
	Operation string
	Offset    int
	Message   string
}

func (e *Truncation) Error() string {
	return fmt.Sprintf("truncated during %s at offset %d: %s", e.Operation, e.Offset, e.Message)
}

// Malformed means the bytes present are self-inconsistent: a length byte
// that doesn't match reality, a pointer to an invalid offset, an RDLENGTH
// that overruns its section, a label over 63 bytes, a name over 255 bytes,
// or a compression cycle. Not recoverable for this message.
type Malformed struct {
	Operation string
	Offset    int // -1 if not applicable
	Message   string
	Err       error
}

func (e *Malformed) Error() string {
	if e.Offset >= 0 {
		if e.Err != nil {
			return fmt.Sprintf("malformed input during %s at offset %d: %s: %v", e.Operation, e.Offset, e.Message, e.Err)
		}
		return fmt.Sprintf("malformed input during %s at offset %d: %s", e.Operation, e.Offset, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("malformed input during %s: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("malformed input during %s: %s", e.Operation, e.Message)
}

func (e *Malformed) Unwrap() error { return e.Err }

// Unsupported means the bytes are well-formed but this implementation
// declines to act on them: a known-unknown RR TYPE on a path that cannot
// round-trip it, an OPT record outside the additional section, or an
// unrecognized opcode. No code path in this module returns it, so nothing
// converts it to NOTIMP: the server answers a non-QUERY opcode with NOTIMP
// directly. EDNS0 options with unknown codes are not logged or dropped;
// they are kept as decoded and re-encoded unchanged.
type Unsupported struct {
	Operation string
	Message   string
}

func (e *Unsupported) Error() string {
	return fmt.Sprintf("unsupported in %s: %s", e.Operation, e.Message)
}

// Network covers I/O failures: socket creation/bind, send/receive errors,
// and forward timeouts. The caller owns retry policy; this type only
// classifies the failure and preserves the underlying error.
type Network struct {
	Operation string
	Err       error
	Details   string
}

func (e *Network) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("network error during %s: %v (%s)", e.Operation, e.Err, e.Details)
	}
	return fmt.Sprintf("network error during %s: %v", e.Operation, e.Err)
}

func (e *Network) Unwrap() error { return e.Err }

// Timeout is a Network error for a read that hit its deadline: a UDP
// receive or a TCP read, including a forward call waiting on an upstream
// response (spec.md §5, §7). Details is always "forward timeout".
func Timeout(operation string, err error) *Network {
	return &Network{Operation: operation, Err: err, Details: "forward timeout"}
}

// Zone covers master-file load failures: unreadable files, parse errors on
// individual lines, or a numeric TYPE the parser has no RDATA format for. Fatal at load time; per
// spec.md §7 a partially loaded zone is never installed.
type Zone struct {
	Operation string
	Zone      string
	Line      int // 0 if not applicable to a specific line
	Message   string
	Err       error
}

func (e *Zone) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("zone %q: %s at line %d: %s", e.Zone, e.Operation, e.Line, e.Message)
	}
	return fmt.Sprintf("zone %q: %s: %s", e.Zone, e.Operation, e.Message)
}

func (e *Zone) Unwrap() error { return e.Err }
