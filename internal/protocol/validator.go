package protocol

import (
	"fmt"
	"strings"

	"github.com/mirelon/adnsd/internal/dnserrors"
)

// ValidateName checks a presentation-format domain name against the label
// and total-length limits of RFC 1035 §3.1. Labels are checked for length
// only: DNS owner names are wider than the RFC 1123 hostname subset (TXT
// and SRV-style service labels commonly use leading underscores), so no
// character class is enforced here.
func ValidateName(name string) error {
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return nil // root
	}

	labels := strings.Split(name, ".")

	wireLength := 1 // root terminator
	for _, label := range labels {
		wireLength += 1 + len(label)
	}
	if wireLength > MaxNameLength {
		return &dnserrors.Malformed{
			Operation: "validate name",
			Message:   fmt.Sprintf("name %q exceeds maximum wire length %d bytes (got %d)", name, MaxNameLength, wireLength),
		}
	}

	for i, label := range labels {
		if label == "" {
			return &dnserrors.Malformed{
				Operation: "validate name",
				Message:   fmt.Sprintf("empty label at position %d in %q (consecutive dots)", i, name),
			}
		}
		if len(label) > MaxLabelLength {
			return &dnserrors.Malformed{
				Operation: "validate name",
				Message:   fmt.Sprintf("label %q exceeds maximum length %d bytes", label, MaxLabelLength),
			}
		}
	}

	return nil
}
