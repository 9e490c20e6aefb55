package certify

import (
	"strings"

	"github.com/google/uuid"
)

// DefaultPrefix is prepended to every certificate code.
const DefaultPrefix = "SOFTAI"

// suffixLen is the number of hex characters taken from a random UUID.
const suffixLen = 8

// CodeGenerator produces human-facing certificate codes.
type CodeGenerator func() string

// UUIDCodes returns a generator of codes shaped PREFIX-XXXXXXXX, where the
// suffix is the first segment of a random UUID in upper case.
func UUIDCodes(prefix string) CodeGenerator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return func() string {
		return prefix + "-" + strings.ToUpper(uuid.NewString()[:suffixLen])
	}
}
