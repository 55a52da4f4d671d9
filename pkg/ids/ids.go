// Package ids generates opaque identifiers for document keys.
package ids

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator returns a new unique identifier on every call.
type Generator interface {
	NewID() string
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() string

// NewID implements Generator.
func (f GeneratorFunc) NewID() string {
	return f()
}

// UUID returns random version 4 UUIDs.
func UUID() Generator {
	return GeneratorFunc(uuid.NewString)
}

// ULID returns lexicographically sortable ULIDs.
func ULID() Generator {
	return GeneratorFunc(func() string {
		return ulid.Make().String()
	})
}

// Sequence returns prefix followed by an increasing counter starting after
// start, e.g. "id3", "id4" for Sequence("id", 2).
func Sequence(prefix string, start uint64) Generator {
	counter := &atomic.Uint64{}
	counter.Store(start)
	return GeneratorFunc(func() string {
		return prefix + strconv.FormatUint(counter.Add(1), 10)
	})
}

// ByName resolves "uuid", "ulid" or "seq" (alias "sequence").
func ByName(name string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "uuid":
		return UUID(), nil
	case "ulid":
		return ULID(), nil
	case "seq", "sequence":
		return Sequence("id", 0), nil
	default:
		return nil, fmt.Errorf("ids: unknown generator %q", name)
	}
}
