package flashprog

import (
	"fmt"
	"strings"
)

// ProgrammerParams is the parsed key=value list that follows the name in a
// `--programmer <name>:key=value,key2=value2` argument, grounded in flashrom.c/ichspi.c's
// extract_programmer_param("ich_spi_mode")-style key lookup.
type ProgrammerParams map[string]string

// ParseProgrammerParams splits a "key=value,key2=value2" string the way
// flashrom's programmer parameter list is built, spec.md §6's CLI surface.
func ParseProgrammerParams(s string) (ProgrammerParams, error) {
	p := ProgrammerParams{}
	if s == "" {
		return p, nil
	}
	for _, pair := range strings.Split(s, ",") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, fmt.Errorf("%w: malformed programmer parameter %q", ErrInvalidArgument, pair)
		}
		p[kv[0]] = kv[1]
	}
	return p, nil
}

// Get mirrors extract_programmer_param: look up key, returning ok=false if
// absent so the caller can fall back to a default.
func (p ProgrammerParams) Get(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}
