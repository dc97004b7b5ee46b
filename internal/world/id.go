package world

import (
	"fmt"
	"strconv"
	"strings"
)

// Id is an opaque handle for an object in the world. Ids are dense,
// monotonically increasing indexes; they are never reused and stay stable
// across snapshot round-trips. Scripts see ids as strings of the form "#12".
type Id int

func (id Id) String() string {
	return fmt.Sprintf("#%d", int(id))
}

// ParseId parses the script-facing "#<index>" form.
func ParseId(s string) (Id, error) {
	if !strings.HasPrefix(s, "#") {
		return 0, fmt.Errorf("invalid object id %q", s)
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid object id %q", s)
	}
	return Id(n), nil
}
