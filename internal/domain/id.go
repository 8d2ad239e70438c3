// Package domain defines the TaleForge data model shared by the client core and the
// reference server: users, stories, comments, listing queries and pages.
package domain

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID identifies a user, story or comment. The API may send ids as JSON numbers or
// strings; both decode to the same ID.
type ID string

// String returns the id as text.
func (id ID) String() string { return string(id) }

// IsZero reports whether the id is empty.
func (id ID) IsZero() bool { return id == "" }

// Compare orders integer ids numerically and before every other id; the rest
// compare lexicographically. It returns -1, 0 or +1.
func (id ID) Compare(other ID) int {
	a, errA := strconv.ParseInt(string(id), 10, 64)
	b, errB := strconv.ParseInt(string(other), 10, 64)
	switch {
	case errA == nil && errB == nil:
		return cmp.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(string(id), string(other))
}

// UnmarshalJSON accepts a string, an integer, or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("cannot unmarshal %s into ID", string(data))
	}
	if _, err := n.Int64(); err != nil {
		return fmt.Errorf("id %s is not an integer", n)
	}
	*id = ID(n.String())
	return nil
}

// ParseID validates a user-supplied id.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("id must not be empty")
	}
	if strings.ContainsAny(s, "/?#") {
		return "", fmt.Errorf("invalid id %q", s)
	}
	return ID(s), nil
}
