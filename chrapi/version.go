// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package chrapi

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a dotted numeric version such as 7.30.10.
type Version []int

// V builds a Version from its components.
func V(parts ...int) Version { return Version(parts) }

// ParseVersion reads the leading numeric components of s. Registry values
// look like "7.30", "7.30.10" or "9.7 SP2"; anything after the first
// non-numeric token is ignored.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if f := strings.Fields(s); len(f) > 0 {
		s = f[0]
	}
	var v Version
	for _, part := range strings.Split(s, ".") {
		end := 0
		for end < len(part) && part[end] >= '0' && part[end] <= '9' {
			end++
		}
		if end == 0 {
			break
		}
		n, err := strconv.Atoi(part[:end])
		if err != nil {
			return nil, fmt.Errorf("parsing version %q: %w", s, err)
		}
		v = append(v, n)
		if end < len(part) {
			break
		}
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("parsing version %q: no numeric components", s)
	}
	return v, nil
}

// Compare returns -1, 0 or +1. Missing components count as zero.
func (v Version) Compare(o Version) int {
	n := max(len(v), len(o))
	for i := range n {
		a, b := 0, 0
		if i < len(v) {
			a = v[i]
		}
		if i < len(o) {
			b = o[i]
		}
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
	}
	return 0
}

func (v Version) String() string {
	if len(v) == 0 {
		return "unknown"
	}
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// Op is the comparison a Constraint applies.
type Op uint8

const (
	// Since holds when the installed version is >= the constraint.
	Since Op = iota + 1
	// Until holds when the installed version is <= the constraint.
	Until
)

// Constraint gates a function on the installed IxChariot version.
type Constraint struct {
	Op      Op
	Version Version
}

// Allows reports whether a library at version v provides the function.
func (c Constraint) Allows(v Version) bool {
	switch c.Op {
	case Since:
		return v.Compare(c.Version) >= 0
	case Until:
		return v.Compare(c.Version) <= 0
	}
	return true
}

func (c Constraint) String() string {
	switch c.Op {
	case Since:
		return "since " + c.Version.String()
	case Until:
		return "until " + c.Version.String()
	}
	return ""
}
