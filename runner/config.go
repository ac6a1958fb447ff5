// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/Query-farm/vgi-chariot/chariot"
	"github.com/Query-farm/vgi-chariot/chrapi"
)

// Config is a chariot.toml measurement plan.
type Config struct {
	Address  string `toml:"address"`
	Encoding string `toml:"encoding"`

	// Timeout is the per-poll CHR_test_query_stop timeout in seconds.
	Timeout uint32 `toml:"timeout"`
	// MaxWaitTime bounds polling, in seconds, on top of the test duration.
	MaxWaitTime   uint32    `toml:"max_wait_time"`
	RotationAngle []float64 `toml:"rotation_angle"`
	ResultFile    string    `toml:"result_file"`

	Pairs   []Pair   `toml:"pairs"`
	Runopts *Runopts `toml:"runopts"`
}

// Pair configures one endpoint pair of the TX test.
type Pair struct {
	E1       string  `toml:"e1"`
	E2       string  `toml:"e2"`
	Script   string  `toml:"script"`
	Protocol string  `toml:"protocol"`
	Comment  *string `toml:"comment"`
	// Count repeats the pair; zero means once.
	Count int `toml:"count"`
}

// Runopts holds the optional run options applied to both tests.
type Runopts struct {
	TestEnd      string  `toml:"test_end"`
	TestDuration *uint32 `toml:"test_duration"`
}

// Defaults.
const (
	DefaultTimeout     = 1
	DefaultMaxWaitTime = 60
	DefaultResultFile  = "results.db"
	DefaultAddress     = "localhost"
)

// DefaultAngles is the turntable sweep used when rotation_angle is unset.
var DefaultAngles = []float64{0, 30, 60, 90, 120, 150, 180, 210, 240, 270, 300, 330}

// Load parses the TOML file at path and fills in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a TOML document and fills in defaults. Unknown keys are
// rejected.
func Parse(data string) (*Config, error) {
	var c Config
	md, err := toml.Decode(data, &c)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %s", undecoded[0])
	}
	c.defaults(md)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) defaults(md toml.MetaData) {
	if !md.IsDefined("timeout") {
		c.Timeout = DefaultTimeout
	}
	if !md.IsDefined("max_wait_time") {
		c.MaxWaitTime = DefaultMaxWaitTime
	}
	if !md.IsDefined("rotation_angle") {
		c.RotationAngle = append([]float64(nil), DefaultAngles...)
	}
	if c.ResultFile == "" {
		c.ResultFile = DefaultResultFile
	}
	if c.Address == "" {
		c.Address = DefaultAddress
	}
}

// Validate checks pair and runopts names.
func (c *Config) Validate() error {
	if len(c.Pairs) == 0 {
		return fmt.Errorf("no pairs configured")
	}
	for i, p := range c.Pairs {
		if p.E1 == "" || p.E2 == "" || p.Script == "" {
			return fmt.Errorf("pairs[%d]: e1, e2 and script are required", i)
		}
		if p.Protocol != "" {
			if _, ok := chrapi.ParseProtocol(p.Protocol); !ok {
				return fmt.Errorf("pairs[%d]: unknown protocol %q", i, p.Protocol)
			}
		}
		if p.Count < 0 {
			return fmt.Errorf("pairs[%d]: negative count", i)
		}
	}
	if c.Runopts != nil && c.Runopts.TestEnd != "" {
		if _, ok := chrapi.ParseTestEnd(c.Runopts.TestEnd); !ok {
			return fmt.Errorf("runopts: unknown test_end %q", c.Runopts.TestEnd)
		}
	}
	return nil
}

// attr converts the optional pair settings.
func (p Pair) attr() chariot.PairAttr {
	var a chariot.PairAttr
	if p.Protocol != "" {
		proto, _ := chrapi.ParseProtocol(p.Protocol)
		a.Protocol = &proto
	}
	a.Comment = p.Comment
	return a
}
