// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package fakedll

import (
	"fmt"
	"sync"

	"github.com/Query-farm/vgi-chariot/chrapi"
)

// Chariot simulates the subset of IxChariot covered by chrapi.Standard.
// A started test finishes once the summed query_stop timeouts reach its
// configured duration; every pair then reports SentRate and RecvRate bytes
// per second over that duration.
type Chariot struct {
	*Library

	// APIVersion is returned by CHR_api_get_version.
	APIVersion string
	// SentRate and RecvRate are bytes per second credited to each pair's E1.
	SentRate float64
	RecvRate float64

	mu        sync.Mutex
	next      uint32
	tests     map[uint32]*simTest
	pairs     map[uint32]*simPair
	runopts   map[uint32]*simRunopts
	timingrec map[uint32]float64
	stops     []chrapi.ReturnCode
	polls     int
}

type simTest struct {
	pairs    []uint32
	runopts  uint32
	running  bool
	elapsed  uint32
	finished bool
	filename string
	howEnded chrapi.TestHowEnded
}

type simRunopts struct {
	testEnd  chrapi.TestEnd
	duration uint32
}

type simPair struct {
	e1, e2   string
	comment  string
	script   string
	protocol chrapi.Protocol
	records  []uint32
	sent     float64
	recv     float64
	measured float64
}

// NewChariot returns a simulation with every Standard export registered.
func NewChariot() *Chariot {
	c := &Chariot{
		Library:    New(`C:\Program Files (x86)\Ixia\IxChariot\ChrApi.dll`),
		APIVersion: "7.30",
		SentRate:   1_000_000,
		RecvRate:   0,
		next:       1000,
		tests:      make(map[uint32]*simTest),
		pairs:      make(map[uint32]*simPair),
		runopts:    make(map[uint32]*simRunopts),
		timingrec:  make(map[uint32]float64),
	}
	c.register()
	return c
}

// ScriptStops queues return codes for the next CHR_test_query_stop calls.
// While the queue is non-empty it overrides the duration simulation.
func (c *Chariot) ScriptStops(codes ...chrapi.ReturnCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops = append(c.stops, codes...)
}

// Polls returns how many times CHR_test_query_stop ran.
func (c *Chariot) Polls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polls
}

// PairAddrs returns a pair's endpoint addresses.
func (c *Chariot) PairAddrs(h chrapi.Handle) (e1, e2 string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pairs[uint32(h)]
	if !ok {
		return "", "", false
	}
	return p.e1, p.e2, true
}

// PairScript returns the script file a pair uses.
func (c *Chariot) PairScript(h chrapi.Handle) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pairs[uint32(h)]; ok {
		return p.script
	}
	return ""
}

// TestDuration returns the duration configured on a test's run options.
func (c *Chariot) TestDuration(h chrapi.Handle) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tests[uint32(h)]; ok {
		return c.runopts[t.runopts].duration
	}
	return 0
}

func (c *Chariot) alloc() uint32 {
	c.next++
	return c.next
}

// locked wraps fn so the simulation state is guarded.
func (c *Chariot) locked(fn Func) Func {
	return func(args []chrapi.Arg) chrapi.ReturnCode {
		c.mu.Lock()
		defer c.mu.Unlock()
		return fn(args)
	}
}

func (c *Chariot) handle(symbol string, fn Func) {
	c.Library.Handle(symbol, c.locked(fn))
}

func (c *Chariot) pair(a chrapi.Arg) (*simPair, bool) {
	p, ok := c.pairs[ULong(a)]
	return p, ok
}

func (c *Chariot) test(a chrapi.Arg) (*simTest, bool) {
	t, ok := c.tests[ULong(a)]
	return t, ok
}

func (c *Chariot) register() {
	c.handle("CHR_api_initialize", func(a []chrapi.Arg) chrapi.ReturnCode {
		return SetString(a[1], a[2], a[3], "")
	})
	c.handle("CHR_api_get_version", func(a []chrapi.Arg) chrapi.ReturnCode {
		return SetString(a[0], a[1], a[2], c.APIVersion)
	})
	c.handle("CHR_api_get_build_level", func(a []chrapi.Arg) chrapi.ReturnCode {
		return SetString(a[0], a[1], a[2], "sim")
	})
	c.handle("CHR_api_get_reporting_port", func(a []chrapi.Arg) chrapi.ReturnCode {
		SetUShort(a[1], 10115)
		return chrapi.OK
	})
	c.handle("CHR_api_get_return_msg", func(a []chrapi.Arg) chrapi.ReturnCode {
		rc := chrapi.ReturnCode(Long(a[0]))
		return SetString(a[1], a[2], a[3], returnMessage(rc))
	})
	c.handle("CHR_api_get_max_pairs", func(a []chrapi.Arg) chrapi.ReturnCode {
		SetULong(a[0], 10000)
		return chrapi.OK
	})
	c.handle("CHR_common_error_get_info", func(a []chrapi.Arg) chrapi.ReturnCode {
		return SetString(a[2], a[3], a[4], fmt.Sprintf("object %d: simulated failure detail", ULong(a[0])))
	})
	c.handle("CHR_common_results_get_meas_time", c.pairDouble(func(p *simPair) float64 { return p.measured }))
	c.handle("CHR_common_results_get_bytes_sent_e1", c.pairDouble(func(p *simPair) float64 { return p.sent }))
	c.handle("CHR_common_results_get_bytes_recv_e1", c.pairDouble(func(p *simPair) float64 { return p.recv }))
	c.handle("CHR_common_results_get_trans_sent_e1", c.pairDouble(func(p *simPair) float64 { return 1 }))

	c.handle("CHR_test_new", func(a []chrapi.Arg) chrapi.ReturnCode {
		ro := c.alloc()
		c.runopts[ro] = &simRunopts{testEnd: chrapi.TestEndWhenAllComplete}
		h := c.alloc()
		c.tests[h] = &simTest{runopts: ro}
		SetULong(a[0], h)
		return chrapi.OK
	})
	c.handle("CHR_test_delete", func(a []chrapi.Arg) chrapi.ReturnCode {
		t, ok := c.test(a[0])
		if !ok {
			return chrapi.HandleInvalid
		}
		if t.running {
			return chrapi.TestRunning
		}
		delete(c.runopts, t.runopts)
		delete(c.tests, ULong(a[0]))
		return chrapi.OK
	})
	c.handle("CHR_test_load", c.testOp(func(t *simTest) chrapi.ReturnCode {
		if t.filename == "" {
			return chrapi.NoTestFile
		}
		return chrapi.OK
	}))
	c.handle("CHR_test_save", c.testOp(func(t *simTest) chrapi.ReturnCode {
		if t.filename == "" {
			return chrapi.NoTestFile
		}
		return chrapi.OK
	}))
	c.handle("CHR_test_set_filename", func(a []chrapi.Arg) chrapi.ReturnCode {
		t, ok := c.test(a[0])
		if !ok {
			return chrapi.HandleInvalid
		}
		t.filename = InString(a[1], a[2])
		return chrapi.OK
	})
	c.handle("CHR_test_get_filename", func(a []chrapi.Arg) chrapi.ReturnCode {
		t, ok := c.test(a[0])
		if !ok {
			return chrapi.HandleInvalid
		}
		return SetString(a[1], a[2], a[3], t.filename)
	})
	c.handle("CHR_test_add_pair", func(a []chrapi.Arg) chrapi.ReturnCode {
		t, ok := c.test(a[0])
		if !ok {
			return chrapi.HandleInvalid
		}
		if _, ok := c.pair(a[1]); !ok {
			return chrapi.HandleInvalid
		}
		t.pairs = append(t.pairs, ULong(a[1]))
		return chrapi.OK
	})
	c.handle("CHR_test_start", c.testOp(func(t *simTest) chrapi.ReturnCode {
		if t.running {
			return chrapi.TestRunning
		}
		if len(t.pairs) == 0 {
			return chrapi.OperationFailed
		}
		t.running, t.finished, t.elapsed = true, false, 0
		return chrapi.OK
	}))
	c.handle("CHR_test_stop", c.testOp(func(t *simTest) chrapi.ReturnCode {
		if !t.running {
			return chrapi.TestNotRun
		}
		c.finish(t, chrapi.TestHowEndedUserStopped)
		return chrapi.OK
	}))
	c.handle("CHR_test_abandon", c.testOp(func(t *simTest) chrapi.ReturnCode {
		t.running = false
		t.howEnded = chrapi.TestHowEndedUserStopped
		return chrapi.OK
	}))
	c.handle("CHR_test_query_stop", func(a []chrapi.Arg) chrapi.ReturnCode {
		c.polls++
		t, ok := c.test(a[0])
		if !ok {
			return chrapi.HandleInvalid
		}
		if len(c.stops) > 0 {
			rc := c.stops[0]
			c.stops = c.stops[1:]
			if rc == chrapi.OK && t.running {
				c.finish(t, chrapi.TestHowEndedNormal)
			}
			return rc
		}
		if t.finished {
			return chrapi.OK
		}
		if !t.running {
			return chrapi.TestNotRun
		}
		ro := c.runopts[t.runopts]
		if ro.testEnd == chrapi.TestEndAfterFixedDuration {
			t.elapsed += ULong(a[1])
			if t.elapsed < ro.duration {
				return chrapi.TimedOut
			}
		}
		c.finish(t, chrapi.TestHowEndedNormal)
		return chrapi.OK
	})
	c.handle("CHR_test_get_pair_count", func(a []chrapi.Arg) chrapi.ReturnCode {
		t, ok := c.test(a[0])
		if !ok {
			return chrapi.HandleInvalid
		}
		SetULong(a[1], uint32(len(t.pairs)))
		return chrapi.OK
	})
	c.handle("CHR_test_get_pair", func(a []chrapi.Arg) chrapi.ReturnCode {
		t, ok := c.test(a[0])
		if !ok {
			return chrapi.HandleInvalid
		}
		i := int(ULong(a[1]))
		if i >= len(t.pairs) {
			return chrapi.NoSuchObject
		}
		SetULong(a[2], t.pairs[i])
		return chrapi.OK
	})
	c.handle("CHR_test_get_runopts", func(a []chrapi.Arg) chrapi.ReturnCode {
		t, ok := c.test(a[0])
		if !ok {
			return chrapi.HandleInvalid
		}
		SetULong(a[1], t.runopts)
		return chrapi.OK
	})
	c.handle("CHR_test_get_how_ended", func(a []chrapi.Arg) chrapi.ReturnCode {
		t, ok := c.test(a[0])
		if !ok {
			return chrapi.HandleInvalid
		}
		if t.howEnded == 0 {
			return chrapi.TestNotRun
		}
		SetByte(a[1], uint8(t.howEnded))
		return chrapi.OK
	})

	c.handle("CHR_runopts_set_test_end", c.runoptsOp(func(ro *simRunopts, a []chrapi.Arg) chrapi.ReturnCode {
		end := chrapi.TestEnd(Word(a[1]))
		if end < chrapi.TestEndWhenFirstCompletes || end > chrapi.TestEndAfterFixedDuration {
			return chrapi.ValueInvalid
		}
		ro.testEnd = end
		return chrapi.OK
	}))
	c.handle("CHR_runopts_get_test_end", c.runoptsOp(func(ro *simRunopts, a []chrapi.Arg) chrapi.ReturnCode {
		SetByte(a[1], uint8(ro.testEnd))
		return chrapi.OK
	}))
	c.handle("CHR_runopts_set_test_duration", c.runoptsOp(func(ro *simRunopts, a []chrapi.Arg) chrapi.ReturnCode {
		ro.duration = ULong(a[1])
		return chrapi.OK
	}))
	c.handle("CHR_runopts_get_test_duration", c.runoptsOp(func(ro *simRunopts, a []chrapi.Arg) chrapi.ReturnCode {
		SetULong(a[1], ro.duration)
		return chrapi.OK
	}))

	c.handle("CHR_pair_new", func(a []chrapi.Arg) chrapi.ReturnCode {
		h := c.alloc()
		c.pairs[h] = &simPair{protocol: chrapi.ProtocolTCP}
		SetULong(a[0], h)
		return chrapi.OK
	})
	c.handle("CHR_pair_delete", func(a []chrapi.Arg) chrapi.ReturnCode {
		if _, ok := c.pair(a[0]); !ok {
			return chrapi.HandleInvalid
		}
		delete(c.pairs, ULong(a[0]))
		return chrapi.OK
	})
	c.handle("CHR_pair_copy", func(a []chrapi.Arg) chrapi.ReturnCode {
		dst, ok1 := c.pair(a[0])
		src, ok2 := c.pair(a[1])
		if !ok1 || !ok2 {
			return chrapi.HandleInvalid
		}
		dst.e1, dst.e2, dst.comment, dst.script, dst.protocol = src.e1, src.e2, src.comment, src.script, src.protocol
		return chrapi.OK
	})
	c.handle("CHR_pair_set_e1_addr", c.pairString(func(p *simPair, s string) { p.e1 = s }))
	c.handle("CHR_pair_set_e2_addr", c.pairString(func(p *simPair, s string) { p.e2 = s }))
	c.handle("CHR_pair_set_comment", c.pairString(func(p *simPair, s string) { p.comment = s }))
	c.handle("CHR_pair_use_script_filename", c.pairString(func(p *simPair, s string) { p.script = s }))
	c.handle("CHR_pair_get_e1_addr", c.pairGetString(func(p *simPair) string { return p.e1 }))
	c.handle("CHR_pair_get_e2_addr", c.pairGetString(func(p *simPair) string { return p.e2 }))
	c.handle("CHR_pair_get_comment", c.pairGetString(func(p *simPair) string { return p.comment }))
	c.handle("CHR_pair_get_script_filename", c.pairGetString(func(p *simPair) string { return p.script }))
	c.handle("CHR_pair_set_protocol", func(a []chrapi.Arg) chrapi.ReturnCode {
		p, ok := c.pair(a[0])
		if !ok {
			return chrapi.HandleInvalid
		}
		p.protocol = chrapi.Protocol(Word(a[1]))
		return chrapi.OK
	})
	c.handle("CHR_pair_get_protocol", func(a []chrapi.Arg) chrapi.ReturnCode {
		p, ok := c.pair(a[0])
		if !ok {
			return chrapi.HandleInvalid
		}
		SetByte(a[1], uint8(p.protocol))
		return chrapi.OK
	})
	c.handle("CHR_pair_get_timing_record_count", func(a []chrapi.Arg) chrapi.ReturnCode {
		p, ok := c.pair(a[0])
		if !ok {
			return chrapi.HandleInvalid
		}
		SetULong(a[1], uint32(len(p.records)))
		return chrapi.OK
	})
	c.handle("CHR_pair_get_timing_record", func(a []chrapi.Arg) chrapi.ReturnCode {
		p, ok := c.pair(a[0])
		if !ok {
			return chrapi.HandleInvalid
		}
		i := int(ULong(a[1]))
		if i >= len(p.records) {
			return chrapi.NoSuchObject
		}
		SetULong(a[2], p.records[i])
		return chrapi.OK
	})
	c.handle("CHR_pair_swap_endpoints", func(a []chrapi.Arg) chrapi.ReturnCode {
		p, ok := c.pair(a[0])
		if !ok {
			return chrapi.HandleInvalid
		}
		p.e1, p.e2 = p.e2, p.e1
		return chrapi.OK
	})

	c.handle("CHR_timingrec_get_elapsed", func(a []chrapi.Arg) chrapi.ReturnCode {
		v, ok := c.timingrec[ULong(a[0])]
		if !ok {
			return chrapi.HandleInvalid
		}
		SetDouble(a[1], v)
		return chrapi.OK
	})
	c.handle("CHR_timingrec_get_end_to_end_delay", func(a []chrapi.Arg) chrapi.ReturnCode {
		if _, ok := c.timingrec[ULong(a[0])]; !ok {
			return chrapi.HandleInvalid
		}
		SetDouble(a[1], 0.001)
		return chrapi.OK
	})
}

// finish credits every pair with results for the elapsed run time. A run
// that was not timed counts as one second.
func (c *Chariot) finish(t *simTest, how chrapi.TestHowEnded) {
	t.running, t.finished, t.howEnded = false, true, how
	secs := float64(t.elapsed)
	if secs == 0 {
		secs = 1
	}
	for _, h := range t.pairs {
		p := c.pairs[h]
		rec := c.alloc()
		c.timingrec[rec] = secs
		p.records = append(p.records, rec)
		p.sent = c.SentRate * secs
		p.recv = c.RecvRate * secs
		p.measured = secs
	}
}

func (c *Chariot) testOp(fn func(*simTest) chrapi.ReturnCode) Func {
	return func(a []chrapi.Arg) chrapi.ReturnCode {
		t, ok := c.test(a[0])
		if !ok {
			return chrapi.HandleInvalid
		}
		return fn(t)
	}
}

func (c *Chariot) runoptsOp(fn func(*simRunopts, []chrapi.Arg) chrapi.ReturnCode) Func {
	return func(a []chrapi.Arg) chrapi.ReturnCode {
		ro, ok := c.runopts[ULong(a[0])]
		if !ok {
			return chrapi.HandleInvalid
		}
		return fn(ro, a)
	}
}

func (c *Chariot) pairString(set func(*simPair, string)) Func {
	return func(a []chrapi.Arg) chrapi.ReturnCode {
		p, ok := c.pair(a[0])
		if !ok {
			return chrapi.HandleInvalid
		}
		set(p, InString(a[1], a[2]))
		return chrapi.OK
	}
}

func (c *Chariot) pairGetString(get func(*simPair) string) Func {
	return func(a []chrapi.Arg) chrapi.ReturnCode {
		p, ok := c.pair(a[0])
		if !ok {
			return chrapi.HandleInvalid
		}
		return SetString(a[1], a[2], a[3], get(p))
	}
}

func (c *Chariot) pairDouble(get func(*simPair) float64) Func {
	return func(a []chrapi.Arg) chrapi.ReturnCode {
		p, ok := c.pair(a[0])
		if !ok {
			return chrapi.HandleInvalid
		}
		if len(p.records) == 0 {
			return chrapi.NoResults
		}
		SetDouble(a[1], get(p))
		return chrapi.OK
	}
}

var messages = map[chrapi.ReturnCode]string{
	chrapi.OK:              "The operation was successful.",
	chrapi.HandleInvalid:   "The handle is not valid.",
	chrapi.OperationFailed: "The operation failed.",
	chrapi.ObjectInvalid:   "The object is not valid.",
	chrapi.TimedOut:        "The operation timed out.",
	chrapi.NoResults:       "No results are available.",
	chrapi.TestNotRun:      "The test has not been run.",
}

func returnMessage(rc chrapi.ReturnCode) string {
	if m, ok := messages[rc]; ok {
		return m
	}
	return rc.String()
}
