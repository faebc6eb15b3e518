package framing

import "time"

// Clock produces the RTP timestamp sequence described in §4.8 and
// §9 note 4: seeded from wall-clock time, then incremented by a fixed
// RtpTimestampStep per packet. §9's redesign note requires this state be
// owned per-peer rather than held in a process-wide global, so callers
// construct one Clock per session instead of sharing package state.
type Clock struct {
	current uint32
}

// NewClock seeds a Clock from the current wall-clock time truncated to
// 32 bits, matching the source's "seeded from wall-clock at process start"
// behavior without using a shared global.
func NewClock() *Clock {
	return &Clock{current: uint32(time.Now().UnixNano())}
}

// NewClockSeeded builds a Clock from an explicit seed, for deterministic
// tests.
func NewClockSeeded(seed uint32) *Clock {
	return &Clock{current: seed}
}

// Next returns the current timestamp and advances the clock by
// RtpTimestampStep for the following call.
func (c *Clock) Next() uint32 {
	v := c.current
	c.current += RtpTimestampStep
	return v
}

// SequenceCounter is the strictly-increasing 16-bit outbound sequence
// number described in §4.8's ordering rule: any send helper must read and
// increment it atomically. Callers needing atomicity across goroutines
// should guard Next with their own mutex, matching the session's single
// send-helper-at-a-time usage.
type SequenceCounter struct {
	value uint16
}

// Next returns the current sequence number and advances it, wrapping at
// 16 bits.
func (s *SequenceCounter) Next() uint16 {
	v := s.value
	s.value++
	return v
}
