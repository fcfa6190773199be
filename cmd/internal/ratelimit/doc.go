// Package ratelimit is a fixed-window limiter over securitystore counters.
//
// Keys are "rl:<namespace>:<identifier>". The first hit of a window starts a
// fresh TTL; a burst straddling a window boundary may see up to 2x limit.
package ratelimit
