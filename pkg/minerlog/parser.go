// Package minerlog turns the free-form progress line printed by the GPU
// miner into a structured Sample.
//
// The accepted line grammar, after terminal escape sequences are removed:
//
//	line       = { any } "[" elapsed "," { any } [ details { any } ] hashrate [ { any } difficulty ] { any }
//	elapsed    = [ hours ":" ] minutes ":" seconds [ "." digits ]
//	details    = "Details=" ( [ "super:" int space ] "normal:" int | "xuni:" int )
//	hashrate   = "HashRate:" [ space ] digits [ "." digits ]
//	difficulty = "Difficulty=" int
//
// The miner redraws the line with carriage returns; only the newest
// segment that matches is used.
//
// Elapsed time and hash rate are mandatory. Block categories that the
// details clause does not mention are zero, and a missing difficulty is zero.
package minerlog

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrParseFailure is returned when a line does not match the progress grammar.
var ErrParseFailure = errors.New("miner log line did not match progress grammar")

// ParseError carries the offending line so callers can log it.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing miner log line: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrParseFailure
}

// ansiEscape matches a single escape sequence: ESC, an intermediate byte in
// @-_ ('[' for CSI), parameter bytes, intermediate bytes and a final byte.
var ansiEscape = regexp.MustCompile(`\x1B[@-_][0-?]*[ -/]*[@-~]`)

var progressLine = regexp.MustCompile(
	`\[(?:(?P<hours>\d+):)?(?P<minutes>\d+):(?P<seconds>\d+)(?:\.\d+)?,` +
		`.*?(?:Details=(?:(?:super:(?P<super>\d+)\s+)?normal:(?P<normal>\d+)|xuni:(?P<xuni>\d+)).*?)?` +
		`HashRate:\s?(?P<hashrate>\d+(?:\.\d+)?)` +
		`(?:.*?Difficulty=(?P<difficulty>\d+))?`)

// Sample is one fully parsed progress line.
type Sample struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`

	SuperBlocks  int `json:"superBlocks"`
	NormalBlocks int `json:"normalBlocks"`
	XuniBlocks   int `json:"xuniBlocks"`

	HashRate   float64 `json:"hashRate"`
	Difficulty int64   `json:"difficulty"`
}

// RuntimeHours is the elapsed time in fractional hours.
func (s Sample) RuntimeHours() float64 {
	return float64(s.Hours) + float64(s.Minutes)/60 + float64(s.Seconds)/3600
}

// StripANSI removes terminal color and control escape sequences. It is
// idempotent.
func StripANSI(line string) string {
	return ansiEscape.ReplaceAllString(line, "")
}

// newestProgress matches the last progress segment of line. The miner
// redraws its progress bar with carriage returns, so one log line holds
// every update since the last newline, oldest first.
func newestProgress(line string) []string {
	segments := strings.Split(line, "\r")
	for i := len(segments) - 1; i >= 0; i-- {
		if strings.TrimSpace(segments[i]) == "" {
			continue
		}
		if m := progressLine.FindStringSubmatch(segments[i]); m != nil {
			return m
		}
	}
	return nil
}

// Parse extracts a Sample from a raw miner log line. On failure the returned
// error wraps ErrParseFailure and is a *ParseError.
func Parse(raw string) (Sample, error) {
	m := newestProgress(StripANSI(raw))
	if m == nil {
		return Sample{}, &ParseError{Line: raw, Reason: "no elapsed time and hash rate found"}
	}

	var (
		s   Sample
		err error
	)
	group := func(name string) string {
		return m[progressLine.SubexpIndex(name)]
	}
	atoi := func(name string) int {
		v := group(name)
		if v == "" || err != nil {
			return 0
		}
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			err = fmt.Errorf("%s %q out of range", name, v)
		}
		return n
	}

	s.Hours = atoi("hours")
	s.Minutes = atoi("minutes")
	s.Seconds = atoi("seconds")
	s.SuperBlocks = atoi("super")
	s.NormalBlocks = atoi("normal")
	s.XuniBlocks = atoi("xuni")
	if err != nil {
		return Sample{}, &ParseError{Line: raw, Reason: err.Error()}
	}

	s.HashRate, err = strconv.ParseFloat(group("hashrate"), 64)
	if err != nil {
		return Sample{}, &ParseError{Line: raw, Reason: fmt.Sprintf("hash rate %q invalid", group("hashrate"))}
	}

	if d := group("difficulty"); d != "" {
		s.Difficulty, err = strconv.ParseInt(d, 10, 64)
		if err != nil {
			return Sample{}, &ParseError{Line: raw, Reason: fmt.Sprintf("difficulty %q out of range", d)}
		}
	}

	return s, nil
}
