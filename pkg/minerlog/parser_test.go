package minerlog_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koptimizer/rigwatch/pkg/minerlog"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		line string
		want minerlog.Sample
	}{
		{
			name: "normal blocks only",
			line: "Mining: 15 Blocks [1:30:00, Details=normal:15 HashRate:50.00 Difficulty=1000]",
			want: minerlog.Sample{Hours: 1, Minutes: 30, NormalBlocks: 15, HashRate: 50, Difficulty: 1000},
		},
		{
			name: "super and normal",
			line: "Mining: 3 Blocks [2:05:09, 0.01 Blocks/s, Details=super:2 normal:31, HashRate:1234.56, Difficulty=72000]",
			want: minerlog.Sample{Hours: 2, Minutes: 5, Seconds: 9, SuperBlocks: 2, NormalBlocks: 31, HashRate: 1234.56, Difficulty: 72000},
		},
		{
			name: "xuni only",
			line: "Mining: [45:10, Details=xuni:4, HashRate:88.10, Difficulty=500]",
			want: minerlog.Sample{Minutes: 45, Seconds: 10, XuniBlocks: 4, HashRate: 88.1, Difficulty: 500},
		},
		{
			name: "hour omitted and fractional seconds",
			line: "Mining: [12:07.55, HashRate:10.5 Difficulty=42]",
			want: minerlog.Sample{Minutes: 12, Seconds: 7, HashRate: 10.5, Difficulty: 42},
		},
		{
			name: "no details clause yields zero blocks",
			line: "Mining: 0 Blocks [0:00:12, 0.00 Blocks/s, HashRate:77.70, Difficulty=1000]",
			want: minerlog.Sample{Seconds: 12, HashRate: 77.7, Difficulty: 1000},
		},
		{
			name: "missing difficulty is zero",
			line: "Mining: [1:00:00, Details=normal:2 HashRate:9.00]",
			want: minerlog.Sample{Hours: 1, NormalBlocks: 2, HashRate: 9},
		},
		{
			name: "integer hash rate",
			line: "Mining: [0:10:00, HashRate:300 Difficulty=7]",
			want: minerlog.Sample{Minutes: 10, HashRate: 300, Difficulty: 7},
		},
		{
			name: "carriage return redraws use the newest segment",
			line: "Mining: 1 Blocks [00:00:10, 0.10 Blocks/s, Details=normal:1, HashRate:10.00, Difficulty=1000]" +
				"\rMining: 5 Blocks [00:05:00, 0.02 Blocks/s, Details=normal:5, HashRate:50.00, Difficulty=1000]",
			want: minerlog.Sample{Minutes: 5, NormalBlocks: 5, HashRate: 50, Difficulty: 1000},
		},
		{
			name: "trailing partial redraw falls back to last complete segment",
			line: "Mining: [0:01:00, Details=normal:1, HashRate:20.00, Difficulty=900]" +
				"\r\x1b[32mMining: [0:02:00, Details=normal:2, HashRate:21.00, Difficulty=900]\x1b[0m" +
				"\rMining: \r",
			want: minerlog.Sample{Minutes: 2, NormalBlocks: 2, HashRate: 21, Difficulty: 900},
		},
		{
			name: "colored line",
			line: "\x1b[32mMining:\x1b[0m [1:30:00, Details=normal:15 \x1b[1;33mHashRate:50.00\x1b[0m Difficulty=1000]",
			want: minerlog.Sample{Hours: 1, Minutes: 30, NormalBlocks: 15, HashRate: 50, Difficulty: 1000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := minerlog.Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "empty", line: ""},
		{name: "missing hash rate", line: "Mining: [1:30:00, Details=normal:15 Difficulty=1000]"},
		{name: "missing elapsed time", line: "Mining: Details=normal:15 HashRate:50.00 Difficulty=1000"},
		{name: "unrelated output", line: "Connection to 10.0.0.1 closed."},
		{name: "hours overflow", line: "[99999999999999999999:00:00, HashRate:1.0 Difficulty=1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := minerlog.Parse(tt.line)
			require.Error(t, err)
			assert.True(t, errors.Is(err, minerlog.ErrParseFailure))

			var pe *minerlog.ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.line, pe.Line)
		})
	}
}

func TestParse_Idempotent(t *testing.T) {
	raw := "\x1b[2K\x1b[1GMining: [3:00:01, Details=super:1 normal:9 HashRate:61.25 Difficulty=3000]"

	first, err := minerlog.Parse(raw)
	require.NoError(t, err)

	again, err := minerlog.Parse(minerlog.StripANSI(raw))
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestStripANSI(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "HashRate:1.00", want: "HashRate:1.00"},
		{name: "color", in: "\x1b[31mred\x1b[0m", want: "red"},
		{name: "erase line and cursor", in: "\x1b[2K\x1b[1Gdone", want: "done"},
		{name: "private mode", in: "\x1b[?25lhidden\x1b[?25h", want: "hidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := minerlog.StripANSI(tt.in)
			assert.Equal(t, tt.want, once)
			assert.Equal(t, once, minerlog.StripANSI(once))
		})
	}
}

func TestSample_RuntimeHours(t *testing.T) {
	s := minerlog.Sample{Hours: 1, Minutes: 30, Seconds: 36}
	assert.InDelta(t, 1.51, s.RuntimeHours(), 1e-9)
	assert.Zero(t, minerlog.Sample{}.RuntimeHours())
}
