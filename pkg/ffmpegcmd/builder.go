// Package ffmpegcmd builds canonical ffmpeg invocations for HLS packaging.
//
// This layer is pure command construction: no execution, no I/O. It returns
// the argument vector (argv[0] is the binary) and a shell-quoted rendering of
// the same intent for logs.
//
// Emission policy is deterministic:
//
//   - Numeric flags are always emitted.
//   - String flags are emitted only when non-empty.
//   - Flag order is fixed by Build; equal configs produce equal argv.
//
// Usage:
//
//	spec := ffmpegcmd.Build(cfg)
//	spec.Argv         // []string{"ffmpeg", "-hide_banner", ...}
//	spec.PlaylistPath // "<output_dir>/index.m3u8"
package ffmpegcmd

import (
	"strconv"
	"strings"
)

// Builder constructs argv for ffmpeg. It is NOT concurrency-safe; treat it as
// a short-lived, single-use value.
type Builder struct {
	args []string // argv including binary name at index 0
}

// NewBuilder returns a Builder pre-seeded with the binary name.
func NewBuilder(binary string) *Builder {
	return &Builder{args: []string{binary}}
}

// WithFlag appends a bare flag (e.g. -hide_banner).
func (b *Builder) WithFlag(flag string) *Builder {
	b.args = append(b.args, flag)
	return b
}

// WithIntFlag appends a flag with a base-10 int value (always emitted).
func (b *Builder) WithIntFlag(flag string, val int) *Builder {
	b.args = append(b.args, flag, strconv.Itoa(val))
	return b
}

// WithStringFlag appends a flag with a string value if non-empty.
func (b *Builder) WithStringFlag(flag, val string) *Builder {
	if val != "" {
		b.args = append(b.args, flag, val)
	}
	return b
}

// WithJoinedFlag appends flag with vals joined by '+', ffmpeg's flag-set
// syntax (e.g. -hls_flags delete_segments+temp_file). Nothing is emitted for
// an empty set.
func (b *Builder) WithJoinedFlag(flag string, vals ...string) *Builder {
	if len(vals) > 0 {
		b.args = append(b.args, flag, strings.Join(vals, "+"))
	}
	return b
}

// WithString appends a positional argument if non-empty.
func (b *Builder) WithString(arg string) *Builder {
	if arg != "" {
		b.args = append(b.args, arg)
	}
	return b
}

// BuildArgv returns a defensive copy of the argument vector.
func (b *Builder) BuildArgv() []string {
	out := make([]string, len(b.args))
	copy(out, b.args)
	return out
}

// BuildString returns a single shell-quoted command string.
func (b *Builder) BuildString() string {
	return quoteArgv(b.args)
}

func quoteArgv(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shQuote(a)
	}
	return strings.Join(quoted, " ")
}

// shQuote returns a POSIX-safe single-quoted token. Inner single quotes are
// written as '\''.
func shQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
