// Package config loads and validates fuzz.toml, the only configuration
// surface the fuzzer core accepts.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// PassStyle selects how input bytes reach the target process.
type PassStyle string

const (
	PassStdin PassStyle = "stdin"
	PassFile  PassStyle = "file"
)

// Binary describes the target executable and how it is invoked.
type Binary struct {
	Path             string    `toml:"path"`
	PassStyle        PassStyle `toml:"pass_style"`
	InterestingCodes []int32   `toml:"interesting_codes"`
}

// Input is a tagged union: exactly one of Grammar or Seeds must be set.
type Input struct {
	Grammar string `toml:"grammar"`
	Seeds   string `toml:"seeds"`
}

// Output controls where crash artifacts and the event log are written.
type Output struct {
	Directory string `toml:"directory"`
	Debug     bool   `toml:"debug"`
}

// Config is the parsed, defaulted, validated contents of fuzz.toml.
type Config struct {
	Binary Binary `toml:"binary"`
	Input  Input  `toml:"input"`
	Output Output `toml:"output"`
}

// Code identifies the category of a config error, for exit-code mapping.
type Code string

const (
	CodeUnreadable   Code = "UNREADABLE"
	CodeUnparseable  Code = "UNPARSEABLE"
	CodeMissingField Code = "MISSING_FIELD"
	CodeInvalidField Code = "INVALID_FIELD"
)

// Error is the config package's typed error: a stable Code plus a human
// message and optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config: %s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("config: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// ExitCode implements the exitCoder interface cmd/covfuzz dispatches on.
func (e *Error) ExitCode() int { return 78 } // EX_CONFIG, BSD sysexits.h

func newErr(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Load reads, parses, defaults, and validates fuzz.toml at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newErr(CodeUnreadable, err, "cannot read %s", path)
	}

	cfg := Config{
		Binary: Binary{PassStyle: PassStdin},
		Output: Output{Directory: "output"},
	}

	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, newErr(CodeUnparseable, err, "cannot parse %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, newErr(CodeInvalidField, nil, "unknown field %q in %s", undecoded[0].String(), path)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	var problems []string

	if c.Binary.Path == "" {
		problems = append(problems, "binary.path is required")
	}
	switch c.Binary.PassStyle {
	case PassStdin, PassFile:
	default:
		problems = append(problems, fmt.Sprintf("binary.pass_style must be %q or %q, got %q", PassStdin, PassFile, c.Binary.PassStyle))
	}

	hasGrammar := c.Input.Grammar != ""
	hasSeeds := c.Input.Seeds != ""
	switch {
	case hasGrammar == hasSeeds:
		problems = append(problems, "input must set exactly one of grammar or seeds")
	}

	if c.Output.Directory == "" {
		problems = append(problems, "output.directory must not be empty")
	}

	if len(problems) > 0 {
		msg := problems[0]
		for _, p := range problems[1:] {
			msg += "; " + p
		}
		return newErr(CodeInvalidField, nil, "%s", msg)
	}

	return nil
}

// UsesGrammar reports whether this config bootstraps from a grammar file
// rather than an on-disk seed directory.
func (c *Config) UsesGrammar() bool { return c.Input.Grammar != "" }
