package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read from the working directory when --config is not given.
const DefaultConfigFile = ".patchgen.yaml"

// Mode selects what a run does with its input.
type Mode int

const (
	ModeEncode Mode = iota
	ModeDecode
	ModeValidate
	ModeFix
	ModePreview
)

func (m Mode) String() string {
	switch m {
	case ModeDecode:
		return "decode"
	case ModeValidate:
		return "validate"
	case ModeFix:
		return "fix"
	case ModePreview:
		return "preview"
	default:
		return "encode"
	}
}

// Config holds all the command-line flag values.
type Config struct {
	Decode   bool
	Validate bool
	Fix      bool
	Preview  bool
	Check    bool

	Input      string
	Output     string
	Dir        string
	ConfigPath string

	ContextLines int
	Timeout      time.Duration
	Unescape     bool
	NoAnimation  bool
}

// Mode returns the selected mode.
func (c *Config) Mode() Mode {
	switch {
	case c.Decode:
		return ModeDecode
	case c.Validate:
		return ModeValidate
	case c.Fix:
		return ModeFix
	case c.Preview:
		return ModePreview
	default:
		return ModeEncode
	}
}

// fileConfig mirrors the keys allowed in the config file. Pointers tell unset from zero.
type fileConfig struct {
	ContextLines *int   `yaml:"context_lines"`
	Timeout      string `yaml:"timeout"`
	Unescape     *bool  `yaml:"unescape"`
	LookupDir    string `yaml:"lookup_dir"`
	NoAnimation  *bool  `yaml:"no_animation"`
}

// ParseFlags parses the process arguments.
func ParseFlags() (*Config, error) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs defines and parses command-line flags using pflag, then fills unset values from
// the config file.
func ParseArgs(args []string) (*Config, error) {
	cfg := &Config{}
	flags := pflag.NewFlagSet("patchgen", pflag.ContinueOnError)

	flags.BoolVarP(&cfg.Decode, "decode", "d", false, "Parse a unified diff into an operations document.")
	flags.BoolVarP(&cfg.Validate, "validate", "v", false, "Dry-run the diff against the working tree.")
	flags.BoolVarP(&cfg.Fix, "fix", "f", false, "Re-encode a diff against the real files to correct hunk headers and anchors.")
	flags.BoolVarP(&cfg.Preview, "preview", "p", false, "Print the files as they would be after applying the diff.")
	flags.BoolVar(&cfg.Check, "check", false, "Validate the produced diff after encoding.")

	flags.StringVarP(&cfg.Input, "input", "i", "", "Read input from this file ('-' for stdin) instead of stdin or the clipboard.")
	flags.StringVarP(&cfg.Output, "output", "o", "", "Write the result to this file instead of stdout.")
	flags.StringVarP(&cfg.Dir, "dir", "C", ".", "Working tree that paths are relative to.")
	flags.StringVar(&cfg.ConfigPath, "config", "", "Config file (default: "+DefaultConfigFile+" in the working tree).")

	flags.IntVarP(&cfg.ContextLines, "context", "U", 3, "Context lines around each edit.")
	flags.DurationVar(&cfg.Timeout, "timeout", 60*time.Second, "Validation timeout.")
	flags.BoolVar(&cfg.Unescape, "unescape", false, "Unescape literal \\n, \\t and quotes in added lines when decoding.")
	flags.BoolVar(&cfg.NoAnimation, "no-animation", false, "Disable loading spinner.")

	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: patchgen [flags]")
		fmt.Fprintln(os.Stderr, "\nTurn line edits into a unified diff, or check and repair an existing diff.")
		fmt.Fprintln(os.Stderr, "Input comes from --input, stdin (pipe) or the clipboard.")
		fmt.Fprintln(os.Stderr, "\nExample: pbpaste | patchgen --check")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		fmt.Fprint(os.Stderr, flags.FlagUsages())
	}
	// Parse errors are returned to the caller, which reports them.
	flags.SetOutput(io.Discard)

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	modes := 0
	for _, on := range []bool{cfg.Decode, cfg.Validate, cfg.Fix, cfg.Preview} {
		if on {
			modes++
		}
	}
	if modes > 1 {
		return nil, errors.New("error: --decode, --validate, --fix and --preview are mutually exclusive")
	}
	if cfg.Check && (cfg.Decode || cfg.Validate || cfg.Preview) {
		return nil, errors.New("error: --check only applies when a diff is produced (encode or --fix)")
	}

	if err := cfg.loadFile(flags); err != nil {
		return nil, err
	}
	if cfg.ContextLines < 1 {
		return nil, fmt.Errorf("error: --context must be at least 1, got %d", cfg.ContextLines)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("error: --timeout must be positive, got %s", cfg.Timeout)
	}
	return cfg, nil
}

// loadFile applies values from the config file to every setting not given on the command line.
func (c *Config) loadFile(flags *pflag.FlagSet) error {
	path := c.ConfigPath
	explicit := path != ""
	if !explicit {
		path = filepath.Join(c.Dir, DefaultConfigFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.ContextLines != nil && !flags.Changed("context") {
		c.ContextLines = *fc.ContextLines
	}
	if fc.Timeout != "" && !flags.Changed("timeout") {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return fmt.Errorf("config file %s: invalid timeout: %w", path, err)
		}
		c.Timeout = d
	}
	if fc.Unescape != nil && !flags.Changed("unescape") {
		c.Unescape = *fc.Unescape
	}
	if fc.NoAnimation != nil && !flags.Changed("no-animation") {
		c.NoAnimation = *fc.NoAnimation
	}
	if fc.LookupDir != "" && !flags.Changed("dir") {
		dir := fc.LookupDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(filepath.Dir(path), dir)
		}
		c.Dir = dir
	}
	return nil
}
