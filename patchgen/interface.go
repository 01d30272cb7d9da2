package patchgen

import (
	"context"
	"time"

	"github.com/sokinpui/patchgen/internal/decoder"
	"github.com/sokinpui/patchgen/internal/encoder"
	"github.com/sokinpui/patchgen/internal/patcher"
	"github.com/sokinpui/patchgen/internal/validator"
	"github.com/sokinpui/patchgen/model"
)

// Config for using patchgen as a library.
type Config struct {
	// Context lines around each edit. Zero means 3.
	ContextLines int
	// Unescape literal \n, \t and quote escapes in added lines when decoding.
	Unescape bool
	// Validation timeout. Zero means one minute.
	Timeout time.Duration
}

// Encode renders ops as a unified diff against originals.
func Encode(ops []model.Operation, originals model.FileSnapshot, config Config) (string, error) {
	return encoder.New(encoder.Options{ContextLines: config.ContextLines}).Encode(ops, originals)
}

// Decode parses a unified diff into operations whose line numbers refer to the original files.
func Decode(diff string, config Config) []model.Operation {
	ops, _ := decoder.New(decoder.Options{Unescape: config.Unescape}).Decode(diff)
	return ops
}

// Validate reports whether diff applies cleanly to the files in dir. The second result holds
// the version-control tool's diagnostics when it does not.
func Validate(ctx context.Context, diff, dir string, config Config) (bool, string, error) {
	return validator.New(validator.Options{Timeout: config.Timeout}).Validate(ctx, diff, dir)
}

// Apply applies diff to originals in memory and returns the resulting files.
func Apply(diff string, originals model.FileSnapshot) (model.FileSnapshot, error) {
	return patcher.ApplyAll(diff, originals)
}
