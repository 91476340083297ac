// Package config loads chaindb configuration from CUE files.
//
// A config file is plain CUE, unified with the embedded #Config schema:
//
//	admin:  "0x00000000000000000000000000000000000000ad"
//	price:  250
//	policy: "owner"
//	gas: limit: 50000
//
// Fields left out take the schema's defaults, and unknown fields are
// rejected because #Config is closed.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/chaindb/internal/database"
	"github.com/roach88/chaindb/internal/engine"
	"github.com/roach88/chaindb/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// Config is a validated configuration.
type Config struct {
	Admin    ir.Address
	Factory  ir.Address
	Treasury ir.Address
	Price    uint64
	Policy   database.Policy
	Gas      engine.GasSchedule

	// Source is the file the configuration came from, empty for defaults.
	Source string
}

// fileConfig mirrors #Config for decoding.
type fileConfig struct {
	Admin    string             `json:"admin"`
	Factory  string             `json:"factory"`
	Treasury string             `json:"treasury"`
	Price    uint64             `json:"price"`
	Policy   string             `json:"policy"`
	Gas      engine.GasSchedule `json:"gas"`
}

// Error is a configuration error with its CUE source position when known.
type Error struct {
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Default returns the configuration of an empty config file.
func Default() *Config {
	cfg, err := parse(nil, "")
	if err != nil {
		// The embedded schema's defaults always validate.
		panic(err)
	}
	return cfg
}

// Load reads and validates the config file at path. An empty path yields
// the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(data, path)
}

// Parse validates CUE source as a config file. filename is only used in
// error positions.
func Parse(data []byte, filename string) (*Config, error) {
	return parse(data, filename)
}

func parse(data []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("config schema: %w", err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config"))

	if data != nil {
		file := ctx.CompileBytes(data, cue.Filename(filename))
		if err := file.Err(); err != nil {
			return nil, cueError(err)
		}
		v = v.Unify(file)
	}
	if err := v.Validate(); err != nil {
		return nil, cueError(err)
	}

	var raw fileConfig
	if err := v.Decode(&raw); err != nil {
		return nil, cueError(err)
	}

	cfg := &Config{
		Price:  raw.Price,
		Gas:    raw.Gas,
		Source: filename,
	}
	var err error
	if cfg.Admin, err = ir.ParseAddress(raw.Admin); err != nil {
		return nil, &Error{Message: fmt.Sprintf("admin: %v", err)}
	}
	if cfg.Factory, err = ir.ParseAddress(raw.Factory); err != nil {
		return nil, &Error{Message: fmt.Sprintf("factory: %v", err)}
	}
	if cfg.Treasury, err = ir.ParseAddress(raw.Treasury); err != nil {
		return nil, &Error{Message: fmt.Sprintf("treasury: %v", err)}
	}
	if cfg.Policy, err = database.ParsePolicy(raw.Policy); err != nil {
		return nil, &Error{Message: fmt.Sprintf("policy: %v", err)}
	}
	return cfg, nil
}

// Engine returns the engine configuration.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		Admin:          c.Admin,
		FactoryAddress: c.Factory,
		Treasury:       c.Treasury,
		Price:          c.Price,
		Policy:         c.Policy,
		Gas:            c.Gas,
	}
}

// cueError keeps the first CUE error and its position.
func cueError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error()}
	}
	first := errs[0]
	e := &Error{Message: first.Error()}
	if pos := cueerrors.Positions(first); len(pos) > 0 {
		e.Pos = pos[0]
	}
	return e
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
