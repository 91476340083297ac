package testutil

import (
	"fmt"
	"maps"
	"strings"

	"github.com/roach88/chaindb/internal/database"
	"github.com/roach88/chaindb/internal/engine"
	"github.com/roach88/chaindb/internal/ir"
)

// Well-known accounts. Admin, Factory and Treasury match the defaults of
// the config package, so a journal written by the CLI and one written by a
// test agree on who is who.
var (
	Zero     = ir.Address{}
	Admin    = ir.MustAddress("0x00000000000000000000000000000000000000ad")
	Factory  = ir.MustAddress("0x00000000000000000000000000000000000000fa")
	Treasury = ir.MustAddress("0x000000000000000000000000000000000000007e")
	Alice    = ir.MustAddress("0x00000000000000000000000000000000000000a1")
	Bob      = ir.MustAddress("0x00000000000000000000000000000000000000b0")
	Carol    = ir.MustAddress("0x00000000000000000000000000000000000000c0")
)

var accounts = map[string]ir.Address{
	"zero":     Zero,
	"admin":    Admin,
	"factory":  Factory,
	"treasury": Treasury,
	"alice":    Alice,
	"bob":      Bob,
	"carol":    Carol,
}

// Accounts returns a fresh alias -> address map of the well-known accounts.
func Accounts() map[string]ir.Address {
	return maps.Clone(accounts)
}

// ResolveAddress returns the address an alias names in book, or parses s
// as a hex address. A leading "@" on the alias is optional.
func ResolveAddress(book map[string]ir.Address, s string) (ir.Address, error) {
	if addr, ok := book[strings.TrimPrefix(s, "@")]; ok {
		return addr, nil
	}
	addr, err := ir.ParseAddress(s)
	if err != nil {
		return ir.Address{}, fmt.Errorf("%q is neither a known account nor an address: %w", s, err)
	}
	return addr, nil
}

// EngineConfig returns the configuration tests run the engine with: the
// well-known accounts, a price of 100, open databases and the default gas
// schedule.
func EngineConfig() engine.Config {
	return engine.Config{
		Admin:          Admin,
		FactoryAddress: Factory,
		Treasury:       Treasury,
		Price:          100,
		Policy:         database.PolicyOpen,
		Gas:            engine.DefaultGasSchedule(),
	}
}
