package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chaindb/internal/database"
	"github.com/roach88/chaindb/internal/ir"
)

var (
	admin   = ir.MustAddress("0x0000000000000000000000000000000000000001")
	alice   = ir.MustAddress("0x00000000000000000000000000000000000000a1")
	bob     = ir.MustAddress("0x00000000000000000000000000000000000000b2")
	factory = ir.MustAddress("0x00000000000000000000000000000000000000fa")
)

func newLedger(t *testing.T) (*Ledger, *database.Recorder) {
	t.Helper()
	rec := &database.Recorder{}
	return NewLedger(admin, rec), rec
}

func TestMint(t *testing.T) {
	l, rec := newLedger(t)

	require.NoError(t, l.Mint(admin, alice, 100))
	assert.Equal(t, uint64(100), l.BalanceOf(alice))
	assert.Equal(t, uint64(100), l.TotalSupply())
	assert.Equal(t, []ir.Event{{
		Kind: ir.EventTransfer,
		Fields: ir.IRObject{
			"from":  ir.IRString(ir.Address{}.Hex()),
			"to":    ir.IRString(alice.Hex()),
			"value": ir.IRInt(100),
		},
	}}, rec.Events())

	err := l.Mint(alice, alice, 1)
	assert.True(t, ir.IsCode(err, ir.ErrUnauthorized))
	assert.Equal(t, uint64(100), l.BalanceOf(alice))
}

func TestTransfer(t *testing.T) {
	l, rec := newLedger(t)
	require.NoError(t, l.Mint(admin, alice, 100))
	rec.Reset()

	require.NoError(t, l.Transfer(alice, bob, 40))
	assert.Equal(t, uint64(60), l.BalanceOf(alice))
	assert.Equal(t, uint64(40), l.BalanceOf(bob))
	assert.Len(t, rec.Events(), 1)
	rec.Reset()

	err := l.Transfer(alice, bob, 61)
	require.Error(t, err)
	assert.True(t, ir.IsCode(err, ir.ErrBalance))
	assert.Equal(t, uint64(60), l.BalanceOf(alice))
	assert.Empty(t, rec.Events())
}

func TestTransferFromChecksBalanceBeforeAllowance(t *testing.T) {
	l, rec := newLedger(t)

	err := l.TransferFrom(factory, alice, bob, 10)
	require.Error(t, err)
	assert.True(t, ir.IsCode(err, ir.ErrBalance), "no funds and no allowance reports balance")

	require.NoError(t, l.Mint(admin, alice, 10))
	err = l.TransferFrom(factory, alice, bob, 10)
	require.Error(t, err)
	assert.True(t, ir.IsCode(err, ir.ErrAllowance))

	require.NoError(t, l.Approve(alice, factory, 6))
	err = l.TransferFrom(factory, alice, bob, 10)
	assert.True(t, ir.IsCode(err, ir.ErrAllowance), "partial allowance")
	rec.Reset()

	require.NoError(t, l.TransferFrom(factory, alice, bob, 6))
	assert.Equal(t, uint64(4), l.BalanceOf(alice))
	assert.Equal(t, uint64(6), l.BalanceOf(bob))
	assert.Equal(t, uint64(0), l.Allowance(alice, factory))
	assert.Len(t, rec.Events(), 1)
}

func TestApprove(t *testing.T) {
	l, rec := newLedger(t)

	require.NoError(t, l.Approve(alice, factory, 25))
	assert.Equal(t, uint64(25), l.Allowance(alice, factory))
	assert.Equal(t, uint64(0), l.Allowance(factory, alice))
	assert.Equal(t, []ir.Event{{
		Kind: ir.EventApproval,
		Fields: ir.IRObject{
			"owner":   ir.IRString(alice.Hex()),
			"spender": ir.IRString(factory.Hex()),
			"value":   ir.IRInt(25),
		},
	}}, rec.Events())

	require.NoError(t, l.Approve(alice, factory, 3))
	assert.Equal(t, uint64(3), l.Allowance(alice, factory), "approve replaces")

	assert.True(t, ir.IsCode(l.Approve(alice, ir.Address{}, 1), ir.ErrInvalidArgument))
}

func TestZeroAmountTransfers(t *testing.T) {
	l, _ := newLedger(t)
	require.NoError(t, l.Transfer(alice, bob, 0))
	require.NoError(t, l.TransferFrom(factory, alice, bob, 0))
}

func TestTransferToZeroAddress(t *testing.T) {
	l, _ := newLedger(t)
	require.NoError(t, l.Mint(admin, alice, 5))
	assert.True(t, ir.IsCode(l.Transfer(alice, ir.Address{}, 1), ir.ErrInvalidArgument))
}
