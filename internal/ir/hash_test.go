package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCaller = MustAddress("0x00000000000000000000000000000000000000a1")

func TestInvocationIDDeterminism(t *testing.T) {
	args := IRObject{"table": IRInt(0), "values": IRArray{IRInt(1)}}

	id1, err := InvocationID("db-1", "Database.insert", testCaller, args, 1)
	require.NoError(t, err)
	id2, err := InvocationID("db-1", "Database.insert", testCaller, args, 1)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "InvocationID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestInvocationIDChangesWithInput(t *testing.T) {
	args := IRObject{"table": IRInt(0)}
	other := MustAddress("0x00000000000000000000000000000000000000b2")

	id1 := MustInvocationID("db-1", "Database.dropTable", testCaller, args, 1)
	ids := []string{
		MustInvocationID("db-2", "Database.dropTable", testCaller, args, 1),
		MustInvocationID("db-1", "Database.dropTable", testCaller, args, 2),
		MustInvocationID("db-1", "Database.insert", testCaller, args, 1),
		MustInvocationID("db-1", "Database.dropTable", other, args, 1),
	}
	for _, id := range ids {
		assert.NotEqual(t, id1, id)
	}
}

func TestCompletionIDCoversEvents(t *testing.T) {
	withEvent, err := CompletionID("inv", OutputSuccess, IRObject{}, []Event{{Kind: EventRowCreated, Index: 0}}, 2)
	require.NoError(t, err)
	without, err := CompletionID("inv", OutputSuccess, IRObject{}, nil, 2)
	require.NoError(t, err)

	assert.NotEqual(t, withEvent, without)
}

func TestDatabaseID(t *testing.T) {
	name := NameWord("test_db")

	assert.Equal(t, DatabaseID(testCaller, name, 3), DatabaseID(testCaller, name, 3))
	assert.NotEqual(t, DatabaseID(testCaller, name, 3), DatabaseID(testCaller, name, 4))
	assert.Len(t, DatabaseID(testCaller, name, 3), 32)
}

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte(`{"a":1}`)
	assert.NotEqual(t, hashWithDomain(DomainInvocation, data), hashWithDomain(DomainCompletion, data))
}
