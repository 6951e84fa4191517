package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cedarsql/txncoord/hlc"
)

func Test_generate_transaction_id_unique_and_nonzero(t *testing.T) {
	a := GenerateTransactionID()
	b := GenerateTransactionID()
	assert.False(t, a.IsZero())
	assert.NotEqual(t, a, b)
}

func Test_isolation_level_string(t *testing.T) {
	assert.Equal(t, "SNAPSHOT_ISOLATION", SnapshotIsolation.String())
	assert.Equal(t, "SERIALIZABLE_ISOLATION", SerializableIsolation.String())
	assert.Equal(t, "READ_COMMITTED_ISOLATION", ReadCommittedIsolation.String())
}

func Test_transaction_status_string(t *testing.T) {
	assert.Equal(t, "CREATED", StatusCreated.String())
	assert.Equal(t, "EXPIRED", StatusExpired.String())
}

func Test_new_transaction_metadata(t *testing.T) {
	md := NewTransactionMetadata(SnapshotIsolation, hlc.Timestamp{})
	assert.False(t, md.TransactionID.IsZero())
	assert.Equal(t, SnapshotIsolation, md.Isolation)
}
