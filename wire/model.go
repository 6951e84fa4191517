// Package wire holds the data model and the opaque, PB-shaped wire
// descriptors the coordinator exchanges with the status tablet and
// with child transactions. Nothing in this package does I/O; it only
// shapes the bytes-on-the-wire structs the rest of the module builds
// and reads.
package wire

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/cedarsql/txncoord/hlc"
)

// TransactionID is an opaque 128-bit identifier, generated uniformly
// at random. Globally unique with overwhelming probability.
type TransactionID [16]byte

func (id TransactionID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether id is the unset zero value.
func (id TransactionID) IsZero() bool {
	return id == TransactionID{}
}

// GenerateTransactionID samples a fresh, globally unique transaction
// id.
func GenerateTransactionID() TransactionID {
	return TransactionID(uuid.New())
}

// IsolationLevel distinguishes snapshot isolation, which captures a
// read time at construction, from every other level, which reads at
// the coordinator's current clock time.
type IsolationLevel int

const (
	// SnapshotIsolation captures a read time once, at construction.
	SnapshotIsolation IsolationLevel = iota
	// SerializableIsolation is accepted but treated identically to
	// every other non-snapshot level: read at current
	// clock time. Kept as a distinct named constant so callers can
	// request it without lying about what they asked for.
	SerializableIsolation
	// ReadCommittedIsolation reads at current clock time.
	ReadCommittedIsolation
)

func (l IsolationLevel) String() string {
	switch l {
	case SnapshotIsolation:
		return "SNAPSHOT_ISOLATION"
	case SerializableIsolation:
		return "SERIALIZABLE_ISOLATION"
	case ReadCommittedIsolation:
		return "READ_COMMITTED_ISOLATION"
	default:
		return "UNKNOWN_ISOLATION"
	}
}

// TransactionMetadata is the full identity and configuration of a
// transaction, sent to a tablet server the first time it learns about
// the transaction.
type TransactionMetadata struct {
	TransactionID  TransactionID
	Isolation      IsolationLevel
	StatusTabletID string
	Priority       uint64
	StartTime      hlc.Timestamp
}

// NewTransactionMetadata builds fresh metadata for a newly created
// (non-child) transaction: a random id, a uniform random priority, and
// the given read time as its start time.
func NewTransactionMetadata(isolation IsolationLevel, startTime hlc.Timestamp) TransactionMetadata {
	return TransactionMetadata{
		TransactionID: GenerateTransactionID(),
		Isolation:     isolation,
		Priority:      rand.Uint64(),
		StartTime:     startTime,
	}
}

// TransactionStatus is the status value carried on UpdateTransaction /
// the status the status tablet reports the transaction to be in.
type TransactionStatus int

const (
	StatusCreated TransactionStatus = iota
	StatusPending
	StatusCommitted
	StatusAborted
	StatusExpired
)

func (s TransactionStatus) String() string {
	switch s {
	case StatusCreated:
		return "CREATED"
	case StatusPending:
		return "PENDING"
	case StatusCommitted:
		return "COMMITTED"
	case StatusAborted:
		return "ABORTED"
	case StatusExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// InvolvedTablet is the wire shape of a single tablet's contribution
// to a child transaction result.
type InvolvedTablet struct {
	TabletID      string
	HasParameters bool
}

// UpdateTransactionRequest is sent for both heartbeats and commit.
type UpdateTransactionRequest struct {
	StatusTabletID       string
	PropagatedHybridTime hlc.Timestamp
	TransactionID        TransactionID
	Status               TransactionStatus
	InvolvedTabletIDs    []string
}

// UpdateTransactionResponse carries the status tablet's reply.
type UpdateTransactionResponse struct {
	PropagatedHybridTime hlc.Timestamp
}

// AbortTransactionRequest is sent to finalize an aborted transaction.
type AbortTransactionRequest struct {
	StatusTabletID       string
	PropagatedHybridTime hlc.Timestamp
	TransactionID        TransactionID
}

// AbortTransactionResponse carries the status tablet's reply. The
// propagated time is only valid if HasPropagatedHybridTime is set; the
// clock is only folded forward when the server actually sent one.
type AbortTransactionResponse struct {
	HasPropagatedHybridTime bool
	PropagatedHybridTime    hlc.Timestamp
}

// ChildTransactionData is what PrepareChild exports for a peer process
// to construct a child transaction from.
type ChildTransactionData struct {
	Metadata    TransactionMetadata
	ReadTime    hlc.Timestamp
	LocalLimits map[string]hlc.Timestamp
}

// ChildTransactionResult is what FinishChild returns and
// ApplyChildResult folds back into the parent.
type ChildTransactionResult struct {
	ReadTime        hlc.Timestamp
	LocalLimits     map[string]hlc.Timestamp
	RestartRequired bool
	Tablets         []InvolvedTablet
}
