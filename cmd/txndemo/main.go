package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cedarsql/txncoord/config"
	"github.com/cedarsql/txncoord/hlc"
	"github.com/cedarsql/txncoord/manager"
	"github.com/cedarsql/txncoord/txn"
	"github.com/cedarsql/txncoord/wire"
)

// inProcessClient answers every status-tablet RPC in memory, standing
// in for a real tablet server so this demo runs without a cluster.
type inProcessClient struct{}

func (inProcessClient) UpdateTransaction(ctx context.Context, tablet manager.RemoteTablet, req wire.UpdateTransactionRequest) (wire.UpdateTransactionResponse, error) {
	return wire.UpdateTransactionResponse{PropagatedHybridTime: req.PropagatedHybridTime}, nil
}

func (inProcessClient) AbortTransaction(ctx context.Context, tablet manager.RemoteTablet, req wire.AbortTransactionRequest) (wire.AbortTransactionResponse, error) {
	return wire.AbortTransactionResponse{HasPropagatedHybridTime: true, PropagatedHybridTime: req.PropagatedHybridTime}, nil
}

func main() {
	cfg := config.Default()
	pool := manager.NewLocalPool([]string{"status-tablet-1", "status-tablet-2"})
	mgr, err := manager.New(hlc.NewPhysicalLogicalClock(0), cfg, inProcessClient{}, pool, 1024)
	if err != nil {
		fmt.Println(err)
		return
	}

	parent := txn.New(mgr, wire.SnapshotIsolation)

	ready := make(chan struct{})
	_, ok := parent.Prepare([]string{"tablet-1"}, func(err error) { close(ready) })
	if !ok {
		<-ready
	}
	parent.Flushed([]string{"tablet-1"}, nil)

	prepared := <-parent.PrepareChildFuture()
	if prepared.Err != nil {
		fmt.Println(prepared.Err)
		return
	}
	childData := prepared.Data

	child := txn.NewChild(mgr, childData)
	child.Prepare([]string{"tablet-2"}, nil)
	child.Flushed([]string{"tablet-2"}, nil)

	result, err := child.FinishChild()
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := parent.ApplyChildResult(result); err != nil {
		fmt.Println(err)
		return
	}

	commitErr := <-parent.CommitFuture()
	if commitErr != nil {
		fmt.Printf("commit failed: %v\n", commitErr)
		return
	}

	<-time.After(10 * time.Millisecond)
	parent.Close()
	child.Close()

	fmt.Println("success")
}
