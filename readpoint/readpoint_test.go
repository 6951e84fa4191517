package readpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cedarsql/txncoord/hlc"
	"github.com/cedarsql/txncoord/wire"
)

type fakeClock struct{ next hlc.Timestamp }

func (f *fakeClock) Now() hlc.Timestamp { return f.next }

func Test_set_current_read_time_samples_clock(t *testing.T) {
	clk := &fakeClock{next: hlc.Timestamp{Physical: 100}}
	rp := New(clk)
	rp.SetCurrentReadTime()
	assert.Equal(t, clk.next, rp.GetReadTime())
}

func Test_restart_clears_limits_and_flag(t *testing.T) {
	clk := &fakeClock{next: hlc.Timestamp{Physical: 100}}
	rp := New(clk)
	rp.SetCurrentReadTime()
	rp.UpdateLocalLimit("t1", hlc.Timestamp{Physical: 200})
	rp.RequireRestart()

	clk.next = hlc.Timestamp{Physical: 300}
	rp.Restart()

	assert.False(t, rp.IsRestartRequired())
	assert.Equal(t, clk.next, rp.GetReadTime())
	_, ok := rp.LocalLimit("t1")
	assert.False(t, ok)
}

func Test_update_local_limit_never_below_read_time(t *testing.T) {
	clk := &fakeClock{next: hlc.Timestamp{Physical: 500}}
	rp := New(clk)
	rp.SetCurrentReadTime()
	rp.UpdateLocalLimit("t1", hlc.Timestamp{Physical: 100})

	limit, ok := rp.LocalLimit("t1")
	assert.True(t, ok)
	assert.Equal(t, rp.GetReadTime(), limit)
}

func Test_update_local_limit_takes_max(t *testing.T) {
	rp := New(&fakeClock{})
	rp.UpdateLocalLimit("t1", hlc.Timestamp{Physical: 100})
	rp.UpdateLocalLimit("t1", hlc.Timestamp{Physical: 50})
	limit, _ := rp.LocalLimit("t1")
	assert.Equal(t, hlc.Timestamp{Physical: 100}, limit)
}

func Test_child_round_trip(t *testing.T) {
	clk := &fakeClock{next: hlc.Timestamp{Physical: 100}}
	parent := New(clk)
	parent.SetCurrentReadTime()
	parent.UpdateLocalLimit("t1", hlc.Timestamp{Physical: 150})

	var data wire.ChildTransactionData
	parent.PrepareChildTransactionData(&data)

	child := New(&fakeClock{})
	child.SetReadTime(data.ReadTime, data.LocalLimits)
	child.UpdateLocalLimit("t2", hlc.Timestamp{Physical: 250})

	var result wire.ChildTransactionResult
	child.FinishChildTransactionResult(&result)

	parent.ApplyChildTransactionResult(result)

	limitT1, ok := parent.LocalLimit("t1")
	assert.True(t, ok)
	assert.Equal(t, hlc.Timestamp{Physical: 150}, limitT1)
	limitT2, ok := parent.LocalLimit("t2")
	assert.True(t, ok)
	assert.Equal(t, hlc.Timestamp{Physical: 250}, limitT2)
}

func Test_apply_child_result_associative_and_commutative(t *testing.T) {
	base := func() *ReadPoint {
		rp := New(&fakeClock{})
		rp.UpdateLocalLimit("t1", hlc.Timestamp{Physical: 10})
		return rp
	}

	resultA := wire.ChildTransactionResult{
		LocalLimits:     map[string]hlc.Timestamp{"t2": {Physical: 20}},
		RestartRequired: false,
	}
	resultB := wire.ChildTransactionResult{
		LocalLimits:     map[string]hlc.Timestamp{"t3": {Physical: 30}},
		RestartRequired: true,
	}

	order1 := base()
	order1.ApplyChildTransactionResult(resultA)
	order1.ApplyChildTransactionResult(resultB)

	order2 := base()
	order2.ApplyChildTransactionResult(resultB)
	order2.ApplyChildTransactionResult(resultA)

	assert.Equal(t, order1.localLimits, order2.localLimits)
	assert.Equal(t, order1.restartRequired, order2.restartRequired)
}
