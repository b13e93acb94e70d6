package stats

import (
	"sync"
	"testing"

	"github.com/go-gnutella/go-gnutella/lib/drop"
	"github.com/go-gnutella/go-gnutella/lib/gnet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Record(t *testing.T) {
	r := NewRecorder()
	r.Record(Outcome{Accepted: true, Kind: gnet.KindQuery})
	r.Record(Outcome{Reason: drop.Duplicate})
	r.Record(Outcome{Reason: drop.Duplicate})
	r.Record(Outcome{Reason: drop.None})

	assert.Equal(t, uint64(1), r.Accepted(gnet.KindQuery))
	assert.Equal(t, uint64(2), r.Dropped(drop.Duplicate))
	assert.Equal(t, uint64(1), r.Dropped(drop.BadSize), "unattributed drops count as BAD_SIZE")
	assert.Equal(t, uint64(0), r.Dropped(drop.None))
	assert.Equal(t, uint64(4), r.Snapshot().Total())
	assert.Equal(t, uint64(3), r.Snapshot().TotalDropped())
}

func TestRecorder_ConcurrentSumsToN(t *testing.T) {
	r := NewRecorder()
	const workers, perWorker = 16, 500

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if i%3 == 0 {
					r.Record(Outcome{Accepted: true, Kind: gnet.KindPing})
				} else {
					r.Record(Outcome{Reason: drop.Reason((w + i) % int(drop.COUNT))})
				}
			}
		}(w)
	}
	wg.Wait()

	snap := r.Snapshot()
	assert.Equal(t, uint64(workers*perWorker), snap.Total())

	var sum uint64
	for _, v := range snap.ByName() {
		sum += v
	}
	assert.Equal(t, uint64(workers*perWorker), sum)
}

func TestSnapshot_ByName(t *testing.T) {
	r := NewRecorder()
	r.Record(Outcome{Reason: drop.HostileIP})
	r.Record(Outcome{Accepted: true, Kind: gnet.KindG2Query})

	byName := r.Snapshot().ByName()
	assert.Len(t, byName, int(drop.COUNT)+gnet.KindCount)
	assert.Equal(t, uint64(1), byName["HOSTILE_IP"])
	assert.Equal(t, uint64(1), byName[ACCEPTED_PREFIX+"g2-Q2"])
	assert.Equal(t, uint64(0), byName["TTL0"])
}

func TestCollector(t *testing.T) {
	r := NewRecorder()
	r.Record(Outcome{Reason: drop.Duplicate})
	r.Record(Outcome{Reason: drop.Duplicate})
	r.Record(Outcome{Accepted: true, Kind: gnet.KindQuery})

	c := NewCollector("gnutella", r)
	assert.Equal(t, int(drop.COUNT)+len(gnet.Kinds()), testutil.CollectAndCount(c))

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			label := m.GetLabel()[0].GetValue()
			values[mf.GetName()+"/"+label] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 2.0, values["gnutella_admission_dropped_total/DUPLICATE"])
	assert.Equal(t, 1.0, values["gnutella_admission_accepted_total/query"])
	assert.Equal(t, 0.0, values["gnutella_admission_dropped_total/TTL0"])
}
