package server

import (
	"sync"

	pb "github.com/corbin-r/net-pipe/api/pipe/v1"
	"github.com/corbin-r/net-pipe/internal/driver"
	"github.com/corbin-r/net-pipe/internal/pipe"
)

// retiredLimit caps how many closed handles are remembered. Past it the
// oldest ids are forgotten and report as unknown.
const retiredLimit = 4096

// retired is what remains of a closed channel: enough to answer Stat and
// to report channel_closed instead of an unknown handle.
type retired struct {
	name       string
	width      int32
	maxOutflow int64
	algorithm  string
}

func retiredFrom(ch *pipe.Channel) retired {
	return retired{
		name:       ch.Name(),
		width:      int32(ch.Width()),
		maxOutflow: ch.MaxOutflow(),
		algorithm:  string(ch.Guard().Algorithm()),
	}
}

func (r retired) stat(id string) *pb.StatResponse {
	return &pb.StatResponse{
		Handle:     id,
		Name:       r.name,
		Width:      r.width,
		MaxOutflow: r.maxOutflow,
		Remaining:  r.maxOutflow,
		State:      driver.NullOrigin.String(),
		Algorithm:  r.algorithm,
		Closed:     true,
	}
}

// tombstones is a bounded FIFO of closed handle ids.
type tombstones struct {
	mu    sync.Mutex
	byID  map[string]retired
	order []string
	limit int
}

func newTombstones(limit int) *tombstones {
	return &tombstones{byID: make(map[string]retired), limit: limit}
}

func (t *tombstones) add(id string, r retired) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byID[id]; ok {
		return
	}
	t.byID[id] = r
	t.order = append(t.order, id)
	for len(t.order) > t.limit {
		delete(t.byID, t.order[0])
		t.order = t.order[1:]
	}
}

func (t *tombstones) get(id string) (retired, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.byID[id]
	return r, ok
}

func (t *tombstones) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byID)
}
