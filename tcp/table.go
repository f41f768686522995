package tcp

import (
	"fmt"
	"net"
	"sync"
)

// Table is the process-wide socket table guarded by NET_MUTEX, spec.md
// §5: "The socket table and dynamic-port counter are process-wide." All
// TCB mutation across the user, segment-handler, and timer producers is
// serialized by Table.mu, matching the teacher's single-mutex-per-shared-map
// discipline (lib/pconn.go's connectionMap, lib/pcpcore.go's
// protoConnectionMap).
type Table struct {
	mu       sync.Mutex
	sockets  map[string]*TCB
	ports    *PortPool
	collab   collaboratorSet
}

// NewCollaborators bundles a ChunkPool into a collaboratorSet suitable for
// NewTable. Transport, NagleController, and SegmentSink are left nil and
// installed afterward via Table.SetTransport/SetNagle/SetSegmentSink,
// since implementations like Loopback need a *Table to dispatch into and
// so can't exist before the table does.
func NewCollaborators(pool ChunkPool) collaboratorSet {
	return collaboratorSet{pool: pool}
}

// NewTable creates an empty socket table with the given collaborators as
// defaults for every Socket/Listener it creates. A nil address selector
// falls back to DefaultAddressSelector. There is no fallback ChunkPool: a
// collaboratorSet without a pool cannot allocate side-buffers.
func NewTable(collab collaboratorSet) *Table {
	if collab.addrSelector == nil {
		collab.addrSelector = DefaultAddressSelector()
	}
	return &Table{
		sockets: make(map[string]*TCB),
		ports:   DefaultPortPool(),
		collab:  collab,
	}
}

func connKey(localAddr net.IP, localPort uint16, remoteAddr net.IP, remotePort uint16) string {
	la, ra := "*", "*"
	if localAddr != nil {
		la = localAddr.String()
	}
	if remoteAddr != nil {
		ra = remoteAddr.String()
	}
	return fmt.Sprintf("%s:%d-%s:%d", la, localPort, ra, remotePort)
}

// lock/unlock expose NET_MUTEX to Socket/Listener operations, which must
// release it before any blocking wait (spec.md §5's discipline).
func (t *Table) lock()   { t.mu.Lock() }
func (t *Table) unlock() { t.mu.Unlock() }

func (t *Table) register(c *TCB) {
	c.table = t
	c.key = connKey(c.localAddr, c.localPort, c.remoteAddr, c.remotePort)
	t.sockets[c.key] = c
}

func (t *Table) rekey(c *TCB) {
	for k, v := range t.sockets {
		if v == c {
			delete(t.sockets, k)
			break
		}
	}
	t.register(c)
}

func (t *Table) unregister(c *TCB) {
	delete(t.sockets, c.key)
}

// GetDynamicPort implements get_dynamic_port(), spec.md §4.2.
func (t *Table) GetDynamicPort() (uint16, error) {
	return t.ports.Get()
}

// SetTransport installs the Transport collaborator used by sockets created
// after this call. Collaborators that need a back-reference to the table
// (such as Loopback) are constructed after NewTable and wired in via this
// setter, avoiding a construction-order cycle.
func (t *Table) SetTransport(tr Transport) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.collab.transport = tr
}

// SetNagle installs the NagleController collaborator used by sockets
// created after this call.
func (t *Table) SetNagle(n NagleController) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.collab.nagle = n
}

// SetSegmentSink installs the SegmentSink collaborator used by sockets
// created after this call.
func (t *Table) SetSegmentSink(sink SegmentSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.collab.sink = sink
}

// KillOldestConnection implements kill_oldest_connection(), spec.md §4.6:
// among all sockets in TIME_WAIT, force-close the one whose
// time_wait_timer started earliest, reclaiming it for reuse.
func (t *Table) KillOldestConnection() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	var oldest *TCB
	for _, c := range t.sockets {
		if c.state != StateTimeWait {
			continue
		}
		if oldest == nil || c.timeWaitStarted.Before(oldest.timeWaitStarted) {
			oldest = c
		}
	}
	if oldest == nil {
		return false
	}

	oldest.deleteControlBlock()
	oldest.ownedFlag = false
	t.unregister(oldest)
	return true
}

// Len reports how many TCBs are currently tracked, for tests and
// diagnostics.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sockets)
}
