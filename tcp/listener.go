package tcp

import (
	"net"
	"sync"

	"github.com/pkg/errors"
)

// synItem is one pending SYN admitted by the listener, spec.md §3's
// SYN-queue item shape: (next, ingress_interface, src_addr, src_port,
// dest_addr, isn, mss). Ownership transfers to the accepting goroutine,
// which drops the item once the child TCB is initialized. Modeled as a
// singly-linked, pool-owned structure per the Design Notes; the pool here
// is a plain chunk of the ChunkPool collaborator (memory-pool allocation
// for SYN-queue items is explicitly external, spec.md §1), so admission
// can fail cleanly with "drop the SYN" instead of growing unboundedly.
type synItem struct {
	next      *synItem
	iface     string
	srcAddr   net.IP
	srcPort   uint16
	destAddr  net.IP
	isn       uint32
	mss       uint16
	chunk     BufferChunk // pool-owned placeholder, released when the item is dequeued
}

// synQueue is the listener TCB's bounded FIFO of admitted half-SYNs,
// spec.md §2 component 5 and §4.3.2.
type synQueue struct {
	mu   sync.Mutex
	head *synItem
	tail *synItem
	size int
	cap  int
	pool ChunkPool
}

func newSynQueue(capacity int, pool ChunkPool) *synQueue {
	return &synQueue{cap: capacity, pool: pool}
}

// enqueue admits a SYN. If the queue is at capacity the SYN is dropped
// silently, per spec.md §7's "Resource exhaustion... drop SYN silently on
// queue-full".
func (q *synQueue) enqueue(item *synItem) (admitted bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size >= q.cap {
		return false, nil
	}

	if q.pool != nil {
		chunk, allocErr := q.pool.Alloc()
		if allocErr != nil {
			return false, errors.Wrap(ErrOutOfResources, "allocating syn-queue item")
		}
		item.chunk = chunk
	}

	if q.tail == nil {
		q.head = item
		q.tail = item
	} else {
		q.tail.next = item
		q.tail = item
	}
	q.size++
	return true, nil
}

// dequeue pops the head item, if any, releasing its pool-owned chunk.
func (q *synQueue) dequeue() *synItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	item := q.head
	if item == nil {
		return nil
	}
	q.head = item.next
	if q.head == nil {
		q.tail = nil
	}
	q.size--
	item.next = nil

	if item.chunk != nil && q.pool != nil {
		q.pool.Free(item.chunk)
		item.chunk = nil
	}
	return item
}

func (q *synQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.head == nil
}

func (q *synQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}
