package opl

import "fmt"

// QueueCapacity is the number of writes the queue holds between commits.
const QueueCapacity = 2048

// QueuedWrite is one register write awaiting commit.
type QueuedWrite struct {
	Addr  uint16
	Val   uint8
	Pair  bool   // Commit atomically with the following write
	Stamp uint64 // Native sample position at enqueue
}

// RegWrite is an address/value pair for PokeList.
type RegWrite struct {
	Addr uint16
	Val  uint8
}

// writeQueue is a fixed-capacity FIFO of register writes.
type writeQueue struct {
	buf   [QueueCapacity]QueuedWrite
	head  int
	count int
}

// push appends a write. Overflow means the producer outran the tick
// cadence and is a programming error.
func (q *writeQueue) push(w QueuedWrite) {
	if q.count == QueueCapacity {
		panic(fmt.Sprintf("opl: register write queue overflow (%d entries)", QueueCapacity))
	}
	q.buf[(q.head+q.count)%QueueCapacity] = w
	q.count++
}

func (q *writeQueue) pop() (QueuedWrite, bool) {
	if q.count == 0 {
		return QueuedWrite{}, false
	}
	w := q.buf[q.head]
	q.head = (q.head + 1) % QueueCapacity
	q.count--
	return w, true
}

func (q *writeQueue) len() int {
	return q.count
}

func (q *writeQueue) reset() {
	q.head = 0
	q.count = 0
}
