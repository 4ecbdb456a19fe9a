package events

import (
	"errors"
	"sync"
)

var ErrBufferFull = errors.New("event buffer is full")

const defaultBufferLimit = 1024

type message struct {
	Kind    string
	Subject string
	Data    []byte
	prev    *message
}

// buffer is a FIFO linked list. PushBack fails once limit messages are pending.
type buffer struct {
	lock  sync.Mutex
	head  *message
	tail  *message
	size  int
	limit int
}

func newBuffer(limit int) *buffer {
	return &buffer{limit: limit}
}

func (b *buffer) PushBack(msg *message) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.limit > 0 && b.size >= b.limit {
		return ErrBufferFull
	}

	if b.head == nil {
		b.head = msg
		b.tail = msg
	} else {
		b.tail.prev = msg
		b.tail = msg
	}
	b.size++

	return nil
}

func (b *buffer) Pop() *message {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.head == nil {
		return nil
	}
	tmp := b.head
	if b.head.prev != nil {
		b.head = b.head.prev
	} else {
		b.head = nil
		b.tail = nil
	}
	tmp.prev = nil
	b.size--
	return tmp
}

func (b *buffer) Size() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.size
}
