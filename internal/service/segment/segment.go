// Package segment turns a continuous frame stream into utterance buffers.
package segment

import (
	"fmt"
	"sync/atomic"
)

// ID identifies one utterance within a session. Seq starts at 1 and follows
// segmentation order.
type ID struct {
	Value string
	Seq   uint64
}

// Generator hands out utterance IDs for one session.
type Generator struct {
	counter uint64
}

func New() *Generator {
	return &Generator{}
}

func (g *Generator) Next(sessionId string) ID {
	n := atomic.AddUint64(&g.counter, 1)
	return ID{Value: fmt.Sprintf("%s-utt-%d", sessionId, n), Seq: n}
}

// Issued returns how many IDs were handed out.
func (g *Generator) Issued() uint64 {
	return atomic.LoadUint64(&g.counter)
}
