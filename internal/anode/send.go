package anode

import (
	"fmt"

	"github.com/dr8co/sciasm/internal/opcode"
)

// SendOp is the single opcode emitted at the end of a compiled send
// or super-send: by the time it runs, every message's selector,
// backfilled arg-count, and argument values have already been pushed
// by ordinary opcodes earlier in the code block, and for a plain send
// the receiver has been loaded into the accumulator just ahead of it. SendOp itself only carries the total
// argument byte count and, for a super-send, the superclass number.
type SendOp struct {
	posn
	Op         opcode.Op // OpSend, OpSelf, or OpSuper
	ArgBytes   uint16
	Superclass uint16 // only meaningful when Op == OpSuper
	hasSuper   bool
}

// NewSend creates a plain or self-send total-arg-bytes opcode.
func NewSend(op opcode.Op, argBytes uint16) *SendOp {
	return &SendOp{Op: op, ArgBytes: argBytes}
}

// NewSuperSend creates a super-send opcode carrying the superclass
// number the dispatch starts from.
func NewSuperSend(superclass, argBytes uint16) *SendOp {
	return &SendOp{Op: opcode.OpSuper, ArgBytes: argBytes, Superclass: superclass, hasSuper: true}
}

// NewSelfSendFromSend rewrites an ordinary send into a self-send
// carrying the same argument byte count — the peephole fusion of a
// preceding self-id load into the send opcode itself.
func NewSelfSendFromSend(s *SendOp) *SendOp {
	return &SendOp{Op: opcode.OpSelf, ArgBytes: s.ArgBytes}
}

func (s *SendOp) Size() int {
	if s.hasSuper {
		return 1 + 2 + 2
	}
	return 1 + 2
}

func (s *SendOp) SetOffset(ofs int) int     { s.place(ofs); return ofs + s.Size() }
func (*SendOp) TryShrink() bool             { return false }
func (*SendOp) CollectFixups(*FixupTable)   {}

func (s *SendOp) Emit(w *Sink) error {
	if err := w.WriteByte(byte(s.Op)); err != nil {
		return err
	}
	if s.hasSuper {
		if err := w.WriteWord(s.Superclass); err != nil {
			return err
		}
	}
	return w.WriteWord(s.ArgBytes)
}

func (s *SendOp) Contains(n Node) bool { o, ok := n.(*SendOp); return ok && o == s }
func (s *SendOp) List(sink ListSink) {
	sink.WriteLine(fmt.Sprintf("%s\t%s\t%d", fmtOffset(&s.posn), opName(s.Op), s.ArgBytes))
}
