package anode

import (
	"fmt"

	"github.com/dr8co/sciasm/internal/forwardref"
	"github.com/dr8co/sciasm/internal/opcode"
)

// LineNo emits a debug line-number opcode: the target dialect (SCI_2
// with `-d`) records the source line of the next statement so a
// runtime debugger can map code back to source.
type LineNo struct {
	posn
	Line uint16
}

func NewLineNo(line uint16) *LineNo { return &LineNo{Line: line} }

func (*LineNo) Size() int                { return 3 }
func (n *LineNo) SetOffset(ofs int) int  { n.place(ofs); return ofs + 3 }
func (*LineNo) TryShrink() bool          { return false }
func (*LineNo) CollectFixups(*FixupTable) {}
func (n *LineNo) Emit(s *Sink) error {
	if err := s.WriteByte(byte(opcode.OpLineNo)); err != nil {
		return err
	}
	return s.WriteWord(n.Line)
}
func (n *LineNo) Contains(o Node) bool { t, ok := o.(*LineNo); return ok && t == n }
func (n *LineNo) List(sink ListSink) {
	sink.WriteLine(fmt.Sprintf("%s\tline\t%d", fmtOffset(&n.posn), n.Line))
}

// FileName emits a debug file-name opcode at the start of each
// procedure/method body: the opcode plus a ForwardRef to the file's
// Text node in the heap, fixed up the same way an AddrRef is.
type FileName struct {
	posn
	Target forwardref.Ref[Node]
	Name   string
}

func NewFileName(name string) *FileName { return &FileName{Name: name} }

func (*FileName) Size() int               { return 3 }
func (n *FileName) SetOffset(ofs int) int { n.place(ofs); return ofs + 3 }
func (*FileName) TryShrink() bool         { return false }

func (n *FileName) CollectFixups(fx *FixupTable) {
	selfOfs, _ := n.Offset()
	fx.Add(selfOfs + 1)
}

func (n *FileName) Emit(s *Sink) error {
	target, ok := n.Target.Value()
	if !ok {
		return fmt.Errorf("emit: file name %q text never laid out", n.Name)
	}
	targetOfs, _ := target.Offset()
	if err := s.WriteByte(byte(opcode.OpFileName)); err != nil {
		return err
	}
	return s.WriteWord(uint16(targetOfs))
}

func (n *FileName) Contains(o Node) bool { t, ok := o.(*FileName); return ok && t == n }
func (n *FileName) List(sink ListSink) {
	sink.WriteLine(fmt.Sprintf("%s\tfile\t%q", fmtOffset(&n.posn), n.Name))
}
