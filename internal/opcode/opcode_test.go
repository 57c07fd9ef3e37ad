package opcode

import "testing"

// TestWithSizeRoundTrip verifies that flipping the byte/word size flag
// on an opcode and reading it back yields the flag that was set.
func TestWithSizeRoundTrip(t *testing.T) {
	tests := []struct {
		op   Op
		flag SizeFlag
	}{
		{OpConst, SizeByte},
		{OpConst, SizeWord},
		{OpBnt, SizeByte},
		{OpBnt, SizeWord},
	}

	for _, tt := range tests {
		got := tt.op.WithSize(tt.flag).Size()
		if got != tt.flag {
			t.Errorf("WithSize(%v).Size() = %v, want %v", tt.flag, got, tt.flag)
		}
	}
}

// TestMakeAccessDecodeAccess verifies every access-opcode bit-field
// round-trips through MakeAccess/DecodeAccess.
func TestMakeAccessDecodeAccess(t *testing.T) {
	kinds := []AccessKind{AccessLoad, AccessStore, AccessIncLoad, AccessDecLoad}
	dsts := []AccessDst{DstAcc, DstStack}
	classes := []AccessClass{ClassGlobal, ClassLocal, ClassTemp, ClassParam}

	for _, k := range kinds {
		for _, d := range dsts {
			for _, c := range classes {
				for _, indexed := range []bool{false, true} {
					op := MakeAccess(k, d, c, indexed)
					if !op.IsAccess() {
						t.Fatalf("MakeAccess(%v,%v,%v,%v) not recognized as access opcode", k, d, c, indexed)
					}
					gotK, gotD, gotC, gotIdx, ok := DecodeAccess(op)
					if !ok {
						t.Fatalf("DecodeAccess(%v) ok=false", op)
					}
					if gotK != k || gotD != d || gotC != c || gotIdx != indexed {
						t.Errorf("DecodeAccess(MakeAccess(%v,%v,%v,%v)) = (%v,%v,%v,%v)",
							k, d, c, indexed, gotK, gotD, gotC, gotIdx)
					}
				}
			}
		}
	}
}

// TestPlainOpcodesAreNotAccess ensures the arithmetic/control opcode
// space never collides with the high-bit access tag.
func TestPlainOpcodesAreNotAccess(t *testing.T) {
	plain := []Op{OpConst, OpAdd, OpSub, OpBnt, OpJmp, OpCall, OpRet, OpLineNo, OpFileName, OpPprev, OpLea}
	for _, op := range plain {
		if op.IsAccess() {
			t.Errorf("opcode %#x unexpectedly tagged as an access opcode", byte(op))
		}
	}
}

// TestWithWideRoundTrip verifies the access family's address-width bit
// round-trips independently of the indexed bit it sits next to.
func TestWithWideRoundTrip(t *testing.T) {
	for _, indexed := range []bool{false, true} {
		op := MakeAccess(AccessLoad, DstAcc, ClassLocal, indexed)
		if op.IsWideAccess() {
			t.Fatalf("freshly made access opcode unexpectedly wide")
		}
		wide := op.WithWide(true)
		if !wide.IsWideAccess() {
			t.Errorf("WithWide(true).IsWideAccess() = false")
		}
		_, _, _, gotIndexed, ok := DecodeAccess(wide)
		if !ok || gotIndexed != indexed {
			t.Errorf("WithWide mutated the indexed bit: got %v, want %v", gotIndexed, indexed)
		}
		narrow := wide.WithWide(false)
		if narrow.IsWideAccess() {
			t.Errorf("WithWide(false).IsWideAccess() = true")
		}
	}
}
