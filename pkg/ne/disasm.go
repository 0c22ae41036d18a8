package ne

import (
	"errors"
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// Instruction is a decoded 16-bit x86 instruction.
type Instruction struct {
	Segment    int    `json:"segment" yaml:"segment"`
	Offset     uint16 `json:"offset" yaml:"offset"`
	FileOffset int64  `json:"file_offset" yaml:"file_offset"`
	Bytes      []byte `json:"bytes" yaml:"bytes"`
	Text       string `json:"text" yaml:"text"`
	inst       *x86asm.Inst
}

// IsCall reports whether the instruction is a near or far call.
func (inst *Instruction) IsCall() bool {
	return inst.inst != nil && (inst.inst.Op == x86asm.CALL || inst.inst.Op == x86asm.LCALL)
}

// IsRet reports whether the instruction is a near or far return.
func (inst *Instruction) IsRet() bool {
	return inst.inst != nil && (inst.inst.Op == x86asm.RET || inst.inst.Op == x86asm.LRET)
}

// ErrNoEntryPoint is returned by DisassembleEntry for images without an
// initial CS:IP.
var ErrNoEntryPoint = errors.New("image has no entry point")

// Disassemble decodes up to count instructions of segment seg (1-based)
// starting at offset off. Bytes that do not decode are returned as one
// byte "?" instructions.
func (f *File) Disassemble(seg int, off uint16, count int) ([]Instruction, error) {
	if count < 0 {
		return nil, fmt.Errorf("negative instruction count %d", count)
	}
	segs := f.Segments()
	if seg < 1 || seg > len(segs) {
		return nil, fmt.Errorf("segment %d out of range (%d segments)", seg, len(segs))
	}
	s := segs[seg-1]
	if s.IsData() {
		return nil, fmt.Errorf("segment %d is a data segment", seg)
	}
	if int(off) >= s.Length() {
		return nil, fmt.Errorf("offset %#x past the end of segment %d (%#x bytes)", off, seg, s.Length())
	}

	c := f.cursor(fmt.Sprintf("reading segment %d", seg))
	c.seek(s.FileOffset)
	mem := c.read(s.Length())
	if c.err != nil {
		return nil, c.err
	}

	symname := f.symLookup(seg)
	r := make([]Instruction, 0, count)
	for pc := int(off); pc < len(mem) && len(r) < count; {
		inst := Instruction{Segment: seg, Offset: uint16(pc), FileOffset: s.FileOffset + int64(pc)}
		x, err := x86asm.Decode(mem[pc:], 16)
		if err != nil {
			inst.Bytes = mem[pc : pc+1]
			inst.Text = "?"
			pc++
		} else {
			inst.inst = &x
			inst.Bytes = mem[pc : pc+x.Len]
			inst.Text = x86asm.IntelSyntax(x, uint64(pc), symname)
			pc += x.Len
		}
		r = append(r, inst)
	}
	return r, nil
}

// DisassembleEntry decodes up to count instructions at the initial CS:IP.
func (f *File) DisassembleEntry(count int) ([]Instruction, error) {
	seg, ip := f.StartAddress()
	if seg == 0 {
		return nil, ErrNoEntryPoint
	}
	return f.Disassemble(seg, ip, count)
}

// symLookup resolves offsets within segment seg to the names of the
// entry points that are exported there.
func (f *File) symLookup(seg int) x86asm.SymLookup {
	names := map[uint64]string{}
	for _, tab := range [][]ExportedFunction{f.Exports(), f.NonResidentNames()} {
		for i, fn := range tab {
			if i == 0 {
				continue
			}
			e, ok := f.EntryPoint(fn.Ordinal)
			if !ok || int(e.Segment) != seg {
				continue
			}
			if _, dup := names[uint64(e.Offset)]; !dup {
				names[uint64(e.Offset)] = fn.Name
			}
		}
	}
	return func(addr uint64) (string, uint64) {
		if name, ok := names[addr]; ok {
			return name, addr
		}
		return "", 0
	}
}
