package vm

import "fmt"

// ---------------------------------------------------------------------------
// Programs and functions
// ---------------------------------------------------------------------------

// Signature is a net stack effect: how many values a function or
// program consumes from the stack and how many it leaves.
type Signature struct {
	Args    int
	Outputs int
}

func (s Signature) String() string {
	return fmt.Sprintf("|%d.%d", s.Args, s.Outputs)
}

// Program is a compiled unit: an instruction sequence plus the constant
// values, nested function bodies, and binding names it references.
type Program struct {
	Code      []byte
	Constants []Value
	Functions []*Function
	Names     []string
	Sig       Signature
	Dynamic   bool // stack effect not statically determinable
}

// AddConstant appends a constant and returns its index.
func (p *Program) AddConstant(v Value) int {
	p.Constants = append(p.Constants, v)
	return len(p.Constants) - 1
}

// AddFunction appends a function body and returns its index.
func (p *Program) AddFunction(f *Function) int {
	p.Functions = append(p.Functions, f)
	return len(p.Functions) - 1
}

// AddName interns a binding name and returns its index.
func (p *Program) AddName(name string) int {
	for i, n := range p.Names {
		if n == name {
			return i
		}
	}
	p.Names = append(p.Names, name)
	return len(p.Names) - 1
}

// Function is a compiled user function. Functions are parameter-free;
// Sig is the stack effect inferred from the body when static.
type Function struct {
	Name    string
	Prog    *Program
	Sig     Signature
	Dynamic bool
}

func (f *Function) String() string {
	if f.Dynamic {
		return fmt.Sprintf("(%s)", f.Name)
	}
	return fmt.Sprintf("(%s)%s", f.Name, f.Sig)
}

// ---------------------------------------------------------------------------
// Function values
// ---------------------------------------------------------------------------

// FnValue is a function on the stack: a compiled function plus the
// handle of the scope where the value was created. The handle, not a
// pointer, is what a closure keeps.
type FnValue struct {
	Fn    *Function
	Scope int
}

func (f *FnValue) Kind() Kind       { return KindFn }
func (f *FnValue) Shape() Shape     { return nil }
func (f *FnValue) Rank() int        { return 0 }
func (f *FnValue) FlatLen() int     { return 1 }
func (f *FnValue) Rows() int        { return 1 }
func (f *FnValue) Row(i int) Value  { return f }
func (f *FnValue) Retain() Value    { return f }
func (f *FnValue) Release()         {}
func (f *FnValue) String() string   { return "(" + f.Fn.Name + ")" }
