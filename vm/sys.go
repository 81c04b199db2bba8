package vm

import (
	"fmt"
	"os"
	"time"
)

// SysBackend is the machine's window onto the outside world. The
// &-primitives go through it; tests substitute a recording backend so
// runs stay hermetic.
type SysBackend interface {
	Print(s string) error
	FileRead(path string) (string, error)
	FileWrite(path, data string) error
	Now() float64
	Args() []string
}

// NativeSys is the process-backed backend.
type NativeSys struct{}

func (NativeSys) Print(s string) error {
	_, err := os.Stdout.WriteString(s)
	return err
}

func (NativeSys) FileRead(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}

func (NativeSys) FileWrite(path, data string) error {
	return os.WriteFile(path, []byte(data), 0o644)
}

func (NativeSys) Now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

func (NativeSys) Args() []string {
	return os.Args[1:]
}

// RecordSys is an in-memory backend.
type RecordSys struct {
	Outputs []string
	Files   map[string]string
	Clock   float64
	Argv    []string
}

func (r *RecordSys) Print(s string) error {
	r.Outputs = append(r.Outputs, s)
	return nil
}

func (r *RecordSys) FileRead(path string) (string, error) {
	data, ok := r.Files[path]
	if !ok {
		return "", fmt.Errorf("no such file %q", path)
	}
	return data, nil
}

func (r *RecordSys) FileWrite(path, data string) error {
	if r.Files == nil {
		r.Files = map[string]string{}
	}
	r.Files[path] = data
	return nil
}

func (r *RecordSys) Now() float64 { return r.Clock }

func (r *RecordSys) Args() []string { return r.Argv }
