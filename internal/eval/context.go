package eval

import (
	"os"
	"path/filepath"
	"runtime"
)

// Context carries the runtime facts the `context` category of builtin
// functions (spec.md §4.5) reads: process identity, invocation/working
// directories, and target platform.
type Context struct {
	JustExecutable         string
	JustPid                int
	JustfilePath           string
	JustfileDirectory      string
	InvocationDirectory    string
	WorkingDirectory       string
	Arch                   string
	OS                     string
	OSFamily               string
	NumCPUs                int
}

// NewContext builds a Context rooted at justfilePath, capturing the process's
// actual working directory as the invocation directory.
func NewContext(justfilePath string) *Context {
	exe, _ := os.Executable()
	cwd, _ := os.Getwd()
	return &Context{
		JustExecutable:      exe,
		JustPid:             os.Getpid(),
		JustfilePath:        justfilePath,
		JustfileDirectory:   filepath.Dir(justfilePath),
		InvocationDirectory: cwd,
		WorkingDirectory:    cwd,
		Arch:                runtime.GOARCH,
		OS:                  runtime.GOOS,
		OSFamily:            osFamily(runtime.GOOS),
		NumCPUs:             runtime.NumCPU(),
	}
}

func osFamily(goos string) string {
	if goos == "windows" {
		return "windows"
	}
	return "unix"
}
