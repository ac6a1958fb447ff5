// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package chrapi

import (
	"fmt"
	"path/filepath"
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"
)

const wordSize = unsafe.Sizeof(uintptr(0))

type nativeLibrary struct {
	path string
	dll  *windows.LazyDLL
}

// Open loads ChrApi.dll from dir. The DLL is 32-bit, so this only succeeds
// in a windows/386 process.
func Open(dir string) (Library, error) {
	path := filepath.Join(dir, APIName)
	dll := windows.NewLazyDLL(path)
	if err := dll.Load(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLibraryNotFound, path, err)
	}
	return &nativeLibrary{path: path, dll: dll}, nil
}

func (l *nativeLibrary) Name() string { return l.path }

func (l *nativeLibrary) Lookup(symbol string) (Proc, error) {
	p := l.dll.NewProc(symbol)
	if err := p.Find(); err != nil {
		return nil, err
	}
	return &nativeProc{proc: p}, nil
}

func (l *nativeLibrary) Close() error {
	return windows.FreeLibrary(windows.Handle(l.dll.Handle()))
}

type nativeProc struct {
	proc *windows.LazyProc
}

// Call pushes every slot as one machine word, splitting 64-bit immediates
// into low/high words on 386. ChrApi exports are cdecl; the syscall
// trampoline restores the stack pointer itself.
func (p *nativeProc) Call(args []Arg) (ReturnCode, error) {
	words := make([]uintptr, 0, len(args)+2)
	for _, a := range args {
		switch {
		case a.IsPointer():
			words = append(words, uintptr(unsafe.Pointer(&a.Ptr[0])))
		case a.Size == 8 && wordSize == 4:
			words = append(words, uintptr(uint32(a.Word)), uintptr(uint32(a.Word>>32)))
		default:
			words = append(words, uintptr(a.Word))
		}
	}
	r1, _, _ := p.proc.Call(words...)
	runtime.KeepAlive(args)
	return ReturnCode(int32(r1)), nil
}
