// Package wasmtest holds WAT fixtures speaking the fluentbase_v1preview ABI.
package wasmtest

import (
	"fmt"
	"testing"

	"github.com/bytecodealliance/wasmtime-go/v14"
	"github.com/stretchr/testify/require"
)

const imports = `
  (import "fluentbase_v1preview" "_input_size" (func $input_size (result i32)))
  (import "fluentbase_v1preview" "_read" (func $read (param i32 i32 i32)))
  (import "fluentbase_v1preview" "_write" (func $write (param i32 i32)))
  (import "fluentbase_v1preview" "_exit" (func $exit (param i32)))
`

const Greeting = `(module
  (import "fluentbase_v1preview" "_write" (func $write (param i32 i32)))
  (memory (export "memory") 1)
  (data (i32.const 0) "Hello, World")
  (func (export "main")
    (call $write (i32.const 0) (i32.const 12))))`

// Echo writes back the input past the first skip bytes.
func Echo(skip uint32) string {
	return fmt.Sprintf(`(module %s
  (memory (export "memory") 1)
  (func (export "main")
    (local $len i32)
    (local.set $len (i32.sub (call $input_size) (i32.const %d)))
    (call $read (i32.const 0) (i32.const %d) (local.get $len))
    (call $write (i32.const 0) (local.get $len))))`, imports, skip, skip)
}

// InputSize writes _input_size as a little-endian i32.
var InputSize = `(module ` + imports + `
  (memory (export "memory") 1)
  (func (export "main")
    (i32.store (i32.const 0) (call $input_size))
    (call $write (i32.const 0) (i32.const 4))))`

// MultiWrite issues two writes around zero-length host calls.
var MultiWrite = `(module ` + imports + `
  (memory (export "memory") 1)
  (data (i32.const 0) "Hello, World")
  (func (export "main")
    (call $write (i32.const 0) (i32.const 7))
    (call $write (i32.const 3) (i32.const 0))
    (call $read (i32.const 0) (i32.const 0) (i32.const 0))
    (call $write (i32.const 7) (i32.const 5))))`

// Exit writes "partial" and exits with the given code.
func Exit(code int32) string {
	return fmt.Sprintf(`(module %s
  (memory (export "memory") 1)
  (data (i32.const 0) "partial")
  (func (export "main")
    (call $write (i32.const 0) (i32.const 7))
    (call $exit (i32.const %d))))`, imports, code)
}

// Panic writes a message and exits with the panic code.
var Panic = `(module ` + imports + `
  (memory (export "memory") 1)
  (data (i32.const 0) "it is not ok")
  (func (export "main")
    (call $write (i32.const 0) (i32.const 12))
    (call $exit (i32.const -71))))`

// Read copies length input bytes from offset to target, then writes them.
func Read(target, offset, length uint32) string {
	return fmt.Sprintf(`(module %s
  (memory (export "memory") 1)
  (func (export "main")
    (call $read (i32.const %d) (i32.const %d) (i32.const %d))
    (call $write (i32.const %d) (i32.const %d))))`, imports, int32(target), int32(offset), int32(length), int32(target), int32(length))
}

// Write writes length bytes of memory starting at offset.
func Write(offset, length uint32) string {
	return fmt.Sprintf(`(module %s
  (memory (export "memory") 1)
  (func (export "main")
    (call $write (i32.const %d) (i32.const %d))))`, imports, int32(offset), int32(length))
}

var HiddenMemory = `(module
  (import "fluentbase_v1preview" "_write" (func $write (param i32 i32)))
  (memory 1)
  (func (export "main")
    (call $write (i32.const 0) (i32.const 0))))`

var NoHostCalls = `(module
  (func (export "main")))`

var UnknownImport = `(module
  (import "env" "abort" (func $abort))
  (memory (export "memory") 1)
  (func (export "main")))`

var UnknownFunction = `(module
  (import "fluentbase_v1preview" "_charge_fuel" (func $charge (param i64)))
  (memory (export "memory") 1)
  (func (export "main")))`

var BadImportSignature = `(module
  (import "fluentbase_v1preview" "_write" (func $write (param i32)))
  (memory (export "memory") 1)
  (func (export "main")))`

var StartTrap = `(module
  (memory (export "memory") 1)
  (func $start unreachable)
  (start $start)
  (func (export "main")))`

// StartWrite writes from the start section and again from main.
var StartWrite = `(module
  (import "fluentbase_v1preview" "_write" (func $write (param i32 i32)))
  (memory (export "memory") 1)
  (data (i32.const 0) "prepost")
  (func $start
    (call $write (i32.const 0) (i32.const 3)))
  (start $start)
  (func (export "main")
    (call $write (i32.const 3) (i32.const 4))))`

var MissingMain = `(module
  (memory (export "memory") 1)
  (func (export "run")))`

var MainWithParams = `(module
  (memory (export "memory") 1)
  (func (export "main") (param i32)))`

var MainWithResults = `(module
  (memory (export "memory") 1)
  (func (export "main") (result i32)
    (i32.const 0)))`

var MainTrap = `(module
  (import "fluentbase_v1preview" "_write" (func $write (param i32 i32)))
  (memory (export "memory") 1)
  (data (i32.const 0) "before")
  (func (export "main")
    (call $write (i32.const 0) (i32.const 6))
    unreachable))`

// Spin loops forever; used for fuel exhaustion.
var Spin = `(module
  (memory (export "memory") 1)
  (func (export "main")
    (loop $l
      (br $l))))`

// Compile turns WAT text into a wasm binary.
func Compile(t testing.TB, wat string) []byte {
	t.Helper()
	wasm, err := wasmtime.Wat2Wasm(wat)
	require.NoError(t, err)
	return wasm
}
