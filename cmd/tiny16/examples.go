package main

// examples is the built-in program registry, sourced from the
// original Tiny16 reference implementation's in-memory example set so
// a host without a filesystem handy can still assemble and run
// something.
var examples = map[string]string{
	"hello": exHello,
	"fib":   exFib,
	"timer": exTimer,
}

const exHello = `
; Minimal Hello, World using UART_OUT at 0xFF00

.org 0x0000
start:
  LDI r0, 72      ; 'H'
  OUT r0, [0xFF00]
  LDI r0, 101     ; 'e'
  OUT r0, [0xFF00]
  LDI r0, 108     ; 'l'
  OUT r0, [0xFF00]
  LDI r0, 108     ; 'l'
  OUT r0, [0xFF00]
  LDI r0, 111     ; 'o'
  OUT r0, [0xFF00]
  LDI r0, 44      ; ','
  OUT r0, [0xFF00]
  LDI r0, 32      ; ' '
  OUT r0, [0xFF00]
  LDI r0, 87      ; 'W'
  OUT r0, [0xFF00]
  LDI r0, 111     ; 'o'
  OUT r0, [0xFF00]
  LDI r0, 114     ; 'r'
  OUT r0, [0xFF00]
  LDI r0, 108     ; 'l'
  OUT r0, [0xFF00]
  LDI r0, 100     ; 'd'
  OUT r0, [0xFF00]
  LDI r0, 33      ; '!'
  OUT r0, [0xFF00]
  LDI r0, 10      ; '\n'
  OUT r0, [0xFF00]
  HALT
`

const exFib = `
; Fibonacci: compute first 10 16-bit Fibonacci numbers into memory
; at label 'buf' (inspect with -dump).

.org 0x0100
start:
  LDI r0, 0      ; a = 0
  LDI r1, 1      ; b = 1
  LDI r2, 10     ; count
  LDI r3, buf    ; pointer to buffer

loop:
  ST  r0, [r3+0] ; store a
  ADDI r3, #2    ; advance pointer (each word = 2 bytes)

  MOV r4, r1     ; temp = b
  ADD r1, r0     ; b = a + b
  MOV r0, r4     ; a = old b

  ADDI r2, #-1
  JNZ loop

  HALT

buf:
  .word 0,0,0,0,0,0,0,0,0,0
`

const exTimer = `
; Timer demo: Fetch/Compute/Store cycles and the timer's
; once-per-instruction tick.

.org 0x0000
start:
  LDI r3, 83           ; 'S'
  OUT r3, [0xFF00]

  LDI r0, 5
  LDI r1, 3
  ADD r0, r1

  LDI r3, 84           ; 'T'
  OUT r3, [0xFF00]
  LDI r3, 105          ; 'i'
  OUT r3, [0xFF00]
  LDI r3, 109          ; 'm'
  OUT r3, [0xFF00]
  LDI r3, 101          ; 'e'
  OUT r3, [0xFF00]
  LDI r3, 114          ; 'r'
  OUT r3, [0xFF00]
  LDI r3, 10           ; '\n'
  OUT r3, [0xFF00]

  HALT
`
