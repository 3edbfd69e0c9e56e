package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/tiny16/tiny16/cpu"
	"github.com/tiny16/tiny16/emulator"
	"github.com/tiny16/tiny16/mem"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "asm":
		err = runAsm(os.Args[2:])
	case "emu":
		err = runEmu(os.Args[2:])
	case "run":
		err = runRun(os.Args[2:])
	case "list":
		runList()
	default:
		fmt.Fprintf(os.Stderr, "tiny16: unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "tiny16: %v\n", err)
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: tiny16 <asm|emu|run|list> ...")
	fmt.Fprintln(os.Stderr, "  tiny16 asm <src|-example NAME> [-o out.bin] [-v]")
	fmt.Fprintln(os.Stderr, "  tiny16 emu <image> [-base A] [-pc A] [-dump A0,A1] [-v]")
	fmt.Fprintln(os.Stderr, "  tiny16 run <src|-example NAME> [-dump A0,A1] [-v]")
	fmt.Fprintln(os.Stderr, "  tiny16 list")
}

func sourceText(path, example string) (string, string, error) {
	if example != "" {
		text, ok := examples[example]
		if !ok {
			return "", "", fmt.Errorf("no such built-in example %q", example)
		}
		return text, "example:" + example, nil
	}
	if path == "" {
		return "", "", fmt.Errorf("missing source file (or -example NAME)")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return string(b), path, nil
}

func runAsm(args []string) error {
	fs := flag.NewFlagSet("asm", flag.ExitOnError)
	out := fs.String("o", "a.bin", "output image path")
	example := fs.String("example", "", "assemble a built-in example instead of a file")
	verbose := fs.Bool("v", false, "verbose assembler trace")
	fs.Parse(args)

	path := fs.Arg(0)
	if fs.NArg() > 1 {
		fs.Parse(fs.Args()[1:])
	}
	text, label, err := sourceText(path, *example)
	if err != nil {
		return err
	}

	asm := &cpu.Assembler{Verbose: *verbose}
	prog, err := asm.Parse(strings.NewReader(text))
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}

	if err := os.WriteFile(*out, prog.Image, 0o644); err != nil {
		return err
	}
	fmt.Printf("Assembled %s -> %s (%d bytes)\n", label, *out, len(prog.Image))
	return nil
}

func runEmu(args []string) error {
	fs := flag.NewFlagSet("emu", flag.ExitOnError)
	base := fs.Uint("base", 0, "base load address")
	pc := fs.Uint("pc", 0, "initial program counter")
	dump := fs.String("dump", "", "dump range A0,A1 (inclusive) after halt")
	verbose := fs.Bool("v", false, "verbose CPU trace")
	fs.Parse(args)

	path := fs.Arg(0)
	if fs.NArg() > 1 {
		fs.Parse(fs.Args()[1:])
	}
	if path == "" {
		return fmt.Errorf("missing <image>")
	}
	image, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	emu := emulator.NewEmulator(mem.NewWriterSink(os.Stdout))
	emu.Verbose = *verbose
	if err := emu.Load(image, uint16(*base)); err != nil {
		return err
	}
	emu.Reset(uint16(*pc))

	if err := emu.Run(context.Background()); err != nil {
		return err
	}

	if *dump != "" {
		a0, a1, err := parseDumpRange(*dump)
		if err != nil {
			return err
		}
		printDump(emu.Mem, a0, a1)
	}
	return nil
}

func runRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	example := fs.String("example", "", "run a built-in example instead of a file")
	dump := fs.String("dump", "", "dump range A0,A1 (inclusive) after halt")
	verbose := fs.Bool("v", false, "verbose assembler/CPU trace")
	fs.Parse(args)

	path := fs.Arg(0)
	if fs.NArg() > 1 {
		fs.Parse(fs.Args()[1:])
	}
	text, label, err := sourceText(path, *example)
	if err != nil {
		return err
	}

	asm := &cpu.Assembler{Verbose: *verbose}
	prog, err := asm.Parse(strings.NewReader(text))
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}

	emu := emulator.NewEmulator(mem.NewWriterSink(os.Stdout))
	emu.Verbose = *verbose
	emu.Program = prog
	if err := emu.Load(prog.Image, 0x0000); err != nil {
		return err
	}
	emu.Reset(0x0000)

	if err := emu.Run(context.Background()); err != nil {
		return err
	}

	if *dump != "" {
		a0, a1, err := parseDumpRange(*dump)
		if err != nil {
			return err
		}
		printDump(emu.Mem, a0, a1)
	}
	return nil
}

func runList() {
	names := make([]string, 0, len(examples))
	for name := range examples {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Println(name)
	}
}

// parseDumpRange parses the "-dump A0,A1" flag value.
func parseDumpRange(s string) (a0, a1 uint16, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("-dump wants A0,A1, got %q", s)
	}
	lo, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 0, 16)
	if err != nil {
		return 0, 0, err
	}
	hi, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 0, 16)
	if err != nil {
		return 0, 0, err
	}
	return uint16(lo), uint16(hi), nil
}

// printDump formats m's contents from a0 to a1 inclusive, 16 bytes per
// row with a "%04x:" address prefix.
func printDump(m *mem.Memory, a0, a1 uint16) {
	for a := uint32(a0); a <= uint32(a1); a += 16 {
		fmt.Printf("%04x:", a)
		for i := uint32(0); i < 16 && a+i <= uint32(a1); i++ {
			fmt.Printf(" %02x", m.Read8(uint16(a+i)))
		}
		fmt.Println()
	}
}
