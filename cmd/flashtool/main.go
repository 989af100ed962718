// Command flashtool inspects and programs a serial NOR flash part on an SPI
// bus.
//
// Usage:
//
//	flashtool <command> [flags]
//
// Commands:
//
//	info      Show device id, status registers and state
//	read      Read pages as a hex dump or raw bytes
//	write     Write a file into the flash, erasing as needed
//	erase     Erase one sector
//	erase-to  Erase every sector up to and including a page
//	dump      Copy a byte range to a file
//	export    Copy a byte range into a FAT32 disk image
//
// Every command takes -config with the path of a YAML configuration file
// selecting the bus backend (rpio, periph or sim).
//
// Examples:
//
//	# Check the part is there
//	flashtool info -config pi.yaml
//
//	# Look at the first two pages
//	flashtool read -page 0 -count 2
//
//	# Pull the first megabyte into a mountable image
//	flashtool export -length 1048576 -label telemetry -o log.img
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rabidaudio/tonttuflash/cmd/flashtool/commands"
	"github.com/rabidaudio/tonttuflash/config"
)

const usage = `flashtool - serial NOR flash tool

Usage:
  flashtool <command> [flags]

Commands:
  info      Show device id, status registers and state
  read      Read pages as a hex dump or raw bytes
  write     Write a file into the flash, erasing as needed
  erase     Erase one sector
  erase-to  Erase every sector up to and including a page
  dump      Copy a byte range to a file
  export    Copy a byte range into a FAT32 disk image

Use "flashtool <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1], os.Args[2:])
	stop()
	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// errUsage is returned once the usage text has been printed.
var errUsage = errors.New("usage")

// openSession is replaced in tests.
var openSession = commands.Open

// run executes one command. The device is closed before it returns, on
// every path.
func run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "info":
		return runInfo(args)
	case "read":
		return runRead(args)
	case "write":
		return runWrite(ctx, args)
	case "erase":
		return runErase(ctx, args)
	case "erase-to":
		return runEraseTo(ctx, args)
	case "dump":
		return runDump(args)
	case "export":
		return runExport(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		return errUsage
	}
}

func newFlagSet(name, synopsis, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `flashtool %s - %s

Usage:
  flashtool %s [flags]%s

Flags:
`, name, synopsis, name, args)
		fs.PrintDefaults()
	}
	return fs
}

func usageError(fs *flag.FlagSet, msg string) error {
	fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	fs.Usage()
	return errUsage
}

// open parses args, loads the configuration and opens the device.
func open(fs *flag.FlagSet, args []string) (*commands.Session, error) {
	configPath := fs.String("config", "", "Configuration file (default: built-in rpio settings)")
	if err := fs.Parse(args); err != nil {
		// the flag package has already printed the problem and usage
		return nil, errUsage
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	return openSession(cfg)
}

// closeSession closes s and reports the close error unless err is set.
func closeSession(s *commands.Session, err *error) {
	if cerr := s.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

func runInfo(args []string) (err error) {
	fs := newFlagSet("info", "Show device id, status registers and state", "")
	s, err := open(fs, args)
	if err != nil {
		return err
	}
	defer closeSession(s, &err)

	return commands.RunInfo(s, os.Stdout)
}

func runRead(args []string) (err error) {
	fs := newFlagSet("read", "Read pages as a hex dump or raw bytes", "")
	page := fs.Uint("page", 0, "First page to read")
	count := fs.Uint("count", 1, "Number of pages")
	format := fs.String("format", "hex", "Output format (hex, raw)")
	s, err := open(fs, args)
	if err != nil {
		return err
	}
	defer closeSession(s, &err)

	return commands.RunRead(s, uint32(*page), uint32(*count), *format, os.Stdout)
}

func runWrite(ctx context.Context, args []string) (err error) {
	fs := newFlagSet("write", "Write a file into the flash, erasing as needed", " <file>")
	page := fs.Uint("page", 0, "First page to write")
	verify := fs.Bool("verify", true, "Read every sector back after writing it")
	s, err := open(fs, args)
	if err != nil {
		return err
	}
	defer closeSession(s, &err)

	if fs.NArg() < 1 {
		return usageError(fs, "input file path required")
	}
	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := commands.RunWrite(ctx, s, f, commands.WriteOptions{Page: uint32(*page), Verify: *verify})
	if err != nil {
		return err
	}
	fmt.Printf("programmed %d pages\n", n)
	return nil
}

func runErase(ctx context.Context, args []string) (err error) {
	fs := newFlagSet("erase", "Erase one sector", "")
	sector := fs.Uint("sector", 0, "Sector to erase")
	s, err := open(fs, args)
	if err != nil {
		return err
	}
	defer closeSession(s, &err)

	return commands.RunErase(ctx, s, uint32(*sector))
}

func runEraseTo(ctx context.Context, args []string) (err error) {
	fs := newFlagSet("erase-to", "Erase every sector up to and including a page", "")
	page := fs.Uint("page", 0, "Last page that must end up erased")
	s, err := open(fs, args)
	if err != nil {
		return err
	}
	defer closeSession(s, &err)

	n, err := commands.RunEraseTo(ctx, s, uint32(*page))
	if err != nil {
		return err
	}
	fmt.Printf("erased %d sectors\n", n)
	return nil
}

func runDump(args []string) (err error) {
	fs := newFlagSet("dump", "Copy a byte range to a file", "")
	offset := fs.Int64("offset", 0, "First byte address")
	length := fs.Int64("length", 1<<20, "Number of bytes")
	output := fs.String("o", "", "Output file (default: stdout)")
	s, err := open(fs, args)
	if err != nil {
		return err
	}
	defer closeSession(s, &err)

	rng := commands.Range{Offset: *offset, Length: *length}
	return commands.RunDump(s, rng, *output, os.Stdout)
}

func runExport(args []string) (err error) {
	fs := newFlagSet("export", "Copy a byte range into a FAT32 disk image", "")
	offset := fs.Int64("offset", 0, "First byte address")
	length := fs.Int64("length", 1<<20, "Number of bytes")
	label := fs.String("label", "flash", "Volume label and dump directory")
	output := fs.String("o", "", "Image file (required)")
	s, err := open(fs, args)
	if err != nil {
		return err
	}
	defer closeSession(s, &err)

	if *output == "" {
		return usageError(fs, "output file (-o) required")
	}

	rng := commands.Range{Offset: *offset, Length: *length}
	name, err := commands.RunExport(s, rng, *output, *label)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s into %s\n", name, *output)
	return nil
}
