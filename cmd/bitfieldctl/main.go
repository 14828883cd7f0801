// Command bitfieldctl inspects and builds packed bitfield records described
// by a schema file.
//
//	bitfieldctl -schema header.yaml layout
//	bitfieldctl -schema header.yaml decode 8a0400002a07
//	bitfieldctl -schema header.yaml encode valid=true mode=Fast seq=42
//	bitfieldctl -schema header.yaml -compress zstd pack 8a0400002a07 0a0400002b07
//	bitfieldctl -schema header.yaml unpack <frame hex>
package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/rawbytedev/bitfield"
	"github.com/rawbytedev/bitfield/pkg/compactwire"
	"github.com/rawbytedev/bitfield/pkg/schema"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
	nameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#98FB98"))
	typeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#90EE90"))
)

var errUsage = errors.New("usage: bitfieldctl -schema FILE layout|decode HEX|encode NAME=VALUE...|pack HEX...|unpack HEX")

type options struct {
	schema     string
	compress   string
	verbose    bool
	memprofile string
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "bitfieldctl:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	var opts options
	fs := flag.NewFlagSet("bitfieldctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.schema, "schema", "", "schema file (.yaml, .yml or .toml)")
	fs.StringVar(&opts.compress, "compress", "none", "frame compression for pack: none | zstd | brotli")
	fs.BoolVar(&opts.verbose, "v", false, "debug logging")
	fs.StringVar(&opts.memprofile, "memprofile", "", "write a heap profile to this file on exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.schema == "" || fs.NArg() == 0 {
		return errUsage
	}

	log, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	bitfield.SetLogger(log)

	if opts.memprofile != "" {
		runtime.MemProfileRate = 1
		defer writeHeapProfile(log, opts.memprofile)
	}

	l, err := schema.LoadFile(opts.schema)
	if err != nil {
		return err
	}
	if err := bitfield.Register(l); err != nil {
		return err
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	log.Debug("running", zap.String("cmd", cmd), zap.String("schema", l.Name()))
	switch cmd {
	case "layout":
		return printLayout(out, l)
	case "decode":
		if len(rest) != 1 {
			return errUsage
		}
		r, err := decodeHex(l, rest[0])
		if err != nil {
			return err
		}
		return printRecord(out, r)
	case "encode":
		r, err := encodeAssignments(l, rest)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, hex.EncodeToString(r.Bytes()))
		return err
	case "pack":
		flags, err := compressionFlag(opts.compress)
		if err != nil {
			return err
		}
		frame, err := pack(l, rest, flags)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, hex.EncodeToString(frame))
		return err
	case "unpack":
		if len(rest) != 1 {
			return errUsage
		}
		return unpack(out, rest[0])
	}
	return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func writeHeapProfile(log *zap.Logger, path string) {
	f, err := os.Create(path)
	if err != nil {
		log.Error("memprofile", zap.Error(err))
		return
	}
	defer f.Close()
	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Error("memprofile", zap.Error(err))
	}
}

func compressionFlag(name string) (byte, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return 0, nil
	case "zstd":
		return compactwire.FlagZstd, nil
	case "brotli":
		return compactwire.FlagBrotli, nil
	}
	return 0, fmt.Errorf("unknown compression %q", name)
}

func decodeHex(l *bitfield.Layout, s string) (*bitfield.Record, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", s, err)
	}
	return l.Wrap(data)
}

func encodeAssignments(l *bitfield.Layout, assignments []string) (*bitfield.Record, error) {
	r := l.New()
	for _, a := range assignments {
		name, value, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("assignment %q: want NAME=VALUE", a)
		}
		if err := r.Set(name, value); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func pack(l *bitfield.Layout, records []string, flags byte) ([]byte, error) {
	recs := make([]*bitfield.Record, 0, len(records))
	for _, s := range records {
		r, err := decodeHex(l, s)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return compactwire.EncodeRecords(l, recs, flags)
}

func unpack(out io.Writer, s string) error {
	data, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return fmt.Errorf("decode %q: %w", s, err)
	}
	_, recs, err := compactwire.DecodeRecords(data, nil)
	if err != nil {
		return err
	}
	for _, r := range recs {
		if _, err := fmt.Fprintln(out, r.String()); err != nil {
			return err
		}
	}
	return nil
}

func printLayout(out io.Writer, l *bitfield.Layout) error {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s  %d bits / %d bytes  id %016x", l.Name(), l.TotalBits(), l.Size(), l.ID())))
	sb.WriteByte('\n')
	for _, f := range l.Fields() {
		fmt.Fprintf(&sb, "%s %s %s\n",
			nameStyle.Width(16).Render(f.Name),
			fmt.Sprintf("%4d..%-4d", f.Offset, f.Offset+f.Width),
			typeStyle.Render(f.Spec.Name()))
	}
	_, err := io.WriteString(out, sb.String())
	return err
}

func printRecord(out io.Writer, r *bitfield.Record) error {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(r.Layout().Name()))
	sb.WriteByte('\n')
	for _, f := range r.Layout().Fields() {
		raw, err := r.GetRaw(f.Name)
		if err != nil {
			return err
		}
		value, err := r.FieldString(f.Name)
		if err != nil {
			return err
		}
		fmt.Fprintf(&sb, "%s %s %s\n",
			nameStyle.Width(16).Render(f.Name),
			valueStyle.Width(24).Render(value),
			fmt.Sprintf("0x%x", raw))
	}
	sb.WriteString(r.String())
	sb.WriteByte('\n')
	_, err := io.WriteString(out, sb.String())
	return err
}
