// Copyright 2025 Jonathan Amsterdam. All rights reserved.
// Use of this source code is governed by a
// license that can be found in the LICENSE file.

// Tight compresses and decompresses single files with Huffman coding.
//
// Usage:
//
//	tight [flags] INFILE [OUTFILE]
//
// The exit code is the numeric status of the operation, or 1 for a
// command-line mistake.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/duke-git/lancet/v2/fileutil"
	"github.com/jba/tight"
	"github.com/jba/tight/internal/config"
	"github.com/jba/tight/internal/logger"
	"github.com/jba/tight/internal/metrics"
	"github.com/rs/zerolog"
)

const copyright = "tight Copyright (C) 2025 Jonathan Amsterdam"

const exitUsage = 1

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	decompress   bool
	huffman      bool
	rle          bool
	defaultTable bool
	force        bool
	verbose      bool
	timed        bool
	configFile   string
	version      bool
	copyright    bool

	in, out string
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	var o options
	fs := flag.NewFlagSet("tight", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: tight [flags] INFILE [OUTFILE]")
		fs.PrintDefaults()
	}
	fs.BoolVar(&o.decompress, "d", false, "decompress INFILE")
	fs.BoolVar(&o.huffman, "c", false, "use Huffman coding (the default)")
	fs.BoolVar(&o.rle, "l", false, "use run-length coding (not implemented)")
	fs.BoolVar(&o.defaultTable, "D", false, "build codes from the built-in frequency table instead of INFILE")
	fs.BoolVar(&o.force, "f", false, "overwrite OUTFILE if it exists")
	fs.BoolVar(&o.verbose, "v", false, "log at debug level")
	fs.BoolVar(&o.timed, "t", false, "report elapsed time and compression ratio")
	fs.StringVar(&o.configFile, "config", "", "YAML configuration `file`")
	fs.BoolVar(&o.version, "version", false, "print the format version and exit")
	fs.BoolVar(&o.copyright, "copyright", false, "print the copyright notice and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.version || o.copyright {
		return &o, nil
	}
	switch fs.NArg() {
	case 2:
		o.out = fs.Arg(1)
		fallthrough
	case 1:
		o.in = fs.Arg(0)
	case 0:
		fs.Usage()
		return nil, errors.New("missing input file")
	default:
		fs.Usage()
		return nil, errors.New("too many file arguments")
	}
	return &o, nil
}

func (o *options) mode() tight.Mode {
	var m tight.Mode
	if o.huffman {
		m |= tight.ModeHuffman
	}
	if o.rle {
		m |= tight.ModeRLE
	}
	if m == 0 {
		m = tight.ModeHuffman
	}
	return m
}

// outputName derives the output file name when none is given.
func outputName(in, suffix string, decompress bool) string {
	if !decompress {
		return in + suffix
	}
	if name, ok := strings.CutSuffix(in, suffix); ok && name != "" {
		return name
	}
	return in + ".out"
}

func run(args []string, stdout, stderr io.Writer) int {
	o, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return int(tight.Ok)
		}
		fmt.Fprintln(stderr, "tight:", err)
		return exitUsage
	}
	switch {
	case o.version:
		fmt.Fprintf(stdout, "tight format %d.%d.%d\n", tight.Version[0], tight.Version[1], tight.Version[2])
		return int(tight.Ok)
	case o.copyright:
		fmt.Fprintln(stdout, copyright)
		return int(tight.Ok)
	}

	conf, err := config.Load(o.configFile)
	if err != nil {
		fmt.Fprintln(stderr, "tight:", err)
		return exitUsage
	}
	log, err := logger.New(conf, stderr, o.verbose)
	if err != nil {
		fmt.Fprintln(stderr, "tight: log.level:", err)
		return exitUsage
	}
	if o.out == "" {
		o.out = outputName(o.in, conf.String("output.suffix", ".tight"), o.decompress)
	}
	if o.out == o.in {
		log.Error().Str("file", o.in).Msg("input and output are the same file")
		return exitUsage
	}
	if !o.force && fileutil.IsExist(o.out) {
		log.Error().Str("file", o.out).Msg("output file exists; use -f to overwrite")
		return int(tight.IoError)
	}

	m := metrics.New()
	status := execute(o, conf, log, m)
	if path := conf.String("metrics.file"); path != "" {
		if err := m.WriteFile(path); err != nil {
			log.Warn().Err(err).Str("file", path).Msg("writing metrics")
		}
	}
	return int(status)
}

// execute runs one operation from o.in to o.out. On failure the output file is removed.
func execute(o *options, conf *config.Conf, log zerolog.Logger, m *metrics.Metrics) (status tight.Status) {
	op := "compress"
	if o.decompress {
		op = "decompress"
	}
	in, err := os.Open(o.in)
	if err != nil {
		log.Error().Err(err).Msg("opening input")
		return tight.IoError
	}
	defer in.Close()
	out, err := os.OpenFile(o.out, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		log.Error().Err(err).Msg("creating output")
		return tight.IoError
	}
	defer func() {
		if err := out.Close(); err != nil && status == tight.Ok {
			log.Error().Err(err).Msg("closing output")
			status = tight.IoError
		}
		if status != tight.Ok {
			if err := os.Remove(o.out); err != nil {
				log.Warn().Err(err).Str("file", o.out).Msg("removing partial output")
			}
		}
	}()

	st := tight.New(
		tight.WithLogger(log),
		tight.WithBufferSizes(conf.Int("buffer.read"), conf.Int("buffer.write")))
	start := time.Now()
	if o.decompress {
		status = st.Decompress(out, in)
	} else {
		var freqs *tight.FrequencyTable
		if o.defaultTable {
			freqs = &tight.DefaultFrequencies
		}
		status = st.Compress(out, in, o.mode(), freqs)
	}
	elapsed := time.Since(start)
	nin, nout := st.Counts()
	m.Observe(op, status.String(), nin, nout, elapsed)

	if o.timed && status == tight.Ok {
		ev := log.Info().Str("op", op).Dur("elapsed", elapsed).Int64("in", nin).Int64("out", nout)
		if nin > 0 {
			ev = ev.Float64("ratio", float64(nout)/float64(nin))
		}
		ev.Msg("timed")
	}
	return status
}
