// Command hicdump prints the content of a contact-matrix file.
//
// Usage:
//
//	hicdump [flags] info <file>
//	hicdump [flags] blocks <file> <chr1> <chr2>
//	hicdump [flags] records <file> <chr1> <chr2>
//	hicdump [flags] norm <file> <chr>
//	hicdump [flags] expected <file>
//	hicdump [flags] sites <file> <chr>
//	hicdump [flags] stats <file>
//
// <file> is a local path or a file://, s3:// or minio:// URI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/arloliu/hic"
	"github.com/arloliu/hic/dataset"
	"github.com/arloliu/hic/format"
	"github.com/arloliu/hic/norm"
)

type options struct {
	unit     string
	binSize  int
	normType string
	channels int
	limit    int
	ram      bool
	mmap     bool
	rescale  bool
	verbose  bool
}

func main() {
	var opts options
	flag.StringVar(&opts.unit, "unit", "BP", "Bin unit (BP or FRAG)")
	flag.IntVar(&opts.binSize, "res", 0, "Bin size; 0 selects the coarsest resolution")
	flag.StringVar(&opts.normType, "norm", "NONE", "Normalization type (NONE, KR, VC, VC_SQRT, SCALE, ...)")
	flag.IntVar(&opts.channels, "channels", dataset.DefaultChannels, "Number of I/O channels")
	flag.IntVar(&opts.limit, "limit", 20, "Maximum records or values to print; 0 prints all")
	flag.BoolVar(&opts.ram, "ram", false, "Load whole matrices into memory when they fit")
	flag.BoolVar(&opts.mmap, "mmap", false, "Memory-map local files")
	flag.BoolVar(&opts.rescale, "rescale", false, "Rebalance the normalization vector against the raw matrix (norm command)")
	flag.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Stdout, flag.Arg(0), flag.Arg(1), flag.Args()[2:], opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <info|blocks|records|norm|expected|sites|stats> <file> [args]\n\nFlags:\n", os.Args[0])
	flag.PrintDefaults()
}

func run(ctx context.Context, w io.Writer, command, location string, args []string, opts options) error {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	metrics := &dataset.BasicMetrics{}

	r, err := hic.Open(ctx, location,
		hic.WithChannels(opts.channels),
		hic.WithLogger(dataset.NewTextLogger(level)),
		hic.WithMetrics(metrics),
		hic.WithMmap(opts.mmap),
		hic.WithSaveAllIntoRAM(opts.ram),
	)
	if err != nil {
		return err
	}
	defer r.Close()

	switch command {
	case "info":
		err = printInfo(w, r)
	case "blocks", "records":
		if len(args) < 2 {
			return errors.New(command + " needs two chromosome names")
		}
		err = printMatrix(ctx, w, r, args[0], args[1], command == "records", opts)
	case "norm":
		if len(args) < 1 {
			return errors.New("norm needs a chromosome name")
		}
		err = printNorm(ctx, w, r, args[0], opts)
	case "expected":
		err = printExpected(ctx, w, r, opts)
	case "sites":
		if len(args) < 1 {
			return errors.New("sites needs a chromosome name")
		}
		err = printSites(ctx, w, r, args[0], opts)
	case "stats":
		fmt.Fprint(w, r.ReadStats(ctx))
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	if err != nil {
		return err
	}

	if opts.verbose {
		s := metrics.Stats()
		fmt.Fprintf(w, "\nreads=%d bytes=%d decompressions=%d blocks=%d records=%d\n",
			s.ReadCount, s.ReadBytes, s.DecompressCount, s.DecodeCount, s.DecodeRecords)
	}

	return nil
}

func printInfo(w io.Writer, r *hic.Reader) error {
	fmt.Fprintf(w, "Version:    %d\n", r.Version())
	fmt.Fprintf(w, "Genome:     %s\n", r.Genome())
	fmt.Fprintf(w, "Resolutions (BP):   %v\n", r.BpResolutions())
	fmt.Fprintf(w, "Resolutions (FRAG): %v\n", r.FragResolutions())

	types := make([]string, 0, len(r.NormalizationTypes()))
	for _, t := range r.NormalizationTypes() {
		types = append(types, string(t))
	}
	fmt.Fprintf(w, "Normalizations:     %s\n", strings.Join(types, ", "))

	fmt.Fprintln(w, "\nChromosomes:")
	for _, chr := range r.Chromosomes() {
		fmt.Fprintf(w, "  %3d  %-12s %12d  fragments=%d\n", chr.Index, chr.Name, chr.Length, r.FragmentCount(chr.Name))
	}

	if len(r.Attributes()) > 0 {
		fmt.Fprintln(w, "\nAttributes:")
		for k, v := range r.Attributes() {
			if len(v) > 60 {
				v = v[:60] + "..."
			}
			fmt.Fprintf(w, "  %s = %s\n", k, v)
		}
	}

	fmt.Fprintf(w, "\nMatrices: %d\n", len(r.MatrixKeys()))

	return nil
}

func chromosome(r *hic.Reader, name string) (int32, error) {
	chr, ok := r.ChromosomeByName(name)
	if !ok {
		return 0, fmt.Errorf("unknown chromosome %q", name)
	}

	return int32(chr.Index), nil //nolint: gosec
}

func resolve(ctx context.Context, r *hic.Reader, chr1, chr2 string, opts options) (*dataset.ZoomData, error) {
	c1, err := chromosome(r, chr1)
	if err != nil {
		return nil, err
	}
	c2, err := chromosome(r, chr2)
	if err != nil {
		return nil, err
	}

	m, err := r.ReadMatrix(ctx, c1, c2)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("matrix %s/%s is unreadable", chr1, chr2)
	}

	if opts.binSize == 0 {
		for _, z := range m.Zooms() {
			if strings.EqualFold(z.Unit().String(), opts.unit) {
				return z, nil
			}
		}

		return nil, fmt.Errorf("matrix %s has no %s resolution", m.Key, opts.unit)
	}

	return m.Zoom(format.ParseUnit(opts.unit), int32(opts.binSize)) //nolint: gosec
}

func printMatrix(ctx context.Context, w io.Writer, r *hic.Reader, chr1, chr2 string, records bool, opts options) error {
	z, err := resolve(ctx, r, chr1, chr2, opts)
	if err != nil {
		return err
	}
	numbers, err := z.BlockNumbers(ctx)
	if err != nil {
		return err
	}

	h := z.Header()
	fmt.Fprintf(w, "%s: binSize=%d blockBinCount=%d blockColumnCount=%d blocks=%d average=%.4f\n",
		z.Key(), h.BinSize, h.BlockBinCount, h.BlockColumnCount, len(numbers), z.AverageCount())

	if !records {
		blocks, err := r.ReadBlocks(ctx, z, numbers, format.ParseNormType(opts.normType))
		if err != nil {
			return err
		}
		for i, blk := range blocks {
			if blk == nil {
				fmt.Fprintf(w, "  block %d: %s unavailable\n", numbers[i], opts.normType)
				continue
			}
			fmt.Fprintf(w, "  block %d: %d records\n", blk.Number, blk.Len())
		}

		return nil
	}

	src, res := r.Materialize(ctx, z)
	if closer, ok := src.(io.Closer); ok {
		defer closer.Close()
	}
	if opts.ram {
		fmt.Fprintf(w, "materialized=%v estimated=%d bytes\n", res.Materialized, res.EstimatedBytes)
	}

	printed := 0
	for rec, err := range src.Records(ctx) {
		if err != nil {
			return err
		}
		if opts.limit > 0 && printed >= opts.limit {
			break
		}
		fmt.Fprintf(w, "%d\t%d\t%g\n", rec.BinX, rec.BinY, rec.Counts)
		printed++
	}

	return nil
}

func printNorm(ctx context.Context, w io.Writer, r *hic.Reader, chrName string, opts options) error {
	chr, err := chromosome(r, chrName)
	if err != nil {
		return err
	}
	binSize := int32(opts.binSize) //nolint: gosec
	if binSize == 0 && len(r.BpResolutions()) > 0 {
		binSize = r.BpResolutions()[0]
	}

	normType := format.ParseNormType(opts.normType)
	var v *norm.Vector
	if opts.limit > 0 {
		v, err = r.ReadNormalizationVectorPart(ctx, normType, chr, opts.unit, binSize, 0, int64(opts.limit-1))
	} else {
		v, err = r.ReadNormalizationVector(ctx, normType, chr, opts.unit, binSize)
	}
	if err != nil {
		return err
	}
	if opts.rescale {
		full, err := r.ReadNormalizationVector(ctx, normType, chr, opts.unit, binSize)
		if err != nil {
			return err
		}
		if v, err = r.ScaleNormalizationVector(ctx, full, nil); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "%s (%d values)\n", v.Key(), v.Len())
	for i, value := range v.Values {
		if opts.limit > 0 && i >= opts.limit {
			break
		}
		fmt.Fprintf(w, "%d\t%g\n", v.Offset+int64(i), value)
	}

	return nil
}

func printExpected(ctx context.Context, w io.Writer, r *hic.Reader, opts options) error {
	for _, f := range r.ExpectedValueFunctions() {
		n := f.Len()
		if opts.limit > 0 {
			n = min(n, int64(opts.limit))
		}
		var values []float64
		if n > 0 {
			var err error
			if values, err = f.ValuesRange(ctx, 0, n-1); err != nil {
				return err
			}
		}
		fmt.Fprintf(w, "%s strategy=%s values=%d head=%v\n", f.Key(), f.Strategy(), f.Len(), values)
	}

	return nil
}

func printSites(ctx context.Context, w io.Writer, r *hic.Reader, chrName string, opts options) error {
	sites, err := r.FragmentSites(ctx, chrName)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %d sites\n", chrName, len(sites))
	for i, s := range sites {
		if opts.limit > 0 && i >= opts.limit {
			break
		}
		fmt.Fprintln(w, s)
	}

	return nil
}
