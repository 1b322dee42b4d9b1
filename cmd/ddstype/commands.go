package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/dds-core/descriptor"
	"github.com/wippyai/dds-core/idl"
	"github.com/wippyai/dds-core/keys"
	"github.com/wippyai/dds-core/memory"
	"github.com/wippyai/dds-core/sertype"
	"github.com/wippyai/dds-core/shm"
)

// load builds the named topic types of a YAML tree, or every topic when no
// names are given. A file that is not YAML is read as a binary descriptor.
func (a *app) load(path string, names []string) ([]*sertype.Default, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		st, err := sertype.UnmarshalDescriptor(data)
		if err != nil {
			return nil, fmt.Errorf("decode descriptor %s: %w", path, err)
		}
		return []*sertype.Default{st}, nil
	}

	unit, err := idl.Parse(data)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		names = lo.Map(unit.Topics(), func(s *idl.Struct, _ int) string { return s.Name })
	}
	out := make([]*sertype.Default, 0, len(names))
	for _, name := range names {
		d, err := descriptor.Build(unit, name, a.cfg.Build.Options()...)
		if err != nil {
			lo.ForEach(out, func(st *sertype.Default, _ int) { st.Unref() })
			return nil, err
		}
		out = append(out, sertype.New(d))
		a.log.Debug("type built", zap.String("type", name), zap.Int("keys", len(d.Keys)))
	}
	return out, nil
}

func release(types []*sertype.Default) {
	for _, st := range types {
		st.Unref()
	}
}

func newKeysCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keys <types.yaml> [type...]",
		Short: "Show the key fields of topic types",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := a.load(args[0], args[1:])
			if err != nil {
				return err
			}
			defer release(types)
			s := newStyles(cmd.OutOrStdout(), a.noColor)
			for _, st := range types {
				writeKeys(cmd.OutOrStdout(), s, st.Descriptor())
			}
			return nil
		},
	}
}

func writeKeys(w io.Writer, s styles, d *descriptor.Descriptor) {
	fmt.Fprintln(w, s.title.Render(d.TypeName))
	if d.Keyless() {
		fmt.Fprintln(w, s.dim.Render("keyless"))
		fmt.Fprintln(w)
		return
	}
	rows := lo.Map(d.Keys, func(f keys.Field, _ int) []string {
		ids := lo.Map(f.IDPath, func(id uint32, _ int) string { return strconv.FormatUint(uint64(id), 10) })
		return []string{
			s.key.Render(f.Name),
			strings.Join(ids, "."),
			strconv.Itoa(f.Index),
			strconv.Itoa(f.SampleIndex),
			strconv.Itoa(f.OpsOffset),
		}
	})
	fmt.Fprintln(w, s.table([]string{"NAME", "ID PATH", "INDEX", "SAMPLE", "KOF"}, rows))
	fmt.Fprintln(w, s.table([]string{"VERSION", "FIXED", "SIZE"}, [][]string{
		sizeRow("XCDR1", d.KeySize.XCDR1),
		sizeRow("XCDR2", d.KeySize.XCDR2),
	}))
	fmt.Fprintln(w)
}

func sizeRow(version string, info keys.SizeInfo) []string {
	return []string{version, strconv.FormatBool(info.Fixed), strconv.FormatUint(uint64(info.Size), 10)}
}

func newDescribeCmd(a *app) *cobra.Command {
	var ops bool
	cmd := &cobra.Command{
		Use:   "describe <types.yaml|descriptor.bin> [type...]",
		Short: "Show descriptor properties and layout bytecode",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := a.load(args[0], args[1:])
			if err != nil {
				return err
			}
			defer release(types)
			w := cmd.OutOrStdout()
			s := newStyles(w, a.noColor)
			for _, st := range types {
				writeDescription(w, s, st)
				if ops {
					fmt.Fprintln(w, st.Descriptor().Program.Dump())
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&ops, "ops", true, "Dump the layout bytecode")
	return cmd
}

type flagName struct {
	flag descriptor.Flags
	name string
}

var flagNames = []flagName{
	{descriptor.FlagFixedKey, "fixed-key"},
	{descriptor.FlagFixedKeyXCDR2, "fixed-key-xcdr2"},
	{descriptor.FlagNoOptimize, "no-optimize"},
	{descriptor.FlagDisableTypecheck, "disable-typecheck"},
	{descriptor.FlagXCDR2, "xcdr2"},
	{descriptor.FlagContainsOptional, "contains-optional"},
}

func describeFlags(f descriptor.Flags) string {
	set := lo.FilterMap(flagNames, func(n flagName, _ int) (string, bool) {
		return n.name, f.Has(n.flag)
	})
	if len(set) == 0 {
		return "-"
	}
	return strings.Join(set, ",")
}

func writeDescription(w io.Writer, s styles, st *sertype.Default) {
	d := st.Descriptor()
	fmt.Fprintln(w, s.title.Render(d.TypeName))
	fmt.Fprintln(w, s.table([]string{"PROPERTY", "VALUE"}, [][]string{
		{"size", strconv.FormatUint(uint64(d.Size), 10)},
		{"align", strconv.FormatUint(uint64(d.Align), 10)},
		{"extensibility", d.Extensibility.String()},
		{"flags", describeFlags(d.Flags)},
		{"format", st.Format().String()},
		{"encoding", st.EncodingVersion().String()},
		{"optimized size", strconv.FormatUint(uint64(st.OptimizedSize()), 10)},
		{"keys", strings.Join(d.Keys.Names(), ", ")},
		{"typeid", st.TypeID().String()},
	}))
}

func newEncodeCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "encode <types.yaml> <type>",
		Short: "Write the binary descriptor of a topic type",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := a.load(args[0], args[1:])
			if err != nil {
				return err
			}
			defer release(types)
			data, err := types[0].MarshalDescriptor()
			if err != nil {
				return err
			}
			if output == "" {
				fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(data))
				return nil
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			a.log.Info("descriptor written", zap.String("type", args[1]), zap.String("path", output), zap.Int("bytes", len(data)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (hex on stdout when empty)")
	return cmd
}

func newSampleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sample <types.yaml|descriptor.bin> [type]",
		Short: "Serialize a zero sample through a shared-memory chunk",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := a.load(args[0], args[1:])
			if err != nil {
				return err
			}
			defer release(types)
			return a.sample(cmd.OutOrStdout(), types[0])
		},
	}
}

// sample round-trips a zeroed sample of st through a chunk and prints the
// serialized form.
func (a *app) sample(w io.Writer, st *sertype.Default) error {
	mem := memory.NewLinear(4096)
	tr := shm.New(a.cfg.Transport.Shm(), mem, mem)

	ptrs, err := st.ReallocSamples(mem, mem, 0, 0, 2)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.FreeSamples(mem, mem, ptrs, sertype.FreeAll); err != nil {
			a.log.Warn("free samples", zap.Error(err))
		}
	}()

	data, err := st.Serialize(mem, ptrs[0])
	if err != nil {
		return err
	}
	chunk, err := tr.Loan(uint32(len(data)))
	if err != nil {
		return err
	}
	defer func() { _ = tr.Release(chunk) }()
	if err := tr.Fill(st, chunk, ptrs[0], shm.Header{}); err != nil {
		return err
	}
	h, err := tr.Take(st, chunk, ptrs[1])
	if err != nil {
		return err
	}

	s := newStyles(w, a.noColor)
	fmt.Fprintln(w, s.title.Render(st.Name()))
	fmt.Fprintln(w, s.table([]string{"PROPERTY", "VALUE"}, [][]string{
		{"serialized", hex.EncodeToString(data)},
		{"chunk state", h.State.String()},
		{"chunk size", strconv.FormatUint(uint64(h.DataSize), 10)},
		{"keyhash", hex.EncodeToString(h.KeyHash[:])},
	}))
	return nil
}
