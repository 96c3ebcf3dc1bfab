package casm

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cucaracha-toolchain/casm/internal/diag"
	"github.com/cucaracha-toolchain/casm/internal/directive"
	"github.com/cucaracha-toolchain/casm/internal/lineprog"
	"github.com/cucaracha-toolchain/casm/internal/section"
)

var (
	buildOut           string
	buildAddrSize      int
	buildLinkRelax     bool
	buildDwarf64       bool
	buildMinInsnLength int
	buildMarkLabels    bool
)

var buildCmd = &cobra.Command{
	Use:   "build [directive-file]",
	Short: "Encode a .file/.loc directive stream into .debug_line and its companion sections",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildOut, "out", "o", "a.debug", "output path prefix")
	buildCmd.Flags().IntVar(&buildAddrSize, "addr-size", 8, "target address size in bytes")
	buildCmd.Flags().BoolVar(&buildLinkRelax, "linkrelax", false, "leave final row addresses to the linker")
	buildCmd.Flags().BoolVar(&buildDwarf64, "dwarf64", false, "emit the 64-bit DWARF initial-length/offset format")
	buildCmd.Flags().IntVar(&buildMinInsnLength, "min-insn-length", 1, "minimum instruction length in bytes (DWARF2_LINE_MIN_INSN_LENGTH)")
	buildCmd.Flags().BoolVar(&buildMarkLabels, "mark-labels", false, "emit a basic_block row for every user label, as .loc_mark_labels 1 would")
	viper.BindPFlag("build.addr_size", buildCmd.Flags().Lookup("addr-size"))
}

func runBuild(cmd *cobra.Command, args []string) error {
	errColor := color.New(color.FgRed, color.Bold)
	okColor := color.New(color.FgGreen)

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("casm build: %w", err)
	}
	defer f.Close()

	ops, err := directive.Scan(f)
	if err != nil {
		errColor.Fprintln(cmd.ErrOrStderr(), err)
		return err
	}

	sink := diag.New(cmd.ErrOrStderr(), 512)
	ctx := lineprog.NewContext(sink)
	seg := section.NewCodeSegment(".text")
	drv := directive.NewDriver(ctx, seg)
	drv.SetMarkLabels(buildMarkLabels)

	if err := drv.Run(ops); err != nil {
		errColor.Fprintln(cmd.ErrOrStderr(), err)
		return err
	}

	ctx.Segment(".text").TextStart.SetValue(0)
	ctx.Segment(".text").TextEnd.SetValue(seg.Offset())

	ctx.FinalCheck()

	addrSize := buildAddrSize
	if v := viper.GetInt("build.addr_size"); v != 0 {
		addrSize = v
	}
	linkRelax := buildLinkRelax
	dwarf64 := buildDwarf64
	minInsnLength := buildMinInsnLength
	out := buildOut

	if proj, err := loadProjectConfig("casm.yaml"); err == nil {
		if !cmd.Flags().Changed("addr-size") && proj.AddrSize != 0 {
			addrSize = proj.AddrSize
		}
		if !cmd.Flags().Changed("linkrelax") && proj.LinkRelax {
			linkRelax = proj.LinkRelax
		}
		if !cmd.Flags().Changed("dwarf64") && proj.Dwarf64 {
			dwarf64 = proj.Dwarf64
		}
		if !cmd.Flags().Changed("min-insn-length") && proj.MinInsnLength != 0 {
			minInsnLength = proj.MinInsnLength
		}
		if !cmd.Flags().Changed("out") && proj.Out != "" {
			out = proj.Out
		}
	}

	hdr := lineprog.DefaultHeader()
	hdr.AddrSize = addrSize
	hdr.LinkRelax = linkRelax
	hdr.Dwarf64 = dwarf64
	hdr.MinInsnLength = minInsnLength

	debugLine := ctx.Emit(hdr)
	if debugLine == nil {
		for _, rec := range sink.Records() {
			fmt.Fprintln(cmd.ErrOrStderr(), rec)
		}
		okColor.Fprintf(cmd.OutOrStdout(), "no .loc/.file directives in %s, nothing written\n", args[0])
		return nil
	}

	cu := lineprog.CompileUnit{
		Name:     filepath.Base(args[0]),
		CompDir:  mustGetwd(),
		Producer: "casm",
		AddrSize: addrSize,
		LowPC:    0,
		HighPC:   uint32(seg.Offset()),
		StmtList: 0,
		Dwarf64:  dwarf64,
	}
	str := lineprog.NewStrTable()
	debugInfo := lineprog.DebugInfo(cu, str)
	debugAbbrev := lineprog.DebugAbbrev(dwarf64)
	debugAranges := lineprog.DebugAranges(cu)

	files := map[string][]byte{
		".debug_line":    debugLine,
		".debug_info":    debugInfo,
		".debug_abbrev":  debugAbbrev,
		".debug_aranges": debugAranges,
		".debug_str":     str.Bytes(),
	}
	for suffix, content := range files {
		path := out + suffix
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return fmt.Errorf("casm build: %w", err)
		}
	}

	for _, rec := range sink.Records() {
		fmt.Fprintln(cmd.ErrOrStderr(), rec)
	}
	okColor.Fprintf(cmd.OutOrStdout(), "wrote %s.debug_line (%d bytes)\n", out, len(debugLine))
	return nil
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
