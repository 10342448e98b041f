package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"telephony-gateway/internal/outbound"
	"telephony-gateway/internal/sms"
)

type segmentsFlags struct {
	mode      string
	maxLength int
	numbering bool
	asJSON    bool
}

func newSegmentsCmd() *cobra.Command {
	var f segmentsFlags
	cmd := &cobra.Command{
		Use:   "segments [text]",
		Short: "Print the SMS segments a text would be sent as",
		Long:  "Splits the text (arguments joined by spaces, or stdin when none are given) with the chunking engine. Nothing is sent.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = strings.TrimRight(string(raw), "\r\n")
			}
			return runSegments(cmd.OutOrStdout(), text, f)
		},
	}
	cmd.Flags().StringVar(&f.mode, "mode", string(sms.ModeAuto), "chunk mode: auto, single or multi")
	cmd.Flags().IntVar(&f.maxLength, "max-length", sms.DefaultMaxLength, "characters kept before segmentation")
	cmd.Flags().BoolVar(&f.numbering, "numbering", true, "prefix multi-part segments with [i/n]")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the preview as JSON")
	return cmd
}

func runSegments(w io.Writer, text string, f segmentsFlags) error {
	mode, err := sms.ParseMode(f.mode)
	if err != nil {
		return err
	}
	p := outbound.PreviewText(text, sms.ChunkOptions{Mode: mode, MaxLength: f.maxLength, SegmentNumbering: f.numbering})

	if f.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}

	fmt.Fprintf(w, "encoding: %s\nsegments: %d\n", p.Encoding, p.Count)
	for i, seg := range p.Segments {
		fmt.Fprintf(w, "--- %d (%d chars)\n%s\n", i+1, sms.EffectiveLength(seg), seg)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(newSegmentsCmd())
}
