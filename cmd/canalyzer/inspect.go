package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/cognicore/canalyzer/pkg/canalyzer/memory/filestore"
)

func runInspect(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	out := cmd.OutOrStdout()

	if asLines, _ := cmd.Flags().GetBool("jsonl"); asLines {
		coll, err := filestore.LoadAll(dir)
		if err != nil {
			return err
		}
		return coll.WriteJSONLines(out)
	}

	if len(args) == 1 {
		c, err := filestore.Load(dir, args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	m, err := filestore.ReadManifest(dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "written:     %s\n", m.WrittenAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "compression: %s\n", m.Compression)
	fmt.Fprintf(out, "contents:    %d\n", len(m.Contents))
	for _, e := range m.Contents {
		fmt.Fprintf(out, "  %-24s %s\n", e.ID, e.File)
	}
	return nil
}
