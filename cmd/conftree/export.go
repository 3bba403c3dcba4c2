package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/conftree/adapters/file"
	"github.com/artpar/conftree/core/tree"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Re-serialize a configuration file as YAML or JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "yaml", "output format: yaml or json")
}

func runExport(cmd *cobra.Command, args []string) error {
	src := file.New(args[0], file.WithEnvExpansion())
	data, err := src.Load(context.Background())
	if err != nil {
		return err
	}

	node := tree.New()
	if err := node.Load(data); err != nil {
		return err
	}

	var out []byte
	switch exportFormat {
	case "json":
		out, err = node.ToJSON()
	case "yaml":
		out, err = node.ToYAML()
	default:
		return fmt.Errorf("unknown format %q (want yaml or json)", exportFormat)
	}
	if err != nil {
		return err
	}

	fmt.Println(string(out))
	return nil
}
