package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/conftree/adapters/file"
	"github.com/artpar/conftree/core/tree"
)

var getCmd = &cobra.Command{
	Use:   "get <file> <key>",
	Short: "Read one field from a configuration file",
	Long: `Get reads a single field by dotted key, e.g.:

  conftree get config.yaml database.url`,
	Args: cobra.ExactArgs(2),
	RunE: runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	path, key := args[0], args[1]

	src := file.New(path, file.WithEnvExpansion())
	data, err := src.Load(context.Background())
	if err != nil {
		return err
	}

	node := tree.New()
	if err := node.Load(data); err != nil {
		return err
	}

	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		child, err := node.Child(part)
		if err != nil {
			return err
		}
		node = child
	}

	value, err := node.Get(parts[len(parts)-1])
	if err != nil {
		return err
	}

	if child, ok := value.(*tree.Node); ok {
		out, err := child.ToYAML()
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	}

	fmt.Printf("%v\n", value)
	return nil
}
