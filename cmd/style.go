package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var styleCmd = &cobra.Command{
	Use:   "style <image>",
	Short: "Derive an art style prompt from a reference image",
	Args:  cobra.ExactArgs(1),
	RunE:  runStyle,
}

func init() {
	rootCmd.AddCommand(styleCmd)
}

func runStyle(cmd *cobra.Command, args []string) error {
	service, pipeline, err := buildPipeline(cmd.Context(), "")
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	style, err := styleFromImage(cmd, service, pipeline, args[0])
	if err != nil {
		return err
	}
	fmt.Println(style)
	return nil
}
