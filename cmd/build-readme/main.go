// Command build-readme regenerates README.md with the current slash command
// reference.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"ddmbot/internal/discord"
	"ddmbot/internal/docs"
	"ddmbot/internal/version"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var tmplPath, outPath string

	root := &cobra.Command{
		Use:           "build-readme",
		Short:         "Generate README.md from the registered slash commands",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tpl, err := readTemplate(tmplPath)
			if err != nil {
				return err
			}
			reg, err := discord.NewRegistry()
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := docs.Render(&buf, tpl, reg, version.AppName, version.AppDescription); err != nil {
				return err
			}
			if outPath == "-" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated with current commands\n", outPath)
			return nil
		},
	}
	root.Flags().StringVarP(&tmplPath, "template", "t", "README.md.tmpl", "README template, the built-in one is used when missing")
	root.Flags().StringVarP(&outPath, "out", "o", "README.md", "output file, - for stdout")
	return root
}

func readTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return docs.DefaultTemplate, nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
