package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gorilincode/backend/internal/render"
	"github.com/gorilincode/backend/internal/transpile"
	"github.com/gorilincode/backend/internal/tutor"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Run code in the sandbox",
		Long: `Execute JavaScript in the sandbox and print the captured console.

Code can be provided via:
  - File argument: gorilin run hola.js
  - Inline flag: gorilin run -c 'console.log(1 + 1)'
  - Stdin: echo 'console.log(1 + 1)' | gorilin run

TypeScript annotations are stripped first with --ts or a .ts file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(cmd, args, 0)
			if err != nil {
				return err
			}
			typed, _ := cmd.Flags().GetBool("ts")
			if len(args) > 0 && (hasExt(args[0], ".ts") || hasExt(args[0], ".tsx")) {
				typed = true
			}
			timeout, _ := cmd.Flags().GetDuration("timeout")

			svc, closeFn, err := newService(cmd, timeout)
			if err != nil {
				return err
			}
			defer closeFn()

			out, err := svc.Playground(cmd.Context(), tutor.PlaygroundRequest{
				Source:     source,
				TypeScript: typed,
			})
			if err != nil {
				return err
			}
			printLogs(cmd.OutOrStdout(), out.Execution.Logs)
			if out.Execution.HasError() {
				return errors.New(out.Execution.ErrorMessage)
			}
			return nil
		},
	}
	cmd.Flags().StringP("code", "c", "", "Code to execute")
	cmd.Flags().Bool("ts", false, "Strip TypeScript annotations before running")
	cmd.Flags().Duration("timeout", 2*time.Second, "Execution timeout")
	return cmd
}

func newStripCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strip [file]",
		Short: "Print TypeScript source with its annotations removed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(cmd, args, 0)
			if err != nil {
				return err
			}
			dropEnums, _ := cmd.Flags().GetBool("drop-enums")
			s := transpile.NewStripper(transpile.Options{DropEnums: dropEnums}, logger(cmd))
			fmt.Fprintln(cmd.OutOrStdout(), s.Strip(source))
			return nil
		},
	}
	cmd.Flags().StringP("code", "c", "", "Code to strip")
	cmd.Flags().Bool("drop-enums", false, "Remove enums instead of lowering them to objects")
	return cmd
}

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Assemble an HTML preview document",
		Long: `Wrap markup and style in a complete preview document.

Values starting with @ are read from files: gorilin render --markup @index.html`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			markup, err := flagValue(cmd, "markup")
			if err != nil {
				return err
			}
			style, err := flagValue(cmd, "style")
			if err != nil {
				return err
			}
			res := render.Render(markup, style, "", "")
			if res.Error != "" {
				return errors.New(res.Error)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.HTML)
			return nil
		},
	}
	cmd.Flags().String("markup", "", "HTML body markup or @file")
	cmd.Flags().String("style", "", "CSS or @file")
	return cmd
}

func flagValue(cmd *cobra.Command, name string) (string, error) {
	v, _ := cmd.Flags().GetString(name)
	if len(v) > 1 && v[0] == '@' {
		data, err := os.ReadFile(v[1:])
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return v, nil
}

func hasExt(name, ext string) bool {
	return len(name) > len(ext) && name[len(name)-len(ext):] == ext
}
