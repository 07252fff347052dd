package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/gorilincode/backend/internal/tutor"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <id> [file]",
		Short: "Check a solution against a lesson",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid lesson id %q", args[0])
			}
			source, err := readSource(cmd, args, 1)
			if err != nil {
				return err
			}
			timeout, _ := cmd.Flags().GetDuration("timeout")

			svc, closeFn, err := newService(cmd, timeout)
			if err != nil {
				return err
			}
			defer closeFn()

			out, err := svc.Run(cmd.Context(), tutor.RunRequest{LessonID: id, Source: source})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out.Execution != nil {
				printLogs(w, out.Execution.Logs)
			}
			fmt.Fprintln(w, out.Feedback)
			if !out.Passed() {
				return fmt.Errorf("lesson %d: %s", id, out.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringP("code", "c", "", "Solution source")
	cmd.Flags().Duration("timeout", 2*time.Second, "Execution timeout")
	return cmd
}

// solution is a file named after the lesson it solves, e.g. 17.js
type solution struct {
	lesson int
	path   string
}

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <dir>",
		Short: "Check every solution file in a directory",
		Long: `Check every solution in dir. Files are named after their lesson,
e.g. 17.js or 150.css. Files whose name is not a lesson id are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			pattern, _ := cmd.Flags().GetString("pattern")

			matches, err := doublestar.Glob(os.DirFS(dir), pattern)
			if err != nil {
				return fmt.Errorf("bad pattern %q: %w", pattern, err)
			}

			var solutions []solution
			for _, m := range matches {
				base := path.Base(m)
				id, err := strconv.Atoi(strings.TrimSuffix(base, path.Ext(base)))
				if err != nil {
					continue
				}
				solutions = append(solutions, solution{lesson: id, path: m})
			}
			if len(solutions) == 0 {
				return fmt.Errorf("no solutions in %s matching %s", dir, pattern)
			}
			sort.Slice(solutions, func(i, j int) bool { return solutions[i].lesson < solutions[j].lesson })

			timeout, _ := cmd.Flags().GetDuration("timeout")
			svc, closeFn, err := newService(cmd, timeout)
			if err != nil {
				return err
			}
			defer closeFn()

			w := cmd.OutOrStdout()
			failed := 0
			for _, s := range solutions {
				data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(s.path)))
				if err != nil {
					return err
				}
				out, err := svc.Run(cmd.Context(), tutor.RunRequest{LessonID: s.lesson, Source: string(data)})
				if err != nil {
					failed++
					fmt.Fprintf(w, "✘ %s: %v\n", s.path, err)
					continue
				}
				if out.Passed() {
					fmt.Fprintf(w, "✔ %s\n", s.path)
					continue
				}
				failed++
				fmt.Fprintf(w, "✘ %s: %s\n", s.path, out.Feedback)
			}

			fmt.Fprintf(w, "\n%d/%d passed\n", len(solutions)-failed, len(solutions))
			if failed > 0 {
				return fmt.Errorf("%d solutions failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().String("pattern", "**/*.{js,ts,tsx,jsx,html,css}", "Glob for solution files")
	cmd.Flags().Duration("timeout", 2*time.Second, "Execution timeout per solution")
	return cmd
}
