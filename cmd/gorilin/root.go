package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gorilincode/backend/internal/lesson"
	"github.com/gorilincode/backend/internal/sandbox"
	"github.com/gorilincode/backend/internal/transpile"
	"github.com/gorilincode/backend/internal/tutor"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gorilin",
		Short: "Run and check Gorilin lessons from the terminal",
		Long: `gorilin - the Gorilin tutorial pipeline without the browser.

List lessons, run JavaScript or TypeScript in the sandbox, render HTML/CSS
previews and check solutions against the lesson validators. Source comes
from a file argument, the -c flag, or stdin.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("catalog", "", "Lesson catalog YAML (default: built-in)")
	root.PersistentFlags().Bool("debug", false, "Log pipeline internals to stderr")

	root.AddCommand(
		newLessonsCmd(),
		newShowCmd(),
		newRunCmd(),
		newCheckCmd(),
		newVerifyCmd(),
		newStripCmd(),
		newRenderCmd(),
	)
	return root
}

func logger(cmd *cobra.Command) *zap.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	if !debug {
		return zap.NewNop()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func loadCatalog(cmd *cobra.Command) (*lesson.Catalog, error) {
	path, _ := cmd.Flags().GetString("catalog")
	if path == "" {
		return lesson.Default(), nil
	}
	return lesson.Load(path)
}

// newService builds a tutor service with a single runtime. The returned
// func releases it.
func newService(cmd *cobra.Command, timeout time.Duration) (*tutor.Service, func(), error) {
	catalog, err := loadCatalog(cmd)
	if err != nil {
		return nil, nil, err
	}
	log := logger(cmd)

	cfg := sandbox.DefaultConfig()
	cfg.PoolSize = 1
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	exec := sandbox.NewExecutor(cfg, log, nil)

	svc := tutor.New(tutor.Options{
		Catalog:  catalog,
		Runner:   exec,
		Stripper: transpile.NewStripper(transpile.Options{}, log),
		Logger:   log,
	})
	return svc, func() { _ = exec.Close(); _ = log.Sync() }, nil
}

// readSource picks the -c flag, then the file argument at index i, then
// piped stdin
func readSource(cmd *cobra.Command, args []string, i int) (string, error) {
	if code, _ := cmd.Flags().GetString("code"); code != "" {
		return code, nil
	}
	if len(args) > i {
		data, err := os.ReadFile(args[i])
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		if stat, err := f.Stat(); err == nil && stat.Mode()&os.ModeCharDevice != 0 {
			return "", errors.New("no source: pass a file, -c or pipe code on stdin")
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("no source: pass a file, -c or pipe code on stdin")
	}
	return string(data), nil
}

func printLogs(w io.Writer, logs []string) {
	for _, line := range logs {
		fmt.Fprintln(w, line)
	}
}
