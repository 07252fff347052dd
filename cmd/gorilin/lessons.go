package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/gorilincode/backend/internal/lesson"
)

func newLessonsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lessons",
		Short: "List the lesson catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := loadCatalog(cmd)
			if err != nil {
				return err
			}
			section, _ := cmd.Flags().GetString("section")

			lessons := catalog.All()
			if section != "" {
				lessons = catalog.BySection(section)
				if len(lessons) == 0 {
					return fmt.Errorf("unknown section %q (have %v)", section, catalog.Sections())
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tSECTION\tTITLE")
			for _, l := range lessons {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", l.ID, l.Kind, l.Section, l.Title)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("section", "", "Only list one section")
	return cmd
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a lesson with its starter code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := lookup(cmd, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				data, err := sonic.MarshalIndent(l, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			fmt.Fprintf(out, "%s [%s]\n\n", l.Title, l.Kind)
			fmt.Fprintln(out, l.Description)
			fmt.Fprintf(out, "\n👉 %s\n\n", l.Instruction)
			fmt.Fprintln(out, l.StarterSource)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print the lesson as JSON")
	return cmd
}

func lookup(cmd *cobra.Command, arg string) (*lesson.Lesson, error) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid lesson id %q", arg)
	}
	catalog, err := loadCatalog(cmd)
	if err != nil {
		return nil, err
	}
	return catalog.Get(id)
}
