package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/ovaphlow/pitchfork/service-todo-go/pkg/client"
)

func (a *app) todoCmd() *cli.Command {
	return &cli.Command{
		Name:  "todo",
		Usage: "List and edit your todos",
		Subcommands: []*cli.Command{
			a.todoListCmd(),
			a.todoAddCmd(),
			a.todoUpdateCmd(),
			a.todoDoneCmd(),
			a.todoRemoveCmd(),
		},
	}
}

func (a *app) todoListCmd() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List todos, newest first",
		Action: func(c *cli.Context) error {
			todos, err := a.api.ListTodos(c.Context)
			if err != nil {
				return err
			}
			if len(todos) == 0 {
				fmt.Fprintln(a.out, "Nothing to do")
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDONE\tTITLE\tDESCRIPTION")
			for _, t := range todos {
				mark := " "
				if t.Completed {
					mark = "x"
				}
				desc := ""
				if t.Description != nil {
					desc = *t.Description
				}
				fmt.Fprintf(tw, "%s\t[%s]\t%s\t%s\n", t.ID, mark, t.Title, desc)
			}
			return tw.Flush()
		},
	}
}

func (a *app) todoAddCmd() *cli.Command {
	var desc string
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a todo",
		ArgsUsage: "<title>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Optional description", Destination: &desc},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("add takes exactly one title argument", 2)
			}
			var d *string
			if c.IsSet("description") {
				d = &desc
			}
			t, err := a.api.CreateTodo(c.Context, c.Args().First(), d)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created %s\n", t.ID)
			return nil
		},
	}
}

func (a *app) todoUpdateCmd() *cli.Command {
	var title, desc string
	var completed bool
	return &cli.Command{
		Name:      "update",
		Usage:     "Change fields of a todo",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Usage: "New title", Destination: &title},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "New description", Destination: &desc},
			&cli.BoolFlag{Name: "completed", Usage: "Completion state", Destination: &completed},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("update takes exactly one id argument", 2)
			}
			var p client.TodoPatch
			if c.IsSet("title") {
				p.Title = &title
			}
			if c.IsSet("description") {
				p.Description = &desc
			}
			if c.IsSet("completed") {
				p.Completed = &completed
			}
			return a.update(c, c.Args().First(), p)
		},
	}
}

func (a *app) todoDoneCmd() *cli.Command {
	return &cli.Command{
		Name:      "done",
		Usage:     "Mark a todo completed",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("done takes exactly one id argument", 2)
			}
			yes := true
			return a.update(c, c.Args().First(), client.TodoPatch{Completed: &yes})
		},
	}
}

func (a *app) update(c *cli.Context, id string, p client.TodoPatch) error {
	t, err := a.api.UpdateTodo(c.Context, id, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated %s: %s (completed=%t)\n", t.ID, t.Title, t.Completed)
	return nil
}

func (a *app) todoRemoveCmd() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Delete a todo",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("rm takes exactly one id argument", 2)
			}
			if err := a.api.DeleteTodo(c.Context, c.Args().First()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Deleted")
			return nil
		},
	}
}
