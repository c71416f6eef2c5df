package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-animals/internal/apiclient"
	"github.com/tbourn/go-animals/internal/view"
)

func (c *cli) animals() (*apiclient.Resource[apiclient.Animal], error) {
	api, err := c.client()
	if err != nil {
		return nil, err
	}
	return apiclient.NewAnimals(api), nil
}

func (c *cli) newListCmd() *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List animals",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.animals()
			if err != nil {
				return err
			}
			var opts *apiclient.RequestOptions
			if typ != "" {
				opts = &apiclient.RequestOptions{Params: url.Values{"type": {typ}}}
			}
			home := view.NewHome(res,
				view.WithObserver(view.LogObserver{Log: c.logger()}),
				view.WithRequestOptions(opts),
			)
			home.OnChange(func(s view.LoadState) {
				if s.Status == view.StatusLoading {
					renderLoading(c.errOut)
				}
			})
			return c.renderState(home.Activate(cmd.Context()))
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "only animals of this type")
	return cmd
}

func (c *cli) newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one animal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withID(cmd.Context(), args[0], func(ctx context.Context, res *apiclient.Resource[apiclient.Animal], id int64) error {
				env, err := res.FetchOne(ctx, id, nil)
				if err != nil {
					return c.reportError(err)
				}
				return c.renderOne(env)
			})
		},
	}
}

func (c *cli) newCreateCmd() *cobra.Command {
	var name, typ string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an animal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.animals()
			if err != nil {
				return err
			}
			env, err := res.Create(cmd.Context(), apiclient.Animal{Name: name, Type: typ}, nil)
			if err != nil {
				return c.reportError(err)
			}
			return c.renderOne(env)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "animal name (required)")
	cmd.Flags().StringVar(&typ, "type", "", "animal type (required)")
	return cmd
}

func (c *cli) newReplaceCmd() *cobra.Command {
	var name, typ string
	cmd := &cobra.Command{
		Use:   "replace ID",
		Short: "Replace an animal's name and type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withID(cmd.Context(), args[0], func(ctx context.Context, res *apiclient.Resource[apiclient.Animal], id int64) error {
				env, err := res.Replace(ctx, id, apiclient.Animal{Name: name, Type: typ}, nil)
				if err != nil {
					return c.reportError(err)
				}
				return c.renderOne(env)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "animal name")
	cmd.Flags().StringVar(&typ, "type", "", "animal type")
	return cmd
}

func (c *cli) newPatchCmd() *cobra.Command {
	var name, typ string
	cmd := &cobra.Command{
		Use:   "patch ID",
		Short: "Update only the given fields of an animal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{}
			if cmd.Flags().Changed("name") {
				body["name"] = name
			}
			if cmd.Flags().Changed("type") {
				body["type"] = typ
			}
			if len(body) == 0 {
				return fmt.Errorf("nothing to patch: set --name and/or --type")
			}
			return c.withID(cmd.Context(), args[0], func(ctx context.Context, res *apiclient.Resource[apiclient.Animal], id int64) error {
				env, err := res.Patch(ctx, id, body, nil)
				if err != nil {
					return c.reportError(err)
				}
				return c.renderOne(env)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&typ, "type", "", "new type")
	return cmd
}

func (c *cli) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete an animal",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withID(cmd.Context(), args[0], func(ctx context.Context, res *apiclient.Resource[apiclient.Animal], id int64) error {
				if _, err := res.Remove(ctx, id, nil); err != nil {
					return c.reportError(err)
				}
				fmt.Fprintf(c.out, "Deleted animal %d\n", id)
				return nil
			})
		},
	}
}

// withID parses a positive animal id and runs fn with the animals resource.
func (c *cli) withID(ctx context.Context, arg string, fn func(context.Context, *apiclient.Resource[apiclient.Animal], int64) error) error {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid animal id %q", arg)
	}
	res, err := c.animals()
	if err != nil {
		return err
	}
	return fn(ctx, res, id)
}
