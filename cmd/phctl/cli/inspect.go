package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/propertyhub/propertyhub/internal/rbac"
)

func newWhoamiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity and its grants",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			identity, _ := c.store.Identity()
			pterm.DefaultSection.Println("Identity")
			pterm.Info.Printf("Name:    %s\n", c.store.FullName())
			pterm.Info.Printf("User:    %s <%s>\n", identity.Username, identity.Email)
			pterm.Info.Printf("Role:    %s\n", rbac.DisplayName(identity.Role))
			pterm.Info.Printf("Expires: %s\n", identity.ExpiresAt.Local().Format("2006-01-02 15:04:05"))

			pterm.DefaultSection.Println("Permissions")
			grants := rbac.Grants(identity.Role)
			resources := make([]string, 0, len(grants))
			for resource := range grants {
				resources = append(resources, string(resource))
			}
			sort.Strings(resources)
			table := pterm.TableData{{"RESOURCE", "ACTIONS"}}
			for _, resource := range resources {
				actions := grants[rbac.Resource(resource)]
				names := make([]string, len(actions))
				for i, a := range actions {
					names[i] = string(a)
				}
				table = append(table, []string{resource, strings.Join(names, ", ")})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
		},
	}
}

func newCanCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "can RESOURCE ACTION",
		Short: "Check whether the signed-in role may perform ACTION on RESOURCE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			resource, action := rbac.Resource(args[0]), rbac.Action(args[1])
			if !c.store.HasUserPermission(resource, action) {
				pterm.Warning.Printf("%s cannot %s %s\n", rbac.DisplayName(c.store.Role()), action, resource)
				return fmt.Errorf("%w: %s %s", rbac.ErrNotPermitted, action, resource)
			}
			pterm.Success.Printf("%s can %s %s\n", rbac.DisplayName(c.store.Role()), action, resource)
			return nil
		},
	}
}

func newNavCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "nav",
		Short: "List the navigation entries of the signed-in role",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			table := pterm.TableData{{"NAME", "PATH", "DESCRIPTION"}}
			for _, item := range c.store.Navigation() {
				table = append(table, []string{item.Name, item.Href, item.Description})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
		},
	}
}

func newGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get RESOURCE [ID]",
		Short: "Fetch a resource collection or one record as JSON",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			resource := rbac.Resource(args[0])
			var raw []byte
			if len(args) == 2 {
				raw, err = c.resources.Get(cmd.Context(), c.store.Role(), resource, args[1])
			} else {
				raw, err = c.resources.List(cmd.Context(), c.store.Role(), resource)
			}
			if err != nil {
				return err
			}
			var out bytes.Buffer
			if err := json.Indent(&out, raw, "", "  "); err != nil {
				out.Reset()
				out.Write(raw)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out.String())
			return err
		},
	}
}

func newDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete RESOURCE ID",
		Short: "Delete one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.resources.Delete(cmd.Context(), c.store.Role(), rbac.Resource(args[0]), args[1]); err != nil {
				return err
			}
			pterm.Success.Printf("Deleted %s %s\n", args[0], args[1])
			return nil
		},
	}
}
