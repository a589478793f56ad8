package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/propertyhub/propertyhub/internal/rbac"
	"github.com/propertyhub/propertyhub/internal/session"
)

const passwordEnv = "PROPERTYHUB_PASSWORD"

func newLoginCmd(opts *options) *cobra.Command {
	var login, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the access credential",
		Long: `Signs in with an email address or username. The password is taken from
--password, then $PROPERTYHUB_PASSWORD, then an interactive prompt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if login == "" {
				return errors.New("--login is required")
			}
			secret, err := resolvePassword(password)
			if err != nil {
				return err
			}
			c, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			req := session.LoginRequest{Password: secret}
			if strings.Contains(login, "@") {
				req.Email = login
			} else {
				req.Username = login
			}
			result, err := c.store.Login(cmd.Context(), req)
			if err != nil {
				return err
			}
			pterm.Success.Printf("Signed in as %s (%s)\n", result.Identity.Name, rbac.DisplayName(result.Identity.Role))
			return nil
		},
	}
	cmd.Flags().StringVarP(&login, "login", "l", "", "Email address or username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prefer $"+passwordEnv+")")
	return cmd
}

func newRegisterCmd(opts *options) *cobra.Command {
	var req session.RegisterRequest
	var role string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := rbac.ParseRole(role)
			if err != nil {
				return err
			}
			req.Role = parsed
			if req.Password, err = resolvePassword(req.Password); err != nil {
				return err
			}
			c, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			result, err := c.store.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			if result.Identity.Role == "" {
				pterm.Success.Println("Registration successful. Run phctl login to sign in.")
				return nil
			}
			pterm.Success.Printf("Registered and signed in as %s\n", result.Identity.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "Username")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "Password (prefer $"+passwordEnv+")")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&role, "role", string(rbac.RoleTenant), "tenant, landlord or maintenanceTeam")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			c.store.Logout(cmd.Context())
			pterm.Info.Println("Logged out")
			return nil
		},
	}
}

func resolvePassword(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv(passwordEnv); env != "" {
		return env, nil
	}
	secret, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if secret == "" {
		return "", errors.New("password is required")
	}
	return secret, nil
}
