package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tabishimam2/reciepe-app-api/internal/domain"
	"github.com/tabishimam2/reciepe-app-api/internal/pkg/crypto"
	"github.com/tabishimam2/reciepe-app-api/internal/service"
)

type userCreateOptions struct {
	Email    string
	Password string
	Name     string
}

func newUserCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserCreateCommand(opts, false))
	cmd.AddCommand(newUserCreateCommand(opts, true))
	cmd.AddCommand(newUserListCommand(opts))
	cmd.AddCommand(newUserDeleteCommand(opts))
	return cmd
}

func newUserCreateCommand(opts *RootOptions, privileged bool) *cobra.Command {
	create := &userCreateOptions{}

	use, short := "create", "Create a user account"
	if privileged {
		use, short = "create-superuser", "Create a staff superuser account"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `.

When --password is omitted a random password is generated and printed once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.env(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			generated := false
			if create.Password == "" {
				create.Password, err = crypto.GeneratePassword(crypto.DefaultPasswordLength)
				if err != nil {
					return err
				}
				generated = true
			}

			input := service.CreateAccountInput{Email: create.Email, Password: create.Password, Name: create.Name}
			var out *service.CreateAccountOutput
			if privileged {
				out, err = a.Users.CreatePrivilegedAccount(cmd.Context(), input)
			} else {
				out, err = a.Users.CreateAccount(cmd.Context(), input)
			}
			if err != nil {
				return describe(err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Created user %d <%s>\n", out.User.ID, out.User.Email)
			if generated {
				fmt.Fprintf(w, "Password: %s\n", create.Password)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&create.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&create.Password, "password", "", "password (generated when empty)")
	cmd.Flags().StringVar(&create.Name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newUserListCommand(opts *RootOptions) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List user accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.env(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.Users.List(cmd.Context(), service.ListUsersInput{Limit: limit, Offset: offset})
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tACTIVE\tSTAFF\tSUPERUSER")
			for _, u := range out.Users {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%t\t%t\n", u.ID, u.Email, u.Name, u.IsActive, u.IsStaff, u.IsSuperuser)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d users\n", len(out.Users), out.TotalCount)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of users")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of users to skip")
	return cmd
}

func newUserDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a user with their recipes, labels and images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}

			e, err := opts.env(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := a.DeleteUser(cmd.Context(), id)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %d (%d images removed)\n", id, removed)
			return nil
		},
	}
}

// describe turns service errors into messages fit for a terminal.
func describe(err error) error {
	if verr, ok := domain.AsValidationError(err); ok {
		return fmt.Errorf("invalid input: %s", verr.Error())
	}
	return err
}
