package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/tyemirov/helpdesk/internal/resources"
)

func idCommand(use string, short string, run func(ctx context.Context, current *workspace, command *cobra.Command, id int64) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			identifier, err := parseID(arguments[0])
			if err != nil {
				return err
			}
			return runAndRender(command, func(ctx context.Context, current *workspace) (any, error) {
				return run(ctx, current, command, identifier)
			})
		},
	}
}

func deleteCommand(noun string, remove func(ctx context.Context, current *workspace, id int64) error) *cobra.Command {
	return idCommand("delete", "Delete a "+noun, func(ctx context.Context, current *workspace, command *cobra.Command, id int64) (any, error) {
		if err := remove(ctx, current, id); err != nil {
			return nil, err
		}
		fmt.Fprintf(command.ErrOrStderr(), "deleted %s %d\n", noun, id)
		return nil, nil
	})
}

func newUsersCommand() *cobra.Command {
	users := &cobra.Command{Use: "users", Short: "Manage dashboard accounts"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return runAndRender(command, func(ctx context.Context, current *workspace) (any, error) {
				if _, err := current.dashboard.FetchUsers(ctx, listParams(command)); err != nil {
					return nil, err
				}
				return current.dashboard.State().Users, nil
			})
		},
	}
	addListFlags(list, 10)

	create := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			flags := command.Flags()
			input := resources.CreateUser{}
			input.Name, _ = flags.GetString("name")
			input.Email, _ = flags.GetString("email")
			input.Password, _ = flags.GetString("password")
			input.RoleID, _ = flags.GetInt64("role-id")
			return runAndRender(command, func(ctx context.Context, current *workspace) (any, error) {
				return current.dashboard.CreateUser(ctx, input)
			})
		},
	}
	create.Flags().String("name", "", "Full name")
	create.Flags().String("email", "", "Email address")
	create.Flags().String("password", "", "Initial password")
	create.Flags().Int64("role-id", 0, "Role id")

	update := idCommand("update", "Update an account", func(ctx context.Context, current *workspace, command *cobra.Command, id int64) (any, error) {
		return current.dashboard.UpdateUser(ctx, resources.UpdateUser{
			ID:     id,
			Name:   changedString(command, "name"),
			Email:  changedString(command, "email"),
			RoleID: changedInt64(command, "role-id"),
		})
	})
	update.Flags().String("name", "", "Full name")
	update.Flags().String("email", "", "Email address")
	update.Flags().Int64("role-id", 0, "Role id")

	remove := deleteCommand("user", func(ctx context.Context, current *workspace, id int64) error {
		return current.dashboard.DeleteUser(ctx, id)
	})

	users.AddCommand(list, create, update, remove)
	return users
}

func newRolesCommand() *cobra.Command {
	roles := &cobra.Command{Use: "roles", Short: "Manage roles"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List roles",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return runAndRender(command, func(ctx context.Context, current *workspace) (any, error) {
				if _, err := current.dashboard.FetchRoles(ctx); err != nil {
					return nil, err
				}
				return current.dashboard.State().Roles, nil
			})
		},
	}

	roleInput := func(command *cobra.Command) resources.RoleInput {
		flags := command.Flags()
		input := resources.RoleInput{}
		input.Name, _ = flags.GetString("name")
		input.Description, _ = flags.GetString("description")
		input.Active, _ = flags.GetBool("active")
		return input
	}
	addRoleFlags := func(command *cobra.Command) {
		command.Flags().String("name", "", "Role name")
		command.Flags().String("description", "", "Role description")
		command.Flags().Bool("active", true, "Whether the role can be assigned")
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a role",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			input := roleInput(command)
			return runAndRender(command, func(ctx context.Context, current *workspace) (any, error) {
				return current.dashboard.CreateRole(ctx, input)
			})
		},
	}
	addRoleFlags(create)

	update := idCommand("update", "Replace a role", func(ctx context.Context, current *workspace, command *cobra.Command, id int64) (any, error) {
		return current.dashboard.UpdateRole(ctx, id, roleInput(command))
	})
	addRoleFlags(update)

	remove := deleteCommand("role", func(ctx context.Context, current *workspace, id int64) error {
		return current.dashboard.DeleteRole(ctx, id)
	})

	roles.AddCommand(list, create, update, remove)
	return roles
}

func newPermissionsCommand() *cobra.Command {
	permissions := &cobra.Command{Use: "permissions", Short: "Manage API permissions"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List permissions",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return runAndRender(command, func(ctx context.Context, current *workspace) (any, error) {
				if _, err := current.dashboard.FetchPermissions(ctx, listParams(command)); err != nil {
					return nil, err
				}
				return current.dashboard.State().Permissions, nil
			})
		},
	}
	addListFlags(list, 10)

	permissionInput := func(command *cobra.Command) resources.PermissionInput {
		flags := command.Flags()
		input := resources.PermissionInput{}
		input.Name, _ = flags.GetString("name")
		input.APIPath, _ = flags.GetString("api-path")
		input.Method, _ = flags.GetString("method")
		input.Module, _ = flags.GetString("module")
		return input
	}
	addPermissionFlags := func(command *cobra.Command) {
		command.Flags().String("name", "", "Permission name")
		command.Flags().String("api-path", "", "Protected API path")
		command.Flags().String("method", "GET", "HTTP method")
		command.Flags().String("module", "", "Owning module")
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a permission",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			input := permissionInput(command)
			return runAndRender(command, func(ctx context.Context, current *workspace) (any, error) {
				return current.dashboard.CreatePermission(ctx, input)
			})
		},
	}
	addPermissionFlags(create)

	update := idCommand("update", "Replace a permission", func(ctx context.Context, current *workspace, command *cobra.Command, id int64) (any, error) {
		return current.dashboard.UpdatePermission(ctx, id, permissionInput(command))
	})
	addPermissionFlags(update)

	remove := deleteCommand("permission", func(ctx context.Context, current *workspace, id int64) error {
		return current.dashboard.DeletePermission(ctx, id)
	})

	permissions.AddCommand(list, create, update, remove)
	return permissions
}

func newDevicesCommand() *cobra.Command {
	devices := &cobra.Command{Use: "devices", Short: "Manage the device inventory"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List devices",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return runAndRender(command, func(ctx context.Context, current *workspace) (any, error) {
				if _, err := current.dashboard.FetchDevices(ctx, listParams(command)); err != nil {
					return nil, err
				}
				return current.dashboard.State().Devices, nil
			})
		},
	}
	addListFlags(list, 10)

	due := &cobra.Command{
		Use:   "due",
		Short: "List devices whose maintenance cycle has elapsed",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return runAndRender(command, func(ctx context.Context, current *workspace) (any, error) {
				page, err := current.dashboard.FetchDevices(ctx, listParams(command))
				if err != nil {
					return nil, err
				}
				return resources.DueForMaintenance(page.Result, time.Now()), nil
			})
		},
	}
	addListFlags(due, 100)

	create := &cobra.Command{
		Use:   "create",
		Short: "Register a device",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			flags := command.Flags()
			input := resources.CreateDevice{}
			input.Code, _ = flags.GetString("code")
			input.Name, _ = flags.GetString("name")
			input.Type, _ = flags.GetString("type")
			input.Status, _ = flags.GetString("status")
			input.Department, _ = flags.GetString("department")
			input.Description, _ = flags.GetString("description")
			input.MaintenanceCycleDays, _ = flags.GetInt("cycle-days")
			return runAndRender(command, func(ctx context.Context, current *workspace) (any, error) {
				return current.dashboard.CreateDevice(ctx, input)
			})
		},
	}
	addDeviceFlags(create)

	update := idCommand("update", "Update a device", func(ctx context.Context, current *workspace, command *cobra.Command, id int64) (any, error) {
		return current.dashboard.UpdateDevice(ctx, resources.UpdateDevice{
			ID:                   id,
			Code:                 changedString(command, "code"),
			Name:                 changedString(command, "name"),
			Type:                 changedString(command, "type"),
			Status:               changedString(command, "status"),
			Department:           changedString(command, "department"),
			Description:          changedString(command, "description"),
			MaintenanceCycleDays: changedInt(command, "cycle-days"),
			LastMaintenanceDate:  changedString(command, "last-maintenance"),
		})
	})
	addDeviceFlags(update)
	update.Flags().String("last-maintenance", "", "Date of the last maintenance (YYYY-MM-DD or RFC3339)")

	remove := deleteCommand("device", func(ctx context.Context, current *workspace, id int64) error {
		return current.dashboard.DeleteDevice(ctx, id)
	})

	devices.AddCommand(list, due, create, update, remove)
	return devices
}

func addDeviceFlags(command *cobra.Command) {
	command.Flags().String("code", "", "Asset code")
	command.Flags().String("name", "", "Device name")
	command.Flags().String("type", "", "Device type, e.g. PC or PRINTER")
	command.Flags().String("status", "", "Device status")
	command.Flags().String("department", "", "Owning department")
	command.Flags().String("description", "", "Free-form description")
	command.Flags().Int("cycle-days", 0, "Maintenance cycle in days")
}

func newIssuesCommand() *cobra.Command {
	issues := &cobra.Command{Use: "issues", Short: "Track reported issues"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List issues",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return runAndRender(command, func(ctx context.Context, current *workspace) (any, error) {
				if _, err := current.dashboard.FetchIssues(ctx, listParams(command)); err != nil {
					return nil, err
				}
				return current.dashboard.State().Issues, nil
			})
		},
	}
	addListFlags(list, 10)

	report := &cobra.Command{
		Use:   "report",
		Short: "Report an issue",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			flags := command.Flags()
			input := resources.CreateIssue{}
			input.ReporterName, _ = flags.GetString("reporter")
			input.Department, _ = flags.GetString("department")
			input.DeviceName, _ = flags.GetString("device")
			input.ErrorType, _ = flags.GetString("error-type")
			input.Description, _ = flags.GetString("description")
			input.ImageURL, _ = flags.GetString("image-url")
			return runAndRender(command, func(ctx context.Context, current *workspace) (any, error) {
				return current.dashboard.CreateIssue(ctx, input)
			})
		},
	}
	report.Flags().String("reporter", "", "Reporter name")
	report.Flags().String("department", "", "Reporter department")
	report.Flags().String("device", "", "Affected device name")
	report.Flags().String("error-type", "", "Error category")
	report.Flags().String("description", "", "What happened")
	report.Flags().String("image-url", "", "Screenshot URL")

	issues.AddCommand(list, report)
	return issues
}

func newMailsCommand() *cobra.Command {
	mails := &cobra.Command{Use: "mails", Short: "Send and schedule notifications"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List mails",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return runAndRender(command, func(ctx context.Context, current *workspace) (any, error) {
				if _, err := current.dashboard.FetchMails(ctx, listParams(command)); err != nil {
					return nil, err
				}
				return current.dashboard.State().Mails, nil
			})
		},
	}
	addListFlags(list, 10)

	mailInput := func(command *cobra.Command) resources.MailInput {
		flags := command.Flags()
		input := resources.MailInput{}
		input.To, _ = flags.GetString("to")
		input.CC, _ = flags.GetString("cc")
		input.BCC, _ = flags.GetString("bcc")
		input.Subject, _ = flags.GetString("subject")
		input.Body, _ = flags.GetString("body")
		input.ScheduledAt = changedString(command, "scheduled-at")
		return input
	}
	addMailFlags := func(command *cobra.Command) {
		command.Flags().String("to", "", "Recipient")
		command.Flags().String("cc", "", "Carbon copy")
		command.Flags().String("bcc", "", "Blind carbon copy")
		command.Flags().String("subject", "", "Subject line")
		command.Flags().String("body", "", "Message body")
		command.Flags().String("scheduled-at", "", "Delivery time (RFC3339); omit to send now")
	}

	send := &cobra.Command{
		Use:   "send",
		Short: "Send or schedule a mail",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			input := mailInput(command)
			return runAndRender(command, func(ctx context.Context, current *workspace) (any, error) {
				return current.dashboard.SendMail(ctx, input)
			})
		},
	}
	addMailFlags(send)

	update := idCommand("update", "Reschedule a mail that was not sent yet", func(ctx context.Context, current *workspace, command *cobra.Command, id int64) (any, error) {
		return current.dashboard.UpdateMail(ctx, id, mailInput(command))
	})
	addMailFlags(update)

	remove := deleteCommand("mail", func(ctx context.Context, current *workspace, id int64) error {
		return current.dashboard.DeleteMail(ctx, id)
	})

	mails.AddCommand(list, send, update, remove)
	return mails
}

func newFilesCommand() *cobra.Command {
	files := &cobra.Command{Use: "files", Short: "Manage stored files"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List files",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return runAndRender(command, func(ctx context.Context, current *workspace) (any, error) {
				if _, err := current.dashboard.FetchFiles(ctx); err != nil {
					return nil, err
				}
				return current.dashboard.State().Files, nil
			})
		},
	}

	upload := &cobra.Command{
		Use:   "upload PATH",
		Short: "Upload a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			localPath := arguments[0]
			return runAndRender(command, func(ctx context.Context, current *workspace) (any, error) {
				content, err := os.Open(localPath)
				if err != nil {
					return nil, fmt.Errorf("helpdesk.files.open: %w", err)
				}
				defer content.Close()
				return current.dashboard.UploadFile(ctx, filepath.Base(localPath), content)
			})
		},
	}

	remove := deleteCommand("file", func(ctx context.Context, current *workspace, id int64) error {
		return current.dashboard.DeleteFile(ctx, id)
	})

	files.AddCommand(list, upload, remove)
	return files
}
