package mockapi

import (
	"fmt"
	"time"

	"github.com/tyemirov/helpdesk/internal/resources"
)

const (
	// SeedAdminEmail and SeedAdminPassword sign in to a seeded backend.
	SeedAdminEmail    = "admin@gmail.com"
	SeedAdminPassword = "123456"
)

// Seed fills an empty directory and catalog with demo data: three roles, the
// admin account, and a few records per collection.
func Seed(directory *Directory, catalog *Catalog) error {
	now := currentClock().Now().UTC()
	roleRecords := []Record{
		{"name": "admin", "description": "Full access", "active": true},
		{"name": "technician", "description": "Maintains devices and resolves issues", "active": true},
		{"name": "staff", "description": "Reports issues", "active": true},
	}
	roles := make([]resources.Role, 0, len(roleRecords))
	for _, record := range roleRecords {
		role, err := decodeRecord[resources.Role](catalog.Roles.Insert(record))
		if err != nil {
			return fmt.Errorf("mockapi.seed.roles: %w", err)
		}
		roles = append(roles, role)
	}

	accounts := []struct {
		name     string
		email    string
		password string
		role     resources.Role
	}{
		{name: "Admin", email: SeedAdminEmail, password: SeedAdminPassword, role: roles[0]},
		{name: "Tran Minh", email: "minh.tran@example.com", password: "technician", role: roles[1]},
		{name: "Le Hoa", email: "hoa.le@example.com", password: "staff-member", role: roles[2]},
	}
	for _, entry := range accounts {
		user, err := directory.Add(entry.name, entry.email, entry.password, entry.role)
		if err != nil {
			return fmt.Errorf("mockapi.seed.users: %w", err)
		}
		catalog.Leaderboard.Insert(Record{
			"email":    user.Email,
			"fullName": user.Name,
			"ccPoints": int64(10 * (len(accounts) - int(user.ID) + 1)),
		})
	}

	for _, record := range []Record{
		{"name": "List users", "apiPath": "/users", "method": "GET", "module": "USERS"},
		{"name": "Create device", "apiPath": "/devices", "method": "POST", "module": "DEVICES"},
		{"name": "Send mail", "apiPath": "/mails", "method": "POST", "module": "MAILS"},
	} {
		catalog.Permissions.Insert(record)
	}

	catalog.Devices.Insert(Record{
		"code": "PC-001", "name": "Reception desktop", "type": "PC", "status": "ACTIVE",
		"department": "Front office", "maintenanceCycleDays": int64(90),
		"lastMaintenanceDate": now.AddDate(0, 0, -120).Format("2006-01-02"),
		"updatedAt":           now.Format(timestampLayout),
	})
	catalog.Devices.Insert(Record{
		"code": "PR-014", "name": "Floor 2 printer", "type": "PRINTER", "status": "ACTIVE",
		"department": "Accounting", "maintenanceCycleDays": int64(30),
		"lastMaintenanceDate": now.AddDate(0, 0, -7).Format("2006-01-02"),
		"updatedAt":           now.Format(timestampLayout),
	})

	catalog.Issues.Insert(Record{
		"reporterName": "Le Hoa", "department": "Accounting", "deviceName": "Floor 2 printer",
		"errorType": "PAPER_JAM", "description": "Tray 2 jams on every job",
		"status": resources.IssuePending, "reportedAt": now.Add(-2 * time.Hour).Format(timestampLayout),
	})

	catalog.Mails.Insert(Record{
		"to": "it-team@example.com", "subject": "Weekly maintenance window",
		"body": "Devices will be serviced on Saturday.", "status": resources.MailSent,
		"sentAt": now.Add(-24 * time.Hour).Format(timestampLayout),
	})
	return nil
}
