package mockapi

// Catalog holds the record collections behind the resource endpoints.
// Users live in the Directory.
type Catalog struct {
	Roles       *Collection
	Permissions *Collection
	Devices     *Collection
	Issues      *Collection
	Mails       *Collection
	Files       *Collection
	Leaderboard *Collection
}

// NewCatalog constructs empty collections with their validation rules and
// list filters.
func NewCatalog() *Catalog {
	return &Catalog{
		Roles:       NewCollection("roles", []string{"name"}, nil),
		Permissions: NewCollection("permissions", []string{"name", "apiPath", "method", "module"}, []string{"name", "module"}),
		Devices:     NewCollection("devices", []string{"code", "name", "type", "status", "department"}, []string{"name", "type", "status"}),
		Issues:      NewCollection("issues", []string{"reporterName", "deviceName", "errorType", "description"}, []string{"status", "reporterName"}),
		Mails:       NewCollection("mails", []string{"to", "subject", "body"}, []string{"to", "status"}),
		Files:       NewCollection("files", nil, nil),
		Leaderboard: NewCollection("leaderboard", []string{"email", "fullName"}, nil),
	}
}
