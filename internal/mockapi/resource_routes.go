package mockapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tyemirov/helpdesk/internal/resources"
	"github.com/tyemirov/helpdesk/pkg/sessionvalidator"
	"go.uber.org/zap"
)

const (
	timestampLayout = time.RFC3339

	maxUploadBytes = 10 << 20
)

// hookError rejects a create or update with a client-facing message.
type hookError struct {
	status  int
	message any
}

func (err *hookError) Error() string {
	if text, ok := err.message.(string); ok {
		return text
	}
	return http.StatusText(err.status)
}

func badRequest(message any) error {
	return &hookError{status: http.StatusBadRequest, message: message}
}

// collectionRoutes serves the REST verbs for one Collection.
type collectionRoutes struct {
	collection   *Collection
	paged        bool
	sortBy       func(records []Record)
	beforeCreate func(record Record, now time.Time) error
	beforeUpdate func(existing Record, patch Record, now time.Time) error
}

func (routes collectionRoutes) list(contextGin *gin.Context) {
	query := parseListQuery(contextGin)
	records := routes.collection.List(query.filters)
	if routes.sortBy != nil {
		routes.sortBy(records)
	}
	if !routes.paged {
		respond(contextGin, http.StatusOK, gin.H{"result": records})
		return
	}
	pageRecords, meta := paginate(records, query.page, query.pageSize)
	respond(contextGin, http.StatusOK, gin.H{"result": pageRecords, "meta": meta})
}

// listPlain responds with the bare array used by the file and leaderboard
// endpoints.
func (routes collectionRoutes) listPlain(contextGin *gin.Context) {
	records := routes.collection.List(nil)
	if routes.sortBy != nil {
		routes.sortBy(records)
	}
	respond(contextGin, http.StatusOK, records)
}

func (routes collectionRoutes) create(contextGin *gin.Context) {
	record, ok := bindRecord(contextGin)
	if !ok {
		return
	}
	if missing := routes.collection.Missing(record); len(missing) > 0 {
		abortWithMessage(contextGin, http.StatusBadRequest, missing)
		return
	}
	if routes.beforeCreate != nil {
		if err := routes.beforeCreate(record, currentClock().Now().UTC()); err != nil {
			abortWithHookError(contextGin, err)
			return
		}
	}
	respond(contextGin, http.StatusCreated, routes.collection.Insert(record))
}

func (routes collectionRoutes) update(contextGin *gin.Context) {
	id, ok := pathID(contextGin)
	if !ok {
		return
	}
	patch, ok := bindRecord(contextGin)
	if !ok {
		return
	}
	existing, err := routes.collection.Get(id)
	if err != nil {
		abortWithMessage(contextGin, http.StatusNotFound, notFoundMessage(routes.collection))
		return
	}
	if routes.beforeUpdate != nil {
		if err := routes.beforeUpdate(existing, patch, currentClock().Now().UTC()); err != nil {
			abortWithHookError(contextGin, err)
			return
		}
	}
	updated, err := routes.collection.Merge(id, patch)
	if err != nil {
		abortWithMessage(contextGin, http.StatusNotFound, notFoundMessage(routes.collection))
		return
	}
	respond(contextGin, http.StatusOK, updated)
}

func (routes collectionRoutes) remove(contextGin *gin.Context) {
	id, ok := pathID(contextGin)
	if !ok {
		return
	}
	if err := routes.collection.Delete(id); err != nil {
		abortWithMessage(contextGin, http.StatusNotFound, notFoundMessage(routes.collection))
		return
	}
	respond(contextGin, http.StatusOK, nil)
}

func notFoundMessage(collection *Collection) string {
	return strings.TrimSuffix(collection.Name(), "s") + " not found"
}

func abortWithHookError(contextGin *gin.Context, err error) {
	var rejection *hookError
	if errors.As(err, &rejection) {
		abortWithMessage(contextGin, rejection.status, rejection.message)
		return
	}
	abortWithMessage(contextGin, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

func bindRecord(contextGin *gin.Context) (Record, bool) {
	decoder := json.NewDecoder(contextGin.Request.Body)
	decoder.UseNumber()
	record := Record{}
	if err := decoder.Decode(&record); err != nil && !errors.Is(err, io.EOF) {
		abortWithMessage(contextGin, http.StatusBadRequest, "Invalid JSON body")
		return nil, false
	}
	return record, true
}

// MountResourceRoutes registers the bearer-protected resource endpoints.
func MountResourceRoutes(router gin.IRouter, requireBearer gin.HandlerFunc, directory *Directory, catalog *Catalog) error {
	if directory == nil {
		return errMissingDirectory
	}
	if catalog == nil {
		catalog = NewCatalog()
	}
	protected := router.Group("/", requireBearer)

	users := userRoutes{directory: directory, roles: catalog.Roles}
	protected.GET("/users", users.list)
	protected.POST("/users", users.create)
	protected.PATCH("/users/:id", users.update)
	protected.DELETE("/users/:id", users.remove)

	roles := collectionRoutes{collection: catalog.Roles, beforeCreate: defaultActive}
	protected.GET("/roles", roles.list)
	protected.POST("/roles", roles.create)
	protected.PATCH("/roles/:id", roles.update)
	protected.DELETE("/roles/:id", roles.remove)

	permissions := collectionRoutes{collection: catalog.Permissions, paged: true, beforeCreate: normalizeMethod, beforeUpdate: normalizeMethodPatch}
	protected.GET("/permissions", permissions.list)
	protected.POST("/permissions", permissions.create)
	protected.PATCH("/permissions/:id", permissions.update)
	protected.DELETE("/permissions/:id", permissions.remove)

	devices := collectionRoutes{collection: catalog.Devices, paged: true, beforeCreate: stampDevice, beforeUpdate: stampDevicePatch}
	protected.GET("/devices", devices.list)
	protected.POST("/devices", devices.create)
	protected.PATCH("/devices/:id", devices.update)
	protected.DELETE("/devices/:id", devices.remove)

	issues := collectionRoutes{collection: catalog.Issues, paged: true, beforeCreate: openIssue}
	protected.GET("/issues", issues.list)
	protected.POST("/issues", issues.create)

	mails := collectionRoutes{collection: catalog.Mails, paged: true, beforeCreate: dispatchMail, beforeUpdate: rescheduleMail}
	protected.GET("/mails", mails.list)
	protected.POST("/mails", mails.create)
	protected.PUT("/mails/:id", mails.update)
	protected.DELETE("/mails/:id", mails.remove)

	files := collectionRoutes{collection: catalog.Files}
	protected.GET("/files", files.listPlain)
	protected.POST("/files/upload", uploadFile(catalog.Files))
	protected.DELETE("/files/:id", files.remove)

	leaderboard := collectionRoutes{collection: catalog.Leaderboard, sortBy: byPointsDescending}
	protected.GET("/gamification/leaderboard", leaderboard.listPlain)
	return nil
}

func defaultActive(record Record, now time.Time) error {
	if _, ok := record["active"]; !ok {
		record["active"] = true
	}
	return nil
}

var permissionMethods = map[string]struct{}{
	http.MethodGet: {}, http.MethodPost: {}, http.MethodPut: {}, http.MethodPatch: {}, http.MethodDelete: {},
}

func normalizeMethod(record Record, now time.Time) error {
	method := strings.ToUpper(strings.TrimSpace(record.text("method")))
	if _, ok := permissionMethods[method]; !ok {
		return badRequest([]string{"method must be one of GET, POST, PUT, PATCH, DELETE"})
	}
	record["method"] = method
	return nil
}

func normalizeMethodPatch(existing Record, patch Record, now time.Time) error {
	if _, ok := patch["method"]; !ok {
		return nil
	}
	return normalizeMethod(patch, now)
}

func stampDevice(record Record, now time.Time) error {
	record["updatedAt"] = now.Format(timestampLayout)
	return nil
}

func stampDevicePatch(existing Record, patch Record, now time.Time) error {
	patch["updatedAt"] = now.Format(timestampLayout)
	return nil
}

func openIssue(record Record, now time.Time) error {
	if record.text("status") == "" {
		record["status"] = resources.IssuePending
	}
	record["reportedAt"] = now.Format(timestampLayout)
	return nil
}

// dispatchMail marks a mail as sent unless it is scheduled for later.
func dispatchMail(record Record, now time.Time) error {
	scheduledText := record.text("scheduledAt")
	if scheduledText == "" {
		record["status"] = resources.MailSent
		record["sentAt"] = now.Format(timestampLayout)
		return nil
	}
	scheduledAt, err := time.Parse(time.RFC3339, scheduledText)
	if err != nil {
		return badRequest([]string{"scheduledAt must be an RFC 3339 timestamp"})
	}
	if scheduledAt.After(now) {
		record["status"] = resources.MailScheduled
		delete(record, "sentAt")
		return nil
	}
	record["status"] = resources.MailSent
	record["sentAt"] = now.Format(timestampLayout)
	return nil
}

func rescheduleMail(existing Record, patch Record, now time.Time) error {
	if existing.text("status") == resources.MailSent {
		return badRequest("Mail has already been sent")
	}
	merged := existing.clone()
	for key, value := range patch {
		merged[key] = value
	}
	if err := dispatchMail(merged, now); err != nil {
		return err
	}
	patch["status"] = merged["status"]
	if sentAt, ok := merged["sentAt"]; ok {
		patch["sentAt"] = sentAt
	}
	return nil
}

func byPointsDescending(records []Record) {
	sort.SliceStable(records, func(left, right int) bool {
		return points(records[left]) > points(records[right])
	})
}

func points(record Record) int64 {
	switch value := record["ccPoints"].(type) {
	case json.Number:
		parsed, _ := value.Int64()
		return parsed
	case int:
		return int64(value)
	case int64:
		return value
	case float64:
		return int64(value)
	default:
		return 0
	}
}

func uploadFile(files *Collection) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		contextGin.Request.Body = http.MaxBytesReader(contextGin.Writer, contextGin.Request.Body, maxUploadBytes)
		header, err := contextGin.FormFile("file")
		if err != nil {
			abortWithMessage(contextGin, http.StatusBadRequest, "file is required")
			return
		}
		createdBy := ""
		if claims, ok := sessionvalidator.ClaimsFromContext(contextGin, ClaimsKey); ok {
			createdBy = claims.GetUserEmail()
		}
		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		storageKey := uuid.NewString() + "-" + header.Filename
		stored := files.Insert(Record{
			"fileName":   header.Filename,
			"fileUrl":    "/files/" + storageKey,
			"fileType":   contentType,
			"fileSize":   header.Size,
			"s3Key":      storageKey,
			"uploadDate": currentClock().Now().UTC().Format(timestampLayout),
			"createdBy":  createdBy,
		})
		currentLogger().Info("file uploaded",
			zap.String("code", "files.upload"),
			zap.String("file_name", header.Filename),
			zap.Int64("file_size", header.Size))
		respond(contextGin, http.StatusCreated, stored)
	}
}

// userRoutes serves /users from the Directory. Passwords never leave it.
type userRoutes struct {
	directory *Directory
	roles     *Collection
}

func (routes userRoutes) list(contextGin *gin.Context) {
	query := parseListQuery(contextGin)
	users, meta := paginate(routes.directory.List(query.filters), query.page, query.pageSize)
	respond(contextGin, http.StatusOK, gin.H{"result": users, "meta": meta})
}

func (routes userRoutes) create(contextGin *gin.Context) {
	var input resources.CreateUser
	if err := contextGin.ShouldBindJSON(&input); err != nil {
		abortWithMessage(contextGin, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	var missing []string
	if strings.TrimSpace(input.Name) == "" {
		missing = append(missing, "name should not be empty")
	}
	if !strings.Contains(input.Email, "@") {
		missing = append(missing, "email must be an email")
	}
	if len(input.Password) < 6 {
		missing = append(missing, "password must be longer than or equal to 6 characters")
	}
	if len(missing) > 0 {
		abortWithMessage(contextGin, http.StatusBadRequest, missing)
		return
	}
	role, ok := routes.lookupRole(contextGin, input.RoleID)
	if !ok {
		return
	}
	user, err := routes.directory.Add(input.Name, input.Email, input.Password, role)
	if err != nil {
		abortWithDirectoryError(contextGin, err)
		return
	}
	respond(contextGin, http.StatusCreated, user)
}

func (routes userRoutes) update(contextGin *gin.Context) {
	id, ok := pathID(contextGin)
	if !ok {
		return
	}
	var input resources.UpdateUser
	if err := contextGin.ShouldBindJSON(&input); err != nil {
		abortWithMessage(contextGin, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	var role *resources.Role
	if input.RoleID != nil {
		resolved, ok := routes.lookupRole(contextGin, *input.RoleID)
		if !ok {
			return
		}
		role = &resolved
	}
	user, err := routes.directory.Update(id, input.Name, input.Email, role)
	if err != nil {
		abortWithDirectoryError(contextGin, err)
		return
	}
	respond(contextGin, http.StatusOK, user)
}

func (routes userRoutes) remove(contextGin *gin.Context) {
	id, ok := pathID(contextGin)
	if !ok {
		return
	}
	if claims, found := sessionvalidator.ClaimsFromContext(contextGin, ClaimsKey); found && claims.GetUserID() == id {
		abortWithMessage(contextGin, http.StatusBadRequest, "Cannot delete the signed-in user")
		return
	}
	if err := routes.directory.Delete(id); err != nil {
		abortWithDirectoryError(contextGin, err)
		return
	}
	respond(contextGin, http.StatusOK, nil)
}

func (routes userRoutes) lookupRole(contextGin *gin.Context, roleID int64) (resources.Role, bool) {
	if roleID <= 0 {
		abortWithMessage(contextGin, http.StatusBadRequest, []string{"roleId should not be empty"})
		return resources.Role{}, false
	}
	record, err := routes.roles.Get(roleID)
	if err != nil {
		abortWithMessage(contextGin, http.StatusBadRequest, "Role not found")
		return resources.Role{}, false
	}
	role, err := decodeRecord[resources.Role](record)
	if err != nil {
		abortWithMessage(contextGin, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return resources.Role{}, false
	}
	return role, true
}

func abortWithDirectoryError(contextGin *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		abortWithMessage(contextGin, http.StatusNotFound, "User not found")
	case errors.Is(err, ErrEmailTaken):
		abortWithMessage(contextGin, http.StatusConflict, "Email already exists")
	default:
		currentLogger().Error("directory operation failed", zap.String("code", "users.directory"), zap.Error(err))
		abortWithMessage(contextGin, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}
