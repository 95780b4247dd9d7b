package mockapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/tyemirov/helpdesk/internal/resources"
)

// ErrRecordNotFound indicates no record has the requested id.
var ErrRecordNotFound = errors.New("collection.not_found")

const maxPageSize = 100

// Record is one stored JSON object. The "id" field is owned by the collection.
type Record map[string]any

func (record Record) clone() Record {
	copied := make(Record, len(record))
	for key, value := range record {
		copied[key] = value
	}
	return copied
}

func (record Record) text(field string) string {
	value, ok := record[field]
	if !ok || value == nil {
		return ""
	}
	if text, isString := value.(string); isString {
		return text
	}
	return fmt.Sprint(value)
}

// Collection is an in-memory table of records keyed by a sequential id.
type Collection struct {
	mutex    sync.RWMutex
	name     string
	required []string
	filters  []string
	nextID   int64
	records  map[int64]Record
}

// NewCollection constructs an empty collection. Required fields must be
// present and non-empty on create. Filters name the fields list queries may
// narrow by.
func NewCollection(name string, required []string, filters []string) *Collection {
	return &Collection{
		name:     name,
		required: required,
		filters:  filters,
		records:  make(map[int64]Record),
	}
}

// Name is the collection label used in errors.
func (collection *Collection) Name() string {
	return collection.name
}

// Missing returns a validation message for every required field the record
// does not carry.
func (collection *Collection) Missing(record Record) []string {
	var messages []string
	for _, field := range collection.required {
		if record.text(field) == "" {
			messages = append(messages, field+" should not be empty")
		}
	}
	return messages
}

// Insert stores record under a new id and returns the stored copy.
func (collection *Collection) Insert(record Record) Record {
	collection.mutex.Lock()
	defer collection.mutex.Unlock()
	collection.nextID++
	stored := record.clone()
	stored["id"] = collection.nextID
	collection.records[collection.nextID] = stored
	return stored.clone()
}

// Get returns a copy of the record with id.
func (collection *Collection) Get(id int64) (Record, error) {
	collection.mutex.RLock()
	defer collection.mutex.RUnlock()
	record, ok := collection.records[id]
	if !ok {
		return nil, fmt.Errorf("collection.%s.get: %w", collection.name, ErrRecordNotFound)
	}
	return record.clone(), nil
}

// List returns the records newest first, narrowed by case-insensitive
// substring matches on the collection's filter fields.
func (collection *Collection) List(filters map[string]string) []Record {
	collection.mutex.RLock()
	defer collection.mutex.RUnlock()
	matched := make([]Record, 0, len(collection.records))
	for _, record := range collection.records {
		if !collection.matches(record, filters) {
			continue
		}
		matched = append(matched, record.clone())
	}
	sort.Slice(matched, func(left, right int) bool {
		return recordID(matched[left]) > recordID(matched[right])
	})
	return matched
}

// Merge applies patch onto the record with id. A null value removes the field.
func (collection *Collection) Merge(id int64, patch Record) (Record, error) {
	collection.mutex.Lock()
	defer collection.mutex.Unlock()
	record, ok := collection.records[id]
	if !ok {
		return nil, fmt.Errorf("collection.%s.merge: %w", collection.name, ErrRecordNotFound)
	}
	for key, value := range patch {
		if key == "id" {
			continue
		}
		if value == nil {
			delete(record, key)
			continue
		}
		record[key] = value
	}
	return record.clone(), nil
}

// Delete removes the record with id.
func (collection *Collection) Delete(id int64) error {
	collection.mutex.Lock()
	defer collection.mutex.Unlock()
	if _, ok := collection.records[id]; !ok {
		return fmt.Errorf("collection.%s.delete: %w", collection.name, ErrRecordNotFound)
	}
	delete(collection.records, id)
	return nil
}

func (collection *Collection) matches(record Record, filters map[string]string) bool {
	for _, field := range collection.filters {
		if !containsFold(record.text(field), filters[field]) {
			return false
		}
	}
	return true
}

func recordID(record Record) int64 {
	switch value := record["id"].(type) {
	case int64:
		return value
	case json.Number:
		parsed, _ := value.Int64()
		return parsed
	case float64:
		return int64(value)
	default:
		parsed, _ := strconv.ParseInt(fmt.Sprint(value), 10, 64)
		return parsed
	}
}

// decodeRecord converts a stored record into a typed value.
func decodeRecord[T any](record Record) (T, error) {
	var typed T
	encoded, err := json.Marshal(record)
	if err != nil {
		return typed, err
	}
	if err := json.Unmarshal(encoded, &typed); err != nil {
		return typed, err
	}
	return typed, nil
}

// paginate returns the requested page of items with its pagination meta.
// Pages past the end are empty.
func paginate[T any](items []T, page int, pageSize int) ([]T, resources.Meta) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = resources.DefaultMeta().PageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	total := len(items)
	meta := resources.Meta{
		Page:     page,
		PageSize: pageSize,
		Pages:    (total + pageSize - 1) / pageSize,
		Total:    total,
	}
	start := (page - 1) * pageSize
	if start >= total {
		return []T{}, meta
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return items[start:end], meta
}
