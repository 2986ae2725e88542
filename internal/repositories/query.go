package repositories

import (
	"strings"

	"tasklist/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

const defaultSortColumn = "created_at"

// sortColumns maps the accepted sortBy values to task columns.
var sortColumns = map[string]string{
	"createdAt":  "created_at",
	"created_at": "created_at",
	"updatedAt":  "updated_at",
	"updated_at": "updated_at",
	"dueDate":    "due_date",
	"due_date":   "due_date",
	"title":      "title",
	"status":     "status",
	"priority":   "priority",
}

type Sort struct {
	Column string
	Order  SortOrder
}

// ParseSort turns the sortBy/order request parameters into a Sort.
// Unknown fields fall back to the creation time; only "asc" sorts ascending.
func ParseSort(sortBy, order string) Sort {
	column, ok := sortColumns[sortBy]
	if !ok {
		column = defaultSortColumn
	}
	if strings.EqualFold(order, string(SortAsc)) {
		return Sort{Column: column, Order: SortAsc}
	}
	return Sort{Column: column, Order: SortDesc}
}

func DefaultSort() Sort {
	return Sort{Column: defaultSortColumn, Order: SortDesc}
}

// Filter holds the optional narrowing parameters of a list request.
// Nil pointers and an empty Search mean "not filtered".
type Filter struct {
	Status   *models.Status
	Priority *models.Priority
	Search   string
}

// Query is a task predicate bound to exactly one owner. The owner can only be
// set through NewQuery, so no filter combination can widen the scope.
type Query struct {
	owner  uuid.UUID
	Filter Filter
	Sort   Sort
}

func NewQuery(owner uuid.UUID, filter Filter, sort Sort) Query {
	if sort.Column == "" {
		sort = DefaultSort()
	}
	return Query{owner: owner, Filter: filter, Sort: sort}
}

func (q Query) Owner() uuid.UUID {
	return q.owner
}

// Matches evaluates the predicate against a single task.
func (q Query) Matches(task *models.Task) bool {
	if task.Owner != q.owner {
		return false
	}
	if q.Filter.Status != nil && task.Status != *q.Filter.Status {
		return false
	}
	if q.Filter.Priority != nil && task.Priority != *q.Filter.Priority {
		return false
	}
	if q.Filter.Search != "" {
		needle := strings.ToLower(q.Filter.Search)
		if strings.Contains(strings.ToLower(task.Title), needle) {
			return true
		}
		if task.Description != nil && strings.Contains(strings.ToLower(*task.Description), needle) {
			return true
		}
		return false
	}
	return true
}

// Scope applies the predicate and ordering to a gorm query over tasks.
func (q Query) Scope(db *gorm.DB) *gorm.DB {
	db = db.Where("user_id = ?", q.owner)

	if q.Filter.Status != nil {
		db = db.Where("status = ?", string(*q.Filter.Status))
	}
	if q.Filter.Priority != nil {
		db = db.Where("priority = ?", string(*q.Filter.Priority))
	}
	if q.Filter.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(q.Filter.Search)) + "%"
		db = db.Where(
			"(LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(COALESCE(description, '')) LIKE ? ESCAPE '\\')",
			pattern, pattern,
		)
	}

	return db.
		Order(clause.OrderByColumn{Column: clause.Column{Name: q.Sort.Column}, Desc: q.Sort.Order == SortDesc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
