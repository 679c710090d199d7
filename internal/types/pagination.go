package types

// QueryFilter carries pagination parameters shared by all list operations
type QueryFilter struct {
	Limit  int `json:"limit" form:"limit"`
	Offset int `json:"offset" form:"offset"`

	// unlimited disables pagination, used by internal scans
	unlimited bool
}

const (
	DefaultQueryLimit = 50
	MaxQueryLimit     = 1000
)

// NewQueryFilter returns a filter with the default page size
func NewQueryFilter() QueryFilter {
	return QueryFilter{Limit: DefaultQueryLimit}
}

// NewNoLimitQueryFilter returns a filter that disables pagination
func NewNoLimitQueryFilter() QueryFilter {
	return QueryFilter{unlimited: true}
}

func (f QueryFilter) GetLimit() int {
	if f.Limit <= 0 {
		return DefaultQueryLimit
	}
	if f.Limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return f.Limit
}

func (f QueryFilter) GetOffset() int {
	if f.Offset < 0 {
		return 0
	}
	return f.Offset
}

func (f QueryFilter) IsUnlimited() bool {
	return f.unlimited
}

// BaseFilter is satisfied by every entity filter embedding QueryFilter
type BaseFilter interface {
	GetLimit() int
	GetOffset() int
	IsUnlimited() bool
}

// ListResponse is the paginated result contract: the union of pages covers
// the total exactly once, ordered by created_at descending unless a store
// documents otherwise.
type ListResponse[T any] struct {
	Data    []T  `json:"data"`
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NewListResponse builds a list response and derives HasMore
func NewListResponse[T any](data []T, total int, f QueryFilter) ListResponse[T] {
	return ListResponse[T]{
		Data:    data,
		Total:   total,
		Limit:   f.GetLimit(),
		Offset:  f.GetOffset(),
		HasMore: f.GetOffset()+len(data) < total,
	}
}
