// internal/utils/pagination.go
package utils

const (
	DefaultPageLimit        = 20
	MaxPageLimit            = 100
	DefaultTransactionLimit = 50
	MaxTransactionLimit     = 500
)

// PageQuery is bound from ?limit=&offset=. Pointers tell "absent" apart from an explicit zero.
type PageQuery struct {
	Limit  *int `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset *int `form:"offset" binding:"omitempty,min=0"`
}

func (q PageQuery) Window() (limit, offset int) {
	return intOr(q.Limit, DefaultPageLimit), intOr(q.Offset, 0)
}

type TransactionQuery struct {
	Limit *int `form:"limit" binding:"omitempty,min=1,max=500"`
}

func (q TransactionQuery) LimitOrDefault() int {
	return intOr(q.Limit, DefaultTransactionLimit)
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
