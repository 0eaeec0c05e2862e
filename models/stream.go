package models

import (
	"iter"

	"gorm.io/gorm"
)

const defaultPageSize = 500

// streamByKey turns a keyset page fetcher into a pull sequence. A page is only fetched once the
// consumer has drained the previous one, and no cursor is held open between pages.
func streamByKey[T any](pageSize int, fetch func(after *T, limit int) ([]T, error)) iter.Seq2[T, error] {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return func(yield func(T, error) bool) {
		var after *T
		for {
			page, err := fetch(after, pageSize)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for i := range page {
				if !yield(page[i], nil) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
			last := page[len(page)-1]
			after = &last
		}
	}
}

// jsonText renders a JSON column as text so it can be matched with LIKE on every dialect.
func jsonText(db *gorm.DB, column string) string {
	switch db.Dialector.Name() {
	case "postgres":
		return column + "::text"
	case "mysql":
		return "CAST(" + column + " AS CHAR)"
	default:
		return column
	}
}
