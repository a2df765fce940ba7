package persistence

import (
	"strings"

	"github.com/staffhub/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// escapeLikePattern escapes LIKE wildcards so user input matches literally
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}

// containsPattern builds a lower-cased %term% pattern for a case-insensitive LIKE.
// LOWER(..) LIKE is used instead of ILIKE so the same query runs on PostgreSQL and SQLite.
func containsPattern(term string) string {
	return "%" + escapeLikePattern(strings.ToLower(strings.TrimSpace(term))) + "%"
}

// paginate applies offset/limit after normalizing page values
func paginate(query *gorm.DB, page, pageSize int) *gorm.DB {
	f := shared.Filter{Page: page, PageSize: pageSize}
	f.Normalize()
	return query.Offset(f.Offset()).Limit(f.PageSize)
}
