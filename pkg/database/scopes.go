package database

import "gorm.io/gorm"

// VisibleTo restricts a query to rows created by the caller when the
// role requires it: sales staff see only their own documents, admin and
// manager see everything. Applied at the query layer only.
func VisibleTo(role, userID string) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if role == RoleSales {
			return q.Where("created_by_id = ?", userID)
		}
		return q
	}
}
