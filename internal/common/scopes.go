package common

import "gorm.io/gorm"

// ByCompany 按公司ID过滤（多租户查询通用Scope）
// 使用方法：db.Scopes(common.ByCompany(companyID)).Find(&entries)
func ByCompany(companyID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("company_id = ?", companyID)
	}
}

// ByUser 按用户ID过滤
func ByUser(userID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", userID)
	}
}

// ActiveOnly 仅查询激活状态的记录
func ActiveOnly() func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("is_active = ?", true)
	}
}

// InDateRange 按日期区间过滤（闭区间）
func InDateRange(column string, start, end interface{}) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(column+" BETWEEN ? AND ?", start, end)
	}
}
