package models

import "time"

// Category is the top level of the catalog taxonomy.
type Category struct {
	ID            uint          `gorm:"column:id;primaryKey;autoIncrement"`
	Name          string        `gorm:"column:name;not null"`
	Slug          string        `gorm:"column:slug;not null;uniqueIndex"`
	SubCategories []SubCategory `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// SubCategory groups products beneath a Category.
type SubCategory struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement"`
	CategoryID uint      `gorm:"column:category_id;not null;index"`
	Category   *Category `gorm:"foreignKey:CategoryID"`
	Name       string    `gorm:"column:name;not null"`
	Slug       string    `gorm:"column:slug;not null;uniqueIndex"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (SubCategory) TableName() string { return "sub_categories" }
