package models

// Attribute is a configurable dimension such as size or colour. Managed outside
// the product write path.
type Attribute struct {
	ID     uint             `gorm:"column:id;primaryKey;autoIncrement"`
	Name   string           `gorm:"column:name;not null"`
	Slug   string           `gorm:"column:slug;not null;uniqueIndex"`
	Values []AttributeValue `gorm:"foreignKey:AttributeID;constraint:OnDelete:CASCADE"`
}

type AttributeValue struct {
	ID          uint       `gorm:"column:id;primaryKey;autoIncrement"`
	AttributeID uint       `gorm:"column:attribute_id;not null;index"`
	Attribute   *Attribute `gorm:"foreignKey:AttributeID"`
	Value       string     `gorm:"column:value;not null"`
	Slug        string     `gorm:"column:slug;not null"`
}
