package models

import "time"

// RowModel stores one table-store row. Every collection shares this table;
// the row payload is kept as a JSON document.
type RowModel struct {
	Collection string    `gorm:"type:varchar(128);primaryKey"`
	RowID      string    `gorm:"column:row_id;type:varchar(64);primaryKey"`
	Data       string    `gorm:"type:longtext"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (RowModel) TableName() string { return "table_rows" }
