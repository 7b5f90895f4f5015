// models/kv_entry.go
package models

import "time"

// KVEntry is one string value of the flat key-value namespace when the
// ledger lives in Postgres.
// Table name: key_value_store
type KVEntry struct {
	Key       string    `gorm:"primaryKey;type:text" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (KVEntry) TableName() string {
	return "key_value_store"
}

// KVSetMember is one member of a string set (e.g. "user:{wallet}:purchases").
// The composite primary key makes inserts idempotent.
// Table name: key_value_set_members
type KVSetMember struct {
	SetKey    string    `gorm:"primaryKey;type:text" json:"set_key"`
	Member    string    `gorm:"primaryKey;type:text" json:"member"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (KVSetMember) TableName() string {
	return "key_value_set_members"
}
