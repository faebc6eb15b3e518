package keystore

import (
	"time"
)

// keysetRecord is the persisted form of a p25.KeysetItem: its own id,
// algorithm, and per-key length, plus the owning KeyID/MI from the
// ModifyKey frame it arrived on.
type keysetRecord struct {
	ID          string    `gorm:"primarykey;size:36"`
	KeysetID    byte      `gorm:"index;not null"`
	AlgorithmID byte      `gorm:"not null"`
	KeyLength   byte      `gorm:"not null"`
	SourceKeyID uint16    `gorm:"index"`
	MI          []byte    `gorm:"size:9"`
	UpdatedAt   time.Time
	Keys        []keyItemRecord `gorm:"foreignKey:KeysetRecordID"`
}

// TableName specifies the table name for keysetRecord.
func (keysetRecord) TableName() string {
	return "keysets"
}

// keyItemRecord is the persisted form of a p25.KeyItem, 32-bytes-wide key
// material buffer per §3, with only the first KeyLength bytes of the
// parent keyset significant.
type keyItemRecord struct {
	ID              uint   `gorm:"primarykey"`
	KeysetRecordID  string `gorm:"index;size:36;not null"`
	KeyFormat       byte   `gorm:"not null"`
	SLN             uint16 `gorm:"index"`
	KeyID           uint16 `gorm:"index;not null"`
	Key             []byte `gorm:"size:32"`
}

// TableName specifies the table name for keyItemRecord.
func (keyItemRecord) TableName() string {
	return "key_items"
}
