package keystore

import (
	"errors"
	"fmt"
	"time"

	"github.com/dbehnke/fne-peer/pkg/p25"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Put persists a KeysetItem received as part of a ModifyKey frame (§4.10),
// replacing any previously-cached keyset with the same KeysetID. sourceKeyID
// and mi are the enclosing ModifyKey's KeyID and optional MI, kept alongside
// the keyset for diagnostics.
func (s *Store) Put(keyset p25.KeysetItem, sourceKeyID uint16, mi []byte) error {
	record := keysetRecord{
		ID:          uuid.NewString(),
		KeysetID:    keyset.KeysetID,
		AlgorithmID: keyset.AlgorithmID,
		KeyLength:   keyset.KeyLength,
		SourceKeyID: sourceKeyID,
		MI:          append([]byte{}, mi...),
		UpdatedAt:   time.Now(),
	}
	for _, item := range keyset.Keys {
		record.Keys = append(record.Keys, keyItemRecord{
			KeyFormat: item.KeyFormat,
			SLN:       item.SLN,
			KeyID:     item.KeyID,
			Key:       append([]byte{}, item.Key[:]...),
		})
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var existing keysetRecord
		err := tx.Where("keyset_id = ?", keyset.KeysetID).First(&existing).Error
		if err == nil {
			if delErr := tx.Where("keyset_record_id = ?", existing.ID).Delete(&keyItemRecord{}).Error; delErr != nil {
				return delErr
			}
			if delErr := tx.Delete(&existing).Error; delErr != nil {
				return delErr
			}
		}
		return tx.Create(&record).Error
	})
}

// Get returns the most recently stored KeysetItem for keysetID, if any.
func (s *Store) Get(keysetID byte) (p25.KeysetItem, bool, error) {
	var record keysetRecord
	err := s.db.Preload("Keys").Where("keyset_id = ?", keysetID).First(&record).Error
	if err != nil {
		if isNotFound(err) {
			return p25.KeysetItem{}, false, nil
		}
		return p25.KeysetItem{}, false, fmt.Errorf("keystore: get keyset %d: %w", keysetID, err)
	}
	return record.toKeysetItem(), true, nil
}

// All returns every cached keyset, most recently updated first.
func (s *Store) All() ([]p25.KeysetItem, error) {
	var records []keysetRecord
	if err := s.db.Preload("Keys").Order("updated_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("keystore: list keysets: %w", err)
	}
	out := make([]p25.KeysetItem, 0, len(records))
	for _, r := range records {
		out = append(out, r.toKeysetItem())
	}
	return out, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func (r keysetRecord) toKeysetItem() p25.KeysetItem {
	ks := p25.KeysetItem{
		KeysetID:    r.KeysetID,
		AlgorithmID: r.AlgorithmID,
		KeyLength:   r.KeyLength,
	}
	for _, item := range r.Keys {
		var key p25.KeyItem
		key.KeyFormat = item.KeyFormat
		key.SLN = item.SLN
		key.KeyID = item.KeyID
		copy(key.Key[:], item.Key)
		ks.Keys = append(ks.Keys, key)
	}
	return ks
}
