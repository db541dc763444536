package medication

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// Layout: users/<uid>/medications/<id> and users/<uid>/profile
var (
	usersBucket       = []byte("users")
	medicationsBucket = []byte("medications")
	profileKey        = []byte("profile")
)

// DB defines the interface for database operations
type DB interface {
	// SaveMedication saves a medication under its owner
	SaveMedication(m *Medication) error

	// GetMedication retrieves one of a user's medications
	GetMedication(userID, id string) (*Medication, error)

	// ListMedications returns all of a user's medications
	ListMedications(userID string) ([]*Medication, error)

	// DeleteMedication removes one of a user's medications
	DeleteMedication(userID, id string) error

	// SaveProfile saves a user's profile
	SaveProfile(p *Profile) error

	// GetProfile retrieves a user's profile
	GetProfile(userID string) (*Profile, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(usersBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// userBucket returns the user's bucket, or nil if the user has no data yet
func userBucket(tx *bbolt.Tx, userID string) *bbolt.Bucket {
	return tx.Bucket(usersBucket).Bucket([]byte(userID))
}

// medications returns the user's medications bucket, or nil
func medications(tx *bbolt.Tx, userID string) *bbolt.Bucket {
	user := userBucket(tx, userID)
	if user == nil {
		return nil
	}
	return user.Bucket(medicationsBucket)
}

// SaveMedication saves a medication under its owner
func (b *BoltDB) SaveMedication(m *Medication) error {
	if m.UserID == "" {
		return fmt.Errorf("medication %s has no user", m.ID)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		user, err := tx.Bucket(usersBucket).CreateBucketIfNotExists([]byte(m.UserID))
		if err != nil {
			return fmt.Errorf("creating user bucket: %w", err)
		}
		bucket, err := user.CreateBucketIfNotExists(medicationsBucket)
		if err != nil {
			return fmt.Errorf("creating medications bucket: %w", err)
		}
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshaling medication: %w", err)
		}
		return bucket.Put([]byte(m.ID), data)
	})
}

// GetMedication retrieves one of a user's medications
func (b *BoltDB) GetMedication(userID, id string) (*Medication, error) {
	var m *Medication
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := medications(tx, userID)
		if bucket == nil {
			return fmt.Errorf("medication %s: %w", id, ErrNotFound)
		}
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("medication %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMedications returns all of a user's medications in key order
func (b *BoltDB) ListMedications(userID string) ([]*Medication, error) {
	meds := make([]*Medication, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := medications(tx, userID)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var m Medication
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("unmarshaling medication: %w", err)
			}
			meds = append(meds, &m)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return meds, nil
}

// DeleteMedication removes one of a user's medications
func (b *BoltDB) DeleteMedication(userID, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := medications(tx, userID)
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(id))
	})
}

// SaveProfile saves a user's profile
func (b *BoltDB) SaveProfile(p *Profile) error {
	if p.UserID == "" {
		return fmt.Errorf("profile has no user")
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		user, err := tx.Bucket(usersBucket).CreateBucketIfNotExists([]byte(p.UserID))
		if err != nil {
			return fmt.Errorf("creating user bucket: %w", err)
		}
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshaling profile: %w", err)
		}
		return user.Put(profileKey, data)
	})
}

// GetProfile retrieves a user's profile
func (b *BoltDB) GetProfile(userID string) (*Profile, error) {
	var p *Profile
	err := b.db.View(func(tx *bbolt.Tx) error {
		user := userBucket(tx, userID)
		if user == nil {
			return fmt.Errorf("profile %s: %w", userID, ErrNotFound)
		}
		data := user.Get(profileKey)
		if data == nil {
			return fmt.Errorf("profile %s: %w", userID, ErrNotFound)
		}
		return json.Unmarshal(data, &p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
