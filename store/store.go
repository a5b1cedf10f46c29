// Package store keeps a local append-only journal of what the client
// submitted and which assessments it collected, so operators can audit a
// dispute without replaying the ledger.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketEvents      = []byte("events_by_txid")
	bucketAssessments = []byte("assessments_by_txid")
)

type Journal struct {
	db *bolt.DB
}

// Event is one lifecycle step the client drove: the operation name, the
// ledger signature it produced (if any), and a free-form note.
type Event struct {
	TransactionID string    `json:"transaction_id"`
	Op            string    `json:"op"`
	Signature     string    `json:"signature,omitempty"`
	Note          string    `json:"note,omitempty"`
	At            time.Time `json:"at"`
}

// AssessmentRecord mirrors an oracle assessment for local audit.
type AssessmentRecord struct {
	Oracle    string `json:"oracle"`
	Score     uint8  `json:"score"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path required")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketEvents, bucketAssessments} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// eventKey orders events per transaction by timestamp; the nanosecond suffix
// keeps same-instant writes distinct.
func eventKey(transactionID string, at time.Time) []byte {
	return []byte(fmt.Sprintf("%s/%020d", transactionID, at.UnixNano()))
}

func (j *Journal) AppendEvent(ev Event) error {
	if ev.TransactionID == "" {
		return fmt.Errorf("journal: event without transaction id")
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEvents).Put(eventKey(ev.TransactionID, ev.At), raw)
	})
}

// Events returns the recorded lifecycle steps for a transaction in append
// order.
func (j *Journal) Events(transactionID string) ([]Event, error) {
	prefix := []byte(transactionID + "/")
	var out []Event
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Seek(prefix); k != nil && len(k) >= len(prefix) && string(k[:len(prefix)]) == string(prefix); k, v = c.Next() {
			var ev Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return fmt.Errorf("journal: corrupt event %q: %w", k, err)
			}
			out = append(out, ev)
		}
		return nil
	})
	return out, err
}

// PutAssessments stores the full assessment set used for a resolution.
// Resolutions are terminal, so the set is written once and overwritten never.
func (j *Journal) PutAssessments(transactionID string, recs []AssessmentRecord) error {
	if transactionID == "" {
		return fmt.Errorf("journal: assessments without transaction id")
	}
	raw, err := json.Marshal(recs)
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAssessments)
		if b.Get([]byte(transactionID)) != nil {
			return fmt.Errorf("journal: assessments already recorded for %q", transactionID)
		}
		return b.Put([]byte(transactionID), raw)
	})
}

func (j *Journal) Assessments(transactionID string) ([]AssessmentRecord, error) {
	var out []AssessmentRecord
	err := j.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketAssessments).Get([]byte(transactionID))
		if raw == nil {
			return nil
		}
		return json.Unmarshal(raw, &out)
	})
	return out, err
}
