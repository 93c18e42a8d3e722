package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"pilotdeck/pkg/logger"
	"pilotdeck/pkg/models"
	"pilotdeck/pkg/utils"
)

var (
	db     *pebble.DB
	dbPath string
)

// seq reduces key collisions when multiple messages share the same
// nanosecond timestamp.
var seq uint64

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func rowKey(table, id string) []byte {
	return []byte(fmt.Sprintf("table:%s:row:%s", table, id))
}

func chatMsgKey(chatID string, ts int64, s uint64) []byte {
	return []byte(fmt.Sprintf("chat:%s:msg:%020d-%06d", chatID, ts, s))
}

// InsertRow inserts one row into table, filling id and created_ts when the
// caller omitted them, and returns the stored row.
func InsertRow(table string, row map[string]any) (map[string]any, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	if row == nil {
		row = map[string]any{}
	}
	id, _ := row["id"].(string)
	if id == "" {
		id = utils.GenRowID()
		row["id"] = id
	}
	if _, ok := row["created_ts"]; !ok {
		row["created_ts"] = time.Now().UTC().UnixNano()
	}
	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("marshal row: %w", err)
	}
	if err := db.Set(rowKey(table, id), data, pebble.Sync); err != nil {
		logger.Error("insert_row_failed", "table", table, "id", id, "error", err)
		return nil, err
	}
	countOp("insert", table)
	logger.Debug("row_inserted", "table", table, "id", id)
	return row, nil
}

// GetRow returns the row with the given id, or an error when absent.
func GetRow(table, id string) (map[string]any, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	val, closer, err := db.Get(rowKey(table, id))
	if err != nil {
		return nil, fmt.Errorf("row %s/%s not found", table, id)
	}
	defer closer.Close()
	var row map[string]any
	if err := json.Unmarshal(val, &row); err != nil {
		return nil, fmt.Errorf("invalid stored row %s/%s: %w", table, id, err)
	}
	countOp("get", table)
	return row, nil
}

// UpdateRow merges patch into the row with the given id and returns the
// updated row. Keys "id" and "created_ts" are not overwritable.
func UpdateRow(table, id string, patch map[string]any) (map[string]any, error) {
	row, err := GetRow(table, id)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		if k == "id" || k == "created_ts" {
			continue
		}
		row[k] = v
	}
	row["updated_ts"] = time.Now().UTC().UnixNano()
	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("marshal row: %w", err)
	}
	if err := db.Set(rowKey(table, id), data, pebble.Sync); err != nil {
		logger.Error("update_row_failed", "table", table, "id", id, "error", err)
		return nil, err
	}
	countOp("update", table)
	return row, nil
}

// DeleteRow removes the row with the given id. Deleting an absent row is
// an error so callers can distinguish no-ops.
func DeleteRow(table, id string) error {
	if _, err := GetRow(table, id); err != nil {
		return err
	}
	if err := db.Delete(rowKey(table, id), pebble.Sync); err != nil {
		logger.Error("delete_row_failed", "table", table, "id", id, "error", err)
		return err
	}
	countOp("delete", table)
	return nil
}

// ListRows scans table and returns rows matching every equality filter,
// up to limit (0 means no cap). Filter values compare against the string
// form of the stored field.
func ListRows(table string, filter map[string]string, limit int) ([]map[string]any, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("table:" + table + ":row:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []map[string]any
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var row map[string]any
		if err := json.Unmarshal(iter.Value(), &row); err != nil {
			continue
		}
		if !matches(row, filter) {
			continue
		}
		out = append(out, row)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	countOp("list", table)
	// stable order: oldest first by created_ts, then id
	sort.SliceStable(out, func(i, j int) bool {
		ti, _ := out[i]["created_ts"].(float64)
		tj, _ := out[j]["created_ts"].(float64)
		if ti != tj {
			return ti < tj
		}
		si, _ := out[i]["id"].(string)
		sj, _ := out[j]["id"].(string)
		return si < sj
	})
	return out, nil
}

func matches(row map[string]any, filter map[string]string) bool {
	for k, want := range filter {
		got, ok := row[k]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

// SaveMessage appends a message to its chat under a sortable timestamp key
// and indexes it under the messages table for lookup by id. Chat-order
// entries are append-time snapshots; the row entry is the mutable copy.
func SaveMessage(m models.Message) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	if m.ID == "" {
		m.ID = utils.GenMessageID()
	}
	if m.TS == 0 {
		m.TS = time.Now().UTC().UnixNano()
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	s := atomic.AddUint64(&seq, 1)
	if m.ChatID != "" {
		key := chatMsgKey(m.ChatID, m.TS, s)
		if err := db.Set(key, data, pebble.Sync); err != nil {
			logger.Error("save_message_failed", "chat", m.ChatID, "id", m.ID, "error", err)
			return err
		}
	}
	if err := db.Set(rowKey(models.TableMessages, m.ID), data, pebble.Sync); err != nil {
		logger.Error("save_message_index_failed", "id", m.ID, "error", err)
		return err
	}
	countOp("insert", models.TableMessages)
	logger.Debug("message_saved", "chat", m.ChatID, "id", m.ID)
	return nil
}

// ListChatMessages returns the messages of a chat in insertion order, up
// to limit (0 means all).
func ListChatMessages(chatID string, limit int) ([]models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("chat:" + chatID + ":msg:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			// tolerate foreign values under the prefix
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	countOp("list", models.TableMessages)
	return out, nil
}

// RecentMessages returns up to n messages of a chat, newest first.
func RecentMessages(chatID string, n int) ([]models.Message, error) {
	all, err := ListChatMessages(chatID, 0)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	// reverse to newest-first
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// PurgeMessagesBefore deletes chat-ordered message entries older than
// cutoff (ns), batchSize per pass, and returns how many were removed.
// Row-table entries for the same ids are removed alongside.
func PurgeMessagesBefore(cutoff int64, batchSize int, dryRun bool) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("chat:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	type victim struct {
		key []byte
		id  string
	}
	var victims []victim
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if !strings.Contains(string(iter.Key()), ":msg:") {
			continue
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		if m.TS >= cutoff {
			continue
		}
		k := append([]byte(nil), iter.Key()...)
		victims = append(victims, victim{key: k, id: m.ID})
		if batchSize > 0 && len(victims) >= batchSize {
			break
		}
	}
	if dryRun {
		return len(victims), nil
	}
	for _, v := range victims {
		if err := db.Delete(v.key, pebble.Sync); err != nil {
			return 0, err
		}
		if v.id != "" {
			_ = db.Delete(rowKey(models.TableMessages, v.id), pebble.Sync)
		}
	}
	return len(victims), nil
}
