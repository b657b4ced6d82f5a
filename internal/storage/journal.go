package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"twammEngine/internal/model"
)

// Journal appends transfer records to a JSONL file.
type Journal struct {
	path string
	mu   sync.Mutex
}

func NewJournal(path string) *Journal {
	return &Journal{path: path}
}

// Record appends a batch of transfers as JSON lines, assigning ids to
// records that have none.
func (j *Journal) Record(ctx context.Context, records []model.TransferRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(j.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal transfer: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write transfer: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	return nil
}

// ReadJournal returns all records of a journal file.
func ReadJournal(path string) ([]model.TransferRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	var out []model.TransferRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec model.TransferRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("parse transfer: %w", err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return out, nil
}

// MemoryTransfers keeps transfers in memory.
type MemoryTransfers struct {
	mu      sync.Mutex
	records []model.TransferRecord
}

func (m *MemoryTransfers) Record(_ context.Context, records []model.TransferRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range records {
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		m.records = append(m.records, record)
	}
	return nil
}

// Records returns a copy of the recorded transfers.
func (m *MemoryTransfers) Records() []model.TransferRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.TransferRecord(nil), m.records...)
}
