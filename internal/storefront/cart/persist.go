package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/personaliza/api/internal/domain"
)

// StorageKey is the key the cart is saved under in the client-local store.
const StorageKey = "personaliza:cart"

// KV is a client-local key/value store.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
}

// Persister reads and writes the cart as a JSON array under StorageKey.
type Persister struct {
	kv     KV
	key    string
	logger *zap.Logger
}

// NewPersister wraps kv. A nil logger disables load diagnostics.
func NewPersister(kv KV, logger *zap.Logger) *Persister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persister{kv: kv, key: StorageKey, logger: logger}
}

// Load returns the persisted items. Missing, unreadable or malformed data yields an empty cart.
func (p *Persister) Load() []Item {
	if p == nil || p.kv == nil {
		return []Item{}
	}
	raw, ok, err := p.kv.Get(p.key)
	if err != nil {
		p.logger.Warn("cart: read persisted cart", zap.Error(err))
		return []Item{}
	}
	if !ok || len(raw) == 0 {
		return []Item{}
	}
	items, err := decodeItems(raw)
	if err != nil {
		p.logger.Warn("cart: discarding malformed persisted cart", zap.Error(err))
		return []Item{}
	}
	return items
}

// Save writes the full item list.
func (p *Persister) Save(items []Item) error {
	if p == nil || p.kv == nil {
		return nil
	}
	payload, err := json.Marshal(cloneItems(items))
	if err != nil {
		return err
	}
	return p.kv.Set(p.key, payload)
}

// persistedItem tolerates prices and quantities written as strings by older clients.
type persistedItem struct {
	ID                  string          `json:"id"`
	ProductID           string          `json:"productId"`
	Name                string          `json:"name"`
	ImageURL            string          `json:"imageUrl"`
	Price               json.RawMessage `json:"price"`
	Quantity            json.RawMessage `json:"quantity"`
	SizeID              string          `json:"sizeId"`
	SizeName            string          `json:"sizeName"`
	ColorID             string          `json:"colorId"`
	ColorName           string          `json:"colorName"`
	PersonalizationText string          `json:"personalizationText"`
}

var errMissingField = errors.New("cart: persisted item is missing id or productId")

func decodeItems(raw []byte) ([]Item, error) {
	var stored []persistedItem
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(stored))
	for _, s := range stored {
		if strings.TrimSpace(s.ID) == "" || strings.TrimSpace(s.ProductID) == "" {
			return nil, errMissingField
		}
		quantity := int(numberField(s.Quantity))
		if quantity < 1 {
			quantity = 1
		}
		items = append(items, Item{
			ID:                  s.ID,
			ProductID:           s.ProductID,
			Name:                s.Name,
			ImageURL:            s.ImageURL,
			Price:               numberField(s.Price),
			Quantity:            quantity,
			SizeID:              s.SizeID,
			SizeName:            s.SizeName,
			ColorID:             s.ColorID,
			ColorName:           s.ColorName,
			PersonalizationText: s.PersonalizationText,
		})
	}
	return items, nil
}

func numberField(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return domain.ParsePrice(text)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0
	}
	return value
}

// FileKV is a KV backed by one JSON object on disk. Writes replace the file atomically.
type FileKV struct {
	mu   sync.Mutex
	path string
}

// NewFileKV stores values in the file at path, created on first write.
func NewFileKV(path string) *FileKV {
	return &FileKV{path: path}
}

// Get returns the value stored under key.
func (f *FileKV) Get(key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return nil, false, err
	}
	value, ok := values[key]
	return value, ok, nil
}

// Set stores value under key.
func (f *FileKV) Set(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		// An unreadable file is replaced rather than blocking every later write.
		values = map[string]json.RawMessage{}
	}
	values[key] = json.RawMessage(value)
	return f.write(values)
}

func (f *FileKV) read() (map[string]json.RawMessage, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	values := map[string]json.RawMessage{}
	if len(raw) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("cart: decode %s: %w", f.path, err)
	}
	return values, nil
}

func (f *FileKV) write(values map[string]json.RawMessage) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".cart-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}
