package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/personaliza/api/internal/storefront/apiclient"
)

type memoryKV struct {
	values map[string][]byte
	setErr error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: map[string][]byte{}}
}

func (m *memoryKV) Get(key string) ([]byte, bool, error) {
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *memoryKV) Set(key string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("line_%d", n)
	}
}

func TestStoreAddMergesEquivalentLines(t *testing.T) {
	t.Parallel()

	store := NewStore(WithIDGenerator(sequentialIDs()))
	store.Add(NewItem{ProductID: "caneca", Name: "Caneca", Price: "49,90", Quantity: 2, SizeID: "p", ColorID: "azul", PersonalizationText: "Ana"})
	merged := store.Add(NewItem{ProductID: "caneca", Name: "Caneca", Price: "45,00", Quantity: 3, SizeID: "p", ColorID: "azul", PersonalizationText: "Ana"})

	items := store.Items()
	require.Len(t, items, 1)
	require.Equal(t, "line_1", merged.ID)
	require.Equal(t, 5, items[0].Quantity)
	require.Equal(t, 45.0, items[0].Price)
	require.Equal(t, 5, store.ItemsCount())
	require.Equal(t, 225.0, store.Subtotal())
}

func TestStoreAddKeepsDistinctConfigurations(t *testing.T) {
	t.Parallel()

	store := NewStore(WithIDGenerator(sequentialIDs()))
	store.Add(NewItem{ProductID: "camiseta", Price: "59.90", Quantity: 1, SizeID: "m"})
	store.Add(NewItem{ProductID: "camiseta", Price: "59.90", Quantity: 1, SizeID: "g"})
	store.Add(NewItem{ProductID: "camiseta", Price: "59.90", Quantity: 1, SizeID: "m", PersonalizationText: "Time"})
	store.Add(NewItem{ProductID: "camiseta", Price: "abc", Quantity: 0})

	items := store.Items()
	require.Len(t, items, 4)
	require.Equal(t, 0.0, items[3].Price)
	require.Equal(t, 1, items[3].Quantity)
	require.Equal(t, 179.7, store.Subtotal())
}

func TestStoreUpdateQuantityClampsToOne(t *testing.T) {
	t.Parallel()

	store := NewStore(WithIDGenerator(sequentialIDs()))
	store.Add(NewItem{ProductID: "caneca", Price: "10", Quantity: 4, ColorID: "azul"})
	store.Add(NewItem{ProductID: "caneca", Price: "10", Quantity: 4, ColorID: "verde"})

	store.UpdateQuantity("caneca", 0, "", "verde", "")
	store.UpdateQuantity("caneca", -3, "", "inexistente", "")

	items := store.Items()
	require.Equal(t, 4, items[0].Quantity)
	require.Equal(t, 1, items[1].Quantity)

	store.UpdateQuantity("caneca", 7, "", "azul", "")
	require.Equal(t, 7, store.Items()[0].Quantity)
}

func TestStoreRemoveIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewStore(WithIDGenerator(sequentialIDs()))
	store.Add(NewItem{ProductID: "a", Price: "1", Quantity: 1})
	store.Add(NewItem{ProductID: "b", Price: "2", Quantity: 1})

	store.Remove("line_1")
	store.Remove("line_1")
	store.Remove("missing")

	items := store.Items()
	require.Len(t, items, 1)
	require.Equal(t, "b", items[0].ProductID)

	store.Clear()
	require.Empty(t, store.Items())
	require.Zero(t, store.ItemsCount())
	require.Zero(t, store.Subtotal())
}

func TestStorePersistsEveryMutation(t *testing.T) {
	t.Parallel()

	kv := newMemoryKV()
	store := NewStore(WithPersister(NewPersister(kv, nil)), WithIDGenerator(sequentialIDs()))
	store.Add(NewItem{ProductID: "caneca", Name: "Caneca", Price: "49,90", Quantity: 1, SizeID: "p"})

	var persisted []map[string]any
	require.NoError(t, json.Unmarshal(kv.values[StorageKey], &persisted))
	require.Len(t, persisted, 1)
	require.Equal(t, "line_1", persisted[0]["id"])
	require.Equal(t, 49.9, persisted[0]["price"])
	require.Equal(t, "p", persisted[0]["sizeId"])
	require.NotContains(t, persisted[0], "colorId")

	store.Clear()
	require.JSONEq(t, `[]`, string(kv.values[StorageKey]))

	reopened := NewStore(WithPersister(NewPersister(kv, nil)))
	require.Empty(t, reopened.Items())
}

func TestStoreKeepsStateWhenPersistFails(t *testing.T) {
	t.Parallel()

	kv := newMemoryKV()
	kv.setErr = errors.New("disk full")
	store := NewStore(WithPersister(NewPersister(kv, nil)))
	store.Add(NewItem{ProductID: "caneca", Price: "10", Quantity: 1})

	require.Len(t, store.Items(), 1)
}

func TestPersisterLoadMalformedData(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"object":          `{"id":"x"}`,
		"not json":        `[{`,
		"missing product": `[{"id":"l1","name":"Caneca","price":10,"quantity":1}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			kv := newMemoryKV()
			kv.values[StorageKey] = []byte(raw)
			require.Empty(t, NewPersister(kv, nil).Load())
		})
	}
}

func TestPersisterLoadToleratesStringNumbers(t *testing.T) {
	t.Parallel()

	kv := newMemoryKV()
	kv.values[StorageKey] = []byte(`[{"id":"l1","productId":"caneca","name":"Caneca","price":"12,50","quantity":"2"},{"id":"l2","productId":"chaveiro","price":"x","quantity":0}]`)

	items := NewPersister(kv, nil).Load()
	require.Len(t, items, 2)
	require.Equal(t, 12.5, items[0].Price)
	require.Equal(t, 2, items[0].Quantity)
	require.Equal(t, 0.0, items[1].Price)
	require.Equal(t, 1, items[1].Quantity)
}

func TestFileKVRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "storage.json")
	kv := NewFileKV(path)

	_, ok, err := kv.Get(StorageKey)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, kv.Set(StorageKey, []byte(`[{"id":"l1","productId":"caneca","price":10,"quantity":1}]`)))
	require.NoError(t, kv.Set("personaliza:theme", []byte(`"dark"`)))

	store := NewStore(WithPersister(NewPersister(NewFileKV(path), nil)))
	require.Len(t, store.Items(), 1)

	theme, ok, err := kv.Get("personaliza:theme")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `"dark"`, string(theme))
}

func TestFileKVRecoversFromCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))
	kv := NewFileKV(path)

	_, _, err := kv.Get(StorageKey)
	require.Error(t, err)
	require.Empty(t, NewPersister(kv, nil).Load())

	require.NoError(t, kv.Set(StorageKey, []byte(`[]`)))
	value, ok, err := kv.Get(StorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `[]`, string(value))
}

type stubServerCart struct {
	cart apiclient.Cart
	err  error
}

func (s stubServerCart) GetCart(context.Context) (apiclient.Cart, error) {
	return s.cart, s.err
}

func TestSyncFromServerReplacesLocalItems(t *testing.T) {
	t.Parallel()

	kv := newMemoryKV()
	store := NewStore(WithPersister(NewPersister(kv, nil)), WithIDGenerator(sequentialIDs()))
	store.Add(NewItem{ProductID: "local-only", Price: "5", Quantity: 3})

	err := store.SyncFromServer(context.Background(), stubServerCart{cart: apiclient.Cart{
		Items: []apiclient.CartItem{{ID: "srv_1", ProductID: "caneca", Name: "Caneca", Price: 4990, Quantity: 2, ColorID: "azul"}},
	}})
	require.NoError(t, err)

	items := store.Items()
	require.Len(t, items, 1)
	require.Equal(t, "srv_1", items[0].ID)
	require.Equal(t, 49.9, items[0].Price)
	require.Equal(t, 99.8, store.Subtotal())
	require.Contains(t, string(kv.values[StorageKey]), "srv_1")
}

func TestSyncFromServerErrorLeavesLocalItems(t *testing.T) {
	t.Parallel()

	store := NewStore(WithIDGenerator(sequentialIDs()))
	store.Add(NewItem{ProductID: "local-only", Price: "5", Quantity: 3})

	err := store.SyncFromServer(context.Background(), stubServerCart{err: &apiclient.APIError{Status: 503}})
	require.Error(t, err)
	require.Equal(t, apiclient.KindTransient, apiclient.ClassifyError(err))

	items := store.Items()
	require.Len(t, items, 1)
	require.Equal(t, "local-only", items[0].ProductID)
}

func TestStoreAddAfterSyncMergesMarkupText(t *testing.T) {
	t.Parallel()

	store := NewStore(WithIDGenerator(sequentialIDs()))
	err := store.SyncFromServer(context.Background(), stubServerCart{cart: apiclient.Cart{
		Items: []apiclient.CartItem{{ID: "srv_1", ProductID: "caneca", Price: 4990, Quantity: 1, PersonalizationText: "Ana Maria"}},
	}})
	require.NoError(t, err)

	added := store.Add(NewItem{ProductID: "caneca", Price: "49,90", Quantity: 2, PersonalizationText: "  <b>Ana</b>   Maria "})
	require.Equal(t, "srv_1", added.ID)

	items := store.Items()
	require.Len(t, items, 1)
	require.Equal(t, 3, items[0].Quantity)
	require.Equal(t, "Ana Maria", items[0].PersonalizationText)

	store.UpdateQuantity("caneca", 5, "", "", "<i>Ana Maria</i>")
	require.Equal(t, 5, store.Items()[0].Quantity)
}

func TestStoreAddTruncatesPersonalizationText(t *testing.T) {
	t.Parallel()

	store := NewStore(WithIDGenerator(sequentialIDs()))
	long := strings.Repeat("á", 150)
	store.Add(NewItem{ProductID: "caneca", Price: "10", Quantity: 1, PersonalizationText: long})
	store.Add(NewItem{ProductID: "caneca", Price: "10", Quantity: 1, PersonalizationText: long[:len("á")*130]})

	items := store.Items()
	require.Len(t, items, 1)
	require.Equal(t, 2, items[0].Quantity)
	require.Equal(t, 120, utf8.RuneCountInString(items[0].PersonalizationText))
}
