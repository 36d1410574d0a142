package postgres

import (
	"io"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func TestEmbeddedMigrationsPairUpAndDown(t *testing.T) {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		t.Fatalf("iofs.New: %v", err)
	}
	defer source.Close()

	ups := map[uint]string{}
	version, err := source.First()
	for err == nil {
		up, ident, readErr := source.ReadUp(version)
		if readErr != nil {
			t.Fatalf("read up %d: %v", version, readErr)
		}
		body, _ := io.ReadAll(up)
		up.Close()
		ups[version] = string(body)

		down, _, readErr := source.ReadDown(version)
		if readErr != nil {
			t.Fatalf("migration %d (%s) has no down file: %v", version, ident, readErr)
		}
		down.Close()
		version, err = source.Next(version)
	}

	if len(ups) < 2 {
		t.Fatalf("expected at least two migrations, got %d", len(ups))
	}
	prices := ups[2]
	for _, want := range []string{"ADD COLUMN IF NOT EXISTS price", "product_size_prices", "CHECK (price >= 0)"} {
		if !strings.Contains(prices, want) {
			t.Fatalf("catalog price migration is missing %q", want)
		}
	}
}
