package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"testing"
)

func openCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "db", "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRecordAndGet(t *testing.T) {
	c := openCatalog(t)
	data := []byte("BTKS")
	a, err := c.Record(KindContainer, "rhm.bin", 2, "out/002.btk", data)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	sum := sha256.Sum256(data)
	if a.SHA256 != hex.EncodeToString(sum[:]) || a.Size != 4 {
		t.Errorf("artifact = %+v", a)
	}

	got, err := c.Get(a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != a.ID || got.Kind != KindContainer || got.Source != "rhm.bin" || got.Index != 2 ||
		got.Name != "out/002.btk" || got.SHA256 != a.SHA256 || !got.Created.Equal(a.Created) {
		t.Errorf("got %+v, want %+v", got, a)
	}
}

func TestGetNotFound(t *testing.T) {
	c := openCatalog(t)
	if _, err := c.Get("missing"); !errors.Is(err, ErrArtifactNotFound) {
		t.Errorf("err = %v, want ErrArtifactNotFound", err)
	}
}

func TestList(t *testing.T) {
	c := openCatalog(t)
	records := []struct {
		kind Kind
		name string
	}{
		{KindBinary, "a.bin"},
		{KindContainer, "a.btk"},
		{KindBinary, "b.bin"},
		{KindReport, "report.cbor"},
	}
	for i, r := range records {
		if _, err := c.Record(r.kind, "src.tf", int64(i), r.name, []byte(r.name)); err != nil {
			t.Fatalf("Record %s: %v", r.name, err)
		}
	}

	all, err := c.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != len(records) {
		t.Fatalf("listed %d artifacts, want %d", len(all), len(records))
	}
	for i, a := range all {
		if a.Name != records[i].name {
			t.Errorf("artifact %d = %q, want %q", i, a.Name, records[i].name)
		}
	}

	bins, err := c.List(KindBinary)
	if err != nil {
		t.Fatalf("List(bin): %v", err)
	}
	if len(bins) != 2 || bins[0].Name != "a.bin" || bins[1].Name != "b.bin" {
		t.Errorf("bins = %+v", bins)
	}
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Record(KindReport, "img.bin", NoIndex, "report.cbor", nil); err != nil {
		t.Fatal(err)
	}
	c.Close()

	c, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	list, err := c.List(KindReport)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Index != NoIndex {
		t.Errorf("after reopen: %+v", list)
	}
}
