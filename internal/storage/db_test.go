package storage

import (
	"bytes"
	"errors"
	"testing"
)

// testStore runs the shared test suite against a Store implementation.
func testStore(t *testing.T, db Store) {
	t.Helper()

	t.Run("PutAndGet", func(t *testing.T) {
		if err := db.Put([]byte("key1"), []byte("value1")); err != nil {
			t.Fatalf("Put() error: %v", err)
		}
		val, err := db.Get([]byte("key1"))
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if !bytes.Equal(val, []byte("value1")) {
			t.Errorf("Get() = %q, want %q", val, "value1")
		}
	})

	t.Run("GetNonexistent", func(t *testing.T) {
		_, err := db.Get([]byte("nonexistent"))
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() for missing key error = %v, want ErrNotFound", err)
		}
	})

	t.Run("Has", func(t *testing.T) {
		db.Put([]byte("exists"), []byte("yes"))
		if ok, err := db.Has([]byte("exists")); err != nil || !ok {
			t.Errorf("Has(exists) = %v, %v", ok, err)
		}
		if ok, err := db.Has([]byte("missing")); err != nil || ok {
			t.Errorf("Has(missing) = %v, %v", ok, err)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		db.Put([]byte("ow"), []byte("first"))
		db.Put([]byte("ow"), []byte("second"))
		val, _ := db.Get([]byte("ow"))
		if !bytes.Equal(val, []byte("second")) {
			t.Errorf("Get() after overwrite = %q, want %q", val, "second")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db.Put([]byte("del"), []byte("value"))
		if err := db.Delete([]byte("del")); err != nil {
			t.Fatalf("Delete() error: %v", err)
		}
		if _, err := db.Get([]byte("del")); !errors.Is(err, ErrNotFound) {
			t.Error("Get() after Delete() should return ErrNotFound")
		}
		if err := db.Delete([]byte("never-existed")); err != nil {
			t.Errorf("Delete() nonexistent key error: %v", err)
		}
	})

	t.Run("ValueIsCopied", func(t *testing.T) {
		v := []byte("orig")
		db.Put([]byte("copy"), v)
		v[0] = 'X'
		got, _ := db.Get([]byte("copy"))
		if string(got) != "orig" {
			t.Errorf("stored value changed with caller buffer: %q", got)
		}
	})

	t.Run("ForEachOrdered", func(t *testing.T) {
		db.Put([]byte("prefix/c"), []byte("3"))
		db.Put([]byte("prefix/a"), []byte("1"))
		db.Put([]byte("prefix/b"), []byte("2"))
		db.Put([]byte("other/x"), []byte("4"))

		var keys []string
		err := db.ForEach([]byte("prefix/"), func(key, _ []byte) error {
			keys = append(keys, string(key))
			return nil
		})
		if err != nil {
			t.Fatalf("ForEach() error: %v", err)
		}
		want := []string{"prefix/a", "prefix/b", "prefix/c"}
		if len(keys) != len(want) {
			t.Fatalf("ForEach() keys = %v, want %v", keys, want)
		}
		for i := range want {
			if keys[i] != want[i] {
				t.Errorf("key %d = %q, want %q", i, keys[i], want[i])
			}
		}
	})

	t.Run("ForEachReverse", func(t *testing.T) {
		db.Put([]byte("rev/1"), []byte("a"))
		db.Put([]byte("rev/3"), []byte("c"))
		db.Put([]byte("rev/2"), []byte("b"))
		db.Put([]byte("rev0"), []byte("outside"))
		db.Put([]byte("re"), []byte("outside"))

		var keys []string
		err := db.ForEachReverse([]byte("rev/"), func(key, value []byte) error {
			keys = append(keys, string(key)+"="+string(value))
			return nil
		})
		if err != nil {
			t.Fatalf("ForEachReverse() error: %v", err)
		}
		want := []string{"rev/3=c", "rev/2=b", "rev/1=a"}
		if len(keys) != len(want) {
			t.Fatalf("ForEachReverse() keys = %v, want %v", keys, want)
		}
		for i := range want {
			if keys[i] != want[i] {
				t.Errorf("entry %d = %q, want %q", i, keys[i], want[i])
			}
		}
	})

	t.Run("Batch", func(t *testing.T) {
		db.Put([]byte("batch/old"), []byte("x"))

		b := db.NewBatch()
		b.Put([]byte("batch/1"), []byte("one"))
		b.Put([]byte("batch/2"), []byte("two"))
		b.Delete([]byte("batch/old"))

		if ok, _ := db.Has([]byte("batch/1")); ok {
			t.Error("batch writes should not be visible before Commit()")
		}
		if err := b.Commit(); err != nil {
			t.Fatalf("Commit() error: %v", err)
		}
		if v, _ := db.Get([]byte("batch/2")); string(v) != "two" {
			t.Errorf("Get(batch/2) = %q, want two", v)
		}
		if ok, _ := db.Has([]byte("batch/old")); ok {
			t.Error("batch delete not applied")
		}
	})
}

func TestMemoryDB(t *testing.T) {
	db := NewMemory()
	defer db.Close()
	testStore(t, db)
}

func TestBadgerDB(t *testing.T) {
	db, err := NewBadger(t.TempDir())
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	defer db.Close()
	testStore(t, db)
}

func TestBadgerDB_InMemory(t *testing.T) {
	db, err := NewBadgerInMemory()
	if err != nil {
		t.Fatalf("NewBadgerInMemory() error: %v", err)
	}
	defer db.Close()
	testStore(t, db)
}

func TestBadgerDB_Persistence(t *testing.T) {
	dir := t.TempDir()

	db1, err := NewBadger(dir)
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	db1.Put([]byte("persist"), []byte("data"))
	db1.Close()

	db2, err := NewBadger(dir)
	if err != nil {
		t.Fatalf("NewBadger() reopen error: %v", err)
	}
	defer db2.Close()

	val, err := db2.Get([]byte("persist"))
	if err != nil {
		t.Fatalf("Get() after reopen error: %v", err)
	}
	if string(val) != "data" {
		t.Errorf("Get() after reopen = %q, want %q", val, "data")
	}
}

func TestBadgerDB_Locked(t *testing.T) {
	dir := t.TempDir()
	db, err := NewBadger(dir)
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	defer db.Close()

	if _, err := NewBadger(dir); err == nil {
		t.Error("second open of the same directory should fail")
	}
}
