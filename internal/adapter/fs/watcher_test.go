package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func newTestWatcher(t *testing.T, root string, includes ...string) *Watcher {
	t.Helper()
	w, err := NewWatcher(root, NewWalker(includes, nil), 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func TestWatcher_Classify(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "report.pdf"))
	touch(t, filepath.Join(root, "REPORT2.PDF"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "sub", "deep.pdf"))
	w := newTestWatcher(t, root)

	tests := []struct {
		name   string
		path   string
		op     fsnotify.Op
		want   bool
		wantOp ChangeKind
	}{
		{"create pdf", "report.pdf", fsnotify.Create, true, ChangeUpserted},
		{"write upper-case pdf", "REPORT2.PDF", fsnotify.Write, true, ChangeUpserted},
		{"remove pdf", "gone.pdf", fsnotify.Remove, true, ChangeRemoved},
		{"rename pdf", "moved.pdf", fsnotify.Rename, true, ChangeRemoved},
		{"chmod ignored", "report.pdf", fsnotify.Chmod, false, 0},
		{"non-pdf ignored", "notes.txt", fsnotify.Write, false, 0},
		{"nested ignored without recursive include", "sub/deep.pdf", fsnotify.Create, false, 0},
		{"create of vanished file ignored", "vanished.pdf", fsnotify.Create, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := fsnotify.Event{Name: filepath.Join(root, filepath.FromSlash(tt.path)), Op: tt.op}
			got, ok := w.classify(ev)
			if ok != tt.want {
				t.Fatalf("classify ok = %v, want %v", ok, tt.want)
			}
			if ok && got.Kind != tt.wantOp {
				t.Errorf("kind = %v, want %v", got.Kind, tt.wantOp)
			}
			if ok && got.Path != ev.Name {
				t.Errorf("path = %q, want %q", got.Path, ev.Name)
			}
		})
	}
}

func TestWatcher_RecursiveInclude(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "sub", "deep.pdf"))
	w := newTestWatcher(t, root, "**/*.pdf")

	ev := fsnotify.Event{Name: filepath.Join(root, "sub", "deep.pdf"), Op: fsnotify.Write}
	if _, ok := w.classify(ev); !ok {
		t.Error("nested pdf should match a recursive include")
	}
}

func TestWatcher_RunDebouncesWrites(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changes := make(chan Change, 8)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(c Change) { changes <- c })
	}()

	path := filepath.Join(root, "new.pdf")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("%PDF-1.4 v"+string(rune('0'+i))), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "skip.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changes:
		if c.Path != path || c.Kind != ChangeUpserted {
			t.Errorf("change = %+v, want upsert of %s", c, path)
		}
	case <-ctx.Done():
		t.Fatal("no change delivered")
	}

	// Writes in one burst collapse into a single change.
	select {
	case c := <-changes:
		t.Errorf("unexpected extra change %+v", c)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	if err := <-done; err != context.Canceled && err != context.DeadlineExceeded {
		t.Errorf("Run returned %v", err)
	}
}
