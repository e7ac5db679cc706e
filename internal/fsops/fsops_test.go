package fsops

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyDirAndClearDir(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "world", "region"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "world", "region", "r.0.0.mca"), []byte("chunk"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "eula.txt"), []byte("eula=true"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyDir(src, dst); err != nil {
		t.Fatalf("copy: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dst, "world", "region", "r.0.0.mca"))
	if err != nil || string(b) != "chunk" {
		t.Fatalf("copied content: %q err=%v", b, err)
	}

	if err := ClearDir(dst); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, err := os.ReadDir(dst)
	if err != nil {
		t.Fatalf("read cleared dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("dir not empty after clear: %d entries", len(entries))
	}
}

func TestClearDirMissingIsOK(t *testing.T) {
	if err := ClearDir(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Fatalf("missing dir should be ok: %v", err)
	}
}

func TestFindDirNamed(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "123456789012"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "987654321098"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	ok, err := FindDirNamed(root, "123456789012")
	if err != nil || !ok {
		t.Fatalf("expected dir found, ok=%v err=%v", ok, err)
	}
	// plain files do not count
	ok, err = FindDirNamed(root, "987654321098")
	if err != nil || ok {
		t.Fatalf("file should not match, ok=%v err=%v", ok, err)
	}
	ok, err = FindDirNamed(filepath.Join(root, "missing"), "x")
	if err != nil || ok {
		t.Fatalf("missing root should report false, ok=%v err=%v", ok, err)
	}
}

func TestDirSize(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a"), []byte("12345"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "b"), []byte("123"), 0o644); err != nil {
		t.Fatal(err)
	}
	n, err := DirSize(dir)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if n != 8 {
		t.Fatalf("size = %d, want 8", n)
	}
}
