package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/encoding/charmap"
)

type zipEntry struct {
	name    string
	content string
	nonUTF8 bool
}

func createZip(t *testing.T, entries []zipEntry) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "bundle.zip")

	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}
	w := zip.NewWriter(f)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate, NonUTF8: e.nonUTF8}
		if strings.HasSuffix(e.name, "/") {
			hdr.SetMode(os.ModeDir | 0755)
		}
		fw, err := w.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("Failed to create %s in zip: %v", e.name, err)
		}
		if _, err := fw.Write([]byte(e.content)); err != nil {
			t.Fatalf("Failed to write %s: %v", e.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return zipPath
}

var bundleEntries = []zipEntry{
	{name: "dist/"},
	{name: "dist/_nuxt/entry.css", content: "body{font-family:Inter}"},
	{name: "dist/_nuxt/entry.js", content: "console.log(1)"},
	{name: "dist/index.html", content: "<html></html>"},
	{name: "distant/other.css", content: "a{}"},
	{name: "readme.txt", content: "readme"},
}

func isCSS(name string) bool { return strings.HasSuffix(name, ".css") }

func TestReadFiles(t *testing.T) {
	arc := createZip(t, bundleEntries)

	tests := []struct {
		name string
		opts Options
		want map[string]string
	}{
		{
			name: "everything",
			want: map[string]string{
				"dist/_nuxt/entry.css": "body{font-family:Inter}",
				"dist/_nuxt/entry.js":  "console.log(1)",
				"dist/index.html":      "<html></html>",
				"distant/other.css":    "a{}",
				"readme.txt":           "readme",
			},
		},
		{
			name: "prefix does not match sibling with common start",
			opts: Options{Prefix: "dist", Match: isCSS},
			want: map[string]string{"dist/_nuxt/entry.css": "body{font-family:Inter}"},
		},
		{
			name: "prefix with trailing slash",
			opts: Options{Prefix: "/dist/_nuxt/"},
			want: map[string]string{
				"dist/_nuxt/entry.css": "body{font-family:Inter}",
				"dist/_nuxt/entry.js":  "console.log(1)",
			},
		},
		{
			name: "prefix naming single file",
			opts: Options{Prefix: "readme.txt"},
			want: map[string]string{"readme.txt": "readme"},
		},
		{
			name: "nothing matches",
			opts: Options{Prefix: "nonexistent"},
			want: map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadFiles(arc, tt.opts)
			if err != nil {
				t.Fatalf("ReadFiles() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ReadFiles() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadFiles_UnsafePath(t *testing.T) {
	arc := createZip(t, []zipEntry{{name: "../evil.css", content: "a{}"}})
	if _, err := ReadFiles(arc, Options{}); err == nil || !strings.Contains(err.Error(), "unsafe path") {
		t.Errorf("expected unsafe path error, got %v", err)
	}
}

func TestReadFiles_InvalidArchive(t *testing.T) {
	if _, err := ReadFiles(filepath.Join(t.TempDir(), "absent.zip"), Options{}); err == nil {
		t.Error("expected error for nonexistent file")
	}

	invalid := filepath.Join(t.TempDir(), "invalid.zip")
	if err := os.WriteFile(invalid, []byte("not a zip file"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFiles(invalid, Options{}); err == nil {
		t.Error("expected error for invalid zip file")
	}
}

func TestReadFiles_LegacyNames(t *testing.T) {
	// "шрифт.css" in cp866
	name := string([]byte{0xe8, 0xe0, 0xa8, 0xe4, 0xe2}) + ".css"
	arc := createZip(t, []zipEntry{{name: name, content: "a{}", nonUTF8: true}})

	got, err := ReadFiles(arc, Options{Names: charmap.CodePage866.NewDecoder()})
	if err != nil {
		t.Fatalf("ReadFiles() error = %v", err)
	}
	if diff := cmp.Diff(map[string]string{"шрифт.css": "a{}"}, got); diff != "" {
		t.Errorf("ReadFiles() mismatch (-want +got):\n%s", diff)
	}
}

func TestRewrite(t *testing.T) {
	src := createZip(t, bundleEntries)
	dst := filepath.Join(t.TempDir(), "out.zip")

	changed := map[string]string{"dist/_nuxt/entry.css": "@font-face{}body{font-family:Inter}"}
	if err := Rewrite(src, dst, changed, Options{}); err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}

	got, err := ReadFiles(dst, Options{})
	if err != nil {
		t.Fatalf("ReadFiles() error = %v", err)
	}
	want, err := ReadFiles(src, Options{})
	if err != nil {
		t.Fatal(err)
	}
	want["dist/_nuxt/entry.css"] = changed["dist/_nuxt/entry.css"]
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rewritten archive mismatch (-want +got):\n%s", diff)
	}
}

func TestIsArchive(t *testing.T) {
	arc := createZip(t, bundleEntries)
	if ok, err := IsArchive(arc); err != nil || !ok {
		t.Errorf("IsArchive(zip) = %v, %v", ok, err)
	}

	css := filepath.Join(t.TempDir(), "style.css")
	if err := os.WriteFile(css, []byte("a{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if ok, err := IsArchive(css); err != nil || ok {
		t.Errorf("IsArchive(css) = %v, %v", ok, err)
	}

	if _, err := IsArchive(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected error for absent file")
	}
}
