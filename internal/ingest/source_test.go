package ingest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadSource_SeparatorDetection(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name:    "Tab separated",
			file:    "drugs.txt",
			content: "drug_name\ttarget\naspirin\tPTGS1\n",
		},
		{
			name:    "Comma separated",
			file:    "drugs.csv",
			content: "drug_name,target\naspirin,PTGS1\n",
		},
		{
			name:    "Semicolon separated",
			file:    "drugs.txt",
			content: "drug_name;target\naspirin;PTGS1\n",
		},
		{
			name:    "Pipe separated",
			file:    "drugs.txt",
			content: "drug_name|target\naspirin|PTGS1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := LoadSource(writeTemp(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("LoadSource failed: %v", err)
			}
			if len(src.Columns) != 2 {
				t.Fatalf("expected 2 columns, got %v", src.Columns)
			}
			if len(src.Rows) != 1 {
				t.Fatalf("expected 1 row, got %d", len(src.Rows))
			}
			if src.Rows[0]["drug_name"] != "aspirin" {
				t.Errorf("expected aspirin, got %q", src.Rows[0]["drug_name"])
			}
			if src.Rows[0]["target"] != "PTGS1" {
				t.Errorf("expected PTGS1, got %q", src.Rows[0]["target"])
			}
		})
	}
}

func TestLoadSource_UndetectableSeparator(t *testing.T) {
	path := writeTemp(t, "one_column.txt", "drug_name\naspirin\n")
	if _, err := LoadSource(path); err == nil {
		t.Error("expected error for undetectable separator")
	}
}

func TestLoadSource_UnsupportedExtension(t *testing.T) {
	path := writeTemp(t, "drugs.parquet", "whatever")
	if _, err := LoadSource(path); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestLoadSource_ShortRowsPadded(t *testing.T) {
	path := writeTemp(t, "ragged.csv", "drug_name,target,moa\naspirin,PTGS1\n")
	src, err := LoadSource(path)
	if err != nil {
		t.Fatalf("LoadSource failed: %v", err)
	}
	if src.Rows[0]["moa"] != "" {
		t.Errorf("expected empty moa for short row, got %q", src.Rows[0]["moa"])
	}
}

func TestLoadSource_JSONArray(t *testing.T) {
	content := `[
		{"drug_name": "aspirin", "target": "PTGS1, PTGS2", "purity": 99.5},
		{"drug_name": "celecoxib", "target": "PTGS2", "approved": true}
	]`
	src, err := LoadSource(writeTemp(t, "drugs.json", content))
	if err != nil {
		t.Fatalf("LoadSource failed: %v", err)
	}
	if len(src.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(src.Rows))
	}
	if src.Rows[0]["purity"] != "99.5" {
		t.Errorf("expected stringified 99.5, got %q", src.Rows[0]["purity"])
	}
	if src.Rows[1]["approved"] != "true" {
		t.Errorf("expected stringified true, got %q", src.Rows[1]["approved"])
	}
}

func TestLoadSource_JSONSingleObject(t *testing.T) {
	src, err := LoadSource(writeTemp(t, "one.json", `{"drug_name": "aspirin", "target": "PTGS1"}`))
	if err != nil {
		t.Fatalf("LoadSource failed: %v", err)
	}
	if len(src.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(src.Rows))
	}
}

func TestLoadSource_MalformedJSON(t *testing.T) {
	if _, err := LoadSource(writeTemp(t, "bad.json", `{"drug_name": `)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestLoadSource_MissingFile(t *testing.T) {
	if _, err := LoadSource(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}
