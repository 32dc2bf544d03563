package gcs

import "testing"

func TestIsURI(t *testing.T) {
	if !IsURI("gs://bucket/file.csv") {
		t.Error("gs:// path not recognized")
	}
	if IsURI("/tmp/file.csv") {
		t.Error("local path misread as GCS URI")
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"gs://bucket/folder/file.csv", "file.csv"},
		{"gs://bucket/file.csv", "file.csv"},
		{"gs://bucket", "bucket"},
	}
	for _, tt := range tests {
		if got := Filename(tt.uri); got != tt.want {
			t.Errorf("Filename(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestSplitURI(t *testing.T) {
	bucket, object, err := splitURI("gs://exports/2024/txns.csv")
	if err != nil {
		t.Fatalf("splitURI: %v", err)
	}
	if bucket != "exports" || object != "2024/txns.csv" {
		t.Errorf("split = (%q, %q)", bucket, object)
	}

	for _, bad := range []string{"/tmp/file.csv", "gs://bucket", "gs://bucket/"} {
		if _, _, err := splitURI(bad); err == nil {
			t.Errorf("splitURI(%q) accepted an invalid URI", bad)
		}
	}
}
