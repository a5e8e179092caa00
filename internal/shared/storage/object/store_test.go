package object

import "testing"

func TestJoin(t *testing.T) {
	tests := []struct {
		prefix, key, want string
	}{
		{"", "documents/file.pdf", "documents/file.pdf"},
		{"root", "documents/file.pdf", "root/documents/file.pdf"},
		{"root/", "documents/file.pdf", "root/documents/file.pdf"},
		{" /root/ ", "/documents/file.pdf", "root/documents/file.pdf"},
		{"root", "", "root"},
	}
	for _, tt := range tests {
		if got := Join(tt.prefix, tt.key); got != tt.want {
			t.Fatalf("Join(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
		}
	}
}

func TestCategory(t *testing.T) {
	tests := map[string]string{
		"documents/financial_document_1.pdf": "documents",
		"/results/job-1.json":                "results",
		"loose.pdf":                          "other",
	}
	for key, want := range tests {
		if got := Category(key); got != want {
			t.Fatalf("Category(%q) = %q, want %q", key, got, want)
		}
	}
}
