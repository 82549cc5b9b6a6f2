package archive

import "testing"

func TestSplitURI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		object  string
		wantErr bool
	}{
		{"gs://my-bucket/raw/2024/03/15/abc.json", "my-bucket", "raw/2024/03/15/abc.json", false},
		{"gs://my-bucket/", "", "", true},
		{"gs://my-bucket", "", "", true},
		{"https://example.com/x", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		bucket, object, err := SplitURI(tt.uri)
		if tt.wantErr {
			if err == nil {
				t.Errorf("SplitURI(%q): expected error", tt.uri)
			}
			continue
		}
		if err != nil {
			t.Errorf("SplitURI(%q): %v", tt.uri, err)
			continue
		}
		if bucket != tt.bucket || object != tt.object {
			t.Errorf("SplitURI(%q) = %q, %q, want %q, %q", tt.uri, bucket, object, tt.bucket, tt.object)
		}
	}
}
