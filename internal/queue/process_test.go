package queue

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestProcessBuildMessageRejectsBadJobs(t *testing.T) {
	tests := []struct {
		name string
		msg  string
	}{
		{
			name: "malformed json",
			msg:  "{",
		},
		{
			name: "missing project id",
			msg:  `{"text":"alpha depends on beta"}`,
		},
		{
			name: "neither text nor path",
			msg:  `{"project_id":"demo"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ProcessBuildMessage(context.Background(), nil, nil, nil, tt.msg)
			if err == nil {
				t.Errorf("ProcessBuildMessage(%q) = nil, want error", tt.msg)
			}
		})
	}
}

func TestProcessSwitchMessageRejectsBadJobs(t *testing.T) {
	tests := []struct {
		name string
		msg  string
	}{
		{
			name: "malformed json",
			msg:  "{",
		},
		{
			name: "missing project id",
			msg:  `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ProcessSwitchMessage(context.Background(), nil, nil, tt.msg)
			if err == nil {
				t.Errorf("ProcessSwitchMessage(%q) = nil, want error", tt.msg)
			}
		})
	}
}

func TestReadDocumentFile(t *testing.T) {
	dir := t.TempDir()

	write := func(name string, content []byte) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatalf("WriteFile(%q) failed: %v", name, err)
		}
		return path
	}

	clean := write("clean.txt", []byte("alpha depends on beta"))
	broken := write("broken.txt", []byte("alpha\xff\xfe depends\x00 on beta"))
	blank := write("blank.txt", []byte(" \n\t"))

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{
			name: "clean utf8",
			path: clean,
			want: "alpha depends on beta",
		},
		{
			name: "broken encoding is coerced",
			path: broken,
			want: "alpha depends on beta",
		},
		{
			name:    "blank after sanitizing",
			path:    blank,
			wantErr: true,
		},
		{
			name:    "missing file",
			path:    filepath.Join(dir, "missing.txt"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readDocumentFile(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Errorf("readDocumentFile(%q) = %q, want error", tt.path, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("readDocumentFile(%q) failed: %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("readDocumentFile(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestEnsureJobID(t *testing.T) {
	if got := ensureJobID("job-42"); got != "job-42" {
		t.Errorf("ensureJobID(\"job-42\") = %q, want \"job-42\"", got)
	}

	generated := ensureJobID("")
	if generated == "" {
		t.Error("ensureJobID(\"\") returned an empty id")
	}
	if other := ensureJobID(""); other == generated {
		t.Errorf("ensureJobID(\"\") returned %q twice, want distinct ids", generated)
	}
}
