package capability

import (
	"strings"
	"testing"
)

func TestBuild_RegistersAllCapabilities(t *testing.T) {
	t.Parallel()

	reg := Build()
	want := []string{
		TodoistAddTasks,
		TodoistFindCompletedTasks,
		TodoistUserInfo,
		VaultListFiles,
		VaultReadFile,
		VaultWriteFile,
	}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("names = %v", got)
	}
	for i, name := range want {
		if got[i] != name {
			t.Errorf("names[%d] = %q, want %q", i, got[i], name)
		}
	}

	for _, name := range want {
		spec, ok := reg.Get(name)
		if !ok {
			t.Fatalf("missing %s", name)
		}
		if spec.Description == "" || len(spec.InputSchema) == 0 || len(spec.OutputSchema) == 0 {
			t.Errorf("%s spec incomplete", name)
		}
		if !spec.ParityRequired {
			t.Errorf("%s should be parity required", name)
		}
	}
}

func TestValidateInput(t *testing.T) {
	t.Parallel()

	reg := Build()

	cases := []struct {
		name    string
		cap     string
		payload map[string]any
		wantErr string
	}{
		{"read file ok", VaultReadFile, map[string]any{"path": "daily/2026-08-29.md"}, ""},
		{"read file missing path", VaultReadFile, map[string]any{}, "path"},
		{"read file wrong type", VaultReadFile, map[string]any{"path": 7}, "path"},
		{"write file ok", VaultWriteFile, map[string]any{"path": "a.md", "content": "x"}, ""},
		{"write file bad mode", VaultWriteFile, map[string]any{"path": "a.md", "content": "x", "mode": "truncate"}, "mode"},
		{"add tasks ok", TodoistAddTasks, map[string]any{"tasks": []any{map[string]any{"content": "buy milk"}}}, ""},
		{"add tasks missing content", TodoistAddTasks, map[string]any{"tasks": []any{map[string]any{"description": "x"}}}, "content"},
		{"user info nil payload", TodoistUserInfo, nil, ""},
		{"user info extra field", TodoistUserInfo, map[string]any{"junk": true}, "additional"},
		{"list files empty", VaultListFiles, map[string]any{}, ""},
		{"completed optional filters", TodoistFindCompletedTasks, map[string]any{"since": "2026-08-01", "limit": 10}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec, ok := reg.Get(tc.cap)
			if !ok {
				t.Fatalf("unknown capability %s", tc.cap)
			}
			err := spec.ValidateInput(tc.payload)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(strings.ToLower(err.Error()), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestErrorInterface(t *testing.T) {
	t.Parallel()

	err := Errorf(CodePathOutsideVault, "path escapes vault: ../x", false)
	if got := err.Error(); got != "path_outside_vault: path escapes vault: ../x" {
		t.Errorf("got %q", got)
	}
}
