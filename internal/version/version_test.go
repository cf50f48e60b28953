package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	tests := []struct {
		name        string
		start       Info
		bi          debug.BuildInfo
		wantVersion string
		wantCommit  string
	}{
		{
			name: "module version and clean revision",
			bi: debug.BuildInfo{
				Main:     debug.Module{Version: "v0.3.0"},
				Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef"}},
			},
			wantVersion: "v0.3.0",
			wantCommit:  "0123456",
		},
		{
			name: "devel build with local changes",
			bi: debug.BuildInfo{
				Main: debug.Module{Version: "(devel)"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "fedcba9876"},
					{Key: "vcs.modified", Value: "true"},
				},
			},
			wantCommit: "fedcba9-dirty",
		},
		{
			name:        "ldflags win",
			start:       Info{Version: "v1.0.0", Commit: "abc1234"},
			bi:          debug.BuildInfo{Main: debug.Module{Version: "v0.9.0"}},
			wantVersion: "v1.0.0",
			wantCommit:  "abc1234",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := tt.start
			fromBuildInfo(&info, &tt.bi)
			if info.Version != tt.wantVersion || info.Commit != tt.wantCommit {
				t.Errorf("got %q/%q, want %q/%q", info.Version, info.Commit, tt.wantVersion, tt.wantCommit)
			}
		})
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.Version == "" || info.Commit == "" {
		t.Fatalf("Get() left fields empty: %+v", info)
	}
	if !strings.Contains(info.String(), info.GoVersion) {
		t.Errorf("String() = %q lacks the Go version", info.String())
	}
}
