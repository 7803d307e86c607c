package getter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExplicitSchemes(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   Locator
	}{
		{
			name:   "file absolute",
			source: "file:///tmp/a.txt",
			want:   Locator{Scheme: SchemeFile, Path: "/tmp/a.txt"},
		},
		{
			name:   "file relative with options",
			source: "file://./rel.txt?symlink=true",
			want: Locator{
				Scheme:  SchemeFile,
				Path:    "./rel.txt",
				Options: map[string]string{"symlink": "true"},
			},
		},
		{
			name:   "plain http",
			source: "http://example.com/path/a.txt",
			want: Locator{
				Scheme:    SchemeHTTP,
				Authority: "example.com",
				Path:      "/path/a.txt",
				remote:    "http://example.com/path/a.txt",
			},
		},
		{
			name:   "https keeps query on the wire URL",
			source: "https://example.com/a?sig=abc123",
			want: Locator{
				Scheme:    SchemeHTTPS,
				Authority: "example.com",
				Path:      "/a",
				Options:   map[string]string{"sig": "abc123"},
				remote:    "https://example.com/a?sig=abc123",
			},
		},
		{
			name:   "https git repository",
			source: "https://github.com/user/repo.git",
			want: Locator{
				Scheme:    SchemeGit,
				Authority: "github.com",
				Path:      "user/repo.git",
				remote:    "https://github.com/user/repo.git",
			},
		},
		{
			name:   "https git repository with subpath",
			source: "https://github.com/user/repo.git//src/lib.rs",
			want: Locator{
				Scheme:    SchemeGit,
				Authority: "github.com",
				Path:      "user/repo.git",
				Subpath:   "src/lib.rs",
				remote:    "https://github.com/user/repo.git",
			},
		},
		{
			name:   "git scheme with subpath and options",
			source: "git://host.xz/path/repo.git//file.txt?ref=dev&depth=2",
			want: Locator{
				Scheme:    SchemeGit,
				Authority: "host.xz",
				Path:      "path/repo.git",
				Subpath:   "file.txt",
				Options:   map[string]string{"ref": "dev", "depth": "2"},
				remote:    "git://host.xz/path/repo.git",
			},
		},
		{
			name:   "git+https forced scheme",
			source: "git+https://github.com/u/r",
			want: Locator{
				Scheme:    SchemeGit,
				Authority: "github.com",
				Path:      "u/r",
				remote:    "https://github.com/u/r",
			},
		},
		{
			name:   "ssh keeps user info in the clone URL",
			source: "ssh://git@github.com/u/r.git",
			want: Locator{
				Scheme:    SchemeGit,
				Authority: "github.com",
				Path:      "u/r.git",
				remote:    "ssh://git@github.com/u/r.git",
			},
		},
		{
			name:   "s3 with region option",
			source: "s3://bucket/key/obj.txt?region=eu-west-1",
			want: Locator{
				Scheme:    SchemeS3,
				Authority: "bucket",
				Path:      "key/obj.txt",
				Options:   map[string]string{"region": "eu-west-1"},
			},
		},
		{
			name:   "s3 compatible endpoint",
			source: "s3+http://localhost:9000/bucket/key.txt",
			want: Locator{
				Scheme:    SchemeS3,
				Authority: "bucket",
				Path:      "key.txt",
				Options:   map[string]string{"endpoint": "http://localhost:9000"},
			},
		},
		{
			name:   "gs",
			source: "gs://bucket/obj.txt",
			want: Locator{
				Scheme:    SchemeGCS,
				Authority: "bucket",
				Path:      "obj.txt",
			},
		},
		{
			name:   "azblob account shorthand",
			source: "azblob://myacct/container/blob.txt",
			want: Locator{
				Scheme:    SchemeAzureBlob,
				Authority: "myacct",
				Path:      "container/blob.txt",
			},
		},
		{
			name:   "oci",
			source: "oci://ghcr.io/org/app:v1.2.3",
			want: Locator{
				Scheme:    SchemeOCI,
				Authority: "ghcr.io",
				Path:      "org/app:v1.2.3",
			},
		},
		{
			name:   "unknown scheme preserves everything",
			source: "foo://bar/baz",
			want: Locator{
				Scheme:    SchemeUnknown,
				RawScheme: "foo",
				Path:      "foo://bar/baz",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.source)
			require.NotNil(t, got)
			tt.want.Raw = tt.source
			assert.Equal(t, &tt.want, got)
		})
	}
}

func TestParseHostUpgrades(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   Locator
	}{
		{
			name:   "virtual host amazonaws URL",
			source: "https://bucket.s3.us-west-2.amazonaws.com/path/key.bin",
			want: Locator{
				Scheme:    SchemeS3,
				Authority: "bucket",
				Path:      "path/key.bin",
				Options:   map[string]string{"region": "us-west-2"},
			},
		},
		{
			name:   "path style amazonaws URL",
			source: "https://us-east-1.amazonaws.com/bkt/obj",
			want: Locator{
				Scheme:    SchemeS3,
				Authority: "bkt",
				Path:      "obj",
				Options:   map[string]string{"region": "us-east-1"},
			},
		},
		{
			name:   "query region wins over host region",
			source: "https://bucket.s3.us-east-2.amazonaws.com/k?region=override",
			want: Locator{
				Scheme:    SchemeS3,
				Authority: "bucket",
				Path:      "k",
				Options:   map[string]string{"region": "override"},
			},
		},
		{
			name:   "azure blob endpoint URL",
			source: "https://myacct.blob.core.windows.net/container/blob.txt",
			want: Locator{
				Scheme:    SchemeAzureBlob,
				Authority: "myacct.blob.core.windows.net",
				Path:      "container/blob.txt",
			},
		},
		{
			name:   "gcs path style URL",
			source: "https://storage.googleapis.com/bucket/obj/path.txt",
			want: Locator{
				Scheme:    SchemeGCS,
				Authority: "bucket",
				Path:      "obj/path.txt",
			},
		},
		{
			name:   "gcs virtual host URL",
			source: "https://bucket.storage.googleapis.com/obj.txt",
			want: Locator{
				Scheme:    SchemeGCS,
				Authority: "bucket",
				Path:      "obj.txt",
			},
		},
		{
			name:   "git over plain http",
			source: "http://example.com/archive.git//dir/f.txt",
			want: Locator{
				Scheme:    SchemeGit,
				Authority: "example.com",
				Path:      "archive.git",
				Subpath:   "dir/f.txt",
				remote:    "http://example.com/archive.git",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.source)
			tt.want.Raw = tt.source
			assert.Equal(t, &tt.want, got)
		})
	}
}

func TestParseDetectorChain(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   Locator
	}{
		{
			name:   "github shorthand",
			source: "github.com/chrismckenzie/dropship",
			want: Locator{
				Scheme:    SchemeGit,
				Authority: "github.com",
				Path:      "chrismckenzie/dropship.git",
				remote:    "https://github.com/chrismckenzie/dropship.git",
			},
		},
		{
			name:   "github shorthand with trailing path",
			source: "github.com/user/repo/src/lib.rs",
			want: Locator{
				Scheme:    SchemeGit,
				Authority: "github.com",
				Path:      "user/repo.git",
				Subpath:   "src/lib.rs",
				remote:    "https://github.com/user/repo.git",
			},
		},
		{
			name:   "github shorthand with explicit subpath marker",
			source: "github.com/user/repo//docs/readme.md",
			want: Locator{
				Scheme:    SchemeGit,
				Authority: "github.com",
				Path:      "user/repo.git",
				Subpath:   "docs/readme.md",
				remote:    "https://github.com/user/repo.git",
			},
		},
		{
			name:   "github shorthand keeps explicit git suffix",
			source: "github.com/user/repo.git",
			want: Locator{
				Scheme:    SchemeGit,
				Authority: "github.com",
				Path:      "user/repo.git",
				remote:    "https://github.com/user/repo.git",
			},
		},
		{
			name:   "github owner only stays git for fetch-time rejection",
			source: "github.com/user",
			want: Locator{
				Scheme:    SchemeGit,
				Authority: "github.com",
			},
		},
		{
			name:   "bare virtual host s3",
			source: "test.us-east-2.amazonaws.com/test.txt",
			want: Locator{
				Scheme:    SchemeS3,
				Authority: "test",
				Path:      "test.txt",
				Options:   map[string]string{"region": "us-east-2"},
			},
		},
		{
			name:   "bare current virtual host s3",
			source: "test.s3.us-east-2.amazonaws.com/test.txt",
			want: Locator{
				Scheme:    SchemeS3,
				Authority: "test",
				Path:      "test.txt",
				Options:   map[string]string{"region": "us-east-2"},
			},
		},
		{
			name:   "bare path style s3",
			source: "us-east-2.amazonaws.com/test/test.txt",
			want: Locator{
				Scheme:    SchemeS3,
				Authority: "test",
				Path:      "test.txt",
				Options:   map[string]string{"region": "us-east-2"},
			},
		},
		{
			name:   "legacy s3 region label",
			source: "s3.amazonaws.com/b/k",
			want: Locator{
				Scheme:    SchemeS3,
				Authority: "b",
				Path:      "k",
				Options:   map[string]string{"region": "us-east-1"},
			},
		},
		{
			name:   "legacy dashed s3 region label",
			source: "s3-us-west-2.amazonaws.com/b/k",
			want: Locator{
				Scheme:    SchemeS3,
				Authority: "b",
				Path:      "k",
				Options:   map[string]string{"region": "us-west-2"},
			},
		},
		{
			name:   "unrecognized amazonaws layout falls through to file",
			source: "wrong.test.us-east-2.amazonaws.com/test.txt",
			want: Locator{
				Scheme: SchemeFile,
				Path:   "wrong.test.us-east-2.amazonaws.com/test.txt",
			},
		},
		{
			name:   "absolute path",
			source: "/tmp/a.txt",
			want:   Locator{Scheme: SchemeFile, Path: "/tmp/a.txt"},
		},
		{
			name:   "relative path",
			source: "./rel/b.bin",
			want:   Locator{Scheme: SchemeFile, Path: "./rel/b.bin"},
		},
		{
			name:   "question mark is part of the file name",
			source: "weird?name.txt",
			want:   Locator{Scheme: SchemeFile, Path: "weird?name.txt"},
		},
		{
			name:   "bare amazonaws root is a file path",
			source: "amazonaws.com/test.txt",
			want:   Locator{Scheme: SchemeFile, Path: "amazonaws.com/test.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.source)
			tt.want.Raw = tt.source
			assert.Equal(t, &tt.want, got)
		})
	}
}

func TestParseIsDeterministic(t *testing.T) {
	sources := []string{
		"github.com/user/repo/src/lib.rs",
		"test.s3.us-east-2.amazonaws.com/test.txt",
		"https://example.com/a?sig=x",
		"/tmp/a.txt",
		"foo://opaque",
	}
	for _, s := range sources {
		assert.Equal(t, Parse(s), Parse(s), "source %q", s)
	}
}

func TestLocatorString(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{source: "/tmp/a.txt", want: "file:///tmp/a.txt"},
		{source: "s3://bucket/key.txt", want: "s3://bucket/key.txt"},
		{source: "github.com/u/r//src/f.go", want: "git://github.com/u/r.git//src/f.go"},
		{source: "foo://opaque", want: "foo://opaque"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Parse(tt.source).String())
	}
}

func TestLocatorOption(t *testing.T) {
	loc := Parse("s3://b/k?region=eu-west-1")
	assert.Equal(t, "eu-west-1", loc.Option("region"))
	assert.Equal(t, "", loc.Option("missing"))

	bare := Parse("/tmp/a.txt")
	assert.Equal(t, "", bare.Option("region"))
}
