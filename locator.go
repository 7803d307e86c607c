package getter

import (
	"net/url"
	"strings"
)

// Scheme identifies the source family a locator resolves to. It selects
// which getters are willing to handle the source.
type Scheme string

// Recognized schemes.
const (
	SchemeFile      Scheme = "file"
	SchemeHTTP      Scheme = "http"
	SchemeHTTPS     Scheme = "https"
	SchemeGit       Scheme = "git"
	SchemeS3        Scheme = "s3"
	SchemeGCS       Scheme = "gs"
	SchemeAzureBlob Scheme = "azblob"
	SchemeOCI       Scheme = "oci"

	// SchemeUnknown marks sources with an explicit scheme the library does
	// not recognize. They parse successfully but no built-in getter
	// matches them.
	SchemeUnknown Scheme = "unknown"
)

// Locator is the parsed, canonical form of a source string. Locators are
// immutable once parsed; getters read them but never modify them.
type Locator struct {
	// Scheme is the resolved source family.
	Scheme Scheme

	// Authority is the scheme-specific naming authority: host[:port] for
	// transport schemes, bucket for s3/gs, account host for azblob,
	// registry host for oci.
	Authority string

	// Path is the scheme-specific path: file path, object key, repository
	// path or image repository.
	Path string

	// Subpath names a file inside a fetched tree (git sources), taken
	// from the segment after "//" in the source.
	Subpath string

	// Options holds query options parsed from URL-shaped sources. First
	// value wins for repeated keys. Nil when the source carried none.
	Options map[string]string

	// Raw is the original source string, verbatim.
	Raw string

	// RawScheme preserves the scheme text when Scheme is SchemeUnknown.
	RawScheme string

	// remote is the canonical dial URL for transport getters. For git it
	// is the clone URL; for http(s) the full request URL with its query
	// intact.
	remote string
}

// Option returns the named query option, or the empty string when the
// source did not set it.
func (l *Locator) Option(key string) string {
	if l.Options == nil {
		return ""
	}
	return l.Options[key]
}

// String renders a canonical form for logs and error messages.
func (l *Locator) String() string {
	switch l.Scheme {
	case SchemeUnknown:
		return l.Raw
	case SchemeFile:
		return "file://" + l.Path
	}
	s := string(l.Scheme) + "://" + l.Authority
	if l.Path != "" {
		s += "/" + strings.TrimPrefix(l.Path, "/")
	}
	if l.Subpath != "" {
		s += "//" + l.Subpath
	}
	return s
}

// Parse resolves a raw source string into a Locator. Parse is
// deterministic and total: it never fails. Sources with an explicit
// scheme are mapped directly; schemeless sources run through the
// detector chain (github, amazonaws hosts, then file as the catch-all).
// Malformed-but-recognized sources keep their scheme and are rejected
// with a precise error by the getter that matches them.
func Parse(raw string) *Locator {
	if name, ok := schemeName(raw); ok {
		return parseURL(raw, name)
	}
	return detect(raw)
}

// schemeName extracts the scheme from raw when raw begins with a valid
// "name://" prefix. The returned name is lowercased.
func schemeName(raw string) (string, bool) {
	i := strings.Index(raw, "://")
	if i <= 0 {
		return "", false
	}
	name := raw[:i]
	for j, r := range name {
		switch {
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
		case j > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.' || r == '_'):
		default:
			return "", false
		}
	}
	return strings.ToLower(name), true
}

func parseURL(raw, scheme string) *Locator {
	switch scheme {
	case "file":
		return parseFileURL(raw)
	case "http", "https":
		return parseHTTPURL(raw, scheme)
	case "git", "ssh":
		return parseGitURL(raw, raw)
	case "git+https", "git+ssh":
		return parseGitURL(raw[len("git+"):], raw)
	case "s3":
		return parseObjectURL(raw, SchemeS3)
	case "s3+http", "s3+https":
		return parseS3EndpointURL(raw)
	case "gs":
		return parseObjectURL(raw, SchemeGCS)
	case "azblob":
		return parseObjectURL(raw, SchemeAzureBlob)
	case "oci":
		return parseObjectURL(raw, SchemeOCI)
	default:
		name, _, _ := strings.Cut(raw, "://")
		return &Locator{Scheme: SchemeUnknown, RawScheme: name, Path: raw, Raw: raw}
	}
}

// parseFileURL strips the scheme and keeps everything after it as the
// path, so relative forms like file://./a.txt survive. Query options are
// still split off: explicit URLs are the one file form that carries them.
func parseFileURL(raw string) *Locator {
	rest := raw[len("file://"):]
	path, query := splitQuery(rest)
	return &Locator{
		Scheme:  SchemeFile,
		Path:    path,
		Options: parseRawQuery(query),
		Raw:     raw,
	}
}

func parseHTTPURL(raw, scheme string) *Locator {
	u, err := url.Parse(raw)
	if err != nil {
		// Recognized scheme, unusable rest. The HTTP getter rejects the
		// empty authority at fetch time.
		return &Locator{Scheme: Scheme(scheme), Raw: raw, remote: raw}
	}

	host := u.Hostname()
	switch {
	case strings.HasSuffix(host, ".amazonaws.com"):
		if loc, ok := locatorFromS3Host(u.Host, strings.TrimPrefix(u.Path, "/"), u.Query(), raw); ok {
			return loc
		}
	case strings.HasSuffix(host, ".blob.core.windows.net"):
		return &Locator{
			Scheme:    SchemeAzureBlob,
			Authority: u.Host,
			Path:      strings.TrimPrefix(u.Path, "/"),
			Options:   firstValues(u.Query()),
			Raw:       raw,
		}
	case host == "storage.googleapis.com":
		bucket, object, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		return &Locator{
			Scheme:    SchemeGCS,
			Authority: bucket,
			Path:      object,
			Options:   firstValues(u.Query()),
			Raw:       raw,
		}
	case strings.HasSuffix(host, ".storage.googleapis.com"):
		return &Locator{
			Scheme:    SchemeGCS,
			Authority: strings.TrimSuffix(host, ".storage.googleapis.com"),
			Path:      strings.TrimPrefix(u.Path, "/"),
			Options:   firstValues(u.Query()),
			Raw:       raw,
		}
	}

	if repo, sub, ok := cutGitPath(u.Path); ok {
		return &Locator{
			Scheme:    SchemeGit,
			Authority: u.Host,
			Path:      strings.TrimPrefix(repo, "/"),
			Subpath:   sub,
			Options:   firstValues(u.Query()),
			Raw:       raw,
			remote:    scheme + "://" + u.Host + repo,
		}
	}

	// Plain http(s). The query stays on the wire URL: it belongs to the
	// server (presigned URLs and the like), so remote keeps raw verbatim.
	return &Locator{
		Scheme:    Scheme(scheme),
		Authority: u.Host,
		Path:      u.Path,
		Options:   firstValues(u.Query()),
		Raw:       raw,
		remote:    raw,
	}
}

// cutGitPath recognizes URL paths that name a git repository: a ".git"
// suffix or a ".git//" separator with a subpath after it.
func cutGitPath(p string) (repo, sub string, ok bool) {
	if i := strings.Index(p, ".git//"); i >= 0 {
		return p[:i+len(".git")], p[i+len(".git//"):], true
	}
	if strings.HasSuffix(p, ".git") {
		return p, "", true
	}
	return "", "", false
}

func parseGitURL(raw, original string) *Locator {
	u, err := url.Parse(raw)
	if err != nil {
		return &Locator{Scheme: SchemeGit, Raw: original}
	}

	repo, sub, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "//")

	remote := u.Scheme + "://"
	if u.User != nil {
		remote += u.User.String() + "@"
	}
	remote += u.Host + "/" + repo

	return &Locator{
		Scheme:    SchemeGit,
		Authority: u.Host,
		Path:      repo,
		Subpath:   sub,
		Options:   firstValues(u.Query()),
		Raw:       original,
		remote:    remote,
	}
}

// parseObjectURL handles the object-store shaped schemes where the URL
// host is the naming authority and the path is the object key.
func parseObjectURL(raw string, scheme Scheme) *Locator {
	u, err := url.Parse(raw)
	if err != nil {
		return &Locator{Scheme: scheme, Raw: raw}
	}
	return &Locator{
		Scheme:    scheme,
		Authority: u.Host,
		Path:      strings.TrimPrefix(u.Path, "/"),
		Options:   firstValues(u.Query()),
		Raw:       raw,
	}
}

// parseS3EndpointURL handles s3+http(s) sources pointing at
// S3-compatible endpoints (MinIO and friends): the host is the endpoint,
// the first path segment the bucket. Genuine amazonaws hosts still
// resolve through the host-label rules.
func parseS3EndpointURL(raw string) *Locator {
	inner := raw[len("s3+"):]
	u, err := url.Parse(inner)
	if err != nil {
		return &Locator{Scheme: SchemeS3, Raw: raw}
	}
	if strings.HasSuffix(u.Hostname(), ".amazonaws.com") {
		if loc, ok := locatorFromS3Host(u.Host, strings.TrimPrefix(u.Path, "/"), u.Query(), raw); ok {
			return loc
		}
	}
	bucket, key, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	opts := firstValues(u.Query())
	if opts == nil {
		opts = make(map[string]string, 1)
	}
	if _, ok := opts["endpoint"]; !ok {
		opts["endpoint"] = u.Scheme + "://" + u.Host
	}
	return &Locator{
		Scheme:    SchemeS3,
		Authority: bucket,
		Path:      key,
		Options:   opts,
		Raw:       raw,
	}
}

// locatorFromS3Host resolves bucket, key and region from an amazonaws
// host using the three label layouts:
//
//	3 labels  region.amazonaws.com/bucket/key      (path style)
//	4 labels  bucket.region.amazonaws.com/key      (virtual host)
//	5 labels  bucket.s3.region.amazonaws.com/key   (current virtual host)
//
// A leading "s3" region label means us-east-1 and legacy "s3-<region>"
// labels carry the region after the dash. Unrecognized layouts report
// ok=false so the caller can fall back.
func locatorFromS3Host(hostport, key string, query url.Values, raw string) (*Locator, bool) {
	host := hostport
	if h, _, ok := strings.Cut(hostport, ":"); ok {
		host = h
	}

	labels := strings.Split(host, ".")
	var bucket, region string
	switch {
	case len(labels) == 3:
		region = normalizeS3Region(labels[0])
		bucket, key, _ = strings.Cut(key, "/")
	case len(labels) == 4:
		bucket, region = labels[0], normalizeS3Region(labels[1])
	case len(labels) == 5 && labels[1] == "s3":
		bucket, region = labels[0], labels[2]
	default:
		return nil, false
	}

	opts := firstValues(query)
	if region != "" {
		if opts == nil {
			opts = make(map[string]string, 1)
		}
		if _, ok := opts["region"]; !ok {
			opts["region"] = region
		}
	}

	return &Locator{
		Scheme:    SchemeS3,
		Authority: bucket,
		Path:      key,
		Options:   opts,
		Raw:       raw,
	}, true
}

func normalizeS3Region(label string) string {
	switch {
	case label == "s3":
		return "us-east-1"
	case strings.HasPrefix(label, "s3-"):
		return label[len("s3-"):]
	default:
		return label
	}
}

// splitQuery cuts s on the first '?'.
func splitQuery(s string) (path, query string) {
	path, query, _ = strings.Cut(s, "?")
	return path, query
}

// parseRawQuery parses a raw query string into an options map, first
// value per key. Malformed queries yield nil rather than an error; Parse
// is total.
func parseRawQuery(query string) map[string]string {
	return firstValues(parseQueryValues(query))
}

// parseQueryValues parses a raw query string, nil on empty or malformed
// input.
func parseQueryValues(query string) url.Values {
	if query == "" {
		return nil
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return nil
	}
	return values
}

// firstValues flattens url.Values to a first-value-wins map, nil when
// empty.
func firstValues(values url.Values) map[string]string {
	if len(values) == 0 {
		return nil
	}
	m := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			m[k] = v[0]
		} else {
			m[k] = ""
		}
	}
	return m
}
