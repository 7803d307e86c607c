package getter

import "strings"

// detect resolves schemeless sources. The chain is ordered: github
// shorthand, bare amazonaws hosts, then the file catch-all. The file
// detector performs no query splitting because '?' is legal in file
// names.
func detect(raw string) *Locator {
	if strings.HasPrefix(raw, "github.com/") {
		return detectGithub(raw)
	}
	if first, _, ok := strings.Cut(raw, "/"); ok && strings.HasSuffix(hostOnly(first), ".amazonaws.com") {
		if loc, found := detectS3(raw); found {
			return loc
		}
	}
	return &Locator{Scheme: SchemeFile, Path: raw, Raw: raw}
}

// detectGithub canonicalizes github.com/owner/repo[/path...] shorthand
// to a git-over-https locator. Segments past the repository become the
// subpath, as does anything after an explicit "//". A canonical ".git"
// suffix is appended when missing. Too-short forms stay recognized as
// git with an empty repository path; the git getter rejects them with a
// precise error at fetch time.
func detectGithub(raw string) *Locator {
	path, query := splitQuery(raw)
	opts := parseRawQuery(query)

	repoPath, sub := path, ""
	if i := strings.Index(path, "//"); i >= 0 {
		repoPath, sub = path[:i], path[i+len("//"):]
	}

	parts := strings.Split(repoPath, "/")
	if len(parts) < 3 || parts[1] == "" || parts[2] == "" {
		return &Locator{Scheme: SchemeGit, Authority: "github.com", Options: opts, Raw: raw}
	}

	repo := parts[2]
	if !strings.HasSuffix(repo, ".git") {
		repo += ".git"
	}
	if sub == "" && len(parts) > 3 {
		sub = strings.Join(parts[3:], "/")
	}

	p := parts[1] + "/" + repo
	return &Locator{
		Scheme:    SchemeGit,
		Authority: "github.com",
		Path:      p,
		Subpath:   sub,
		Options:   opts,
		Raw:       raw,
		remote:    "https://github.com/" + p,
	}
}

// detectS3 resolves bare amazonaws host forms such as
// bucket.s3.us-east-2.amazonaws.com/key. Layouts the host-label rules do
// not recognize report found=false and fall through to the file
// detector.
func detectS3(raw string) (*Locator, bool) {
	hostport, rest, ok := strings.Cut(raw, "/")
	if !ok {
		return nil, false
	}
	key, query := splitQuery(rest)
	return locatorFromS3Host(hostport, key, parseQueryValues(query), raw)
}

func hostOnly(hostport string) string {
	host, _, ok := strings.Cut(hostport, ":")
	if ok {
		return host
	}
	return hostport
}
