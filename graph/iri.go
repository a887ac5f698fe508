package graph

import (
	"strings"
)

// normalizeIRI lowercases the scheme and host of an absolute IRI. Every
// other character is kept as written, so non-ASCII and already escaped
// IRIs compare equal in every fact position.
func normalizeIRI(raw string) string {
	scheme, rest, ok := splitScheme(raw)
	if !ok {
		return raw
	}
	if strings.HasPrefix(rest, "//") {
		authority, tail := splitAuthority(rest[2:])
		userinfo, host, hasUser := strings.Cut(authority, "@")
		if !hasUser {
			host, userinfo = userinfo, ""
		}
		host = strings.ToLower(host)
		if hasUser {
			host = userinfo + "@" + host
		}
		rest = "//" + host + tail
	}
	return strings.ToLower(scheme) + ":" + rest
}

// splitScheme splits "scheme:rest". ok is false for relative references.
func splitScheme(raw string) (scheme, rest string, ok bool) {
	i := strings.IndexByte(raw, ':')
	if i <= 0 {
		return "", raw, false
	}
	for j, c := range raw[:i] {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case j > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return "", raw, false
		}
	}
	return raw[:i], raw[i+1:], true
}

func splitAuthority(s string) (authority, tail string) {
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}

// splitSuffix separates the path from the "?query#fragment" suffix.
func splitSuffix(s string) (path, suffix string) {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}

// resolveIRI resolves ref against the absolute base following RFC 3986
// section 5.2 without re-encoding either input.
func resolveIRI(base, ref string) string {
	if _, _, ok := splitScheme(ref); ok {
		return normalizeIRI(ref)
	}
	scheme, rest, _ := splitScheme(base)
	authority, basePath := "", rest
	hasAuthority := strings.HasPrefix(rest, "//")
	if hasAuthority {
		authority, basePath = splitAuthority(rest[2:])
	}
	basePath, baseSuffix := splitSuffix(basePath)
	baseQuery, _, _ := strings.Cut(baseSuffix, "#")

	prefix := scheme + ":"
	if hasAuthority {
		prefix += "//" + authority
	}

	switch {
	case strings.HasPrefix(ref, "//"):
		return normalizeIRI(scheme + ":" + ref)
	case ref == "":
		return normalizeIRI(prefix + basePath + baseQuery)
	case strings.HasPrefix(ref, "#"):
		return normalizeIRI(prefix + basePath + baseQuery + ref)
	case strings.HasPrefix(ref, "?"):
		return normalizeIRI(prefix + basePath + ref)
	}

	refPath, refSuffix := splitSuffix(ref)
	var merged string
	switch {
	case strings.HasPrefix(refPath, "/"):
		merged = refPath
	case hasAuthority && basePath == "":
		merged = "/" + refPath
	default:
		merged = basePath[:strings.LastIndexByte(basePath, '/')+1] + refPath
	}
	return normalizeIRI(prefix + removeDotSegments(merged) + refSuffix)
}

func removeDotSegments(p string) string {
	if p == "" {
		return p
	}
	segments := strings.Split(p, "/")
	out := make([]string, 0, len(segments))
	for i, seg := range segments {
		last := i == len(segments)-1
		switch seg {
		case ".":
			if last {
				out = append(out, "")
			}
		case "..":
			if len(out) > 1 {
				out = out[:len(out)-1]
			}
			if last {
				out = append(out, "")
			}
		default:
			out = append(out, seg)
		}
	}
	return strings.Join(out, "/")
}
