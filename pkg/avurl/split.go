package avurl

import "strings"

// metadata records the separators seen while splitting so that join can
// reproduce the input byte for byte.
type metadata struct {
	hasSchema bool
	slashNum  int
	hasAtSign bool
	hasBrks   bool
	hasPort   bool
	junk      string
}

// split follows FFmpeg's av_url_split (libavformat/utils.c) without the
// buffer-size truncation. The port is kept as the raw substring.
func split(url string) (schema, userinfo, host, port, path string, md metadata) {
	var cursor int

	// scheme, then up to two leading slashes
	colon := strings.IndexByte(url, ':')
	if colon == -1 {
		// no scheme: FFmpeg treats the whole thing as a file path
		path = url
		return
	}
	md.hasSchema = true
	schema = url[:colon]

	cursor = colon + 1
	for i := 0; i < 2; i++ {
		if cursor == len(url) {
			return
		}
		if url[cursor] != '/' {
			break
		}
		cursor++
		md.slashNum++
	}
	if cursor == len(url) {
		return
	}

	// authority ends at the first '/', '?' or '#'
	pathAt := cursor + strcspn(url[cursor:], "/?#")
	path = url[pathAt:]

	if pathAt == cursor {
		return
	}

	// userinfo runs up to the LAST '@' of the authority
	userinfoAt := cursor
	for {
		at := strings.IndexByte(url[cursor:pathAt], '@')
		if at == -1 {
			break
		}
		md.hasAtSign = true
		abs := cursor + at
		userinfo = url[userinfoAt:abs]
		cursor = abs + 1
		if cursor == len(url) {
			return
		}
	}

	switch brk := strings.IndexByte(url[cursor:pathAt], ']'); {
	case brk != -1 && url[cursor] == '[':
		// [v6]:port
		md.hasBrks = true
		abs := cursor + brk
		host = url[cursor+1 : abs]
		cursor = abs + 1
		if cursor == len(url) {
			return
		}
		if url[cursor] == ':' {
			md.hasPort = true
			port = url[cursor+1 : pathAt]
		} else if cursor != pathAt {
			md.junk = url[cursor:pathAt]
		}

	default:
		if c := strings.IndexByte(url[cursor:pathAt], ':'); c != -1 {
			md.hasPort = true
			host = url[cursor : cursor+c]
			port = url[cursor+c+1 : pathAt]
		} else {
			host = url[cursor:pathAt]
		}
	}

	return
}

// join is the inverse of split.
func join(schema, userinfo, host, port, path string, md metadata) string {
	var b strings.Builder
	b.WriteString(schema)
	if md.hasSchema {
		b.WriteByte(':')
	}
	b.WriteString(strings.Repeat("/", md.slashNum))
	b.WriteString(userinfo)
	if md.hasAtSign {
		b.WriteByte('@')
	}
	if md.hasBrks {
		b.WriteString("[" + host + "]")
	} else {
		b.WriteString(host)
	}
	if md.hasPort {
		b.WriteByte(':')
	}
	b.WriteString(port)
	b.WriteString(md.junk)
	b.WriteString(path)
	return b.String()
}

// strcspn returns the length of the initial segment of s that
// contains none of the bytes in reject.
func strcspn(s, reject string) int {
	if idx := strings.IndexAny(s, reject); idx != -1 {
		return idx
	}
	return len(s)
}
