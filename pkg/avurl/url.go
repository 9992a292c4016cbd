// Package avurl parses media locators the way FFmpeg does.
//
// FFmpeg falls back to the local filesystem when a locator has no scheme and
// is lenient about malformed authorities. Parse mirrors FFmpeg's split so that
// what we validate is exactly what the transcoder will open, and then applies
// host and port checks on top.
package avurl

import (
	"errors"
	"fmt"
)

// URL is the split form of a media locator.
type URL struct {
	Schema   string `json:"schema"`
	Userinfo string `json:"userinfo,omitempty"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Path     string `json:"path"`

	md metadata
}

// Parse splits url into components and validates host and port.
func Parse(url string) (*URL, error) {
	schema, userinfo, host, port, path, md := split(url)

	// split/join must round-trip; anything else is a bug in split
	if url != join(schema, userinfo, host, port, path, md) {
		return nil, errors.New("unable to parse URL")
	}

	if md.junk != "" {
		return nil, errors.New("invalid URL")
	}

	if host != "" {
		if err := ValidateHost(host); err != nil {
			return nil, err
		}
	}

	if port != "" && !isPort(port) {
		return nil, fmt.Errorf("bad port: '%s'", port)
	}

	return &URL{
		Schema:   schema,
		Userinfo: userinfo,
		Host:     host,
		Port:     port,
		Path:     path,
		md:       md,
	}, nil
}

// String re-joins the components.
func (u *URL) String() string {
	return join(u.Schema, u.Userinfo, u.Host, u.Port, u.Path, u.md)
}

// Redacted returns the locator with any password in the userinfo replaced by
// "xxxxx". Camera URLs routinely embed credentials; use this for logs.
func (u *URL) Redacted() string {
	userinfo := u.Userinfo
	for i := 0; i < len(userinfo); i++ {
		if userinfo[i] == ':' {
			userinfo = userinfo[:i+1] + "xxxxx"
			break
		}
	}
	return join(u.Schema, userinfo, u.Host, u.Port, u.Path, u.md)
}

// Redact is a convenience for logging a raw locator. Unparseable input is
// returned as a placeholder rather than verbatim.
func Redact(raw string) string {
	u, err := Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
