package config

import "strings"

// Normalize canonicalizes extensions and URLs, mirrors the documents path into
// the source destination and generates a run tag when none was supplied.
func (c *Config) Normalize() {
	c.Documents.Path = strings.TrimSpace(c.Documents.Path)
	c.Documents.Extensions = NormalizeExtensions(c.Documents.Extensions)
	c.Source.Destination = c.Documents.Path
	c.Source.Endpoint = strings.TrimSpace(c.Source.Endpoint)
	c.Service.URL = strings.TrimRight(strings.TrimSpace(c.Service.URL), "/")
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	c.Ingest.RunTag = strings.TrimSpace(c.Ingest.RunTag)
	if c.Ingest.RunTag == "" {
		c.Ingest.RunTag = NewRunTag()
	}
}

// NormalizeExtensions lower-cases each extension, adds a leading dot where
// missing and drops blanks and duplicates while keeping first-seen order.
func NormalizeExtensions(exts []string) []string {
	seen := make(map[string]bool, len(exts))
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || e == "." {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
