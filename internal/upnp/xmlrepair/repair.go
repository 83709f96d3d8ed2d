// Package xmlrepair heals XML bodies that non-conformant UPnP devices emit.
//
// Each function returns its input unchanged when there is nothing to repair,
// so callers can compare the result with the original to decide whether a
// retry is worthwhile.
package xmlrepair

import (
	"encoding/xml"
	"regexp"
	"strings"
)

// entityPrefixes are the sequences after '&' that already form an entity.
var entityPrefixes = []string{"#", "lt;", "gt;", "amp;", "apos;", "quot;"}

// lastChangeRegex captures the content of a LastChange element.
var lastChangeRegex = regexp.MustCompile(`(?s)<LastChange>(.*)</LastChange>`)

// FixEntities escapes every '&' that does not start a predefined XML entity
// or a character reference.
func FixEntities(body string) string {
	if !strings.Contains(body, "&") {
		return body
	}

	var b strings.Builder
	b.Grow(len(body) + 16)
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '&' {
			b.WriteByte(c)
			continue
		}
		if startsEntity(body[i+1:]) {
			b.WriteByte(c)
			continue
		}
		b.WriteString("&amp;")
	}
	return b.String()
}

// FixLastChange re-escapes raw XML found inside a LastChange element and
// rebuilds the property set around it. Bodies without such content are
// returned unchanged.
func FixLastChange(body string) string {
	m := lastChangeRegex.FindStringSubmatch(body)
	if m == nil {
		return body
	}
	content := strings.TrimSpace(m[1])
	if !strings.HasPrefix(content, "<") {
		return body
	}

	var escaped strings.Builder
	// EscapeText only fails on writer errors; strings.Builder has none.
	_ = xml.EscapeText(&escaped, []byte(content))

	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">` +
		`<e:property><LastChange>` + escaped.String() + `</LastChange></e:property>` +
		`</e:propertyset>`
}

func startsEntity(rest string) bool {
	for _, p := range entityPrefixes {
		if strings.HasPrefix(rest, p) {
			return true
		}
	}
	return false
}
