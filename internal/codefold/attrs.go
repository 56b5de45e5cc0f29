package codefold

import (
	"regexp"
	"strings"
)

// Attributes are the {k=v .class #id} settings after a fence's language.
type Attributes map[string]string

var attrRE = regexp.MustCompile(`([\w-]+)=("[^"]*"|'[^']*'|[^\s}]+)|\.([\w-]+)|#([\w-]+)`)

// ParseAttributes parses `{k=v k2="v 2" .cls #id}`. Classes accumulate
// space separated under "class"; the last #id wins.
func ParseAttributes(s string) Attributes {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return Attributes{}
	}
	attrs := Attributes{}
	for _, m := range attrRE.FindAllStringSubmatch(s[1:len(s)-1], -1) {
		switch {
		case m[1] != "":
			attrs[m[1]] = strings.Trim(m[2], `"'`)
		case m[3] != "":
			attrs["class"] = strings.TrimSpace(attrs["class"] + " " + m[3])
		case m[4] != "":
			attrs["id"] = m[4]
		}
	}
	return attrs
}

// Classes returns the class list.
func (a Attributes) Classes() []string {
	return strings.Fields(a["class"])
}
