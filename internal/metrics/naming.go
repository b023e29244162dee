package metrics

import (
	"fmt"
	"strings"
	"time"
)

// DefaultDomain prefixes every external name unless configured otherwise.
const DefaultDomain = "perflog"

// quoteTriggers are the characters that force an id to be quoted in an
// external name.
const quoteTriggers = `,=:"*?`

const day = 24 * time.Hour

// ChannelExternalName derives the external name under which an aggregate (or
// one of its windows, when windowLabel is non-empty) is registered:
//
//	<domain>:type=<Type>,name=<id>[,window=<label>]
//
// The id is quoted if and only if it contains one of , = : " * ?
func ChannelExternalName(domain string, id MetricID, windowLabel string) string {
	var b strings.Builder
	b.WriteString(domain)
	b.WriteString(":type=")
	b.WriteString(id.Type.String())
	b.WriteString(",name=")
	if strings.ContainsAny(id.Name, quoteTriggers) {
		b.WriteString(quote(id.Name))
	} else {
		b.WriteString(id.Name)
	}
	if windowLabel != "" {
		b.WriteString(",window=")
		b.WriteString(windowLabel)
	}
	return b.String()
}

// quote wraps s in double quotes, backslash-escaping \ " * ? and newline.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\', '"', '*', '?':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// WindowLabel renders a retention window duration using the largest unit
// that divides it exactly: 1d, 6h, 15m, 30s, 250ms, otherwise nanoseconds.
func WindowLabel(d time.Duration) string {
	switch {
	case d <= 0:
		return "0ns"
	case d%day == 0:
		return fmt.Sprintf("%dd", d/day)
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	case d%time.Second == 0:
		return fmt.Sprintf("%ds", d/time.Second)
	case d%time.Millisecond == 0:
		return fmt.Sprintf("%dms", d/time.Millisecond)
	default:
		return fmt.Sprintf("%dns", int64(d))
	}
}
