// SPDX-License-Identifier: MIT

// Package ussd implements the menu engine: the navigation state machine, its
// per-state handlers, and the size-bounded response builder.
package ussd

import (
	"strconv"
	"strings"
)

// USSD payload limits. The transport silently truncates anything over the
// hard limit, so Build never emits more than the safe length.
const (
	maxResponseLength  = 160
	safeResponseLength = 150
	maxLineLength      = 35
)

// Builder accumulates response lines under the USSD size limits. Lines over
// the per-line cap are ellipsis-truncated at a word boundary.
type Builder struct {
	prefix string
	lines  []string
}

// NewResponse starts a continuing (CON) response.
func NewResponse() *Builder {
	return &Builder{prefix: "CON "}
}

// NewEndResponse starts a terminal (END) response.
func NewEndResponse() *Builder {
	return &Builder{prefix: "END "}
}

// AddLine appends one line, truncating it to the per-line cap.
func (b *Builder) AddLine(line string) *Builder {
	b.lines = append(b.lines, truncateText(line, maxLineLength))
	return b
}

// AddMenuItem appends a numbered choice, optionally suffixed with a detail
// string. The detail is dropped entirely when the number and label leave no
// reasonable room for it.
func (b *Builder) AddMenuItem(number int, label, detail string) *Builder {
	item := strconv.Itoa(number) + ". " + label
	if d := strings.TrimSpace(detail); d != "" {
		remaining := maxLineLength - len(item) - 3
		if remaining > 10 {
			item += " - " + truncateText(d, remaining)
		}
	}
	return b.AddLine(item)
}

// AddEmptyLine appends a blank separator line.
func (b *Builder) AddEmptyLine() *Builder {
	return b.AddLine("")
}

// AddBackOption appends the standard back footer.
func (b *Builder) AddBackOption() *Builder {
	return b.AddEmptyLine().AddLine("0. Back")
}

// AddMoreOption appends the standard next-page footer.
func (b *Builder) AddMoreOption() *Builder {
	return b.AddEmptyLine().AddLine("99. More >>")
}

// WouldExceedLimit reports whether appending line would push the response
// past the safe length.
func (b *Builder) WouldExceedLimit(line string) bool {
	return len(b.current())+1+len(line) > safeResponseLength
}

// RemainingCapacity reports how many characters fit before the safe length.
func (b *Builder) RemainingCapacity() int {
	return safeResponseLength - len(b.current())
}

// Build renders the response. If the accumulated content exceeds the safe
// length, whole trailing lines are dropped rather than emitting a payload the
// transport would mangle.
func (b *Builder) Build() string {
	full := b.current()
	if len(full) <= safeResponseLength {
		return full
	}
	return b.truncateToSafeLength()
}

func (b *Builder) current() string {
	return b.prefix + strings.Join(b.lines, "\n")
}

func (b *Builder) truncateToSafeLength() string {
	var sb strings.Builder
	sb.WriteString(b.prefix)
	for i, line := range b.lines {
		extra := len(line)
		if i > 0 {
			extra++
		}
		// Keep headroom so a dropped tail is visibly truncated, not mid-line.
		if sb.Len()+extra > safeResponseLength-10 {
			break
		}
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// truncateText shortens text to max characters with a trailing ellipsis,
// preferring a word boundary when one exists past the halfway point.
func truncateText(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := text[:max-3]
	if i := strings.LastIndexByte(cut, ' '); i > max/2 {
		return text[:i] + "..."
	}
	return cut + "..."
}
