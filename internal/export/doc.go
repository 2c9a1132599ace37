// Package export writes conversation transcripts to other formats.
// Currently only standalone HTML, with message content rendered as
// markdown.
package export
