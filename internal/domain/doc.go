// Package domain defines the core types shared across the outreach system:
// clubs, research records, generated emails, conversation history, response
// records and the derived club status projection. It has no dependencies on
// storage, transport or provider packages.
package domain
