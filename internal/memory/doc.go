// Package memory implements the long-term memory of the companion.
//
// Each user has one Record: profile facts (family, health notes, interests),
// shared stories, recent conversation topics and a conversation counter. A
// Record is wrapped by a UserMemory whose mutators apply the bounded and
// de-duplicating list rules and persist the whole record before returning.
// Records are held in a process-wide Registry and written through a Store
// (JSON files or SQLite).
//
// The Extractor turns an end-of-session transcript into structured facts via
// a language model and folds them into a UserMemory, one persist per fact.
package memory
