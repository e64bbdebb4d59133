package mcpserver

// NoteSchemaURI is the resource URI of NoteSchema.
const NoteSchemaURI = "cogninote://note-schema"

// NoteSchema describes the note record and the capture file format for
// LLM consumers.
const NoteSchema = `# Cogninote Note Schema

Notes are Cornell notes produced from raw captures. They are never written
directly: send raw text to ` + "`capture_note`" + ` (or a URL to
` + "`capture_source`" + `) and the knowledge service structures it.

## Note record

| Field | Type | Notes |
|---|---|---|
| id | string | assigned at creation, immutable |
| title | string | |
| rawInput | string | the original capture, immutable |
| category | Study, Work, Personal, Ideas or Reference | |
| tags | string list | |
| cornell.notes | Markdown | hierarchical notes |
| cornell.cues | string list | recall questions |
| cornell.summary | string | |
| validation.accuracyScore | number 0-100 | |
| validation.factCheckDetails | list of {fact, status} | status is verified, uncertain or correction |
| connections | list of {id, title, relation} | title-based, resolved by fuzzy match when followed |
| masteryScore | integer 0-100 | 0 for seeds, 20 for captures; changed only by reviews |
| isSeed | bool | created from an unresolved link |
| createdAt, updatedAt, lastReviewed | epoch milliseconds | |

## Reviews

` + "`review_note`" + ` takes an outcome (` + "`struggled`" + ` = -5, ` + "`mastered`" + ` = +10)
or an integer delta. Scores are clamped to 0..100.

## Links

` + "`resolve_link`" + ` matches the first note whose title contains the query,
ignoring case, newest first. Unresolved titles return a confirmation
prompt; call again with ` + "`create_seed: true`" + ` to research the topic.

## Capture files

Uploaded or fetched Markdown may carry frontmatter:

` + "```" + `markdown
---
seed: true        # OPTIONAL - request a research seed
title: Entropy    # OPTIONAL - seed topic when the body is empty
---

Raw text. [[Related Topic]] links are passed as context.
` + "```" + `
`
