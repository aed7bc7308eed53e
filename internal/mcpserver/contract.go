package mcpserver

// BlockSyntax documents the code blocks rendered by render_block and the
// spotlight tool.
const BlockSyntax = `# notecommits block syntax

Every block is a fenced code block whose language names the block kind. Its
body holds one ` + "`" + `key=value` + "`" + ` argument per line. Keys with an empty value
are ignored and their default applies; unknown keys are ignored.

## Commit blocks

| Kind | Shows |
|------|-------|
| ` + "`" + `commit-types` + "`" + ` | commits per type (Create, Expand, Refactor, Link) with shares |
| ` + "`" + `commit-weekly` + "`" + ` | commits per weekday, Monday first |
| ` + "`" + `commit-daily` + "`" + ` | commits per hour of day, 0 to 23 |
| ` + "`" + `commit-recent` + "`" + ` | the newest notes per action |

Arguments:

- ` + "`" + `project` + "`" + `: tracked folder, default ` + "`" + `/` + "`" + ` (whole vault)
- ` + "`" + `top` + "`" + `: entries per action in commit-recent
- ` + "`" + `width` + "`" + `, ` + "`" + `height` + "`" + `, ` + "`" + `align` + "`" + `: container size (percent, pixels) and float
- ` + "`" + `fill` + "`" + `, ` + "`" + `border` + "`" + `, ` + "`" + `grid` + "`" + `: chart colours

A block naming a folder that is not tracked shows
` + "`" + `Project "<folder>" is not tracked` + "`" + `.

` + "```" + `commit-recent
project=Projects/Thesis
top=5
` + "```" + `

## Spotlight blocks

` + "`" + `spotlight-note` + "`" + ` shows a random note, ` + "`" + `spotlight-block` + "`" + ` a random
` + "`" + `^block-id` + "`" + ` paragraph of a random note.

- ` + "`" + `tags` + "`" + `: semicolon-separated; a note matches when it has any of them
- ` + "`" + `match` + "`" + `: regular expression on the note path, default ` + "`" + `.*` + "`" + `
- ` + "`" + `divWidth` + "`" + `, ` + "`" + `divHeight` + "`" + `, ` + "`" + `divAlign` + "`" + `: container size and float

The note holding the block is only picked when it is the sole match.

` + "```" + `spotlight-block
tags=quote;book
match=^Reading/
` + "```" + `
`
