package mcpserver

// DocumentFormatContract describes the canonical document tree and the
// operation vocabulary that LLM consumers must follow.
const DocumentFormatContract = `# Tavle Document Contract

Every document is a canonical tree: groups of items, where nesting lives in
each item's parentId. Mutations go through semantic operations, never through
direct tree edits.

## Document structure

` + "```" + `json
{
  "id": "generated-on-create",
  "title": "Groceries",
  "groups": [
    {
      "id": "g1",
      "title": "Today",
      "items": [
        {"id": "a", "type": "header-checkbox", "text": "Shopping"},
        {"id": "b", "type": "task", "text": "Buy milk", "parentId": "a"}
      ]
    }
  ]
}
` + "```" + `

## Rules

1. **Item lists are flat.** Children are expressed through ` + "`" + `parentId` + "`" + `,
   which must reference another item in the same group. Never nest item
   objects inside each other.
2. **Item types:** task, header-checkbox, multi-checkbox, note, code,
   tracker, timer, counter, rating, image, audio, time-log, calendar,
   table, mood.
3. **Type-specific payload** lives in the ` + "`" + `props` + "`" + ` object (timer
   duration, counter value, table cells, ...).
4. **Ids are opaque strings.** Omit the id on create; it is generated.

## Operations

Pass one JSON object per apply_operation call:

- ` + "`" + `{"op": "create", "params": {"type": "task", "groupId": "g1", "index": -1, "item": {"text": "Buy milk"}}}` + "`" + ` —
  index -1 appends; parentId in params nests the new item.
- ` + "`" + `{"op": "delete", "itemId": "b"}` + "`" + ` — removes the item and its descendants.
- ` + "`" + `{"op": "move", "itemId": "b", "params": {"groupId": "g2", "index": 0}}` + "`" + ` —
  params.parentId re-parents; moving under a descendant is rejected.
- ` + "`" + `{"op": "setText", "itemId": "b", "params": {"text": "Buy oat milk"}}` + "`" + `
- ` + "`" + `{"op": "setProperty", "itemId": "a", "params": {"property": "completed", "value": true, "cascade": true}}` + "`" + ` —
  cascade flows the value to every descendant in the same step.

Every operation either commits fully or leaves the document unchanged, and
each applied operation is undoable via undo_last.

## Assets

- Upload assets via the ` + "`" + `upload_asset` + "`" + ` tool. It returns a ` + "`" + `markdown` + "`" + ` field ready to paste into item text: an image embed for images, a plain link for documents and audio.
- Assets are stored in the shared ` + "`" + `attachments/` + "`" + ` directory (flat, no sub-folders).
- Reference them by absolute path: ` + "`" + `![description](/attachments/filename.png)` + "`" + `
- Audio items point at their recording through ` + "`" + `props.audioPath` + "`" + `, e.g. ` + "`" + `/attachments/memo.ogg` + "`" + `.
- Supported formats: png, jpg, jpeg, gif, webp, svg, pdf, mp3, ogg, wav, webm.
- Do **not** use relative paths like ` + "`" + `./attachments/...` + "`" + ` — always use ` + "`" + `/attachments/filename` + "`" + `.
`
