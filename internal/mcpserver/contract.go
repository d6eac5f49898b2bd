package mcpserver

// RecordFormatContract describes the record document format that MCP
// clients must follow when creating records.
const RecordFormatContract = `# Tatami Record Format Contract

Every record is one JSON object. Enumerations are integers.

## Fields

| Key | Type | Notes |
| --- | --- | --- |
| id | string | REQUIRED. Lowercase letters, digits, "-" and "_"; must not start with "_". |
| name | string | REQUIRED. Display name. |
| name_suffix_1, name_suffix_2 | string | Optional qualifiers, e.g. "from guard". |
| other_names | string | Optional alternate names. |
| summary | string | Free text. |
| types | int[] | Category tags, see below. |
| difficulty | int | 0 universal, 10 beginner, 20 novice, 30 intermediate, 40 advanced, 50 expert. |
| is_counter, requires_gi, is_searchable | bool | Flags. |
| ranking | int | Sort rank. |
| parent | string | Optional id of the more general technique. |
| inverse | string | Optional id of the mirror technique. Must be mutual. |
| followups | string[] | Ids this technique leads to. |
| preceding | string[] | Ids that lead to this technique. |
| counters | string[] | Ids of counter techniques. |
| concepts | string[] | Ids of related concepts. |
| content | object[] | Blocks of {content_type, contents, title?, video_start_at?}. |

Content types: 10 text, 30 YouTube video (contents is the video id), 90 ad.

## Categories

100 position; 200 submission, 201 chokehold, 202 joint lock, 203 compression lock;
300 sweep; 400 takedown, 401 throw; 500 pass; 700 defense, 701 escape;
900 concept (articles only).

## Relationships

1. References are record ids of the same family.
2. You only need to set one side of a relationship. The clean pass adds the
   mirror side: B in A.followups puts A in B.preceding, and A.inverse = B sets
   B.inverse = A when B has none.
3. The clean pass removes references to records that do not exist.
4. Two records may not claim the same inverse. Clean refuses to run until
   the authoring error is fixed.

## Example

` + "```" + `json
{
    "id": "triangle",
    "name": "Triangle",
    "summary": "Choke using the legs around head and one arm.",
    "types": [201],
    "difficulty": 10,
    "is_searchable": true,
    "parent": "",
    "inverse": "",
    "followups": ["armbar"],
    "preceding": [],
    "counters": [],
    "concepts": [],
    "content": [{"content_type": 10, "contents": "Break posture first."}]
}
` + "```" + `
`
