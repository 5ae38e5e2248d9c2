// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package opensearch

// bulkMetaSource renders the action line of one bulk entry.
const bulkMetaSource = `{ {{ .Op | quote }}: {
  "_index": {{ .Index | quote }}
  {{- if .ID }}, "_id": {{ .ID | quote }}{{ end }}
  {{- if .Routing }}, "routing": {{ .Routing | quote }}{{ end }}
} }`

// scanQuerySource renders one page of a search_after walk over an index.
const scanQuerySource = `{
  "size": {{ .Size }},
  "query": {{ .Query }},
  "sort": [ { "_id": "asc" } ]
  {{- if .After }},
  "search_after": {{ .After }}
  {{- end }}
}`
