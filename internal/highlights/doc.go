// Package highlights asks an LLM to pick the most engaging moments from a
// transcript. Detection is single-shot: a failed or malformed response
// degrades to an empty highlight list rather than retrying, so a render pass
// always finishes.
package highlights
