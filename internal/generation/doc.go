// Package generation defines the boundary between the task core and external
// AI/LLM services. Agents depend only on the Generator interface; the
// concrete Gemini-backed client lives in internal/platform/gemini. The call
// is treated as opaque: it returns content plus usage metrics or fails with
// one of the sentinel errors below.
package generation
