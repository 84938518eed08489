// Package gemini implements the generation.Generator interface against
// Google's Gemini API, with exponential-backoff retries for transient
// failures and usage accounting for budget enforcement.
package gemini
