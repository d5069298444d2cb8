// Package testutil contains helper builders and test doubles used across
// tests to reduce boilerplate when driving orchestration runs: scripted
// managers, stub member agents and threads, and progress ledger builders.
// They are not intended for production usage.
package testutil
