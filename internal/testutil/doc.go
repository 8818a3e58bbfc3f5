// Package testutil contains helpers shared by package tests: a fluent trace
// builder and a scripted model.
package testutil
