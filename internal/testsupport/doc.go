// Package testsupport builds isolated configs, databases, and fixtures for
// package tests.
package testsupport
