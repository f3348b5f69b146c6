// Package testsupport builds isolated configs and history stores for tests.
package testsupport
