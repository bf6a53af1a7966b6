// Package services defines the sentinel errors and wrapping helpers pipeline
// steps use so the driver can classify and report failures consistently.
package services
