// Package intake records exchanged messages and feeds inbound ones to the
// scoring engine.
package intake
