// Package alerts evaluates threshold rules against every emission and
// delivers webhook notifications when a rule fires or resolves.
package alerts
