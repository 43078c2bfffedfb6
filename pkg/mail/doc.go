// Package mail turns validated contact submissions into HTML emails and hands
// them to an SMTP server. Sends are bounded by a timeout and never retried.
package mail
