// Command leadflow is the operator CLI for the leadflow dispatch and intent
// scoring engine. It works directly against the shared SQLite database, so
// every command except the daemon controls is usable whether or not leadflowd
// is running.
package main
