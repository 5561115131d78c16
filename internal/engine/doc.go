// Package engine provides the task execution engine. It validates and
// accepts submissions, drives each task through the
// pending→running→completed/failed lifecycle via a single run path shared by
// detached and inline submission, races the automation gateway against the
// task deadline, and streams progress lines to subscribers.
package engine
