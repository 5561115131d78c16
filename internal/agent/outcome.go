package agent

// OutcomeKind tags the result of one automation attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeTimedOut
	OutcomeFailed
)

// Outcome is the closed result variant returned by the gateway. Payload and
// ScreenshotPath are meaningful only for OutcomeSuccess, Reason only for
// OutcomeFailed; the executor switches on Kind so a record can never end up
// with both a result and an error.
type Outcome struct {
	Kind           OutcomeKind
	Payload        string
	ScreenshotPath string
	Reason         string
}

// Success builds a successful outcome. screenshotPath may be empty when no
// screenshot was requested or persisting it failed.
func Success(payload, screenshotPath string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Payload: payload, ScreenshotPath: screenshotPath}
}

// TimedOut builds the outcome for an attempt that exceeded its deadline.
func TimedOut() Outcome {
	return Outcome{Kind: OutcomeTimedOut}
}

// Failed builds the outcome for an attempt the engine could not complete.
func Failed(reason string) Outcome {
	return Outcome{Kind: OutcomeFailed, Reason: reason}
}
