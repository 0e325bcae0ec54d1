package engine

import "strconv"

// completionCtx and completionCoreEvent are the fixed (ctx, event)
// components of every task's completion event name.
// They are the only cross-module contract with the CompletionBus; no
// other code should build this format by hand.
const (
	completionCtx       = "threadpool"
	completionCoreEvent = "on_complete"
)

// completionEventName builds the CompletionBus event key for id,
// "<ctx>_<event>_<id>".
func completionEventName(id int) string {
	return completionCtx + "_" + completionCoreEvent + "_" + strconv.Itoa(id)
}
