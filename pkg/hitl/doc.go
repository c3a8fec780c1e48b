// Package hitl defers selected tool calls behind a Knock approval workflow.
//
// A wrapped tool triggers the configured workflow with the call embedded in
// the trigger data and returns a pending status. When a recipient interacts
// with the resulting message, the message.interacted event carries the call
// back; ParseInteraction extracts it and Wrapper.ResumeInteraction runs the
// original tool when the recipient approved. Other decisions are declined.
package hitl
