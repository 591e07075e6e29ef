// Package pairing associates the bridge with a cloud account.
//
// The Controller requests a short-lived bind code, hands it to the user
// (QR code or local push to the phone app) and polls the cloud every two
// seconds until the code is scanned or expires:
//
//	Idle → RequestingCode → AwaitingScan → Bound | TimedOut | Failed
//
// A failed code request is classified network_error and never reaches
// AwaitingScan. The poll window is the code's expiry less a three second
// latency reserve; running out of it yields ErrTimeout with reason
// timeout_abort. Only one task runs per controller.
package pairing
