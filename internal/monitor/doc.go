// Package monitor periodically sweeps each box's breakers and logs
// availability transitions.
//
// The sweep doubles as a heartbeat for auto-reset: an OPEN breaker only
// closes when observed, so breakers that stopped receiving traffic would
// otherwise stay open past their reset window.
package monitor
