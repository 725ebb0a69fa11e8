// Package engine spawns and supervises the external conversational
// engine subprocess that backs every Parley session.
//
// The engine speaks a line-oriented control protocol over its standard
// streams: the initial human turn rides on the command line, follow-up
// turns are written to stdin one line at a time, and every stdout line
// is a JSON object describing one engine event. A {"type":"result"}
// line terminates the current turn; the subprocess then waits for the
// next stdin line. Stdin must stay open for the life of the process,
// since closing it ends the protocol.
//
// # Main Types
//
//   - [Driver]: spawns subprocesses for one engine flavor
//   - [ClaudeDriver]: Driver for the Claude Code CLI in stream-json mode
//   - [Process]: handle on one live subprocess (SendTurn, Events, Kill)
//   - [Event]: one parsed output line (system, text, thinking, tool
//     call, tool result, per-turn result, or raw passthrough)
//
// # Lifecycle
//
//	driver := &engine.ClaudeDriver{QuotaCommand: quota}
//	proc, err := driver.Start(ctx, engine.StartOptions{
//	    WorkingDir:    dir,
//	    InitialPrompt: "help me plan a trip",
//	})
//	if err != nil {
//	    return err
//	}
//	defer proc.Kill()
//
//	for ev := range proc.Events() {
//	    if ev.Terminal() {
//	        break // turn finished, engine is waiting for input
//	    }
//	    // render ev
//	}
//	proc.SendTurn("make it a week longer")
//
// The events channel closes when the subprocess's output ends, which is
// how callers observe a crash: a channel close before a terminal event
// means the engine died mid-turn. Done and Err expose the exit status
// once the process has been reaped, and StderrTail retains the last few
// kilobytes of stderr for diagnostics.
//
// # Resource Quotas
//
// ClaudeDriver.QuotaCommand prepends a wrapper to the engine argv
// (prlimit, nice, systemd-run) so each subprocess runs under a fixed
// CPU/memory budget. Kill signals the whole process group, so wrapper
// children die with the wrapper.
package engine
