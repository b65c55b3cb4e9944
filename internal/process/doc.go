// Package process runs external tools as subprocesses.
//
// [Process] supervises one long-running child such as an ffmpeg transcode:
//   - Stderr exposed as a lazy sequence of lines split on CR or LF
//   - Pluggable log parsing so diagnostic lines land in the module logger
//   - Graceful stop with SIGINT to the process group, SIGKILL after a timeout
//
// [Exec] runs short-lived commands to completion and returns their stdout,
// used for ffprobe queries and single-frame extraction.
//
// Example:
//
//	p := process.New("clip.mov", "ffmpeg", args, logger)
//	if err := p.Start(); err != nil {
//	    return err
//	}
//	for line := range p.Lines() {
//	    if cancelled() {
//	        return p.Terminate()
//	    }
//	    handle(line)
//	}
//	return p.Wait()
package process
