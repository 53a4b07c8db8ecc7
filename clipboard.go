package tinychat

import (
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"
)

// CopyFailure classifies why a copy did not reach the clipboard.
type CopyFailure string

const (
	CopyDenied       CopyFailure = "permission-denied"
	CopyNotSupported CopyFailure = "not-supported"
	CopyUnknown      CopyFailure = "unknown"
)

// CopyResult is the outcome of one copy attempt. Never escalates to an
// error; a failed copy is a value the caller can show and retry.
type CopyResult struct {
	OK     bool
	Reason CopyFailure
	Detail string
}

// Clipboard copies text to the system clipboard. The primary primitive is
// the clipboard library; when that reports no utilities at all, it falls
// back to piping the text into a platform copy command. A failure of an
// available primitive is classified and returned, never silently retried
// through the fallback.
type Clipboard struct {
	writeAll    func(string) error
	unsupported bool
	lookPath    func(string) (string, error)
	runCopyCmd  func(name string, args []string, text string) error
}

func NewClipboard() *Clipboard {
	return &Clipboard{
		writeAll:    clipboard.WriteAll,
		unsupported: clipboard.Unsupported,
		lookPath:    exec.LookPath,
		runCopyCmd:  runCopyCmd,
	}
}

// Copy puts text on the clipboard. An empty string is a valid zero-length
// copy; large payloads pass through untruncated.
func (c *Clipboard) Copy(text string) CopyResult {
	if !c.unsupported {
		if err := c.writeAll(text); err != nil {
			return CopyResult{Reason: classifyCopyErr(err), Detail: err.Error()}
		}
		return CopyResult{OK: true}
	}

	name, args, ok := c.copyCommand()
	if !ok {
		return CopyResult{Reason: CopyNotSupported, Detail: "copy not supported"}
	}
	if err := c.runCopyCmd(name, args, text); err != nil {
		return CopyResult{Reason: CopyNotSupported, Detail: "copy not supported"}
	}
	return CopyResult{OK: true}
}

// Supported reports whether any copy mechanism is available.
func (c *Clipboard) Supported() bool {
	if !c.unsupported {
		return true
	}
	_, _, ok := c.copyCommand()
	return ok
}

// copyCommand picks the legacy copy command for the platform.
func (c *Clipboard) copyCommand() (string, []string, bool) {
	var candidates [][]string
	switch runtime.GOOS {
	case "darwin":
		candidates = [][]string{{"pbcopy"}}
	case "linux":
		candidates = [][]string{
			{"wl-copy"},
			{"xclip", "-selection", "clipboard"},
			{"xsel", "--input", "--clipboard"},
		}
	case "windows":
		candidates = [][]string{{"clip"}}
	default:
		return "", nil, false
	}
	for _, cand := range candidates {
		if _, err := c.lookPath(cand[0]); err == nil {
			return cand[0], cand[1:], true
		}
	}
	return "", nil, false
}

func classifyCopyErr(err error) CopyFailure {
	if os.IsPermission(err) {
		return CopyDenied
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "denied") || strings.Contains(msg, "permission") {
		return CopyDenied
	}
	return CopyUnknown
}

// runCopyCmd pipes text into a copy command over stdin. The command is
// transient; nothing is left behind on any exit path.
func runCopyCmd(name string, args []string, text string) error {
	cmd := exec.Command(name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	if _, err := io.WriteString(stdin, text); err != nil {
		stdin.Close()
		cmd.Wait()
		return err
	}
	if err := stdin.Close(); err != nil {
		cmd.Wait()
		return err
	}
	return cmd.Wait()
}
